package interfaces

import (
	"context"

	"github.com/ternarybob/aerofleet/internal/models"
)

// DiscoveryAgent produces the set of registrations an airline operates,
// by working through ranked sources until one yields results.
//
// Discovery is stateless and safe to run concurrently across airlines;
// its only suspension points are page fetches and extractor calls.
type DiscoveryAgent interface {
	// Discover returns the registrations found for the airline along with
	// the sources consulted and a confidence score. An airline with no
	// productive source yields an empty result with Method "none", not an
	// error; an unknown airline yields models.ErrAirlineNotFound.
	Discover(ctx context.Context, airlineCode string, opts models.DiscoveryOptions) (*models.DiscoveryResult, error)
}

// DetailsAgent produces one merged detail record for a registration by
// collecting partial records from per-registration sources and overlaying
// them onto the existing stored record.
type DetailsAgent interface {
	// Collect fetches, extracts and merges detail partials for the
	// registration. Source and extractor failures degrade to missing
	// fields; with no seed record and zero productive sources the result
	// carries only the registration and a zero confidence score.
	Collect(ctx context.Context, registration string, opts models.DetailsOptions) (*models.AircraftDetails, error)
}

// ValidationAgent checks a candidate detail record for format, logic,
// cross-reference, type-spec and semantic problems.
type ValidationAgent interface {
	// Validate examines candidate against the optional existing record.
	// Issues are data, not errors: the returned result is non-nil whenever
	// err is nil, even when every check failed.
	Validate(ctx context.Context, candidate *models.AircraftDetails, existing *models.AircraftDetails) (*models.ValidationResult, error)
}
