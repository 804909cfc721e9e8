package models

import "errors"

// Sentinel errors for failure classification. Callers wrap these with
// fmt.Errorf("%w: detail", ...) and dispatch with errors.Is, so retry
// decisions never depend on message text. The literal text still reads
// naturally because it is persisted verbatim in job error messages.
var (
	// ErrAirlineNotFound marks a job referencing an airline that does not
	// exist. Non-retryable.
	ErrAirlineNotFound = errors.New("Airline not found")

	// ErrAircraftTypeNotFound marks a lookup of an unconfigured aircraft
	// type code. Non-retryable.
	ErrAircraftTypeNotFound = errors.New("Aircraft type not found")

	// ErrInvalidRegistration marks a registration that fails every known
	// national format. Non-retryable.
	ErrInvalidRegistration = errors.New("Invalid registration")

	// ErrSourceUnavailable marks a transient fetch failure (timeout,
	// navigation error, empty page). Retryable at the source level.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrExtractorFailure marks an extraction call that returned no
	// parseable JSON. Retryable.
	ErrExtractorFailure = errors.New("extractor failure")

	// ErrDatabaseUnavailable marks a transient database failure. Retryable.
	ErrDatabaseUnavailable = errors.New("database unavailable")
)

// IsRetryable reports whether a job that failed with err should be
// rescheduled. Input errors (unknown airline, unknown type, bad
// registration) can never succeed on retry; everything else is assumed
// transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAirlineNotFound) ||
		errors.Is(err, ErrAircraftTypeNotFound) ||
		errors.Is(err, ErrInvalidRegistration) {
		return false
	}
	return true
}
