package models

import (
	"regexp"
	"strings"
)

// National registration formats accepted by validation. A registration
// must fully match at least one pattern after normalization.
var registrationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^N[0-9]{1,5}[A-Z]{0,2}$`),   // United States (N-number)
	regexp.MustCompile(`^[A-Z]{1,2}-[A-Z]{3,4}$`),   // Hyphenated prefixes (G-ABCD, VH-ABC)
	regexp.MustCompile(`^[A-Z]{2}-[A-Z]{3}$`),       // Two-letter hyphenated (PH-BHA)
	regexp.MustCompile(`^[A-Z]{2}[0-9]{3,4}$`),      // Letter-digit without hyphen (HL8001)
	regexp.MustCompile(`^B-[0-9A-Z]{4}$`),           // China / Taiwan (B-2021, B-KPM shapes)
}

// plausibleRegistration is the loose discovery-time shape: uppercase
// letters, digits and hyphens only. Length bounds are checked separately.
var plausibleRegistration = regexp.MustCompile(`^[A-Z0-9-]+$`)

// NormalizeRegistration uppercases and trims a registration. Registrations
// are case-insensitive everywhere; storage and comparison both use the
// normalized form.
func NormalizeRegistration(reg string) string {
	return strings.ToUpper(strings.TrimSpace(reg))
}

// ValidRegistrationFormat reports whether reg matches one of the national
// formats. Validation records an error-severity issue when this fails.
func ValidRegistrationFormat(reg string) bool {
	reg = NormalizeRegistration(reg)
	for _, p := range registrationPatterns {
		if p.MatchString(reg) {
			return true
		}
	}
	return false
}

// PlausibleRegistration is the permissive filter applied to discovery
// output: 4-10 characters of uppercase letters, digits and hyphens.
// Sources list registrations in many national formats, so discovery only
// rejects obvious garbage and leaves strict checks to validation.
func PlausibleRegistration(reg string) bool {
	reg = NormalizeRegistration(reg)
	if len(reg) < 4 || len(reg) > 10 {
		return false
	}
	return plausibleRegistration.MatchString(reg)
}
