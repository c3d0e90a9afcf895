package models

import (
	"regexp"
	"strings"
)

var gpTitle = regexp.MustCompile(`(?i)\bGP\b`)

// IsGP classifies a staff name from an appointment export as a GP: either a
// "Dr" title or an explicit "GP" token such as "Locum (GP)".
func IsGP(name string) bool {
	name = strings.TrimSpace(name)
	return HasDoctorPrefix(name) || gpTitle.MatchString(name)
}

// HasDoctorPrefix reports whether a clinician display name starts with the
// literal "Dr" prefix. Only these clinicians take part in GP follow-up
// analysis.
func HasDoctorPrefix(name string) bool {
	return strings.HasPrefix(strings.TrimSpace(name), "Dr")
}
