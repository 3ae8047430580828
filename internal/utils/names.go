package utils

import (
	"regexp"
	"strings"
)

var trailingDigits = regexp.MustCompile(`[0-9]+$`)

// NormalizeDriverName lower-cases and trims a driver name for allow-list lookups.
func NormalizeDriverName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// StripTrailingNumbers removes the account suffix digits the simulator appends
// to duplicate user names ("Jane Doe2" -> "Jane Doe").
func StripTrailingNumbers(name string) string {
	return strings.TrimSpace(trailingDigits.ReplaceAllString(name, ""))
}
