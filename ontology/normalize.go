package ontology

import (
	"regexp"
	"strings"
)

// UnknownToken is the sentinel canonical token for empty or missing raw
// values. It is excluded from vocabulary hints and correlation counts.
const UnknownToken = "unknown"

var nonTokenRuns = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize lowercases a raw label, trims it, and collapses runs of
// whitespace and punctuation into single underscores. Pure function.
//
//	"Close-Up"    -> "close_up"
//	"  Wide SHOT" -> "wide_shot"
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = nonTokenRuns.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
