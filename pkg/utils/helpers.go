package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	idPrefixRe  = regexp.MustCompile(`^ID:\d+/`)
	lotPrefixRe = regexp.MustCompile(`^Lot \d+,\s*`)
	lotParenRe  = regexp.MustCompile(`^\(Lot \d+\)\s*`)
	spaceRe     = regexp.MustCompile(`\s+`)
	nonNumRe    = regexp.MustCompile(`[^0-9.\-]`)
)

// CleanAddress canonicalizes a free-text address for matching: ID and lot
// prefixes are dropped and whitespace is collapsed. Returns "" for input
// that carries no usable address at all.
func CleanAddress(fullAddress string) string {
	s := idPrefixRe.ReplaceAllString(fullAddress, "")
	s = lotPrefixRe.ReplaceAllString(s, "")
	s = lotParenRe.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// ParseNullableFloat recovers a number from a formatted source string such as
// "$1,250,000" or "607m²". Returns nil when nothing parseable remains: a
// malformed numeric field degrades to NULL instead of failing the record.
func ParseNullableFloat(s string) *float64 {
	cleaned := nonNumRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// SubstituteImageSize fills the {size} placeholder the image CDN templates
// carry before the URL is stored.
func SubstituteImageSize(url, size string) string {
	return strings.Replace(url, "{size}", size, 1)
}
