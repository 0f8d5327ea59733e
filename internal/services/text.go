package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	defaultTitleMaxLen  = 255
	defaultMaxTextRunes = 4000
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// requireText validates a normalized, required text field against max runes.
// max <= 0 disables the length check.
func requireText(field, s string, max int) error {
	if s == "" {
		return invalid(field, "must not be empty")
	}
	if !utf8.ValidString(s) {
		return invalid(field, "must be valid UTF-8")
	}
	if max > 0 && utf8.RuneCountInString(s) > max {
		return invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}
