package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims, collapses inner whitespace and caps the result at maxLen runes.
// Receipt and product names carry accents, so the cut never splits a character.
func SanitizeString(input string, maxLen int) string {
	collapsed := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || utf8.RuneCountInString(collapsed) <= maxLen {
		return collapsed
	}
	runes := []rune(collapsed)
	return strings.TrimSpace(string(runes[:maxLen]))
}
