package gym

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the canonical form of a trainer display name:
// surrounding whitespace trimmed and NFC normalized, so that visually
// identical names key the same trainer row.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
