// Package vntext provides Vietnamese-aware text normalization shared by the
// safety scanner, the router and the in-memory lexical index.
package vntext

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and strips Vietnamese diacritics, so "Vi Phạm" and
// "vi pham" fold to the same string. Đ/đ carry their stroke in the base
// rune rather than a combining mark and are mapped explicitly.
func Fold(s string) string {
	s = strings.ToLower(s)
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ReplaceAll(folded, "đ", "d")
}

// ContainsFold reports whether text contains phrase under diacritic and
// case folding.
func ContainsFold(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(Fold(text), Fold(phrase))
}
