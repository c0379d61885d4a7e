// Package textutil provides the Spanish-text normalization shared by the
// intake normalizer and the study matcher. Comparisons across the system
// are diacritic-insensitive and case-insensitive ("Pulmón" == "pulmon").
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases, trims and strips diacritics for comparison purposes.
func Fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		// non-transformable input: fall back to the raw string
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// FoldCollapse is Fold with inner whitespace runs collapsed to one space,
// used where exact (rather than substring) equality is required.
func FoldCollapse(s string) string {
	return strings.Join(strings.Fields(Fold(s)), " ")
}

// NFC returns the NFC-normalized form of s.
func NFC(s string) string {
	return norm.NFC.String(s)
}

// ContainsFold reports whether the folded haystack contains the folded
// needle. An empty needle always matches.
func ContainsFold(haystack, needle string) bool {
	if strings.TrimSpace(needle) == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}
