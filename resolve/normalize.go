package resolve

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// confusables maps Cyrillic and Greek letters to the Latin letters they
// are commonly mistaken for. The substitution is comparison-only; stored
// names are never rewritten.
var confusables = map[rune]rune{
	// Cyrillic -> Latin
	'а': 'a',
	'е': 'e',
	'о': 'o',
	'р': 'r',
	'с': 'c',
	'у': 'y',
	'х': 'x',
	'к': 'k',
	'т': 't',
	'в': 'v',
	'м': 'm',
	'н': 'n',
	// Greek -> Latin
	'α': 'a',
	'β': 'b',
	'γ': 'g',
	'δ': 'd',
	'ε': 'e',
	'η': 'h',
	'ι': 'i',
	'κ': 'k',
	'λ': 'l',
	'μ': 'm',
	'ν': 'n',
	'ο': 'o',
	'π': 'p',
	'ρ': 'r',
	'τ': 't',
	'υ': 'y',
	'χ': 'x',
}

// Normalize trims, applies Unicode NFKC and casefolds the string. This is
// the canonical form used for name equality.
func Normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// NormalizeLoose is Normalize followed by confusable folding, so that
// e.g. a Greek capital alpha compares equal to a Latin "a". Used only
// when switching projects, where a forgiving match beats a miss.
func NormalizeLoose(s string) string {
	base := Normalize(s)
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		if latin, ok := confusables[r]; ok {
			b.WriteRune(latin)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
