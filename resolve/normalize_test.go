package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  Alpha  ", "alpha"},
		{"casefolds", "ALPHA", "alpha"},
		{"casefolds sharp s", "STRASSE", Normalize("straße")},
		{"nfkc fullwidth", "Ａｌｐｈａ", "alpha"},
		{"empty", "", ""},
		{"cyrillic preserved", "Проект", "проект"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeLoose(t *testing.T) {
	// A Cyrillic name ending in Latin "A" and the same name ending in a
	// Greek capital alpha fold to the same key.
	a := NormalizeLoose("Проект A")
	b := NormalizeLoose("Проект Α")
	assert.Equal(t, a, b)

	// The strict form keeps them distinct.
	assert.NotEqual(t, Normalize("Проект A"), Normalize("Проект Α"))

	// Confusable folding is comparison-only and maps single letters.
	assert.Equal(t, "core", NormalizeLoose("СОРЕ")) // all-Cyrillic С О Р Е
	assert.Equal(t, "plain", NormalizeLoose("plain"))
}
