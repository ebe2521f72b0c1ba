package domain

import "strings"

// Identifier is a case and quote insensitive SQL name. The original spelling
// is kept for display; comparisons use the normalized form returned by Key.
type Identifier struct {
	raw  string
	norm string
}

// NewIdentifier normalizes s. It fails with KindEmptyName when nothing is
// left after normalization.
func NewIdentifier(s string) (Identifier, error) {
	n := Normalize(s)
	if n == "" {
		return Identifier{}, ErrEmptyName(s)
	}
	return Identifier{raw: s, norm: n}, nil
}

// MustIdentifier is like NewIdentifier but panics on error. Intended for
// constants and tests.
func MustIdentifier(s string) Identifier {
	id, err := NewIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Normalize lowercases s and strips one matching pair of surrounding single
// or double quotes.
func Normalize(s string) string {
	s = strings.ToLower(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return s
}

// Key returns the normalized form. Use it as the map key for lookups.
func (id Identifier) Key() string { return id.norm }

// String returns the original spelling.
func (id Identifier) String() string { return id.raw }

// IsZero reports whether id was never initialized.
func (id Identifier) IsZero() bool { return id.norm == "" }

// Equal compares normalized forms.
func (id Identifier) Equal(other Identifier) bool { return id.norm == other.norm }

// Compare orders identifiers by normalized form.
func (id Identifier) Compare(other Identifier) int { return strings.Compare(id.norm, other.norm) }
