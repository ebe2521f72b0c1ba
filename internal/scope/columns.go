package scope

import (
	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Columns resolves refs against s, preserving reference order.
//
// A qualified "*" expands to every column of that table. An unqualified "*"
// expands to the columns of every table in scope, inherited tables included,
// so a correlated subquery's "*" is checked against the outer tables too. An
// unqualified name must match exactly one table in scope.
func (s *Scope) Columns(refs []domain.ColumnRef) (*catalog.ColumnSet, error) {
	out := catalog.NewColumnSet()
	for _, ref := range refs {
		if err := s.resolve(ref, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Column resolves a single reference that must not be "*".
func (s *Scope) Column(ref domain.ColumnRef) (catalog.Column, error) {
	if ref.Table != "" {
		t, ok := s.Lookup(ref.Table)
		if !ok {
			return nil, domain.ErrMissingFromEntry(ref.Table)
		}
		c, ok := t.Column(ref.Column)
		if !ok {
			return nil, domain.ErrColumnNotFound(ref.Table, ref.Column)
		}
		return c, nil
	}

	var (
		found   catalog.Column
		matches []string
	)
	for _, t := range s.Tables() {
		if c, ok := t.Column(ref.Column); ok {
			found = c
			matches = append(matches, t.Name().String())
		}
	}
	switch len(matches) {
	case 0:
		return nil, domain.ErrColumnNotFound("", ref.Column)
	case 1:
		return found, nil
	default:
		return nil, domain.ErrAmbiguousColumn(ref.Column, matches)
	}
}

func (s *Scope) resolve(ref domain.ColumnRef, out *catalog.ColumnSet) error {
	if ref.Column != domain.Star {
		c, err := s.Column(ref)
		if err != nil {
			return err
		}
		out.Add(c)
		return nil
	}

	if ref.Table != "" {
		t, ok := s.Lookup(ref.Table)
		if !ok {
			return domain.ErrMissingFromEntry(ref.Table)
		}
		for _, c := range t.Columns() {
			out.Add(c)
		}
		return nil
	}
	for _, t := range s.Tables() {
		for _, c := range t.Columns() {
			out.Add(c)
		}
	}
	return nil
}
