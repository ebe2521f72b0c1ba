// Package scope maps the table names and aliases visible to a statement onto
// catalog tables and resolves column references against them.
package scope

import (
	om "github.com/elliotchance/orderedmap/v3"

	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Scope is the name -> table map of one statement level. Bindings inherited
// from an enclosing statement are visible but may be shadowed.
type Scope struct {
	bindings *om.OrderedMap[string, *catalog.Table]
	local    map[string]bool
	hasAlias map[string]bool
	// ambiguous holds bare names dropped by the self-join rule.
	ambiguous map[string]bool
}

// New returns an empty scope.
func New() *Scope {
	return &Scope{
		bindings:  om.NewOrderedMap[string, *catalog.Table](),
		local:     map[string]bool{},
		hasAlias:  map[string]bool{},
		ambiguous: map[string]bool{},
	}
}

// Child returns a new scope that inherits every binding of s.
func (s *Scope) Child() *Scope {
	c := New()
	if s == nil {
		return c
	}
	for k, t := range s.bindings.AllFromFront() {
		c.bindings.Set(k, t)
	}
	return c
}

// Resolve builds the scope of a FROM list. Entries with an empty name are
// FROM subquery slots and are skipped. inherited may be nil.
//
// A table referenced twice under two aliases stays reachable through each
// alias but no longer through its bare name.
func Resolve(cat *catalog.Catalog, from []domain.TableRef, inherited *Scope) (*Scope, error) {
	s := inherited.Child()
	for _, ref := range from {
		if ref.Name == "" {
			continue
		}
		name, err := domain.NewIdentifier(ref.Name)
		if err != nil {
			return nil, err
		}
		t, ok := cat.Table(name.Key())
		if !ok {
			return nil, domain.ErrRelationNotFound(name.String())
		}
		if err := s.bindTable(name, t); err != nil {
			return nil, err
		}

		if ref.Alias == "" {
			continue
		}
		alias, err := domain.NewIdentifier(ref.Alias)
		if err != nil {
			return nil, err
		}
		if alias.Key() == name.Key() {
			continue
		}
		if err := s.Bind(alias, t); err != nil {
			return nil, err
		}
		s.hasAlias[name.Key()] = true
	}
	return s, nil
}

func (s *Scope) bindTable(name domain.Identifier, t *catalog.Table) error {
	key := name.Key()
	if s.ambiguous[key] {
		return nil
	}
	if !s.local[key] {
		// Either new or shadowing an outer binding.
		s.bindings.Set(key, t)
		s.local[key] = true
		return nil
	}
	if s.hasAlias[key] {
		s.bindings.Delete(key)
		delete(s.hasAlias, key)
		delete(s.local, key)
		s.ambiguous[key] = true
		return nil
	}
	return domain.ErrDuplicateTableReference(name.String())
}

// Bind adds name -> t. It fails with KindDuplicateTableReference when name
// is already bound at this level; inherited bindings are shadowed.
func (s *Scope) Bind(name domain.Identifier, t *catalog.Table) error {
	key := name.Key()
	if s.local[key] {
		return domain.ErrDuplicateTableReference(name.String())
	}
	s.bindings.Set(key, t)
	s.local[key] = true
	return nil
}

// Lookup returns the table bound to name.
func (s *Scope) Lookup(name string) (*catalog.Table, bool) {
	return s.bindings.Get(domain.Normalize(name))
}

// Names returns the bound names in binding order.
func (s *Scope) Names() []string {
	out := make([]string, 0, s.bindings.Len())
	for k := range s.bindings.Keys() {
		out = append(out, k)
	}
	return out
}

// Tables returns every distinct table in scope, inherited ones included.
func (s *Scope) Tables() []*catalog.Table {
	seen := map[*catalog.Table]bool{}
	var out []*catalog.Table
	for _, t := range s.bindings.AllFromFront() {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
