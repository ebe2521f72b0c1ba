package catalog

import (
	"iter"

	om "github.com/elliotchance/orderedmap/v3"
)

// ColumnSet is an insertion-ordered set of columns keyed by identity.
type ColumnSet struct {
	m *om.OrderedMap[Column, struct{}]
}

// NewColumnSet returns a set holding cols.
func NewColumnSet(cols ...Column) *ColumnSet {
	s := &ColumnSet{m: om.NewOrderedMap[Column, struct{}]()}
	for _, c := range cols {
		s.Add(c)
	}
	return s
}

// Add inserts c and reports whether it was new.
func (s *ColumnSet) Add(c Column) bool {
	return s.m.Set(c, struct{}{})
}

// AddAll inserts every column of other.
func (s *ColumnSet) AddAll(other *ColumnSet) {
	if other == nil {
		return
	}
	for c := range other.All() {
		s.Add(c)
	}
}

// Has reports membership.
func (s *ColumnSet) Has(c Column) bool {
	return s.m.Has(c)
}

// Len returns the number of columns.
func (s *ColumnSet) Len() int {
	if s == nil {
		return 0
	}
	return s.m.Len()
}

// All iterates in insertion order.
func (s *ColumnSet) All() iter.Seq[Column] {
	if s == nil {
		return func(func(Column) bool) {}
	}
	return s.m.Keys()
}

// Slice returns the columns in insertion order.
func (s *ColumnSet) Slice() []Column {
	out := make([]Column, 0, s.Len())
	for c := range s.All() {
		out = append(out, c)
	}
	return out
}

// QualifiedNames returns "table.column" for each member.
func (s *ColumnSet) QualifiedNames() []string {
	out := make([]string, 0, s.Len())
	for c := range s.All() {
		out = append(out, c.QualifiedName())
	}
	return out
}

// Equal reports whether both sets hold the same columns, ignoring order.
func (s *ColumnSet) Equal(other *ColumnSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for c := range s.All() {
		if !other.Has(c) {
			return false
		}
	}
	return true
}
