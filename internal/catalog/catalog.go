// Package catalog holds the in-memory schema: tables, their real columns,
// and the virtual columns synthesized for subqueries.
package catalog

import (
	om "github.com/elliotchance/orderedmap/v3"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Catalog is an append-only set of tables keyed by normalized name.
type Catalog struct {
	tables *om.OrderedMap[string, *Table]
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{tables: om.NewOrderedMap[string, *Table]()}
}

// AddTable creates an empty table. It fails with KindDuplicateRelation when
// the name is taken.
func (c *Catalog) AddTable(name domain.Identifier) (*Table, error) {
	if c.tables.Has(name.Key()) {
		return nil, domain.ErrDuplicateRelation(name.String())
	}
	t := NewTable(name)
	c.tables.Set(name.Key(), t)
	return t, nil
}

// CreateTable adds a table and all of its columns. The table is registered
// only once every column is declared, so a failed definition leaves the
// catalog unchanged.
func (c *Catalog) CreateTable(def *domain.CreateTable) (*Table, error) {
	name, err := domain.NewIdentifier(def.Name)
	if err != nil {
		return nil, err
	}
	if c.tables.Has(name.Key()) {
		return nil, domain.ErrDuplicateRelation(name.String())
	}
	t := NewTable(name)
	for _, col := range def.Columns {
		colName, err := domain.NewIdentifier(col.Name)
		if err != nil {
			return nil, err
		}
		if _, err := t.AddRealColumn(colName, col.Type, col.NotNull, col.Unique); err != nil {
			return nil, err
		}
	}
	c.tables.Set(name.Key(), t)
	return t, nil
}

// Table looks a table up by normalized name.
func (c *Catalog) Table(name string) (*Table, bool) {
	return c.tables.Get(domain.Normalize(name))
}

// Tables returns every table in creation order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, c.tables.Len())
	for t := range c.tables.Values() {
		out = append(out, t)
	}
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int { return c.tables.Len() }
