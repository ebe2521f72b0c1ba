package catalog

import (
	"strings"

	om "github.com/elliotchance/orderedmap/v3"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Table is a relation with insertion-ordered columns. Tables compare by
// pointer: two tables with the same name and columns are distinct.
type Table struct {
	name    domain.Identifier
	columns *om.OrderedMap[string, Column]
	virtual bool
}

// NewTable returns an empty real table.
func NewTable(name domain.Identifier) *Table {
	return &Table{name: name, columns: om.NewOrderedMap[string, Column]()}
}

// NewVirtualTable returns an empty table standing for a FROM subquery.
func NewVirtualTable(alias domain.Identifier) *Table {
	t := NewTable(alias)
	t.virtual = true
	return t
}

// Name returns the table name (or subquery alias).
func (t *Table) Name() domain.Identifier { return t.name }

// IsVirtual reports whether the table was synthesized from a subquery.
func (t *Table) IsVirtual() bool { return t.virtual }

// AddRealColumn declares a column. It fails with KindDuplicateColumn when the
// name is taken.
func (t *Table) AddRealColumn(name domain.Identifier, typ string, notNull, unique bool) (*RealColumn, error) {
	if t.columns.Has(name.Key()) {
		return nil, domain.ErrDuplicateColumn(t.name.String(), name.String())
	}
	c := &RealColumn{name: name, typ: typ, notNull: notNull, unique: unique, table: t}
	t.columns.Set(name.Key(), c)
	return c, nil
}

// AddVirtualColumn registers a derived column, replacing any column with the
// same name.
func (t *Table) AddVirtualColumn(name domain.Identifier, sources *ColumnSet) *VirtualColumn {
	if sources == nil {
		sources = NewColumnSet()
	}
	c := &VirtualColumn{name: name, sources: sources, table: t}
	t.columns.Set(name.Key(), c)
	return c
}

// Expose makes an existing column reachable through t under its own name,
// replacing any column with the same name. The column keeps its owner, so
// grants are still checked against the underlying table. Only virtual
// tables expose foreign columns.
func (t *Table) Expose(c Column) {
	t.columns.Set(c.Name().Key(), c)
}

// Column looks a column up by normalized name.
func (t *Table) Column(name string) (Column, bool) {
	return t.columns.Get(domain.Normalize(name))
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []Column {
	out := make([]Column, 0, t.columns.Len())
	for c := range t.columns.Values() {
		out = append(out, c)
	}
	return out
}

// ColumnNames returns the original spelling of every column name.
func (t *Table) ColumnNames() []string {
	out := make([]string, 0, t.columns.Len())
	for c := range t.columns.Values() {
		out = append(out, c.Name().String())
	}
	return out
}

// String renders the table as CREATE TABLE DDL.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(t.name.String())
	b.WriteString(" (\n")
	first := true
	for c := range t.columns.Values() {
		if !first {
			b.WriteString(",\n")
		}
		first = false
		b.WriteString("  ")
		b.WriteString(columnString(c))
	}
	b.WriteString("\n);")
	return b.String()
}

func columnString(c Column) string {
	switch col := c.(type) {
	case *RealColumn:
		return col.String()
	case *VirtualColumn:
		return col.String()
	default:
		return c.Name().String()
	}
}
