package catalog

import (
	"strings"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Column is a Real or Virtual column. The set of implementations is closed.
type Column interface {
	Name() domain.Identifier
	Table() *Table
	// QualifiedName returns "table.column" in original spelling.
	QualifiedName() string
	column()
}

// RealColumn is a column declared by DDL. It belongs to exactly one table.
type RealColumn struct {
	name    domain.Identifier
	typ     string
	notNull bool
	unique  bool
	table   *Table
}

func (c *RealColumn) column() {}

// Name returns the column name.
func (c *RealColumn) Name() domain.Identifier { return c.name }

// Table returns the owning table.
func (c *RealColumn) Table() *Table { return c.table }

// Type returns the declared SQL type.
func (c *RealColumn) Type() string { return c.typ }

// NotNull reports the NOT NULL flag.
func (c *RealColumn) NotNull() bool { return c.notNull }

// Unique reports the UNIQUE flag.
func (c *RealColumn) Unique() bool { return c.unique }

// QualifiedName returns "table.column".
func (c *RealColumn) QualifiedName() string { return c.table.Name().String() + "." + c.name.String() }

// String renders the column as it appears in CREATE TABLE.
func (c *RealColumn) String() string {
	var b strings.Builder
	b.WriteString(c.name.String())
	if c.typ != "" {
		b.WriteString(" ")
		b.WriteString(c.typ)
	}
	if c.notNull {
		b.WriteString(" NOT NULL")
	}
	if c.unique {
		b.WriteString(" UNIQUE")
	}
	return b.String()
}

// VirtualColumn is a derived projection such as "sum(x) AS s". It is never
// subject to grant checks.
type VirtualColumn struct {
	name    domain.Identifier
	sources *ColumnSet
	table   *Table
}

func (c *VirtualColumn) column() {}

// Name returns the alias.
func (c *VirtualColumn) Name() domain.Identifier { return c.name }

// Table returns the virtual table the column was registered on.
func (c *VirtualColumn) Table() *Table { return c.table }

// Sources returns the columns the projection is computed from. It may be
// empty, e.g. for now().
func (c *VirtualColumn) Sources() *ColumnSet { return c.sources }

// QualifiedName returns "table.column".
func (c *VirtualColumn) QualifiedName() string {
	return c.table.Name().String() + "." + c.name.String()
}

// String renders the column with its sources.
func (c *VirtualColumn) String() string {
	names := make([]string, 0, c.sources.Len())
	for col := range c.sources.All() {
		names = append(names, col.QualifiedName())
	}
	return c.name.String() + " AS (" + strings.Join(names, ", ") + ")"
}

// IsVirtual reports whether c is exempt from grant checks.
func IsVirtual(c Column) bool {
	switch c.(type) {
	case *VirtualColumn:
		return true
	case *RealColumn:
		return false
	default:
		panic("catalog: unknown column variant")
	}
}
