// Package analyzer walks a statement tree, resolves every column it touches
// and checks the issuing principal's grants, producing one QueryFeature per
// top-level statement.
package analyzer

import (
	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
	"github.com/Lorentz83/dbSchema/internal/security"
)

// QueryFeature is the column usage fingerprint of a statement: the columns
// it selects or changes, the columns it filters or joins on, and the roles
// that authorized the access. It is immutable.
type QueryFeature struct {
	typ      domain.StatementType
	used     *catalog.ColumnSet
	filtered *catalog.ColumnSet
	roles    *security.RoleSet
}

// NewQueryFeature builds a feature. Nil sets are treated as empty.
func NewQueryFeature(typ domain.StatementType, used, filtered *catalog.ColumnSet, roles *security.RoleSet) *QueryFeature {
	f := &QueryFeature{
		typ:      typ,
		used:     catalog.NewColumnSet(),
		filtered: catalog.NewColumnSet(),
		roles:    security.NewRoleSet(),
	}
	f.used.AddAll(used)
	f.filtered.AddAll(filtered)
	if roles != nil {
		f.roles.AddAll(roles)
	}
	return f
}

// Type returns the statement type.
func (f *QueryFeature) Type() domain.StatementType { return f.typ }

// Used returns the selected or changed columns.
func (f *QueryFeature) Used() []catalog.Column { return f.used.Slice() }

// Filtered returns the filter and join columns.
func (f *QueryFeature) Filtered() []catalog.Column { return f.filtered.Slice() }

// Roles returns the roles that authorized at least one column.
func (f *QueryFeature) Roles() []domain.Identifier {
	out := make([]domain.Identifier, 0, f.roles.Len())
	for id := range f.roles.All() {
		out = append(out, id)
	}
	return out
}

// UsedNames returns "table.column" for each used column.
func (f *QueryFeature) UsedNames() []string { return f.used.QualifiedNames() }

// FilteredNames returns "table.column" for each filtered column.
func (f *QueryFeature) FilteredNames() []string { return f.filtered.QualifiedNames() }

// RoleNames returns the authorizing roles in original spelling.
func (f *QueryFeature) RoleNames() []string { return f.roles.Names() }

// Touches reports whether c is used or filtered.
func (f *QueryFeature) Touches(c catalog.Column) bool {
	return f.used.Has(c) || f.filtered.Has(c)
}

// Equal compares type and the three sets, ignoring order.
func (f *QueryFeature) Equal(other *QueryFeature) bool {
	return f.typ == other.typ &&
		f.used.Equal(other.used) &&
		f.filtered.Equal(other.filtered) &&
		f.roles.Equal(other.roles)
}

// Merge unions features of the same statement type. It fails with
// KindIncompatibleMerge when the types differ. Merging nothing is an error.
func Merge(features ...*QueryFeature) (*QueryFeature, error) {
	if len(features) == 0 {
		return nil, domain.ErrUnsupported("no features to merge")
	}
	out := NewQueryFeature(features[0].typ, nil, nil, nil)
	for _, f := range features {
		if f.typ != out.typ {
			return nil, domain.ErrIncompatibleMerge(out.typ, f.typ)
		}
		out.used.AddAll(f.used)
		out.filtered.AddAll(f.filtered)
		out.roles.AddAll(f.roles)
	}
	return out, nil
}
