package security

import (
	om "github.com/elliotchance/orderedmap/v3"

	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
)

// ColumnGrant lists the principals holding one access kind on a column.
type ColumnGrant struct {
	Column     *catalog.RealColumn
	Principals []domain.Identifier
}

// Grants stores role membership and the per-column READ and WRITE grants.
type Grants struct {
	roles *RoleGraph
	read  *om.OrderedMap[*catalog.RealColumn, *RoleSet]
	write *om.OrderedMap[*catalog.RealColumn, *RoleSet]
}

// NewGrants returns an empty grant store.
func NewGrants() *Grants {
	return &Grants{
		roles: NewRoleGraph(),
		read:  om.NewOrderedMap[*catalog.RealColumn, *RoleSet](),
		write: om.NewOrderedMap[*catalog.RealColumn, *RoleSet](),
	}
}

// Roles returns the role graph.
func (g *Grants) Roles() *RoleGraph { return g.roles }

// GrantRole makes to inherit role.
func (g *Grants) GrantRole(role, to domain.Identifier) error {
	return g.roles.GrantRole(role, to)
}

// GrantRead records a READ grant and reports whether it was new.
func (g *Grants) GrantRead(col *catalog.RealColumn, to domain.Identifier) bool {
	return grantOn(g.read, col, to)
}

// GrantWrite records a WRITE grant and reports whether it was new.
func (g *Grants) GrantWrite(col *catalog.RealColumn, to domain.Identifier) bool {
	return grantOn(g.write, col, to)
}

// Grant records access on col for to.
func (g *Grants) Grant(access domain.Access, col *catalog.RealColumn, to domain.Identifier) bool {
	if access == domain.AccessWrite {
		return g.GrantWrite(col, to)
	}
	return g.GrantRead(col, to)
}

func grantOn(m *om.OrderedMap[*catalog.RealColumn, *RoleSet], col *catalog.RealColumn, to domain.Identifier) bool {
	set, ok := m.Get(col)
	if !ok {
		set = NewRoleSet()
		m.Set(col, set)
	}
	return set.Add(to)
}

func (g *Grants) grantMap(access domain.Access) *om.OrderedMap[*catalog.RealColumn, *RoleSet] {
	if access == domain.AccessWrite {
		return g.write
	}
	return g.read
}

// Enforce checks that principal can exercise access on every real column of
// cols. Virtual columns are skipped. For each column the reachable roles are
// tried in breadth-first order and the first granted one is recorded. The
// first column without any grant fails the whole check.
//
// It returns the roles that authorized at least one column.
func (g *Grants) Enforce(access domain.Access, principal domain.Identifier, cols *catalog.ColumnSet) (*RoleSet, error) {
	used := NewRoleSet()
	if cols.Len() == 0 {
		return used, nil
	}
	m := g.grantMap(access)
	reachable := g.roles.Reachable(principal)

	for c := range cols.All() {
		var rc *catalog.RealColumn
		switch col := c.(type) {
		case *catalog.VirtualColumn:
			continue
		case *catalog.RealColumn:
			rc = col
		}

		holders, _ := m.Get(rc)
		granted := false
		for _, role := range reachable {
			if holders.Has(role) {
				used.Add(role)
				granted = true
				break
			}
		}
		if !granted {
			return nil, &domain.UnauthorizedError{
				Principal: principal.String(),
				Table:     rc.Table().Name().String(),
				Column:    rc.Name().String(),
				Access:    access,
			}
		}
	}
	return used, nil
}

// ColumnGrants returns the grants of one access kind in insertion order.
func (g *Grants) ColumnGrants(access domain.Access) []ColumnGrant {
	m := g.grantMap(access)
	out := make([]ColumnGrant, 0, m.Len())
	for col, set := range m.AllFromFront() {
		out = append(out, ColumnGrant{Column: col, Principals: collect(set)})
	}
	return out
}

func collect(s *RoleSet) []domain.Identifier {
	out := make([]domain.Identifier, 0, s.Len())
	for id := range s.All() {
		out = append(out, id)
	}
	return out
}
