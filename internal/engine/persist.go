package engine

import (
	"io"

	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
	"github.com/Lorentz83/dbSchema/internal/security"
	"github.com/Lorentz83/dbSchema/internal/snapshot"
)

// Snapshot captures the catalog and the grant store.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := &snapshot.Snapshot{Version: snapshot.Version}
	for _, t := range e.catalog.Tables() {
		st := snapshot.Table{Name: t.Name().String()}
		for _, c := range t.Columns() {
			st.Columns = append(st.Columns, snapshotColumn(c))
		}
		s.Tables = append(s.Tables, st)
	}
	for _, edge := range e.grants.Roles().Edges() {
		s.Roles = append(s.Roles, snapshot.RoleEdge{Principal: edge.From.String(), Role: edge.To.String()})
	}
	s.Read = snapshotGrants(e.grants.ColumnGrants(domain.AccessRead))
	s.Write = snapshotGrants(e.grants.ColumnGrants(domain.AccessWrite))
	return s
}

func snapshotColumn(c catalog.Column) snapshot.Column {
	switch col := c.(type) {
	case *catalog.RealColumn:
		return snapshot.Column{
			Name:    col.Name().String(),
			Type:    col.Type(),
			NotNull: col.NotNull(),
			Unique:  col.Unique(),
		}
	case *catalog.VirtualColumn:
		sc := snapshot.Column{Name: col.Name().String(), Virtual: true}
		for src := range col.Sources().All() {
			sc.Sources = append(sc.Sources, snapshot.ColumnRef{
				Table:  src.Table().Name().String(),
				Column: src.Name().String(),
			})
		}
		return sc
	default:
		return snapshot.Column{Name: c.Name().String()}
	}
}

func snapshotGrants(grants []security.ColumnGrant) []snapshot.ColumnGrant {
	out := make([]snapshot.ColumnGrant, 0, len(grants))
	for _, g := range grants {
		sg := snapshot.ColumnGrant{
			Table:  g.Column.Table().Name().String(),
			Column: g.Column.Name().String(),
		}
		for _, p := range g.Principals {
			sg.Principals = append(sg.Principals, p.String())
		}
		out = append(out, sg)
	}
	return out
}

// Restore replaces the engine state with s. On error the engine is left
// unchanged.
func (e *Engine) Restore(s *snapshot.Snapshot) error {
	cat, grants, err := rebuild(s)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catalog = cat
	e.grants = grants
	return nil
}

func rebuild(s *snapshot.Snapshot) (*catalog.Catalog, *security.Grants, error) {
	if s.Version != snapshot.Version {
		return nil, nil, domain.ErrInvalidSnapshot("unsupported snapshot version %d", s.Version)
	}
	cat := catalog.New()
	type pendingVirtual struct {
		table *catalog.Table
		col   snapshot.Column
	}
	var virtual []pendingVirtual

	for _, st := range s.Tables {
		name, err := domain.NewIdentifier(st.Name)
		if err != nil {
			return nil, nil, err
		}
		t, err := cat.AddTable(name)
		if err != nil {
			return nil, nil, err
		}
		for _, sc := range st.Columns {
			colName, err := domain.NewIdentifier(sc.Name)
			if err != nil {
				return nil, nil, err
			}
			if sc.Virtual {
				// Reserve the position; sources may name later tables.
				t.AddVirtualColumn(colName, nil)
				virtual = append(virtual, pendingVirtual{table: t, col: sc})
				continue
			}
			if _, err := t.AddRealColumn(colName, sc.Type, sc.NotNull, sc.Unique); err != nil {
				return nil, nil, err
			}
		}
	}
	for _, v := range virtual {
		sources := catalog.NewColumnSet()
		for _, ref := range v.col.Sources {
			c, err := lookupColumn(cat, ref.Table, ref.Column)
			if err != nil {
				return nil, nil, err
			}
			sources.Add(c)
		}
		if c, ok := v.table.Column(v.col.Name); ok {
			if vc, ok := c.(*catalog.VirtualColumn); ok {
				vc.Sources().AddAll(sources)
			}
		}
	}

	grants := security.NewGrants()
	for _, edge := range s.Roles {
		from, err := domain.NewIdentifier(edge.Principal)
		if err != nil {
			return nil, nil, err
		}
		to, err := domain.NewIdentifier(edge.Role)
		if err != nil {
			return nil, nil, err
		}
		if err := grants.GrantRole(to, from); err != nil {
			return nil, nil, err
		}
	}
	for access, list := range map[domain.Access][]snapshot.ColumnGrant{
		domain.AccessRead:  s.Read,
		domain.AccessWrite: s.Write,
	} {
		for _, g := range list {
			c, err := lookupColumn(cat, g.Table, g.Column)
			if err != nil {
				return nil, nil, err
			}
			rc, ok := c.(*catalog.RealColumn)
			if !ok {
				return nil, nil, domain.ErrInvalidSnapshot("grant on virtual column %s.%s", g.Table, g.Column)
			}
			for _, p := range g.Principals {
				id, err := domain.NewIdentifier(p)
				if err != nil {
					return nil, nil, err
				}
				grants.Grant(access, rc, id)
			}
		}
	}
	return cat, grants, nil
}

func lookupColumn(cat *catalog.Catalog, table, column string) (catalog.Column, error) {
	t, ok := cat.Table(table)
	if !ok {
		return nil, domain.ErrRelationNotFound(table)
	}
	c, ok := t.Column(column)
	if !ok {
		return nil, domain.ErrColumnNotFound(table, column)
	}
	return c, nil
}

// Save writes the engine state to w.
func (e *Engine) Save(w io.Writer) error {
	return snapshot.Encode(w, e.Snapshot())
}

// Load replaces the engine state with the snapshot read from r.
func (e *Engine) Load(r io.Reader) error {
	s, err := snapshot.Decode(r)
	if err != nil {
		return err
	}
	return e.Restore(s)
}
