package analyzer

import (
	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
	"github.com/Lorentz83/dbSchema/internal/scope"
	"github.com/Lorentz83/dbSchema/internal/security"
)

// DefaultMaxDepth bounds subquery nesting.
const DefaultMaxDepth = 64

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.maxDepth = n
		}
	}
}

// Extractor evaluates statements against a catalog and a grant store. It only
// reads them.
type Extractor struct {
	catalog  *catalog.Catalog
	grants   *security.Grants
	maxDepth int
}

// NewExtractor creates an Extractor.
func NewExtractor(cat *catalog.Catalog, grants *security.Grants, opts ...Option) *Extractor {
	x := &Extractor{catalog: cat, grants: grants, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Evaluate resolves stmt and returns its merged feature. When principal is
// nil no grant is checked and the call only validates that stmt resolves.
//
// Any resolution or authorization failure aborts the whole evaluation.
func (x *Extractor) Evaluate(stmt *domain.Statement, principal *domain.Identifier) (*QueryFeature, error) {
	f, _, err := x.evaluateChain(stmt, principal, nil, 1)
	return f, err
}

// evaluateChain evaluates stmt and every arm linked through Next. Only the
// first arm sees inherited; the others start from an empty scope. The
// returned scope is the first arm's.
func (x *Extractor) evaluateChain(stmt *domain.Statement, principal *domain.Identifier, inherited *scope.Scope, depth int) (*QueryFeature, *scope.Scope, error) {
	if depth > x.maxDepth {
		return nil, nil, domain.ErrTooDeeplyNested(x.maxDepth)
	}

	var (
		pending []*QueryFeature
		first   *scope.Scope
	)
	for arm := stmt; arm != nil; arm = arm.Next {
		if arm != stmt && arm.Type != stmt.Type {
			return nil, nil, domain.ErrIncompatibleMerge(stmt.Type, arm.Type)
		}
		in := inherited
		if arm != stmt {
			in = nil
		}
		features, sc, err := x.evaluateLevel(arm, principal, in, depth)
		if err != nil {
			return nil, nil, err
		}
		if first == nil {
			first = sc
		}
		pending = append(pending, features...)
	}

	merged, err := Merge(pending...)
	if err != nil {
		return nil, nil, err
	}
	return merged, first, nil
}

// evaluateLevel runs one statement without its Next chain and returns the
// features of its subqueries followed by its own.
func (x *Extractor) evaluateLevel(stmt *domain.Statement, principal *domain.Identifier, inherited *scope.Scope, depth int) ([]*QueryFeature, *scope.Scope, error) {
	if err := checkSubqueryTypes(stmt); err != nil {
		return nil, nil, err
	}

	// 1. Tables of this level's FROM list.
	sc, err := scope.Resolve(x.catalog, stmt.From, inherited)
	if err != nil {
		return nil, nil, err
	}

	var pending []*QueryFeature

	// 2. FROM subqueries become virtual tables. They all see the scope built
	// in step 1 and are bound once every one of them is evaluated.
	virtual := make([]*catalog.Table, 0, len(stmt.FromSubqueries))
	for _, fs := range stmt.FromSubqueries {
		f, subScope, err := x.evaluateChain(fs.Stmt, principal, sc, depth+1)
		if err != nil {
			return nil, nil, err
		}
		pending = append(pending, f)

		vt, err := synthesize(fs, f, subScope)
		if err != nil {
			return nil, nil, err
		}
		virtual = append(virtual, vt)
	}
	for _, vt := range virtual {
		if err := sc.Bind(vt.Name(), vt); err != nil {
			return nil, nil, err
		}
	}

	// 3. Correlated subqueries see the complete scope.
	for _, group := range [][]*domain.Statement{stmt.SelectSubqueries, stmt.WhereSubqueries} {
		for _, sub := range group {
			f, _, err := x.evaluateChain(sub, principal, sc, depth+1)
			if err != nil {
				return nil, nil, err
			}
			pending = append(pending, f)
		}
	}

	// 4. This level's own columns.
	used, err := sc.Columns(stmt.Main)
	if err != nil {
		return nil, nil, err
	}
	filtered, err := sc.Columns(stmt.Where)
	if err != nil {
		return nil, nil, err
	}

	// 5. Grants.
	roles := security.NewRoleSet()
	if principal != nil {
		r, err := x.grants.Enforce(stmt.Type.RequiredAccess(), *principal, used)
		if err != nil {
			return nil, nil, err
		}
		roles.AddAll(r)
		r, err = x.grants.Enforce(domain.AccessRead, *principal, filtered)
		if err != nil {
			return nil, nil, err
		}
		roles.AddAll(r)
	}

	// 6. This level's feature goes last.
	pending = append(pending, NewQueryFeature(stmt.Type, used, filtered, roles))
	return pending, sc, nil
}

// checkSubqueryTypes rejects a statement embedding subqueries of another
// statement type before any of them is evaluated.
func checkSubqueryTypes(stmt *domain.Statement) error {
	check := func(sub *domain.Statement) error {
		if sub != nil && sub.Type != stmt.Type {
			return domain.ErrIncompatibleMerge(stmt.Type, sub.Type)
		}
		return nil
	}
	for _, fs := range stmt.FromSubqueries {
		if err := check(fs.Stmt); err != nil {
			return err
		}
	}
	for _, sub := range stmt.SelectSubqueries {
		if err := check(sub); err != nil {
			return err
		}
	}
	for _, sub := range stmt.WhereSubqueries {
		if err := check(sub); err != nil {
			return err
		}
	}
	return nil
}

// synthesize builds the virtual table standing for a FROM subquery. It
// exposes every column the subquery uses and registers the subquery's own
// projection aliases as virtual columns resolved in the subquery's scope.
func synthesize(fs domain.FromSubquery, f *QueryFeature, subScope *scope.Scope) (*catalog.Table, error) {
	alias, err := domain.NewIdentifier(fs.Alias)
	if err != nil {
		return nil, err
	}
	vt := catalog.NewVirtualTable(alias)
	for _, c := range f.Used() {
		vt.Expose(c)
	}

	for _, v := range fs.Stmt.Virtual {
		name, err := domain.NewIdentifier(v.Alias)
		if err != nil {
			return nil, err
		}
		sources := catalog.NewColumnSet()
		for _, ref := range v.Sources {
			cols, err := subScope.Columns([]domain.ColumnRef{ref})
			if err != nil {
				return nil, err
			}
			for c := range cols.All() {
				addSource(sources, c)
			}
		}
		vt.AddVirtualColumn(name, sources)
	}
	return vt, nil
}

// addSource adds c, replacing a virtual column by the columns it derives from.
func addSource(set *catalog.ColumnSet, c catalog.Column) {
	switch col := c.(type) {
	case *catalog.RealColumn:
		set.Add(col)
	case *catalog.VirtualColumn:
		for src := range col.Sources().All() {
			addSource(set, src)
		}
	}
}
