package sqlparse

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// level collects the references of one statement level.
type level struct {
	b    *builder
	stmt *domain.Statement
}

// relation adds the target table of INSERT, UPDATE or DELETE to the FROM
// list and returns the name it is visible under.
func (l *level) relation(rv *pg_query.RangeVar) string {
	if rv == nil {
		return ""
	}
	ref := domain.TableRef{Name: rv.Relname}
	if rv.Alias != nil {
		ref.Alias = rv.Alias.Aliasname
	}
	l.stmt.From = append(l.stmt.From, ref)
	return exposedName(ref)
}

func exposedName(ref domain.TableRef) string {
	if ref.Alias != "" {
		return ref.Alias
	}
	return ref.Name
}

// from handles nodes in FROM clauses and returns the names the node makes
// visible, left to right.
func (l *level) from(node *pg_query.Node) ([]string, error) {
	if node == nil {
		return nil, nil
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		rv := n.RangeVar
		alias := ""
		if rv.Alias != nil {
			if len(rv.Alias.Colnames) > 0 {
				return nil, domain.ErrUnsupported("column aliases on %q are not supported", rv.Relname)
			}
			alias = rv.Alias.Aliasname
		}
		if rv.Schemaname == "" {
			if q, env, ok := l.b.env.lookup(rv.Relname); ok {
				if alias == "" {
					alias = rv.Relname
				}
				return []string{alias}, l.fromSubquery(q, env, alias)
			}
		}
		ref := domain.TableRef{Name: rv.Relname, Alias: alias}
		l.stmt.From = append(l.stmt.From, ref)
		return []string{exposedName(ref)}, nil

	case *pg_query.Node_JoinExpr:
		j := n.JoinExpr
		if j.IsNatural {
			return nil, domain.ErrUnsupported("NATURAL JOIN is not supported")
		}
		if j.Alias != nil || j.JoinUsingAlias != nil {
			return nil, domain.ErrUnsupported("aliased joins are not supported")
		}
		left, err := l.from(j.Larg)
		if err != nil {
			return nil, err
		}
		right, err := l.from(j.Rarg)
		if err != nil {
			return nil, err
		}
		for _, col := range stringList(j.UsingClause) {
			l.stmt.Where = append(l.stmt.Where, usingRef(left, col), usingRef(right, col))
		}
		if err := l.filter(j.Quals); err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case *pg_query.Node_RangeSubselect:
		rs := n.RangeSubselect
		if rs.Alias == nil || rs.Alias.Aliasname == "" {
			return nil, domain.ErrUnsupported("subquery in FROM must have an alias")
		}
		if len(rs.Alias.Colnames) > 0 {
			return nil, domain.ErrUnsupported("column aliases on %q are not supported", rs.Alias.Aliasname)
		}
		return []string{rs.Alias.Aliasname}, l.fromSubquery(rs.Subquery, l.b.env, rs.Alias.Aliasname)

	default:
		return nil, domain.ErrUnsupported("unsupported FROM item %s", nodeName(node))
	}
}

func usingRef(names []string, col string) domain.ColumnRef {
	if len(names) == 0 {
		return domain.ColumnRef{Column: col}
	}
	return domain.ColumnRef{Table: names[0], Column: col}
}

func (l *level) fromSubquery(q *pg_query.Node, env *cteEnv, alias string) error {
	sub, err := newBuilder(env).statement(q)
	if err != nil {
		return err
	}
	l.stmt.From = append(l.stmt.From, domain.TableRef{Alias: alias})
	l.stmt.FromSubqueries = append(l.stmt.FromSubqueries, domain.FromSubquery{Alias: alias, Stmt: sub})
	return nil
}

// target handles one entry of a SELECT list. Columns it reads are main
// columns; an alias over anything but a bare column becomes a virtual
// column computed from them.
func (l *level) target(rt *pg_query.ResTarget) error {
	var refs []domain.ColumnRef
	if err := l.expr(rt.Val, &refs, &l.stmt.SelectSubqueries); err != nil {
		return err
	}
	l.stmt.Main = append(l.stmt.Main, refs...)

	name := rt.Name
	if name == "" {
		name = defaultName(rt.Val)
	}
	if name == "" || isPlainColumn(rt.Val, name) {
		return nil
	}
	l.stmt.Virtual = append(l.stmt.Virtual, domain.VirtualColumn{Alias: name, Sources: refs})
	return nil
}

// filter adds the references of a filter expression to the where list and
// its subqueries to the WHERE subqueries.
func (l *level) filter(node *pg_query.Node) error {
	return l.expr(node, &l.stmt.Where, &l.stmt.WhereSubqueries)
}

func (l *level) filterList(nodes []*pg_query.Node) error {
	for _, n := range nodes {
		if err := l.filter(n); err != nil {
			return err
		}
	}
	return nil
}

// expr walks an expression, appending column references to refs (when not
// nil) and converting every subquery it contains into subs.
func (l *level) expr(node *pg_query.Node, refs *[]domain.ColumnRef, subs *[]*domain.Statement) error {
	if node == nil {
		return nil
	}
	walk := func(nodes ...*pg_query.Node) error {
		for _, c := range nodes {
			if err := l.expr(c, refs, subs); err != nil {
				return err
			}
		}
		return nil
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_ColumnRef:
		if ref, ok := columnRef(n.ColumnRef); ok && refs != nil {
			*refs = append(*refs, ref)
		}
		return nil
	case *pg_query.Node_SubLink:
		sub, err := l.b.statement(n.SubLink.Subselect)
		if err != nil {
			return err
		}
		*subs = append(*subs, sub)
		return walk(n.SubLink.Testexpr)
	case *pg_query.Node_AExpr:
		return walk(n.AExpr.Lexpr, n.AExpr.Rexpr)
	case *pg_query.Node_BoolExpr:
		return walk(n.BoolExpr.Args...)
	case *pg_query.Node_FuncCall:
		fc := n.FuncCall
		if err := walk(fc.Args...); err != nil {
			return err
		}
		if err := walk(fc.AggOrder...); err != nil {
			return err
		}
		if err := walk(fc.AggFilter); err != nil {
			return err
		}
		if fc.Over != nil {
			if err := walk(fc.Over.PartitionClause...); err != nil {
				return err
			}
			return walk(fc.Over.OrderClause...)
		}
		return nil
	case *pg_query.Node_WindowDef:
		if err := walk(n.WindowDef.PartitionClause...); err != nil {
			return err
		}
		return walk(n.WindowDef.OrderClause...)
	case *pg_query.Node_TypeCast:
		return walk(n.TypeCast.Arg)
	case *pg_query.Node_CaseExpr:
		if err := walk(n.CaseExpr.Arg); err != nil {
			return err
		}
		if err := walk(n.CaseExpr.Args...); err != nil {
			return err
		}
		return walk(n.CaseExpr.Defresult)
	case *pg_query.Node_CaseWhen:
		return walk(n.CaseWhen.Expr, n.CaseWhen.Result)
	case *pg_query.Node_NullTest:
		return walk(n.NullTest.Arg)
	case *pg_query.Node_BooleanTest:
		return walk(n.BooleanTest.Arg)
	case *pg_query.Node_CoalesceExpr:
		return walk(n.CoalesceExpr.Args...)
	case *pg_query.Node_MinMaxExpr:
		return walk(n.MinMaxExpr.Args...)
	case *pg_query.Node_AArrayExpr:
		return walk(n.AArrayExpr.Elements...)
	case *pg_query.Node_RowExpr:
		return walk(n.RowExpr.Args...)
	case *pg_query.Node_AIndirection:
		return walk(n.AIndirection.Arg)
	case *pg_query.Node_CollateClause:
		return walk(n.CollateClause.Arg)
	case *pg_query.Node_NamedArgExpr:
		return walk(n.NamedArgExpr.Arg)
	case *pg_query.Node_SortBy:
		return walk(n.SortBy.Node)
	case *pg_query.Node_GroupingSet:
		return walk(n.GroupingSet.Content...)
	case *pg_query.Node_MultiAssignRef:
		return walk(n.MultiAssignRef.Source)
	case *pg_query.Node_ResTarget:
		return walk(n.ResTarget.Val)
	case *pg_query.Node_List:
		return walk(n.List.Items...)
	default:
		// Constants, parameters and keywords like CURRENT_DATE read no column.
		return nil
	}
}

// columnRef converts a column reference. Schema or catalog qualifiers are
// dropped: "s.t.c" refers to column c of t.
func columnRef(cr *pg_query.ColumnRef) (domain.ColumnRef, bool) {
	var parts []string
	for _, f := range cr.Fields {
		switch {
		case f.GetString_() != nil:
			parts = append(parts, f.GetString_().Sval)
		case f.GetAStar() != nil:
			parts = append(parts, domain.Star)
		}
	}
	switch len(parts) {
	case 0:
		return domain.ColumnRef{}, false
	case 1:
		return domain.ColumnRef{Column: parts[0]}, true
	default:
		return domain.ColumnRef{Table: parts[len(parts)-2], Column: parts[len(parts)-1]}, true
	}
}

// outputName is the name a target list entry is visible under.
func outputName(rt *pg_query.ResTarget) string {
	if rt.Name != "" {
		return rt.Name
	}
	return defaultName(rt.Val)
}

// defaultName mirrors the column name PostgreSQL gives to an unaliased
// function call, e.g. "count" for count(*).
func defaultName(node *pg_query.Node) string {
	if fc := node.GetFuncCall(); fc != nil && len(fc.Funcname) > 0 {
		if s := fc.Funcname[len(fc.Funcname)-1].GetString_(); s != nil {
			return s.Sval
		}
	}
	return ""
}

// isPlainColumn reports whether node is a bare reference to a column named
// name, i.e. an alias that renames nothing.
func isPlainColumn(node *pg_query.Node, name string) bool {
	cr := node.GetColumnRef()
	if cr == nil {
		return false
	}
	ref, ok := columnRef(cr)
	return ok && domain.Normalize(ref.Column) == domain.Normalize(name)
}

// isOutputRef reports whether a GROUP BY or ORDER BY item is an unqualified
// name of a target list entry rather than a table column.
func isOutputRef(node *pg_query.Node, outputs map[string]bool) bool {
	if sb := node.GetSortBy(); sb != nil {
		node = sb.Node
	}
	cr := node.GetColumnRef()
	if cr == nil {
		return false
	}
	ref, ok := columnRef(cr)
	return ok && ref.Table == "" && outputs[domain.Normalize(ref.Column)]
}
