package sqlparse

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// cteEnv is the chain of WITH clauses visible at some point of a query.
type cteEnv struct {
	defs   map[string]*pg_query.Node
	envs   map[string]*cteEnv
	parent *cteEnv
}

// lookup returns the query of a CTE and the environment it was defined in.
func (e *cteEnv) lookup(name string) (*pg_query.Node, *cteEnv, bool) {
	key := domain.Normalize(name)
	for env := e; env != nil; env = env.parent {
		if q, ok := env.defs[key]; ok {
			return q, env.envs[key], true
		}
	}
	return nil, nil, false
}

// builder converts one statement level.
type builder struct {
	env *cteEnv
}

func newBuilder(env *cteEnv) *builder { return &builder{env: env} }

// with extends the environment with a WITH clause. Each CTE sees the ones
// declared before it.
func (b *builder) with(wc *pg_query.WithClause) (*builder, error) {
	if wc == nil || len(wc.Ctes) == 0 {
		return b, nil
	}
	if wc.Recursive {
		return nil, domain.ErrUnsupported("WITH RECURSIVE is not supported")
	}
	env := b.env
	for _, n := range wc.Ctes {
		cte := n.GetCommonTableExpr()
		if cte == nil {
			continue
		}
		if len(cte.Aliascolnames) > 0 {
			return nil, domain.ErrUnsupported("column aliases on CTE %q are not supported", cte.Ctename)
		}
		key := domain.Normalize(cte.Ctename)
		next := &cteEnv{
			defs:   map[string]*pg_query.Node{key: cte.Ctequery},
			envs:   map[string]*cteEnv{key: env},
			parent: env,
		}
		env = next
	}
	return newBuilder(env), nil
}

// statement converts any DML node.
func (b *builder) statement(node *pg_query.Node) (*domain.Statement, error) {
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return b.selectStmt(n.SelectStmt)
	case *pg_query.Node_InsertStmt:
		return b.insertStmt(n.InsertStmt)
	case *pg_query.Node_UpdateStmt:
		return b.updateStmt(n.UpdateStmt)
	case *pg_query.Node_DeleteStmt:
		return b.deleteStmt(n.DeleteStmt)
	default:
		return nil, domain.ErrUnsupported("unsupported statement %s", nodeName(node))
	}
}

// selectStmt converts a SELECT, flattening set operations into a Next chain.
func (b *builder) selectStmt(sel *pg_query.SelectStmt) (*domain.Statement, error) {
	b, err := b.with(sel.WithClause)
	if err != nil {
		return nil, err
	}

	// Handle UNION/INTERSECT/EXCEPT
	if sel.Op != pg_query.SetOperation_SETOP_NONE {
		left, err := b.selectStmt(sel.Larg)
		if err != nil {
			return nil, err
		}
		right, err := b.selectStmt(sel.Rarg)
		if err != nil {
			return nil, err
		}
		last := left
		for last.Next != nil {
			last = last.Next
		}
		last.Next = right
		return left, nil
	}

	stmt := &domain.Statement{Type: domain.StmtSelect}
	lvl := &level{b: b, stmt: stmt}

	// FROM clause
	for _, from := range sel.FromClause {
		if _, err := lvl.from(from); err != nil {
			return nil, err
		}
	}

	// Target list
	outputs := map[string]bool{}
	for _, target := range sel.TargetList {
		rt := target.GetResTarget()
		if rt == nil {
			continue
		}
		if err := lvl.target(rt); err != nil {
			return nil, err
		}
		if name := outputName(rt); name != "" {
			outputs[domain.Normalize(name)] = true
		}
	}

	// VALUES lists
	for _, row := range sel.ValuesLists {
		if err := lvl.expr(row, &stmt.Main, &stmt.SelectSubqueries); err != nil {
			return nil, err
		}
	}

	// WHERE and HAVING
	if err := lvl.filter(sel.WhereClause); err != nil {
		return nil, err
	}
	if err := lvl.filter(sel.HavingClause); err != nil {
		return nil, err
	}

	// GROUP BY, ORDER BY, DISTINCT ON: output names are not table columns.
	for _, group := range [][]*pg_query.Node{sel.GroupClause, sel.SortClause, sel.DistinctClause} {
		for _, n := range group {
			if n == nil || isOutputRef(n, outputs) {
				continue
			}
			if err := lvl.filter(n); err != nil {
				return nil, err
			}
		}
	}
	for _, n := range sel.WindowClause {
		if err := lvl.filter(n); err != nil {
			return nil, err
		}
	}
	if err := lvl.filter(sel.LimitCount); err != nil {
		return nil, err
	}
	if err := lvl.filter(sel.LimitOffset); err != nil {
		return nil, err
	}
	if sel.IntoClause != nil {
		return nil, domain.ErrUnsupported("SELECT INTO is not supported")
	}
	return stmt, nil
}

// insertStmt converts INSERT. The inserted columns are the main columns;
// an INSERT ... SELECT keeps its SELECT as a subquery.
func (b *builder) insertStmt(ins *pg_query.InsertStmt) (*domain.Statement, error) {
	b, err := b.with(ins.WithClause)
	if err != nil {
		return nil, err
	}
	if oc := ins.OnConflictClause; oc != nil && oc.Action == pg_query.OnConflictAction_ONCONFLICT_UPDATE {
		return nil, domain.ErrUnsupported("ON CONFLICT DO UPDATE is not supported")
	}

	stmt := &domain.Statement{Type: domain.StmtInsert}
	lvl := &level{b: b, stmt: stmt}
	target := lvl.relation(ins.Relation)

	for _, c := range ins.Cols {
		if rt := c.GetResTarget(); rt != nil {
			stmt.Main = append(stmt.Main, domain.ColumnRef{Table: target, Column: rt.Name})
		}
	}
	if len(ins.Cols) == 0 {
		stmt.Main = append(stmt.Main, domain.ColumnRef{Table: target, Column: domain.Star})
	}

	if src := ins.SelectStmt.GetSelectStmt(); src != nil {
		if len(src.ValuesLists) > 0 && src.Op == pg_query.SetOperation_SETOP_NONE {
			for _, row := range src.ValuesLists {
				if err := lvl.expr(row, nil, &stmt.SelectSubqueries); err != nil {
					return nil, err
				}
			}
		} else {
			sub, err := b.selectStmt(src)
			if err != nil {
				return nil, err
			}
			stmt.SelectSubqueries = append(stmt.SelectSubqueries, sub)
		}
	}

	if err := lvl.filterList(ins.ReturningList); err != nil {
		return nil, err
	}
	return stmt, nil
}

// updateStmt converts UPDATE. Assigned columns are main columns; everything
// read to compute or filter the update is a filter column.
func (b *builder) updateStmt(upd *pg_query.UpdateStmt) (*domain.Statement, error) {
	b, err := b.with(upd.WithClause)
	if err != nil {
		return nil, err
	}
	stmt := &domain.Statement{Type: domain.StmtUpdate}
	lvl := &level{b: b, stmt: stmt}
	target := lvl.relation(upd.Relation)

	for _, from := range upd.FromClause {
		if _, err := lvl.from(from); err != nil {
			return nil, err
		}
	}
	for _, n := range upd.TargetList {
		rt := n.GetResTarget()
		if rt == nil {
			continue
		}
		stmt.Main = append(stmt.Main, domain.ColumnRef{Table: target, Column: rt.Name})
		if err := lvl.filter(rt.Val); err != nil {
			return nil, err
		}
	}
	if err := lvl.filter(upd.WhereClause); err != nil {
		return nil, err
	}
	if err := lvl.filterList(upd.ReturningList); err != nil {
		return nil, err
	}
	return stmt, nil
}

// deleteStmt converts DELETE. Removing a row writes every column of it.
func (b *builder) deleteStmt(del *pg_query.DeleteStmt) (*domain.Statement, error) {
	b, err := b.with(del.WithClause)
	if err != nil {
		return nil, err
	}
	stmt := &domain.Statement{Type: domain.StmtDelete}
	lvl := &level{b: b, stmt: stmt}
	target := lvl.relation(del.Relation)
	stmt.Main = append(stmt.Main, domain.ColumnRef{Table: target, Column: domain.Star})

	for _, using := range del.UsingClause {
		if _, err := lvl.from(using); err != nil {
			return nil, err
		}
	}
	if err := lvl.filter(del.WhereClause); err != nil {
		return nil, err
	}
	if err := lvl.filterList(del.ReturningList); err != nil {
		return nil, err
	}
	return stmt, nil
}
