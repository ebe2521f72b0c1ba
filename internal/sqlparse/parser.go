// Package sqlparse turns PostgreSQL-dialect SQL text into the commands the
// engine consumes: CREATE TABLE definitions, grants and statement trees.
//
// It uses pg_query (the PostgreSQL parser) and keeps only what the analyzer
// needs: which tables a statement reads from and which columns it selects,
// changes or filters on.
package sqlparse

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Parser converts SQL text to commands. The zero value is ready to use.
type Parser struct{}

// New returns a Parser.
func New() *Parser { return &Parser{} }

// Parse parses every statement of sql. GRANT statements may expand to
// several commands.
func (p *Parser) Parse(sql string) ([]domain.Command, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, domain.ErrParse("parse SQL: %v", err)
	}
	var out []domain.Command
	for _, raw := range tree.Stmts {
		cmds, err := p.command(raw.Stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, cmds...)
	}
	return out, nil
}

// Split splits a script into its statements, without the trailing
// semicolons. Empty statements are dropped.
func Split(sql string) ([]string, error) {
	parts, err := pg_query.SplitWithScanner(sql, true)
	if err != nil {
		return nil, domain.ErrParse("split SQL: %v", err)
	}
	out := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";")); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *Parser) command(node *pg_query.Node) ([]domain.Command, error) {
	if node == nil {
		return nil, nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_CreateStmt:
		ct, err := createTable(n.CreateStmt)
		if err != nil {
			return nil, err
		}
		return []domain.Command{ct}, nil
	case *pg_query.Node_GrantStmt:
		return tableGrants(n.GrantStmt)
	case *pg_query.Node_GrantRoleStmt:
		return roleGrants(n.GrantRoleStmt)
	case *pg_query.Node_SelectStmt, *pg_query.Node_InsertStmt, *pg_query.Node_UpdateStmt, *pg_query.Node_DeleteStmt:
		stmt, err := newBuilder(nil).statement(node)
		if err != nil {
			return nil, err
		}
		return []domain.Command{stmt}, nil
	default:
		return nil, domain.ErrUnsupported("unsupported statement %s", nodeName(node))
	}
}

// nodeName returns a readable name for the node's type, e.g. "DropStmt".
func nodeName(node *pg_query.Node) string {
	name := strings.TrimPrefix(strings.TrimPrefix(fmt.Sprintf("%T", node.Node), "*pg_query."), "Node_")
	if name == "" {
		return "statement"
	}
	return name
}
