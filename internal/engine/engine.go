// Package engine owns the catalog and the grant store and exposes the two
// modes of operation: admin ingestion of DDL and grants, and user-mode
// evaluation of DML batches.
package engine

import (
	"fmt"
	"sync"

	"github.com/Lorentz83/dbSchema/internal/analyzer"
	"github.com/Lorentz83/dbSchema/internal/catalog"
	"github.com/Lorentz83/dbSchema/internal/domain"
	"github.com/Lorentz83/dbSchema/internal/security"
)

// Parser turns SQL text into commands.
type Parser interface {
	Parse(sql string) ([]domain.Command, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithParser sets the parser used by Exec and Check.
func WithParser(p Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithMaxDepth bounds statement nesting during evaluation.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// Engine holds the schema and grants. Admin calls take the write lock and
// evaluations the read lock, so ingestion never overlaps an evaluation.
type Engine struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	grants   *security.Grants
	parser   Parser
	maxDepth int
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog.New(),
		grants:   security.NewGrants(),
		maxDepth: analyzer.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) extractor() *analyzer.Extractor {
	return analyzer.NewExtractor(e.catalog, e.grants, analyzer.WithMaxDepth(e.maxDepth))
}

// IngestSchema applies commands in admin mode, in order: CREATE TABLE adds
// to the catalog, grants update the grant store, and DML is evaluated
// without enforcement to check that it resolves.
//
// The batch is not atomic: when a command fails, the commands before it
// stay applied.
func (e *Engine) IngestSchema(cmds []domain.Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, cmd := range cmds {
		if err := e.apply(cmd); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

func (e *Engine) apply(cmd domain.Command) error {
	switch c := cmd.(type) {
	case *domain.CreateTable:
		_, err := e.catalog.CreateTable(c)
		return err
	case *domain.Grant:
		return e.applyGrant(c)
	case *domain.Statement:
		_, err := e.extractor().Evaluate(c, nil)
		return err
	default:
		return domain.ErrUnsupported("unsupported command %T", cmd)
	}
}

func (e *Engine) applyGrant(g *domain.Grant) error {
	to, err := domain.NewIdentifier(g.To)
	if err != nil {
		return err
	}
	switch g.Kind {
	case domain.GrantRole:
		role, err := domain.NewIdentifier(g.Role)
		if err != nil {
			return err
		}
		return e.grants.GrantRole(role, to)
	case domain.GrantTable:
		tbl, ok := e.catalog.Table(g.Table)
		if !ok {
			return domain.ErrRelationNotFound(g.Table)
		}
		cols := tbl.Columns()
		if g.Column != "" {
			c, ok := tbl.Column(g.Column)
			if !ok {
				return domain.ErrColumnNotFound(g.Table, g.Column)
			}
			cols = []catalog.Column{c}
		}
		for _, c := range cols {
			if rc, ok := c.(*catalog.RealColumn); ok {
				e.grants.Grant(g.Access, rc, to)
			}
		}
		return nil
	default:
		return domain.ErrUnsupported("unknown grant kind %d", g.Kind)
	}
}

// EvaluateAs evaluates a DML batch as principal and returns one feature per
// statement, in order. The whole batch is rejected with KindNotPureDml when
// any command is not DML.
func (e *Engine) EvaluateAs(principal string, cmds []domain.Command) ([]*analyzer.QueryFeature, error) {
	dml := 0
	for _, c := range cmds {
		if domain.IsDML(c) {
			dml++
		}
	}
	if dml != len(cmds) {
		return nil, domain.ErrNotPureDml(len(cmds), dml)
	}
	id, err := domain.NewIdentifier(principal)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	x := e.extractor()
	out := make([]*analyzer.QueryFeature, 0, len(cmds))
	for i, c := range cmds {
		f, err := x.Evaluate(c.(*domain.Statement), &id)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Exec parses sql and ingests it in admin mode.
func (e *Engine) Exec(sql string) error {
	cmds, err := e.parse(sql)
	if err != nil {
		return err
	}
	return e.IngestSchema(cmds)
}

// Check parses sql and evaluates it as principal.
func (e *Engine) Check(principal, sql string) ([]*analyzer.QueryFeature, error) {
	cmds, err := e.parse(sql)
	if err != nil {
		return nil, err
	}
	return e.EvaluateAs(principal, cmds)
}

func (e *Engine) parse(sql string) ([]domain.Command, error) {
	if e.parser == nil {
		return nil, domain.ErrUnsupported("engine has no SQL parser")
	}
	return e.parser.Parse(sql)
}

// GrantDefaults grants READ and WRITE on every column of every table to
// principal.
func (e *Engine) GrantDefaults(principal string) error {
	to, err := domain.NewIdentifier(principal)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.catalog.Tables() {
		for _, c := range t.Columns() {
			if rc, ok := c.(*catalog.RealColumn); ok {
				e.grants.GrantRead(rc, to)
				e.grants.GrantWrite(rc, to)
			}
		}
	}
	return nil
}

// Table returns a table by name.
func (e *Engine) Table(name string) (*catalog.Table, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Table(name)
}

// Tables returns every table in creation order.
func (e *Engine) Tables() []*catalog.Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog.Tables()
}

// Columns returns every catalog column, table by table. Feature reports use
// it as their column axis.
func (e *Engine) Columns() []catalog.Column {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []catalog.Column
	for _, t := range e.catalog.Tables() {
		out = append(out, t.Columns()...)
	}
	return out
}
