package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/Lorentz83/dbSchema/internal/config"
	"github.com/Lorentz83/dbSchema/internal/db"
	"github.com/Lorentz83/dbSchema/internal/db/repository"
	"github.com/Lorentz83/dbSchema/internal/engine"
	"github.com/Lorentz83/dbSchema/internal/sqlparse"
)

// errNoState is returned when the state file has never been created.
var errNoState = errors.New("no schema state found; run 'dbschema create' first")

// stateStore loads and persists the engine state. It satisfies
// api.Persister.
type stateStore interface {
	Load(ctx context.Context, e *engine.Engine) error
	Persist(ctx context.Context, e *engine.Engine) error
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stateStore, error) {
	if !cfg.UsesSQLite() {
		return &yamlStore{path: cfg.StatePath}, nil
	}
	conn, err := db.OpenSQLite(ctx, cfg.StatePath)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened SQLite state", "path", cfg.StatePath)
	return &sqliteStore{db: conn, repo: repository.NewSnapshotRepo(conn), logger: logger}, nil
}

// yamlStore keeps the state in a single YAML file, replaced atomically.
type yamlStore struct {
	path string
}

func (s *yamlStore) Load(_ context.Context, e *engine.Engine) error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return errNoState
	}
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return e.Load(f)
}

func (s *yamlStore) Persist(_ context.Context, e *engine.Engine) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create state: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := e.Save(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (s *yamlStore) Close() error { return nil }

// sqliteStore appends a snapshot row on every change and loads the newest.
type sqliteStore struct {
	db     *sql.DB
	repo   *repository.SnapshotRepo
	logger *slog.Logger
}

func (s *sqliteStore) Load(ctx context.Context, e *engine.Engine) error {
	snap, err := s.repo.Latest(ctx)
	if errors.Is(err, repository.ErrNoSnapshot) {
		return errNoState
	}
	if err != nil {
		return err
	}
	return e.Restore(snap)
}

func (s *sqliteStore) Persist(ctx context.Context, e *engine.Engine) error {
	id, err := s.repo.Save(ctx, e.Snapshot())
	if err != nil {
		return err
	}
	s.logger.Debug("saved snapshot", "id", id)
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (a *app) newEngine() *engine.Engine {
	return engine.New(engine.WithParser(sqlparse.New()), engine.WithMaxDepth(a.cfg.MaxDepth))
}

// loadEngine opens the store and restores the engine from it.
func (a *app) loadEngine(ctx context.Context) (*engine.Engine, stateStore, error) {
	store, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	e := a.newEngine()
	if err := store.Load(ctx, e); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return e, store, nil
}

// input returns the named file, or stdin when no file is given.
func (a *app) input(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprintln(a.errOut, "reading SQL from stdin, end with Ctrl-D")
		}
		return a.in, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
