// Package repository persists engine snapshots in SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Lorentz83/dbSchema/internal/snapshot"
)

// ErrNoSnapshot is returned by Latest when nothing was saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Record describes one stored snapshot.
type Record struct {
	ID        string
	Version   int
	CreatedAt time.Time
}

// SnapshotRepo stores snapshots as YAML payloads, newest last.
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepo returns a repository over db.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save stores s and returns its id.
func (r *SnapshotRepo) Save(ctx context.Context, s *snapshot.Snapshot) (string, error) {
	payload, err := snapshot.Marshal(s)
	if err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next sequence: %w", err)
	}
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, version, payload, seq) VALUES (?, ?, ?, ?)`,
		id, s.Version, string(payload), seq,
	); err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Latest returns the most recently saved snapshot.
func (r *SnapshotRepo) Latest(ctx context.Context) (*snapshot.Snapshot, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots ORDER BY seq DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return snapshot.Unmarshal([]byte(payload))
}

// Get returns the snapshot stored under id.
func (r *SnapshotRepo) Get(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid snapshot id %q: %w", id, err)
	}
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snapshot.Unmarshal([]byte(payload))
}

// List returns every stored snapshot, oldest first.
func (r *SnapshotRepo) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, version, created_at FROM snapshots ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.Version, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
