// Package snapshot defines the persisted form of an engine: its tables,
// role edges and column grants, encoded as versioned YAML.
package snapshot

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Version is the current snapshot format version.
const Version = 1

// Snapshot is the full state of an engine.
type Snapshot struct {
	Version int           `yaml:"version"`
	Tables  []Table       `yaml:"tables"`
	Roles   []RoleEdge    `yaml:"roles,omitempty"`
	Read    []ColumnGrant `yaml:"read,omitempty"`
	Write   []ColumnGrant `yaml:"write,omitempty"`
}

// Table is one table with its columns in declaration order.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// Column is a real or virtual column. Sources is only set for virtual
// columns.
type Column struct {
	Name    string      `yaml:"name"`
	Type    string      `yaml:"type,omitempty"`
	NotNull bool        `yaml:"not_null,omitempty"`
	Unique  bool        `yaml:"unique,omitempty"`
	Virtual bool        `yaml:"virtual,omitempty"`
	Sources []ColumnRef `yaml:"sources,omitempty"`
}

// ColumnRef names a column of a table. Names are kept apart because quoted
// identifiers may contain dots.
type ColumnRef struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// RoleEdge records that Principal inherits Role.
type RoleEdge struct {
	Principal string `yaml:"principal"`
	Role      string `yaml:"role"`
}

// ColumnGrant lists the principals holding a privilege on one column.
type ColumnGrant struct {
	Table      string   `yaml:"table"`
	Column     string   `yaml:"column"`
	Principals []string `yaml:"principals"`
}

// Encode writes s as YAML.
func Encode(w io.Writer, s *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// Decode reads a snapshot and checks its version.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return nil, domain.ErrInvalidSnapshot("empty snapshot")
		}
		return nil, domain.ErrInvalidSnapshot("decode snapshot: %v", err)
	}
	if s.Version != Version {
		return nil, domain.ErrInvalidSnapshot("unsupported snapshot version %d (want %d)", s.Version, Version)
	}
	return &s, nil
}

// Marshal returns the YAML encoding of s.
func Marshal(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a snapshot from data.
func Unmarshal(data []byte) (*Snapshot, error) {
	return Decode(bytes.NewReader(data))
}
