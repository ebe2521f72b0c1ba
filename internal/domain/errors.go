// Package domain defines the identifier model, the statement tree consumed by
// the analyzer, and the error taxonomy shared by every layer.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an analyzer error.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindEmptyName
	KindDuplicateRelation
	KindDuplicateColumn
	KindRelationNotFound
	KindDuplicateTableReference
	KindMissingFromEntry
	KindColumnNotFound
	KindAmbiguousColumn
	KindRoleCycle
	KindUnauthorized
	KindNotPureDml
	KindIncompatibleMerge
	KindTooDeeplyNested
	KindUnsupported
	KindParse
	KindInvalidSnapshot
)

var kindNames = map[Kind]string{
	KindUnknown:                 "Unknown",
	KindEmptyName:               "EmptyName",
	KindDuplicateRelation:       "DuplicateRelation",
	KindDuplicateColumn:         "DuplicateColumn",
	KindRelationNotFound:        "RelationNotFound",
	KindDuplicateTableReference: "DuplicateTableReference",
	KindMissingFromEntry:        "MissingFromEntry",
	KindColumnNotFound:          "ColumnNotFound",
	KindAmbiguousColumn:         "AmbiguousColumn",
	KindRoleCycle:               "RoleCycle",
	KindUnauthorized:            "Unauthorized",
	KindNotPureDml:              "NotPureDml",
	KindIncompatibleMerge:       "IncompatibleMerge",
	KindTooDeeplyNested:         "TooDeeplyNested",
	KindUnsupported:             "Unsupported",
	KindParse:                   "Parse",
	KindInvalidSnapshot:         "InvalidSnapshot",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Internal reports whether the kind signals a broken contract between the
// parser and the analyzer rather than bad user input.
func (k Kind) Internal() bool {
	return k == KindIncompatibleMerge || k == KindUnknown
}

// Error is the error type returned by the catalog, scope, grant and analyzer
// layers. Names holds the offending identifiers in their original spelling.
type Error struct {
	Kind    Kind
	Names   []string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, names []string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Names: names, Message: fmt.Sprintf(format, args...)}
}

// UnauthorizedError is returned when no role reachable from the principal
// holds the required grant on a column. It reports the first failing column.
type UnauthorizedError struct {
	Principal string
	Table     string
	Column    string
	Access    Access
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s: access denied to %s on %s.%s", e.Principal, e.Access, e.Table, e.Column)
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return KindUnauthorized
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrEmptyName is returned when a name normalizes to the empty string.
func ErrEmptyName(raw string) *Error {
	return newError(KindEmptyName, []string{raw}, "empty name %q", raw)
}

// ErrDuplicateRelation is returned when a table is created twice.
func ErrDuplicateRelation(table string) *Error {
	return newError(KindDuplicateRelation, []string{table}, "relation %q already exists", table)
}

// ErrDuplicateColumn is returned when a column is declared twice on a table.
func ErrDuplicateColumn(table, column string) *Error {
	return newError(KindDuplicateColumn, []string{table, column},
		"column %q specified more than once in relation %q", column, table)
}

// ErrRelationNotFound is returned for an unknown table.
func ErrRelationNotFound(table string) *Error {
	return newError(KindRelationNotFound, []string{table}, "relation %q does not exist", table)
}

// ErrDuplicateTableReference is returned when a FROM list binds the same
// name twice.
func ErrDuplicateTableReference(name string) *Error {
	return newError(KindDuplicateTableReference, []string{name}, "table name %q specified more than once", name)
}

// ErrMissingFromEntry is returned when a qualifier does not name any table
// in scope.
func ErrMissingFromEntry(table string) *Error {
	return newError(KindMissingFromEntry, []string{table}, "missing FROM-clause entry for table %q", table)
}

// ErrColumnNotFound is returned for an unknown column. table may be empty
// for unqualified references.
func ErrColumnNotFound(table, column string) *Error {
	if table == "" {
		return newError(KindColumnNotFound, []string{column}, "column %q does not exist", column)
	}
	return newError(KindColumnNotFound, []string{table, column}, "column %s.%s does not exist", table, column)
}

// ErrAmbiguousColumn is returned when an unqualified column matches more
// than one table.
func ErrAmbiguousColumn(column string, tables []string) *Error {
	names := append([]string{column}, tables...)
	return newError(KindAmbiguousColumn, names,
		"column reference %q is ambiguous (%s)", column, strings.Join(tables, ", "))
}

// ErrRoleCycle is returned when granting role to principal would close a loop.
func ErrRoleCycle(role, to string) *Error {
	return newError(KindRoleCycle, []string{role, to}, "granting role %q to %q would create a cycle", role, to)
}

// ErrNotPureDml is returned when a user batch contains non-DML commands.
func ErrNotPureDml(parsed, dml int) *Error {
	return newError(KindNotPureDml, nil, "only DML statements are allowed (%d of %d statements are DML)", dml, parsed)
}

// ErrIncompatibleMerge is returned when features of different statement
// types are combined.
func ErrIncompatibleMerge(a, b StatementType) *Error {
	return newError(KindIncompatibleMerge, []string{a.String(), b.String()},
		"cannot merge %s and %s features", a, b)
}

// ErrTooDeeplyNested is returned when statement nesting exceeds the limit.
func ErrTooDeeplyNested(limit int) *Error {
	return newError(KindTooDeeplyNested, nil, "statement nesting exceeds %d levels", limit)
}

// ErrUnsupported is returned for SQL the analyzer does not model.
func ErrUnsupported(format string, args ...interface{}) *Error {
	return newError(KindUnsupported, nil, format, args...)
}

// ErrParse wraps a syntax error from the SQL front end.
func ErrParse(format string, args ...interface{}) *Error {
	return newError(KindParse, nil, format, args...)
}

// ErrInvalidSnapshot is returned when persisted state cannot be restored.
func ErrInvalidSnapshot(format string, args ...interface{}) *Error {
	return newError(KindInvalidSnapshot, nil, format, args...)
}
