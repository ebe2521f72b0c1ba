package domain

// StatementType classifies a DML statement.
type StatementType int

// Statement types.
const (
	StmtSelect StatementType = iota
	StmtInsert
	StmtUpdate
	StmtDelete
)

// String returns the SQL keyword.
func (t StatementType) String() string {
	switch t {
	case StmtSelect:
		return "SELECT"
	case StmtInsert:
		return "INSERT"
	case StmtUpdate:
		return "UPDATE"
	case StmtDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Initial returns the first letter of the keyword, used by feature reports.
func (t StatementType) Initial() string { return t.String()[:1] }

// Access is the kind of privilege a grant confers or a check requires.
type Access int

// Access kinds.
const (
	AccessRead Access = iota
	AccessWrite
)

func (a Access) String() string {
	if a == AccessWrite {
		return "WRITE"
	}
	return "READ"
}

// RequiredAccess returns the access needed on the columns a statement
// selects or changes.
func (t StatementType) RequiredAccess() Access {
	switch t {
	case StmtSelect:
		return AccessRead
	case StmtInsert, StmtUpdate, StmtDelete:
		return AccessWrite
	default:
		return AccessWrite
	}
}

// ColumnRef is an unresolved column reference. Table is empty for
// unqualified references and Column may be "*".
type ColumnRef struct {
	Table  string
	Column string
}

// Star is the column name used for wildcard references.
const Star = "*"

// TableRef is one entry of a FROM list. Name is empty for the slot of a FROM
// subquery.
type TableRef struct {
	Name  string
	Alias string
}

// VirtualColumn is a projection alias together with the columns it is
// computed from.
type VirtualColumn struct {
	Alias   string
	Sources []ColumnRef
}

// FromSubquery is a subquery used as a table in a FROM list.
type FromSubquery struct {
	Alias string
	Stmt  *Statement
}

// Statement is the parser-independent form of one DML statement.
type Statement struct {
	Type StatementType

	// Main holds selected or changed columns, Where holds filter and join
	// columns.
	Main  []ColumnRef
	Where []ColumnRef

	Virtual []VirtualColumn
	From    []TableRef

	SelectSubqueries []*Statement
	WhereSubqueries  []*Statement
	FromSubqueries   []FromSubquery

	// Next links the following arm of a UNION, INTERSECT or EXCEPT chain.
	Next *Statement
}
