package domain

// GrantKind tags a Grant.
type GrantKind int

// Grant kinds.
const (
	GrantRole GrantKind = iota
	GrantTable
)

// Grant is either a role membership (Role granted To a principal) or a
// column privilege (Access on Table.Column granted To a principal). An empty
// Column means every column of Table.
type Grant struct {
	Kind GrantKind
	To   string

	Role string

	Access Access
	Table  string
	Column string
}

// NewRoleGrant returns a grant of role to principal.
func NewRoleGrant(role, to string) *Grant {
	return &Grant{Kind: GrantRole, Role: role, To: to}
}

// NewTableGrant returns a column privilege grant. column may be empty.
func NewTableGrant(access Access, table, column, to string) *Grant {
	return &Grant{Kind: GrantTable, Access: access, Table: table, Column: column, To: to}
}

// ColumnDef is one column of a CREATE TABLE.
type ColumnDef struct {
	Name    string
	Type    string
	NotNull bool
	Unique  bool
}

// CreateTable is a parsed CREATE TABLE.
type CreateTable struct {
	Name    string
	Columns []ColumnDef
}

// Command is one parsed SQL statement: *CreateTable, *Grant or *Statement.
type Command interface {
	command()
}

func (*CreateTable) command() {}
func (*Grant) command()       {}
func (*Statement) command()   {}

// IsDML reports whether c is a data manipulation statement.
func IsDML(c Command) bool {
	_, ok := c.(*Statement)
	return ok
}
