package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

func parseOne(t *testing.T, sql string) domain.Command {
	t.Helper()
	cmds, err := New().Parse(sql)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	return cmds[0]
}

func parseStmt(t *testing.T, sql string) *domain.Statement {
	t.Helper()
	stmt, ok := parseOne(t, sql).(*domain.Statement)
	require.True(t, ok, "expected a DML statement")
	return stmt
}

func ref(table, column string) domain.ColumnRef {
	return domain.ColumnRef{Table: table, Column: column}
}

func TestParse_CreateTable(t *testing.T) {
	cmd := parseOne(t, `CREATE TABLE Users (
		id integer PRIMARY KEY,
		name varchar(20) NOT NULL,
		score numeric(10,2),
		tags text[],
		UNIQUE (name)
	)`)
	ct, ok := cmd.(*domain.CreateTable)
	require.True(t, ok)
	assert.Equal(t, "users", ct.Name)
	assert.Equal(t, []domain.ColumnDef{
		{Name: "id", Type: "int4", NotNull: true, Unique: true},
		{Name: "name", Type: "varchar(20)", NotNull: true, Unique: true},
		{Name: "score", Type: "numeric(10,2)"},
		{Name: "tags", Type: "text[]"},
	}, ct.Columns)
}

func TestParse_CreateTableCompositeKey(t *testing.T) {
	ct := parseOne(t, `CREATE TABLE t2 (a int, b int, c int, PRIMARY KEY (a, b))`).(*domain.CreateTable)
	assert.Equal(t, []domain.ColumnDef{
		{Name: "a", Type: "int4", NotNull: true},
		{Name: "b", Type: "int4", NotNull: true},
		{Name: "c", Type: "int4"},
	}, ct.Columns)

	_, err := New().Parse(`CREATE TABLE t3 (a int, PRIMARY KEY (zz))`)
	assert.Equal(t, domain.KindColumnNotFound, domain.KindOf(err))
}

func TestParse_Grants(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []domain.Command
	}{
		{
			name: "select on two tables",
			sql:  "GRANT SELECT ON tbl1, tbl2 TO usr",
			want: []domain.Command{
				domain.NewTableGrant(domain.AccessRead, "tbl1", "", "usr"),
				domain.NewTableGrant(domain.AccessRead, "tbl2", "", "usr"),
			},
		},
		{
			name: "column privileges",
			sql:  "GRANT SELECT (id, f1), INSERT ON TABLE tbl1 TO a, b",
			want: []domain.Command{
				domain.NewTableGrant(domain.AccessRead, "tbl1", "id", "a"),
				domain.NewTableGrant(domain.AccessRead, "tbl1", "f1", "a"),
				domain.NewTableGrant(domain.AccessWrite, "tbl1", "", "a"),
				domain.NewTableGrant(domain.AccessRead, "tbl1", "id", "b"),
				domain.NewTableGrant(domain.AccessRead, "tbl1", "f1", "b"),
				domain.NewTableGrant(domain.AccessWrite, "tbl1", "", "b"),
			},
		},
		{
			name: "write privileges collapse",
			sql:  "GRANT INSERT, UPDATE, DELETE ON tbl1 TO w",
			want: []domain.Command{
				domain.NewTableGrant(domain.AccessWrite, "tbl1", "", "w"),
			},
		},
		{
			name: "all to public",
			sql:  "GRANT ALL ON tbl1 TO PUBLIC",
			want: []domain.Command{
				domain.NewTableGrant(domain.AccessRead, "tbl1", "", "public"),
				domain.NewTableGrant(domain.AccessWrite, "tbl1", "", "public"),
			},
		},
		{
			name: "roles",
			sql:  "GRANT analyst, reader TO alice",
			want: []domain.Command{
				domain.NewRoleGrant("analyst", "alice"),
				domain.NewRoleGrant("reader", "alice"),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := New().Parse(tc.sql)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want domain.Kind
	}{
		{name: "syntax error", sql: "SELEC 1", want: domain.KindParse},
		{name: "revoke", sql: "REVOKE SELECT ON t FROM u", want: domain.KindUnsupported},
		{name: "revoke role", sql: "REVOKE r FROM u", want: domain.KindUnsupported},
		{name: "drop", sql: "DROP TABLE t", want: domain.KindUnsupported},
		{name: "recursive cte", sql: "WITH RECURSIVE c AS (SELECT 1 UNION SELECT 2) SELECT * FROM c", want: domain.KindUnsupported},
		{name: "natural join", sql: "SELECT * FROM a NATURAL JOIN b", want: domain.KindUnsupported},
		{name: "function in from", sql: "SELECT * FROM generate_series(1, 3)", want: domain.KindUnsupported},
		{name: "upsert", sql: "INSERT INTO t (a) VALUES (1) ON CONFLICT (a) DO UPDATE SET a = 2", want: domain.KindUnsupported},
		{name: "grant on schema", sql: "GRANT USAGE ON SCHEMA s TO u", want: domain.KindUnsupported},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Parse(tc.sql)
			require.Error(t, err)
			assert.Equal(t, tc.want, domain.KindOf(err))
		})
	}
}

func TestParse_Select(t *testing.T) {
	stmt := parseStmt(t, "select tbl1.id, t2.f2 from tbl1, tbl2 as t2")
	assert.Equal(t, &domain.Statement{
		Type: domain.StmtSelect,
		Main: []domain.ColumnRef{ref("tbl1", "id"), ref("t2", "f2")},
		From: []domain.TableRef{{Name: "tbl1"}, {Name: "tbl2", Alias: "t2"}},
	}, stmt)
}

func TestParse_CorrelatedSubquery(t *testing.T) {
	stmt := parseStmt(t, "select al_name from T where al_id in (select x from T where x = al_id)")
	assert.Equal(t, &domain.Statement{
		Type:  domain.StmtSelect,
		Main:  []domain.ColumnRef{ref("", "al_name")},
		Where: []domain.ColumnRef{ref("", "al_id")},
		From:  []domain.TableRef{{Name: "t"}},
		WhereSubqueries: []*domain.Statement{{
			Type:  domain.StmtSelect,
			Main:  []domain.ColumnRef{ref("", "x")},
			Where: []domain.ColumnRef{ref("", "x"), ref("", "al_id")},
			From:  []domain.TableRef{{Name: "t"}},
		}},
	}, stmt)
}

func TestParse_SelectListSubquery(t *testing.T) {
	stmt := parseStmt(t, "select id, (select max(f2) from tbl2) from tbl1")
	require.Len(t, stmt.SelectSubqueries, 1)
	assert.Equal(t, []domain.ColumnRef{ref("", "f2")}, stmt.SelectSubqueries[0].Main)
	assert.Equal(t, []domain.ColumnRef{ref("", "id")}, stmt.Main)
}

func TestParse_UnionChain(t *testing.T) {
	stmt := parseStmt(t, "select f1 from t1 union select f2 from t2 except select f3 from t3")
	var got [][]domain.ColumnRef
	for s := stmt; s != nil; s = s.Next {
		got = append(got, s.Main)
	}
	assert.Equal(t, [][]domain.ColumnRef{
		{ref("", "f1")}, {ref("", "f2")}, {ref("", "f3")},
	}, got)
}

func TestParse_FromSubquery(t *testing.T) {
	stmt := parseStmt(t, "select s.total from (select count(id) as total from tbl1) as s")
	assert.Equal(t, &domain.Statement{
		Type: domain.StmtSelect,
		Main: []domain.ColumnRef{ref("s", "total")},
		From: []domain.TableRef{{Alias: "s"}},
		FromSubqueries: []domain.FromSubquery{{
			Alias: "s",
			Stmt: &domain.Statement{
				Type:    domain.StmtSelect,
				Main:    []domain.ColumnRef{ref("", "id")},
				Virtual: []domain.VirtualColumn{{Alias: "total", Sources: []domain.ColumnRef{ref("", "id")}}},
				From:    []domain.TableRef{{Name: "tbl1"}},
			},
		}},
	}, stmt)
}

func TestParse_Joins(t *testing.T) {
	stmt := parseStmt(t, "select a.id from tbl1 a join tbl2 b using (id) left join tbl3 c on c.x = b.f2 where b.f2 > 1")
	assert.Equal(t, []domain.TableRef{
		{Name: "tbl1", Alias: "a"}, {Name: "tbl2", Alias: "b"}, {Name: "tbl3", Alias: "c"},
	}, stmt.From)
	assert.Equal(t, []domain.ColumnRef{
		ref("a", "id"), ref("b", "id"), ref("c", "x"), ref("b", "f2"), ref("b", "f2"),
	}, stmt.Where)
	assert.Equal(t, []domain.ColumnRef{ref("a", "id")}, stmt.Main)
}

func TestParse_OutputAliasesAreNotFilters(t *testing.T) {
	stmt := parseStmt(t, "select f1 as x, count(*) from tbl1 group by f1 order by x, count")
	assert.Equal(t, []domain.ColumnRef{ref("", "f1")}, stmt.Main)
	assert.Equal(t, []domain.ColumnRef{ref("", "f1")}, stmt.Where)
	assert.Equal(t, []domain.VirtualColumn{
		{Alias: "x", Sources: []domain.ColumnRef{ref("", "f1")}},
		{Alias: "count"},
	}, stmt.Virtual)
}

func TestParse_Star(t *testing.T) {
	stmt := parseStmt(t, "select *, t.* from t")
	assert.Equal(t, []domain.ColumnRef{ref("", "*"), ref("t", "*")}, stmt.Main)
}

func TestParse_CTE(t *testing.T) {
	stmt := parseStmt(t, "with c as (select id from tbl1), d as (select id from c) select d.id from d")
	require.Len(t, stmt.FromSubqueries, 1)
	d := stmt.FromSubqueries[0]
	assert.Equal(t, "d", d.Alias)
	require.Len(t, d.Stmt.FromSubqueries, 1)
	c := d.Stmt.FromSubqueries[0]
	assert.Equal(t, "c", c.Alias)
	assert.Equal(t, []domain.TableRef{{Name: "tbl1"}}, c.Stmt.From)
	assert.Equal(t, []domain.TableRef{{Alias: "d"}}, stmt.From)
}

func TestParse_Update(t *testing.T) {
	stmt := parseStmt(t, "update tbl1 set f1 = f1 + 1 where id = 3 returning f1")
	assert.Equal(t, &domain.Statement{
		Type:  domain.StmtUpdate,
		Main:  []domain.ColumnRef{ref("tbl1", "f1")},
		Where: []domain.ColumnRef{ref("", "f1"), ref("", "id"), ref("", "f1")},
		From:  []domain.TableRef{{Name: "tbl1"}},
	}, stmt)
}

func TestParse_UpdateFrom(t *testing.T) {
	stmt := parseStmt(t, "update tbl1 t set f1 = o.f2 from tbl2 o where o.id = t.id")
	assert.Equal(t, []domain.TableRef{{Name: "tbl1", Alias: "t"}, {Name: "tbl2", Alias: "o"}}, stmt.From)
	assert.Equal(t, []domain.ColumnRef{ref("t", "f1")}, stmt.Main)
	assert.Equal(t, []domain.ColumnRef{ref("o", "f2"), ref("o", "id"), ref("t", "id")}, stmt.Where)
}

func TestParse_Delete(t *testing.T) {
	stmt := parseStmt(t, "delete from tbl1 t where t.id = 1")
	assert.Equal(t, &domain.Statement{
		Type:  domain.StmtDelete,
		Main:  []domain.ColumnRef{ref("t", "*")},
		Where: []domain.ColumnRef{ref("t", "id")},
		From:  []domain.TableRef{{Name: "tbl1", Alias: "t"}},
	}, stmt)
}

func TestParse_Insert(t *testing.T) {
	stmt := parseStmt(t, "insert into tbl1 (id, f1) values (1, 'x')")
	assert.Equal(t, &domain.Statement{
		Type: domain.StmtInsert,
		Main: []domain.ColumnRef{ref("tbl1", "id"), ref("tbl1", "f1")},
		From: []domain.TableRef{{Name: "tbl1"}},
	}, stmt)

	stmt = parseStmt(t, "insert into tbl1 values (1, 2)")
	assert.Equal(t, []domain.ColumnRef{ref("tbl1", "*")}, stmt.Main)

	stmt = parseStmt(t, "insert into tbl1 select * from tbl2")
	require.Len(t, stmt.SelectSubqueries, 1)
	assert.Equal(t, domain.StmtSelect, stmt.SelectSubqueries[0].Type)
}

func TestParse_Batch(t *testing.T) {
	cmds, err := New().Parse("create table a (x int); grant select on a to u; select x from a;")
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.IsType(t, &domain.CreateTable{}, cmds[0])
	assert.IsType(t, &domain.Grant{}, cmds[1])
	assert.IsType(t, &domain.Statement{}, cmds[2])
}

func TestSplit(t *testing.T) {
	parts, err := Split("create table a (x int);\n select ';' from a;;  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"create table a (x int)", "select ';' from a"}, parts)
}
