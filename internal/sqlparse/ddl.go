package sqlparse

import (
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// createTable converts CREATE TABLE. PRIMARY KEY implies NOT NULL and
// UNIQUE; a composite key only implies NOT NULL on each part.
func createTable(stmt *pg_query.CreateStmt) (*domain.CreateTable, error) {
	if stmt.Relation == nil {
		return nil, domain.ErrParse("CREATE TABLE without a name")
	}
	if len(stmt.InhRelations) > 0 || stmt.Partbound != nil || stmt.OfTypename != nil {
		return nil, domain.ErrUnsupported("CREATE TABLE %s: inheritance and partitions are not supported", stmt.Relation.Relname)
	}
	ct := &domain.CreateTable{Name: stmt.Relation.Relname}
	index := map[string]int{}

	for _, elt := range stmt.TableElts {
		switch n := elt.Node.(type) {
		case *pg_query.Node_ColumnDef:
			cd := n.ColumnDef
			col := domain.ColumnDef{
				Name:    cd.Colname,
				Type:    typeNameString(cd.TypeName),
				NotNull: cd.IsNotNull,
			}
			for _, c := range cd.Constraints {
				con := c.GetConstraint()
				if con == nil {
					continue
				}
				switch con.Contype {
				case pg_query.ConstrType_CONSTR_NOTNULL:
					col.NotNull = true
				case pg_query.ConstrType_CONSTR_UNIQUE:
					col.Unique = true
				case pg_query.ConstrType_CONSTR_PRIMARY:
					col.NotNull = true
					col.Unique = true
				}
			}
			index[domain.Normalize(cd.Colname)] = len(ct.Columns)
			ct.Columns = append(ct.Columns, col)
		case *pg_query.Node_Constraint:
			if err := applyTableConstraint(ct, index, n.Constraint); err != nil {
				return nil, err
			}
		case *pg_query.Node_TableLikeClause:
			return nil, domain.ErrUnsupported("CREATE TABLE %s: LIKE is not supported", ct.Name)
		}
	}
	return ct, nil
}

func applyTableConstraint(ct *domain.CreateTable, index map[string]int, con *pg_query.Constraint) error {
	if con.Contype != pg_query.ConstrType_CONSTR_PRIMARY && con.Contype != pg_query.ConstrType_CONSTR_UNIQUE {
		return nil
	}
	keys := stringList(con.Keys)
	for _, key := range keys {
		i, ok := index[domain.Normalize(key)]
		if !ok {
			return domain.ErrColumnNotFound(ct.Name, key)
		}
		if con.Contype == pg_query.ConstrType_CONSTR_PRIMARY {
			ct.Columns[i].NotNull = true
		}
		if len(keys) == 1 {
			ct.Columns[i].Unique = true
		}
	}
	return nil
}

// typeNameString renders a type as written, without the pg_catalog schema:
// "varchar(20)", "numeric(10,2)", "int4[]".
func typeNameString(tn *pg_query.TypeName) string {
	if tn == nil {
		return ""
	}
	var parts []string
	for _, n := range tn.Names {
		if s := n.GetString_(); s != nil && s.Sval != "pg_catalog" {
			parts = append(parts, s.Sval)
		}
	}
	out := strings.Join(parts, ".")

	var mods []string
	for _, m := range tn.Typmods {
		if c := m.GetAConst(); c != nil {
			switch {
			case c.GetIval() != nil:
				mods = append(mods, strconv.Itoa(int(c.GetIval().Ival)))
			case c.GetSval() != nil:
				mods = append(mods, c.GetSval().Sval)
			case c.GetFval() != nil:
				mods = append(mods, c.GetFval().Fval)
			}
		}
	}
	if len(mods) > 0 {
		out += "(" + strings.Join(mods, ",") + ")"
	}
	for range tn.ArrayBounds {
		out += "[]"
	}
	return out
}

// tableGrants converts GRANT ... ON TABLE. SELECT maps to READ; INSERT,
// UPDATE and DELETE map to WRITE; ALL maps to both. Other privileges are
// ignored. One command is produced per table, grantee, access and column.
func tableGrants(stmt *pg_query.GrantStmt) ([]domain.Command, error) {
	if !stmt.IsGrant {
		return nil, domain.ErrUnsupported("REVOKE is not supported")
	}
	if stmt.Targtype != pg_query.GrantTargetType_ACL_TARGET_OBJECT || stmt.Objtype != pg_query.ObjectType_OBJECT_TABLE {
		return nil, domain.ErrUnsupported("only GRANT ON TABLE is supported")
	}

	type privilege struct {
		access  domain.Access
		columns []string
	}
	var privs []privilege
	addPriv := func(name string, cols []string) {
		switch strings.ToLower(name) {
		case "", "all":
			privs = append(privs, privilege{domain.AccessRead, cols}, privilege{domain.AccessWrite, cols})
		case "select":
			privs = append(privs, privilege{domain.AccessRead, cols})
		case "insert", "update", "delete":
			privs = append(privs, privilege{domain.AccessWrite, cols})
		}
	}
	if len(stmt.Privileges) == 0 {
		addPriv("all", nil)
	}
	for _, n := range stmt.Privileges {
		if ap := n.GetAccessPriv(); ap != nil {
			addPriv(ap.PrivName, stringList(ap.Cols))
		}
	}

	grantees, err := roleNames(stmt.Grantees)
	if err != nil {
		return nil, err
	}

	var out []domain.Command
	seen := map[domain.Grant]bool{}
	emit := func(g *domain.Grant) {
		if !seen[*g] {
			seen[*g] = true
			out = append(out, g)
		}
	}
	for _, obj := range stmt.Objects {
		rv := obj.GetRangeVar()
		if rv == nil {
			return nil, domain.ErrUnsupported("GRANT target is not a table")
		}
		for _, to := range grantees {
			for _, p := range privs {
				if len(p.columns) == 0 {
					emit(domain.NewTableGrant(p.access, rv.Relname, "", to))
					continue
				}
				for _, c := range p.columns {
					emit(domain.NewTableGrant(p.access, rv.Relname, c, to))
				}
			}
		}
	}
	return out, nil
}

// roleGrants converts GRANT role [, ...] TO principal [, ...].
func roleGrants(stmt *pg_query.GrantRoleStmt) ([]domain.Command, error) {
	if !stmt.IsGrant {
		return nil, domain.ErrUnsupported("REVOKE is not supported")
	}
	grantees, err := roleNames(stmt.GranteeRoles)
	if err != nil {
		return nil, err
	}
	var out []domain.Command
	for _, n := range stmt.GrantedRoles {
		ap := n.GetAccessPriv()
		if ap == nil {
			continue
		}
		for _, to := range grantees {
			out = append(out, domain.NewRoleGrant(ap.PrivName, to))
		}
	}
	return out, nil
}

func roleNames(nodes []*pg_query.Node) ([]string, error) {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		rs := n.GetRoleSpec()
		if rs == nil {
			continue
		}
		switch rs.Roletype {
		case pg_query.RoleSpecType_ROLESPEC_CSTRING:
			out = append(out, rs.Rolename)
		case pg_query.RoleSpecType_ROLESPEC_PUBLIC:
			out = append(out, "public")
		default:
			return nil, domain.ErrUnsupported("role %s is not supported", rs.Roletype)
		}
	}
	return out, nil
}

func stringList(nodes []*pg_query.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := n.GetString_(); s != nil {
			out = append(out, s.Sval)
		}
	}
	return out
}
