package schema

import (
	"fmt"
	"strconv"
	"strings"
)

type mssqlDialect struct{}

// ident returns a bracket-quoted identifier, escaping ']' as ']]'.
func (mssqlDialect) ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (mssqlDialect) placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// columnType keeps keyed text bounded: SQL Server cannot index NVARCHAR(MAX).
func (mssqlDialect) columnType(t Type) string {
	switch t {
	case Varchar:
		return "NVARCHAR(256)"
	case Text:
		return "NVARCHAR(MAX)"
	case Int:
		return "INT"
	case Float:
		return "FLOAT"
	case TimeOfDay:
		return "TIME(0)"
	default:
		return strings.ToUpper(string(t))
	}
}

func (d mssqlDialect) createTable(t Table) string {
	return wrapCreateIfMissing(d, t.Name, columnDefs(d, t, true))
}

func (d mssqlDialect) createStaging(stage, _ Table) string {
	return wrapCreateIfMissing(d, stage.Name, columnDefs(d, stage, false))
}

// wrapCreateIfMissing guards CREATE TABLE with OBJECT_ID, since SQL Server has
// no CREATE TABLE IF NOT EXISTS.
func wrapCreateIfMissing(d mssqlDialect, name, defs string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		strings.ReplaceAll(name, "'", "''"), d.ident(name), defs)
}

// insertIgnore inserts a single row unless its key is already present.
// The key's placeholder is reused in the NOT EXISTS probe.
func (d mssqlDialect) insertIgnore(t Table) string {
	cols := t.ColumnNames()
	keyPos := 1
	for i, c := range cols {
		if c == t.PrimaryKey {
			keyPos = i + 1
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s = %s)",
		d.ident(t.Name), identList(d, cols, ""), placeholderList(d, len(cols)),
		d.ident(t.Name), d.ident(t.PrimaryKey), d.placeholder(keyPos))
}

// merge is an UPDATE of existing keys (when Update is set) followed by an
// INSERT ... WHERE NOT EXISTS of new ones, sent as one batch.
func (d mssqlDialect) merge(m mergeSpec) string {
	cols := m.Target.ColumnNames()
	key := d.ident(m.Target.PrimaryKey)
	ranked := rankedStaging(d, m)

	var b strings.Builder
	if len(m.Update) > 0 {
		fmt.Fprintf(&b, "UPDATE t SET ")
		for i, c := range m.Update {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "t.%s = r.%s", d.ident(c), d.ident(c))
		}
		fmt.Fprintf(&b, " FROM %s t JOIN %s r ON t.%s = r.%s WHERE r.rn = 1; ",
			d.ident(m.Target.Name), ranked, key, key)
	}
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s r WHERE r.rn = 1 AND NOT EXISTS (SELECT 1 FROM %s t WHERE t.%s = r.%s)",
		d.ident(m.Target.Name), identList(d, cols, ""),
		identList(d, cols, "r."), ranked,
		d.ident(m.Target.Name), key, key,
	)
	return b.String()
}

func (d mssqlDialect) songSelect() string { return songSelectSQL(d) }
