package schema

import (
	"fmt"
	"strings"
)

type sqliteDialect struct{}

func (sqliteDialect) ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) placeholder(int) string { return "?" }

// columnType maps onto SQLite affinities. Time of day is stored as TEXT in
// "HH:MM:SS" form, which sorts and compares correctly as a string.
func (sqliteDialect) columnType(t Type) string {
	switch t {
	case Varchar, Text, TimeOfDay:
		return "TEXT"
	case Int:
		return "INTEGER"
	case Float:
		return "REAL"
	default:
		return strings.ToUpper(string(t))
	}
}

func (d sqliteDialect) createTable(t Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.ident(t.Name), columnDefs(d, t, true))
}

func (d sqliteDialect) createStaging(stage, _ Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.ident(stage.Name), columnDefs(d, stage, false))
}

func (d sqliteDialect) insertIgnore(t Table) string {
	cols := t.ColumnNames()
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		d.ident(t.Name), identList(d, cols, ""), placeholderList(d, len(cols)))
}

// merge ranks staging rows per key and upserts the rn = 1 candidates. The
// trailing WHERE clause also keeps the upsert's ON CONFLICT from being parsed
// as a join constraint.
func (d sqliteDialect) merge(m mergeSpec) string {
	cols := m.Target.ColumnNames()

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s r WHERE r.rn = 1 ON CONFLICT (%s) ",
		d.ident(m.Target.Name), identList(d, cols, ""),
		identList(d, cols, "r."), rankedStaging(d, m),
		d.ident(m.Target.PrimaryKey),
	)
	if len(m.Update) == 0 {
		b.WriteString("DO NOTHING")
		return b.String()
	}
	b.WriteString("DO UPDATE SET ")
	for i, c := range m.Update {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = excluded.%s", d.ident(c), d.ident(c))
	}
	return b.String()
}

func (d sqliteDialect) songSelect() string { return songSelectSQL(d) }
