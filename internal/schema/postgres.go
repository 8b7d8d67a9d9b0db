package schema

import (
	"fmt"
	"strconv"
	"strings"
)

type postgresDialect struct{}

// ident double-quotes an identifier, escaping embedded quotes.
func (postgresDialect) ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) columnType(t Type) string {
	switch t {
	case Varchar:
		return "varchar"
	case Text:
		return "text"
	case Int:
		return "int"
	case Float:
		return "double precision"
	case TimeOfDay:
		return "time"
	default:
		return string(t)
	}
}

func (d postgresDialect) createTable(t Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.ident(t.Name), columnDefs(d, t, true))
}

// createStaging uses LIKE so the staging table tracks the target's columns
// and defaults without restating them.
func (d postgresDialect) createStaging(stage, target Table) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (LIKE %s INCLUDING DEFAULTS)",
		d.ident(stage.Name), d.ident(target.Name))
}

func (d postgresDialect) insertIgnore(t Table) string {
	cols := t.ColumnNames()
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		d.ident(t.Name), identList(d, cols, ""), placeholderList(d, len(cols)))
}

// merge relies on DISTINCT ON picking the first row of each key group in
// ORDER BY order, which the explicit ORDER BY makes deterministic.
func (d postgresDialect) merge(m mergeSpec) string {
	cols := m.Target.ColumnNames()
	key := d.ident(m.Target.PrimaryKey)

	order := append([]string{m.Target.PrimaryKey}, m.OrderBy...)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT DISTINCT ON (%s) %s FROM %s ORDER BY %s ON CONFLICT (%s) ",
		d.ident(m.Target.Name), identList(d, cols, ""),
		key, identList(d, cols, ""),
		d.ident(m.Staging.Name), identList(d, order, ""),
		key,
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
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", d.ident(c), d.ident(c))
	}
	return b.String()
}

func (d postgresDialect) songSelect() string { return songSelectSQL(d) }
