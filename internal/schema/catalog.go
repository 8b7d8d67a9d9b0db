package schema

import (
	"fmt"
	"strings"
)

// Dialect names. They match the storage backend kinds.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
	MSSQL    = "mssql"
)

// Catalog is the full statement set for one SQL dialect.
//
// Parameter order:
//   - SongInsert:   song_id, title, artist_id, year, duration
//   - ArtistInsert: artist_id, name, location, latitude, longitude
//   - SongSelect:   title, artist name, duration; returns (song_id, artist_id)
//
// The merge statements take no parameters. Each reads its staging table and
// writes the matching target; it does not clear the staging table.
type Catalog struct {
	Dialect string

	// Create holds CREATE TABLE statements, targets first, then staging.
	Create []string
	// Drop holds DROP TABLE IF EXISTS statements for every table in Create.
	Drop []string

	SongInsert   string
	ArtistInsert string

	// UserMerge upserts temp_users into users, overwriting level on conflict.
	UserMerge string
	// TimeMerge copies temp_time into time, one row per start_time. The row
	// with the earliest (year, month, day) wins; existing keys are kept.
	TimeMerge string
	// SongplayMerge copies temp_songplays into songplays, ignoring ids that
	// are already present.
	SongplayMerge string

	// SongSelect is the exact-match song/artist lookup. It joins songs to
	// artists and compares title, artist name and duration for equality.
	SongSelect string

	d dialect
}

// dialect renders Table descriptions into SQL.
type dialect interface {
	ident(name string) string
	placeholder(n int) string
	columnType(t Type) string
	createTable(t Table) string
	createStaging(stage, target Table) string
	insertIgnore(t Table) string
	merge(m mergeSpec) string
	songSelect() string
}

// mergeSpec describes a staging-to-target merge.
//
// Among staging rows sharing a key, the first one in OrderBy order is the
// candidate. Update lists the target columns that a candidate overwrites on
// key conflict; when empty the existing target row is kept.
type mergeSpec struct {
	Target  Table
	Staging Table
	OrderBy []string
	Update  []string
}

// For builds the catalog for the named dialect.
func For(name string) (*Catalog, error) {
	var d dialect
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Postgres:
		d = postgresDialect{}
	case SQLite:
		d = sqliteDialect{}
	case MSSQL:
		d = mssqlDialect{}
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", name)
	}

	c := &Catalog{Dialect: strings.ToLower(strings.TrimSpace(name)), d: d}

	for _, t := range Star() {
		c.Create = append(c.Create, d.createTable(t))
		c.Drop = append(c.Drop, dropTable(d, t.Name))
	}
	for _, p := range stagingPairs() {
		c.Create = append(c.Create, d.createStaging(p.stage, p.target))
		c.Drop = append(c.Drop, dropTable(d, p.stage.Name))
	}

	c.SongInsert = d.insertIgnore(songsTable)
	c.ArtistInsert = d.insertIgnore(artistsTable)

	pairs := stagingPairs()
	c.UserMerge = d.merge(mergeSpec{
		Target:  pairs[0].target,
		Staging: pairs[0].stage,
		Update:  []string{"level"},
	})
	c.TimeMerge = d.merge(mergeSpec{
		Target:  pairs[1].target,
		Staging: pairs[1].stage,
		OrderBy: []string{"year", "month", "day"},
	})
	c.SongplayMerge = d.merge(mergeSpec{
		Target:  pairs[2].target,
		Staging: pairs[2].stage,
	})

	c.SongSelect = d.songSelect()
	return c, nil
}

// Ident quotes a table or column name for this dialect.
func (c *Catalog) Ident(name string) string { return c.d.ident(name) }

// Clear returns the statement that empties a (staging) table.
func (c *Catalog) Clear(table string) string {
	return "DELETE FROM " + c.d.ident(table)
}

func dropTable(d dialect, name string) string {
	return "DROP TABLE IF EXISTS " + d.ident(name)
}

// identList renders "p.a, p.b" for columns; prefix may be empty.
func identList(d dialect, columns []string, prefix string) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(d.ident(c))
	}
	return b.String()
}

// placeholderList renders "$1, $2, ..." (or the dialect's equivalent).
func placeholderList(d dialect, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteString(d.placeholder(i))
	}
	return b.String()
}

// columnDefs renders "<col> <type> [NOT NULL]" for every column, marking the
// primary key inline when includeKey is set.
func columnDefs(d dialect, t Table, includeKey bool) string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		var b strings.Builder
		b.WriteString(d.ident(c.Name))
		b.WriteString(" ")
		b.WriteString(d.columnType(c.Type))
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if includeKey && c.Name == t.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		defs = append(defs, b.String())
	}
	return strings.Join(defs, ", ")
}

// rankedStaging renders a derived table over the staging table that numbers
// rows per key (rn = 1 is the candidate). Used by dialects without DISTINCT ON.
func rankedStaging(d dialect, m mergeSpec) string {
	order := m.OrderBy
	if len(order) == 0 {
		order = []string{m.Target.PrimaryKey}
	}
	cols := m.Staging.ColumnNames()
	return fmt.Sprintf(
		"(SELECT %s, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS rn FROM %s s)",
		identList(d, cols, "s."),
		"s."+d.ident(m.Target.PrimaryKey),
		identList(d, order, "s."),
		d.ident(m.Staging.Name),
	)
}

func songSelectSQL(d dialect) string {
	return fmt.Sprintf(
		"SELECT s.%s, s.%s FROM %s s JOIN %s a ON s.%s = a.%s WHERE s.%s = %s AND a.%s = %s AND s.%s = %s",
		d.ident("song_id"), d.ident("artist_id"),
		d.ident(Songs), d.ident(Artists),
		d.ident("artist_id"), d.ident("artist_id"),
		d.ident("title"), d.placeholder(1),
		d.ident("name"), d.placeholder(2),
		d.ident("duration"), d.placeholder(3),
	)
}
