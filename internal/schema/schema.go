// Package schema declares the warehouse star schema and renders the DDL/DML
// catalog the loaders run against it.
//
// Tables are described once, in dialect-neutral terms (Table, Column, Type),
// and each supported SQL dialect renders them into statements. The catalog is
// plain text: nothing in this package talks to a database.
//
// Staging tables:
//   - Every bulk-loaded target (users, time, songplays) has a staging twin
//     (temp_users, temp_time, temp_songplays).
//   - A staging table carries the same columns, types and defaults as its
//     target but no primary key, so a batch with repeated keys can always be
//     copied in. Key collisions are resolved by the merge statement.
package schema

// Type is a logical column type. Dialects map it onto a concrete SQL type.
type Type string

const (
	// Varchar is short, usually keyed, text (ids, names, levels).
	Varchar Type = "varchar"
	// Text is unbounded text (locations, user agents).
	Text Type = "text"
	// Int is a 32-bit integer.
	Int Type = "int"
	// Float is a double precision float.
	Float Type = "float"
	// TimeOfDay is a wall-clock time with second precision ("15:04:05").
	TimeOfDay Type = "time"
)

// Column describes one table column.
type Column struct {
	Name    string
	Type    Type
	NotNull bool
}

// Table describes a warehouse table.
//
// PrimaryKey names a single column of Columns. It is empty for staging tables.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey string
}

// ColumnNames returns the table's column names in declaration order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Staging returns a keyless copy of t named name.
func (t Table) Staging(name string) Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	return Table{Name: name, Columns: cols}
}

// Table names.
const (
	Songs     = "songs"
	Artists   = "artists"
	Users     = "users"
	Time      = "time"
	Songplays = "songplays"

	UsersStaging     = "temp_users"
	TimeStaging      = "temp_time"
	SongplaysStaging = "temp_songplays"
)

var (
	songsTable = Table{
		Name:       Songs,
		PrimaryKey: "song_id",
		Columns: []Column{
			{Name: "song_id", Type: Varchar, NotNull: true},
			{Name: "title", Type: Varchar},
			{Name: "artist_id", Type: Varchar},
			{Name: "year", Type: Int},
			{Name: "duration", Type: Float},
		},
	}

	artistsTable = Table{
		Name:       Artists,
		PrimaryKey: "artist_id",
		Columns: []Column{
			{Name: "artist_id", Type: Varchar, NotNull: true},
			{Name: "name", Type: Varchar},
			{Name: "location", Type: Varchar},
			{Name: "latitude", Type: Float},
			{Name: "longitude", Type: Float},
		},
	}

	usersTable = Table{
		Name:       Users,
		PrimaryKey: "user_id",
		Columns: []Column{
			{Name: "user_id", Type: Int, NotNull: true},
			{Name: "first_name", Type: Varchar},
			{Name: "last_name", Type: Varchar},
			{Name: "gender", Type: Varchar},
			{Name: "level", Type: Varchar},
		},
	}

	timeTable = Table{
		Name:       Time,
		PrimaryKey: "start_time",
		Columns: []Column{
			{Name: "start_time", Type: TimeOfDay, NotNull: true},
			{Name: "hour", Type: Int},
			{Name: "day", Type: Int},
			{Name: "week", Type: Int},
			{Name: "month", Type: Int},
			{Name: "year", Type: Int},
			{Name: "weekday", Type: Int},
		},
	}

	// song_id and artist_id stay nullable: plays that miss the catalog
	// lookup are kept with NULL foreign keys.
	songplaysTable = Table{
		Name:       Songplays,
		PrimaryKey: "songplay_id",
		Columns: []Column{
			{Name: "songplay_id", Type: Varchar, NotNull: true},
			{Name: "start_time", Type: TimeOfDay, NotNull: true},
			{Name: "user_id", Type: Int, NotNull: true},
			{Name: "level", Type: Varchar},
			{Name: "song_id", Type: Varchar},
			{Name: "artist_id", Type: Varchar},
			{Name: "session_id", Type: Int},
			{Name: "location", Type: Text},
			{Name: "user_agent", Type: Text},
		},
	}
)

// Star returns the five warehouse tables: two append-only dimensions (songs,
// artists), the users and time dimensions, and the songplays fact table.
func Star() []Table {
	return []Table{songsTable, artistsTable, usersTable, timeTable, songplaysTable}
}

// Lookup returns the target or staging table called name.
func Lookup(name string) (Table, bool) {
	for _, t := range Star() {
		if t.Name == name {
			return t, true
		}
	}
	for _, s := range stagingPairs() {
		if s.stage.Name == name {
			return s.stage, true
		}
	}
	return Table{}, false
}

type stagingPair struct {
	stage  Table
	target Table
}

func stagingPairs() []stagingPair {
	return []stagingPair{
		{stage: usersTable.Staging(UsersStaging), target: usersTable},
		{stage: timeTable.Staging(TimeStaging), target: timeTable},
		{stage: songplaysTable.Staging(SongplaysStaging), target: songplaysTable},
	}
}
