package extract

import "time"

// TimeParts is the calendar breakdown of one event timestamp, in the column
// order of the time table.
type TimeParts struct {
	// StartTime is the time of day, "15:04:05".
	StartTime string
	Hour      int
	Day       int
	// Week is the ISO 8601 week number.
	Week  int
	Month int
	Year  int
	// Weekday counts from Monday = 0 to Sunday = 6.
	Weekday int
}

// TimeOf converts an epoch-millisecond timestamp into TimeParts in loc.
// Sub-second precision is dropped (floored), never rounded. A nil loc means
// UTC.
func TimeOf(ts int64, loc *time.Location) TimeParts {
	if loc == nil {
		loc = time.UTC
	}
	t := time.UnixMilli(ts).Truncate(time.Second).In(loc)
	_, week := t.ISOWeek()
	return TimeParts{
		StartTime: t.Format(time.TimeOnly),
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   (int(t.Weekday()) + 6) % 7,
	}
}

func (p TimeParts) row() []any {
	return []any{p.StartTime, p.Hour, p.Day, p.Week, p.Month, p.Year, p.Weekday}
}
