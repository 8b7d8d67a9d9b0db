package extract

import (
	"testing"
	"time"
)

func TestTimeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ts   int64
		loc  *time.Location
		want TimeParts
	}{
		{
			name: "utc, sub-second dropped",
			ts:   1541106106796,
			want: TimeParts{StartTime: "21:01:46", Hour: 21, Day: 1, Week: 44, Month: 11, Year: 2018, Weekday: 3},
		},
		{
			name: "fixed zone shifts the calendar",
			ts:   1541106106796,
			loc:  time.FixedZone("UTC-5", -5*3600),
			want: TimeParts{StartTime: "16:01:46", Hour: 16, Day: 1, Week: 44, Month: 11, Year: 2018, Weekday: 3},
		},
		{
			name: "sunday is six",
			ts:   time.Date(2018, 11, 4, 10, 0, 0, 999_000_000, time.UTC).UnixMilli(),
			want: TimeParts{StartTime: "10:00:00", Hour: 10, Day: 4, Week: 44, Month: 11, Year: 2018, Weekday: 6},
		},
		{
			name: "iso week belongs to next year",
			ts:   time.Date(2018, 12, 31, 0, 0, 0, 0, time.UTC).UnixMilli(),
			want: TimeParts{StartTime: "00:00:00", Hour: 0, Day: 31, Week: 1, Month: 12, Year: 2018, Weekday: 0},
		},
		{
			name: "pre-epoch floors",
			ts:   -1,
			want: TimeParts{StartTime: "23:59:59", Hour: 23, Day: 31, Week: 1, Month: 12, Year: 1969, Weekday: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TimeOf(tt.ts, tt.loc); got != tt.want {
				t.Fatalf("TimeOf(%d):\n got %+v\nwant %+v", tt.ts, got, tt.want)
			}
		})
	}
}
