package extract

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// SongRecord is one song metadata file. Every file holds exactly one object.
type SongRecord struct {
	NumSongs        int      `json:"num_songs"`
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	ArtistID        string   `json:"artist_id"`
	Year            int      `json:"year"`
	Duration        float64  `json:"duration"`
	ArtistName      string   `json:"artist_name"`
	ArtistLocation  *string  `json:"artist_location"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
}

// LogEvent is one line of an event log file.
type LogEvent struct {
	Artist        *string  `json:"artist"`
	Auth          string   `json:"auth"`
	FirstName     *string  `json:"firstName"`
	Gender        *string  `json:"gender"`
	ItemInSession int      `json:"itemInSession"`
	LastName      *string  `json:"lastName"`
	Length        *float64 `json:"length"`
	Level         string   `json:"level"`
	Location      *string  `json:"location"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	Registration  *float64 `json:"registration"`
	SessionID     int64    `json:"sessionId"`
	Song          *string  `json:"song"`
	Status        int      `json:"status"`
	TS            int64    `json:"ts"`
	UserAgent     *string  `json:"userAgent"`
	UserID        UserID   `json:"userId"`
}

// PageNextSong is the only page event that produces warehouse rows.
const PageNextSong = "NextSong"

// UserID is the event's userId. Logs carry it as a JSON string ("39"), a
// number, or an empty string for logged-out sessions. Valid is false when
// the value is missing or not an integer; Raw keeps the original text.
type UserID struct {
	ID    int64
	Valid bool
	Raw   string
}

// UnmarshalJSON accepts numbers, numeric strings, "" and null. It never
// fails: anything that is not an integer is kept as an invalid id.
func (u *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*u = UserID{}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	s := string(b)
	if b[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			u.Raw = s
			return nil
		}
		s = unq
	}
	s = strings.TrimSpace(s)
	u.Raw = s
	if s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		u.ID, u.Valid = n, true
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		u.ID, u.Valid = int64(f), true
	}
	return nil
}

// value returns the id for a frame cell, or nil when the id is invalid.
func (u UserID) value() any {
	if !u.Valid {
		return nil
	}
	return u.ID
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
