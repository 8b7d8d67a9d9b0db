package extract

import (
	"strings"
	"testing"

	pjson "sparkify/internal/parser/json"
)

func TestUserID_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		id    int64
		valid bool
	}{
		{in: `"39"`, id: 39, valid: true},
		{in: `39`, id: 39, valid: true},
		{in: `39.0`, id: 39, valid: true},
		{in: `" 7 "`, id: 7, valid: true},
		{in: `""`, valid: false},
		{in: `null`, valid: false},
		{in: `"abc"`, valid: false},
		{in: `39.5`, valid: false},
	}

	for _, tt := range tests {
		var got struct {
			UserID UserID `json:"userId"`
		}
		if err := pjson.DecodeObject(strings.NewReader(`{"userId":`+tt.in+`}`), &got); err != nil {
			t.Fatalf("%s: decode: %v", tt.in, err)
		}
		if got.UserID.Valid != tt.valid || got.UserID.ID != tt.id {
			t.Fatalf("%s: got %+v, want id=%d valid=%v", tt.in, got.UserID, tt.id, tt.valid)
		}
		if !tt.valid && got.UserID.value() != nil {
			t.Fatalf("%s: invalid id should load as NULL", tt.in)
		}
	}
}

func TestLogEvent_DecodesSampleLine(t *testing.T) {
	t.Parallel()

	line := `{"artist":"Harmonia","auth":"Logged In","firstName":"Ryan","gender":"M","itemInSession":0,"lastName":"Smith","length":655.77751,"level":"free","location":"San Jose-Sunnyvale-Santa Clara, CA","method":"PUT","page":"NextSong","registration":1541016707796.0,"sessionId":583,"song":"Sehr kosmisch","status":200,"ts":1542241826796,"userAgent":"Mozilla\/5.0 (X11; Linux x86_64)","userId":"26"}`

	var ev LogEvent
	if err := pjson.DecodeObject(strings.NewReader(line), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Page != PageNextSong || ev.SessionID != 583 || ev.TS != 1542241826796 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.UserID.Valid || ev.UserID.ID != 26 {
		t.Fatalf("userId = %+v", ev.UserID)
	}
	if ev.Length == nil || *ev.Length != 655.77751 {
		t.Fatalf("length = %v", ev.Length)
	}
	if ev.UserAgent == nil || *ev.UserAgent != "Mozilla/5.0 (X11; Linux x86_64)" {
		t.Fatalf("userAgent = %v", ev.UserAgent)
	}
}
