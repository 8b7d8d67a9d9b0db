package extract

import (
	"strings"
	"testing"
)

func TestSongplayID_StableAndFixedWidthPrefix(t *testing.T) {
	t.Parallel()

	const path = "/data/log_data/2018/11/2018-11-01-events.json"

	a := SongplayID(path, 0)
	b := SongplayID(path, 0)
	if a != b {
		t.Fatalf("id not deterministic: %q vs %q", a, b)
	}

	prefix := FileID(path)
	if len(prefix) != fileIDLen {
		t.Fatalf("prefix width = %d", len(prefix))
	}
	if strings.Trim(prefix, "0123456789") != "" {
		t.Fatalf("prefix should be decimal: %q", prefix)
	}
	if got := SongplayID(path, 12); got != prefix+"12" {
		t.Fatalf("SongplayID = %q, want %q", got, prefix+"12")
	}
	if FileID("/data/log_data/other.json") == prefix {
		t.Fatalf("different paths should not share a prefix")
	}
}
