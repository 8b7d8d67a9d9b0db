package extract

import (
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

const fileIDLen = 11

// FileID derives the fixed-width songplay id prefix for a log file: the
// xxh3 hash of path, printed as a zero-padded 20 digit decimal, cut to 11
// characters. The same path always yields the same prefix.
func FileID(path string) string {
	return fmt.Sprintf("%020d", xxh3.HashString(path))[:fileIDLen]
}

// SongplayID is FileID(path) followed by the event's position among the
// file's NextSong events (0-based). Because the prefix has a fixed width, two
// (path, index) pairs only collide when their file prefixes do.
func SongplayID(path string, idx int) string {
	return songplayID(FileID(path), idx)
}

func songplayID(fileID string, idx int) string {
	return fileID + strconv.Itoa(idx)
}
