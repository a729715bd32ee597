package store

import (
	"fmt"
	"time"
)

// timeLayout is a fixed-width RFC 3339 form, always UTC with nine
// fractional digits. Fixed width keeps lexicographic TEXT comparison
// aligned with chronological order, which the recorded_at range filter
// relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// encodeTime renders a timestamp for storage.
func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// decodeTime parses a stored timestamp. Accepts any RFC 3339 fraction
// width, not just the fixed form encodeTime writes.
func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode time %q: %w", s, err)
	}
	return t, nil
}

// encodeBool renders a bool as the 0/1 the schema CHECK expects.
func encodeBool(b bool) int {
	if b {
		return 1
	}
	return 0
}

func decodeBool(i int) bool {
	return i != 0
}
