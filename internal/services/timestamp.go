package services

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// timestampFormats covers what device firmware actually sends: full RFC3339
// with offset (ESP32 with NTP), bare ISO without zone, and the space-separated
// variant some SDKs emit. Zone-less layouts are taken as UTC.
var timestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
}

// NormalizeTimestamp converts the raw timestamp field of an ingest payload
// into a canonical UTC instant.
//
// The input shape decides the interpretation, never the magnitude of the
// value: a JSON string is parsed as a date/time, a JSON number is unix epoch
// seconds, and an absent or null field resolves to now. Anything else is
// ErrInvalidTimestamp.
func NormalizeTimestamp(raw json.RawMessage, now time.Time) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return now.UTC(), nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, ErrInvalidTimestamp
		}
		return parseTimestampString(s)
	}

	// Epoch seconds. Fractional seconds are accepted and truncated to the
	// nearest millisecond.
	if secs, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	if fsecs, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return time.UnixMilli(int64(fsecs * 1000)).UTC(), nil
	}

	return time.Time{}, ErrInvalidTimestamp
}

// parseTimestampString tries each accepted layout in order.
func parseTimestampString(s string) (time.Time, error) {
	for _, format := range timestampFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}
