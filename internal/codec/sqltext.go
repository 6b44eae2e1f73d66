package codec

import (
	"strings"
	"time"
)

// DateTimeLayout is the ISO-8601 form used for dates stored as text:
// yyyy-MM-dd'T'HH:mm:ss, always UTC, without zone designator.
const DateTimeLayout = "2006-01-02T15:04:05"

// FormatUTC formats t in DateTimeLayout after converting it to UTC.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// ParseUTC parses s in DateTimeLayout as a UTC time.
func ParseUTC(s string) (time.Time, error) {
	return time.ParseInLocation(DateTimeLayout, s, time.UTC)
}

// ParseUTCOr parses s in DateTimeLayout, returning def when s is not valid.
func ParseUTCOr(s string, def time.Time) time.Time {
	t, err := ParseUTC(s)
	if err != nil {
		return def
	}
	return t
}

// QuoteString returns s as a single quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdentifier returns name as a double quoted SQL identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
