package dates

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the UTC calendar-day token used in ids and URLs.
const DayLayout = "2006-01-02"

// FormatUTCDay renders t as YYYY-MM-DD in UTC.
func FormatUTCDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseUTCDay parses a YYYY-MM-DD token into midnight UTC.
func ParseUTCDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	d, err := time.ParseInLocation(DayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", value, err)
	}
	return d, nil
}
