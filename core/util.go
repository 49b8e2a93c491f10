package core

import (
	"math"
	"strings"
	"time"
)

// DateKeyLayout is the calendar-date layout used as attendance key.
const DateKeyLayout = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// DateKey returns the YYYY-MM-DD key of t in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key into a UTC midnight time.
func ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, CleanString(key), time.UTC)
}

// Round rounds x to the nearest integer, halves away from zero.
func Round(x float64) int {
	return int(math.Round(x))
}

// Percent returns round(100*part/total), or 0 when total is not positive.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return Round(100 * float64(part) / float64(total))
}
