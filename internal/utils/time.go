// Package utils holds small formatting and parsing helpers shared by the
// CLI and the sources.
package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the absolute form accepted by ParseSince.
const DateLayout = "2006-01-02"

var dayDuration = regexp.MustCompile(`^(\d+)d$`)

// ParseSince resolves a lower time bound relative to now. It accepts a day
// count ("7d"), any Go duration ("90m", "1h30m") or a date ("2026-03-01").
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("since cannot be empty")
	}
	if m := dayDuration.FindStringSubmatch(s); m != nil {
		days, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -days), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("since must not be negative: %q", s)
		}
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation(DateLayout, s, now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid since %q: use 7d, 24h or YYYY-MM-DD", s)
}

// Ago renders how long before now t was, in one coarse unit.
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	const day = 24 * time.Hour
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < day:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/day))
	}
}
