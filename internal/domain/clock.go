package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeUnset marks a minute-of-day field that has not been recorded yet.
const TimeUnset = -1.0

// ParseMinuteOfDay converts a clock string into minutes since midnight.
// Accepts both "HH:MM:SS" and "YYYY-MM-DD HH:MM:SS"; the date part of the
// second form is ignored because the simulation runs within a single day.
func ParseMinuteOfDay(s string) (float64, error) {
	s = strings.TrimSpace(s)

	layout := "15:04:05"
	if strings.Contains(s, " ") {
		layout = "2006-01-02 15:04:05"
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}

	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60.0, nil
}

// FormatClock renders a minute-of-day value as "HH:MM".
func FormatClock(mins float64) string {
	total := int(mins)
	return fmt.Sprintf("%02d:%02d", (total/60)%24, total%60)
}
