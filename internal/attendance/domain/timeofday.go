package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeOfDay parses a plan-view time-of-day value ("HH:MM" or
// "HH:MM:SS", longer strings are truncated to minutes like the legacy
// consumers did).
func ParseTimeOfDay(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 5 {
		s = s[:5]
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}

	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}
