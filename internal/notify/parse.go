package notify

import (
	"fmt"
	"strings"
	"time"
)

// ParseAlarmTime parses an absolute-time spec "HH:MM" (24-hour clock) against
// now. If the resulting time-of-day is not strictly in the future, the fire
// time rolls forward exactly one day.
//
// Errors are phrased for the requesting user; the caller forwards them to the
// channel verbatim.
func ParseAlarmTime(spec string, now time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	t, err := time.Parse("15:04", spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (use HH:MM, e.g. 09:30)", spec)
	}

	fireAt := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !fireAt.After(now) {
		fireAt = fireAt.AddDate(0, 0, 1)
	}
	return fireAt, nil
}

// ParseTimerDuration parses a relative-duration spec: a positive integer
// followed by the literal unit "min" or "h". Any other suffix, a non-integer
// magnitude, or a magnitude <= 0 is a validation error.
func ParseTimerDuration(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)

	var magnitude string
	var unit time.Duration
	switch {
	case strings.HasSuffix(spec, "min"):
		magnitude = strings.TrimSuffix(spec, "min")
		unit = time.Minute
	case strings.HasSuffix(spec, "h"):
		magnitude = strings.TrimSuffix(spec, "h")
		unit = time.Hour
	default:
		return 0, fmt.Errorf("invalid duration %q (use Nmin or Nh, e.g. 10min or 2h)", spec)
	}

	n, err := parsePositiveInt(magnitude)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use Nmin or Nh, e.g. 10min or 2h)", spec)
	}
	return time.Duration(n) * unit, nil
}

// parsePositiveInt accepts plain decimal digits only: no sign, no spaces,
// no fractions, and a value of at least 1.
func parsePositiveInt(s string) (int, error) {
	if s == "" || len(s) > 6 {
		return 0, fmt.Errorf("not a positive integer: %q", s)
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a positive integer: %q", s)
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 0, fmt.Errorf("not a positive integer: %q", s)
	}
	return n, nil
}
