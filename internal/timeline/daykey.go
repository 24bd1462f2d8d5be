package timeline

import (
	"fmt"
	"time"
)

// DayLayout is the day-key format. Day-keys are always UTC.
const DayLayout = "2006-01-02"

// DayKey returns the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDay parses a day-key into UTC midnight.
func ParseDay(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", key, err)
	}
	return t, nil
}

// AddDays shifts a day-key by n calendar days.
func AddDays(key string, n int) (string, error) {
	t, err := ParseDay(key)
	if err != nil {
		return "", err
	}
	return DayKey(t.AddDate(0, 0, n)), nil
}

// DayRange lists every day-key from start to end inclusive.
// It returns nil when end is before start.
func DayRange(start, end time.Time) []string {
	from := startOfDay(start)
	to := startOfDay(end)
	if to.Before(from) {
		return nil
	}
	days := make([]string, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayLayout))
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
