package timeline

import (
	"fmt"
	"time"
)

// Calendar classifies days as working or not. Holidays are injected data.
type Calendar struct {
	holidays map[string]struct{}
}

// NewCalendar validates and indexes ISO holiday dates.
func NewCalendar(holidays ...[]string) (*Calendar, error) {
	c := &Calendar{holidays: map[string]struct{}{}}
	for _, list := range holidays {
		for _, day := range list {
			if _, err := ParseDay(day); err != nil {
				return nil, fmt.Errorf("holiday: %w", err)
			}
			c.holidays[day] = struct{}{}
		}
	}
	return c, nil
}

// IsWeekend reports Saturday or Sunday.
func (c *Calendar) IsWeekend(day string) bool {
	t, err := ParseDay(day)
	if err != nil {
		return false
	}
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether day is an injected holiday.
func (c *Calendar) IsHoliday(day string) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[day]
	return ok
}

// IsWorkday reports a valid day that is neither weekend nor holiday.
func (c *Calendar) IsWorkday(day string) bool {
	if _, err := ParseDay(day); err != nil {
		return false
	}
	return !c.IsWeekend(day) && !c.IsHoliday(day)
}

// PreviousWorkday returns the closest working day before day.
func (c *Calendar) PreviousWorkday(day string) (string, error) {
	return c.stepWorkday(day, -1)
}

// NextWorkday returns the closest working day after day.
func (c *Calendar) NextWorkday(day string) (string, error) {
	return c.stepWorkday(day, 1)
}

func (c *Calendar) stepWorkday(day string, step int) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	// a year of consecutive holidays is treated as a bad calendar
	for i := 0; i < 366; i++ {
		t = t.AddDate(0, 0, step)
		if key := DayKey(t); c.IsWorkday(key) {
			return key, nil
		}
	}
	return "", fmt.Errorf("no working day within a year of %s", day)
}

// Span is an inclusive run of days.
type Span struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NonWorkingSpans groups consecutive non-working days of a sorted day list.
func (c *Calendar) NonWorkingSpans(days []string) []Span {
	spans := []Span{}
	var open *Span
	prev := ""
	for _, day := range days {
		if c.IsWorkday(day) {
			open = nil
			prev = day
			continue
		}
		if open != nil && prev != "" {
			if next, err := AddDays(prev, 1); err == nil && next == day {
				open.End = day
				prev = day
				continue
			}
		}
		spans = append(spans, Span{Start: day, End: day})
		open = &spans[len(spans)-1]
		prev = day
	}
	return spans
}
