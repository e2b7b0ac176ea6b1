package timemath

import (
	"fmt"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day, in minutes after midnight.
type ClockTime int

const minutesPerDay = 24 * 60

// ParseClock accepts "HH:MM" and tolerates trailing seconds ("09:00:00.000000").
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if len(s) < 5 {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	tt, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	return ClockTime(tt.Hour()*60 + tt.Minute()), nil
}

func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places the clock time on the calendar date of day, in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, day.Location())
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full English day names in any case ("MONDAY", "monday").
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid day of week: %q", s)
	}
	return d, nil
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns Monday 00:00 of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// WeekBounds returns the half-open week [Monday 00:00, next Monday 00:00) containing t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	start := WeekStart(t)
	return start, start.AddDate(0, 0, 7)
}

// Days returns the start of every calendar day in [StartOfDay(from), StartOfDay(from)+n days).
func Days(from time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	first := StartOfDay(from)
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, first.AddDate(0, 0, i))
	}
	return out
}

// SlotStarts enumerates slot starts on day from start, stepping by step while the
// slot still ends at or before end. A slot ending exactly at end is included.
func SlotStarts(day time.Time, start, end ClockTime, step time.Duration) []time.Time {
	if step <= 0 || end <= start {
		return nil
	}
	windowStart := start.On(day)
	windowEnd := end.On(day)

	var out []time.Time
	for t := windowStart; !t.Add(step).After(windowEnd); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func OverlapsAny(i Interval, busy []Interval) bool {
	for _, b := range busy {
		if i.Overlaps(b) {
			return true
		}
	}
	return false
}
