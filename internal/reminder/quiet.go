package reminder

import (
	"fmt"
	"strings"
	"time"
)

// QuietHours is a daily window, in local time, during which nothing is
// delivered. The window may span midnight. A zero value is disabled.
type QuietHours struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
	enabled  bool
}

// ParseQuietHours parses "HH:MM-HH:MM". An empty string or "off" disables
// quiet hours.
func ParseQuietHours(value string, loc *time.Location) (QuietHours, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "off") {
		return QuietHours{Location: loc}, nil
	}
	startRaw, endRaw, ok := strings.Cut(value, "-")
	if !ok {
		return QuietHours{}, fmt.Errorf("quiet hours %q: expected HH:MM-HH:MM", value)
	}
	start, err := parseClock(startRaw)
	if err != nil {
		return QuietHours{}, fmt.Errorf("quiet hours %q: %w", value, err)
	}
	end, err := parseClock(endRaw)
	if err != nil {
		return QuietHours{}, fmt.Errorf("quiet hours %q: %w", value, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return QuietHours{Start: start, End: end, Location: loc, enabled: start != end}, nil
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", value)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Enabled reports whether the window suppresses anything.
func (q QuietHours) Enabled() bool {
	return q.enabled
}

// String renders the window in the form ParseQuietHours accepts.
func (q QuietHours) String() string {
	if !q.enabled {
		return "off"
	}
	return formatClock(q.Start) + "-" + formatClock(q.End)
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// Contains reports whether t falls inside the window. Start is inclusive and
// end exclusive.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.enabled {
		return false
	}
	offset := q.offset(t)
	if q.Start < q.End {
		return offset >= q.Start && offset < q.End
	}
	return offset >= q.Start || offset < q.End
}

// Release returns the instant the window containing t ends, or t itself when
// t is outside the window.
func (q QuietHours) Release(t time.Time) time.Time {
	if !q.Contains(t) {
		return t
	}
	local := t.In(q.location())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	day := midnight
	if q.Start > q.End && q.offset(t) >= q.Start {
		day = midnight.AddDate(0, 0, 1)
	}
	end := int(q.End / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), end/60, end%60, 0, 0, day.Location())
}

func (q QuietHours) offset(t time.Time) time.Duration {
	local := t.In(q.location())
	return time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second + time.Duration(local.Nanosecond())
}

func (q QuietHours) location() *time.Location {
	if q.Location == nil {
		return time.UTC
	}
	return q.Location
}
