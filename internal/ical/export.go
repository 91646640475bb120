// Package ical renders events as an iCalendar feed.
package ical

import (
	"fmt"
	"io"
	"strconv"
	"time"

	goical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/example/milestone-calendar/internal/application"
	"github.com/example/milestone-calendar/internal/recurrence"
)

const productID = "milestones"

// UID returns the stable iCalendar identifier of an event.
func UID(eventID int64) string {
	return "event-" + strconv.FormatInt(eventID, 10) + "@milestones"
}

// Export writes a VCALENDAR with one VEVENT per event.
func Export(w io.Writer, events []application.Event, now time.Time) error {
	cal := goical.NewCalendarFor(productID)
	cal.SetMethod(goical.MethodPublish)
	cal.SetXWRCalName("Milestones")

	for _, e := range events {
		if e.DeletedAt != nil {
			continue
		}
		if err := addEvent(cal, e, now); err != nil {
			return fmt.Errorf("export event %d: %w", e.ID, err)
		}
	}
	return cal.SerializeTo(w)
}

func addEvent(cal *goical.Calendar, e application.Event, now time.Time) error {
	vevent := cal.AddEvent(UID(e.ID))
	vevent.SetDtStampTime(now)
	vevent.SetCreatedTime(e.CreatedAt)
	vevent.SetModifiedAt(e.UpdatedAt)
	vevent.SetSequence(e.Version)

	loc := recurrence.Location(e.Timezone)
	if e.AllDay {
		local := e.Date.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		vevent.SetAllDayStartAt(day)
		vevent.SetAllDayEndAt(day.AddDate(0, 0, 1))
	} else {
		vevent.SetStartAt(e.Date)
	}

	vevent.SetSummary(e.Title)
	if e.Description != "" {
		vevent.SetDescription(e.Description)
	}
	if e.Location != nil {
		vevent.SetLocation(*e.Location)
	}
	vevent.AddCategory(e.Category)
	if p := priority(e.Priority); p > 0 {
		vevent.SetPriority(p)
	}

	if e.IsRecurring && e.Recurrence != nil {
		rule, err := RRule(e)
		if err != nil {
			return err
		}
		vevent.AddRrule(rule)
	}
	return nil
}

func priority(p string) int {
	switch p {
	case application.PriorityHigh:
		return 1
	case application.PriorityMedium:
		return 5
	case application.PriorityLow:
		return 9
	default:
		return 0
	}
}

var weekdays = map[int]rrule.Weekday{
	0: rrule.SU,
	1: rrule.MO,
	2: rrule.TU,
	3: rrule.WE,
	4: rrule.TH,
	5: rrule.FR,
	6: rrule.SA,
}

// RRule renders the recurrence rule of e without DTSTART. Monthly and
// yearly rules that land on days some months lack are expressed as "the last
// of these days" so that short months clamp instead of being skipped.
func RRule(e application.Event) (string, error) {
	rule := e.Recurrence
	if rule == nil {
		return "", fmt.Errorf("event %d has no recurrence rule", e.ID)
	}
	loc := recurrence.Location(e.Timezone)
	anchor := e.Date.In(loc)

	opt := rrule.ROption{Interval: rule.Interval}
	switch rule.Frequency {
	case application.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case application.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		for _, day := range rule.DaysOfWeek {
			if wd, ok := weekdays[day]; ok {
				opt.Byweekday = append(opt.Byweekday, wd)
			}
		}
	case application.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		day := anchor.Day()
		if rule.DayOfMonth != nil {
			day = *rule.DayOfMonth
		}
		opt.Bymonthday, opt.Bysetpos = clampedDays(day)
	case application.FrequencyYearly:
		opt.Freq = rrule.YEARLY
		if anchor.Month() == time.February && anchor.Day() == 29 {
			opt.Bymonth = []int{2}
			opt.Bymonthday, opt.Bysetpos = clampedDays(29)
		}
	default:
		return "", fmt.Errorf("event %d: unsupported frequency %q", e.ID, rule.Frequency)
	}

	if rule.MaxOccurrences != nil {
		opt.Count = *rule.MaxOccurrences
	}
	if rule.EndDate != nil {
		y, m, d := rule.EndDate.In(loc).Date()
		opt.Until = time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Second).UTC()
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("event %d: %w", e.ID, err)
	}
	return r.OrigOptions.RRuleString(), nil
}

// clampedDays returns BYMONTHDAY/BYSETPOS values selecting day, or the last
// day of shorter months.
func clampedDays(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}
