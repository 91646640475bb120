package application

import (
	"time"

	"github.com/example/milestone-calendar/internal/filter"
	"github.com/example/milestone-calendar/internal/recurrence"
)

// SeriesFor converts an event into the recurrence view used by the calculator.
// A rule with an unknown frequency yields a series with no rule, which the
// calculator treats as the anchor only.
func SeriesFor(e Event) recurrence.Series {
	series := recurrence.Series{
		EventID:   e.ID,
		Anchor:    e.Date,
		Timezone:  e.Timezone,
		Recurring: e.IsRecurring,
	}
	if !e.IsRecurring || e.Recurrence == nil {
		return series
	}

	rule := e.Recurrence
	freq, err := recurrence.ParseFrequency(rule.Frequency)
	if err != nil {
		return series
	}
	converted := &recurrence.Rule{
		Frequency: freq,
		Interval:  rule.Interval,
		EndDate:   rule.EndDate,
	}
	if rule.MaxOccurrences != nil {
		converted.MaxOccurrences = *rule.MaxOccurrences
	}
	if rule.DayOfMonth != nil {
		converted.DayOfMonth = *rule.DayOfMonth
	}
	for _, day := range rule.DaysOfWeek {
		if day >= 0 && day <= 6 {
			converted.DaysOfWeek = append(converted.DaysOfWeek, time.Weekday(day))
		}
	}
	series.Rule = converted
	return series
}

func toOccurrences(in []recurrence.Occurrence) []Occurrence {
	out := make([]Occurrence, len(in))
	for i, occ := range in {
		out[i] = toOccurrence(occ)
	}
	return out
}

func toOccurrence(occ recurrence.Occurrence) Occurrence {
	return Occurrence{
		ID:         occ.ID,
		EventID:    occ.EventID,
		Date:       occ.Date,
		IsOriginal: occ.IsOriginal,
		Index:      occ.Index,
	}
}

func toFilterItem(e Event) filter.Item {
	item := filter.Item{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Priority:    e.Priority,
		Date:        e.Date,
		Recurring:   e.IsRecurring,
		Deleted:     e.DeletedAt != nil,
	}
	if e.Location != nil {
		item.Location = *e.Location
	}
	return item
}
