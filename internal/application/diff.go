package application

import (
	"slices"
	"time"
)

// auditFields lists, in order, the event fields compared on update.
var auditFields = []string{
	"title",
	"description",
	"date",
	"timezone",
	"all_day",
	"location",
	"category",
	"priority",
	"is_recurring",
	"recurrence",
	"reminder_minutes",
}

// snapshot renders the audited fields of an event as JSON friendly values.
func snapshot(e Event) map[string]any {
	out := make(map[string]any, len(auditFields))
	for _, field := range auditFields {
		out[field] = fieldValue(e, field)
	}
	return out
}

func fieldValue(e Event, field string) any {
	switch field {
	case "title":
		return e.Title
	case "description":
		return e.Description
	case "date":
		return e.Date.UTC().Format(time.RFC3339Nano)
	case "timezone":
		return e.Timezone
	case "all_day":
		return e.AllDay
	case "location":
		if e.Location == nil {
			return nil
		}
		return *e.Location
	case "category":
		return e.Category
	case "priority":
		return e.Priority
	case "is_recurring":
		return e.IsRecurring
	case "recurrence":
		if e.Recurrence == nil {
			return nil
		}
		return ruleValue(*e.Recurrence)
	case "reminder_minutes":
		if e.ReminderMinutes == nil {
			return nil
		}
		return *e.ReminderMinutes
	default:
		return nil
	}
}

func ruleValue(r RecurrenceRule) map[string]any {
	out := map[string]any{
		"frequency": r.Frequency,
		"interval":  r.Interval,
	}
	if r.EndDate != nil {
		out["end_date"] = r.EndDate.Format("2006-01-02")
	}
	if r.MaxOccurrences != nil {
		out["max_occurrences"] = *r.MaxOccurrences
	}
	if len(r.DaysOfWeek) > 0 {
		out["days_of_week"] = append([]int(nil), r.DaysOfWeek...)
	}
	if r.DayOfMonth != nil {
		out["day_of_month"] = *r.DayOfMonth
	}
	return out
}

// diffEvents returns the audited fields that differ between before and after
// with their old and new values. An empty field list means nothing changed.
func diffEvents(before, after Event) ([]string, map[string]any, map[string]any) {
	var changed []string
	oldValues := map[string]any{}
	newValues := map[string]any{}
	for _, field := range auditFields {
		if fieldEqual(before, after, field) {
			continue
		}
		changed = append(changed, field)
		oldValues[field] = fieldValue(before, field)
		newValues[field] = fieldValue(after, field)
	}
	return changed, oldValues, newValues
}

func fieldEqual(a, b Event, field string) bool {
	switch field {
	case "date":
		return a.Date.Equal(b.Date)
	case "location":
		return equalStringPtr(a.Location, b.Location)
	case "recurrence":
		return equalRule(a.Recurrence, b.Recurrence)
	case "reminder_minutes":
		return equalIntPtr(a.ReminderMinutes, b.ReminderMinutes)
	default:
		return fieldValue(a, field) == fieldValue(b, field)
	}
}

func equalRule(a, b *RecurrenceRule) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Frequency != b.Frequency || a.Interval != b.Interval {
		return false
	}
	if !equalIntPtr(a.MaxOccurrences, b.MaxOccurrences) || !equalIntPtr(a.DayOfMonth, b.DayOfMonth) {
		return false
	}
	if !slices.Equal(a.DaysOfWeek, b.DaysOfWeek) {
		return false
	}
	switch {
	case a.EndDate == nil || b.EndDate == nil:
		return a.EndDate == nil && b.EndDate == nil
	default:
		return civilDay(*a.EndDate).Equal(civilDay(*b.EndDate))
	}
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// applyPatch merges patch onto a copy of e.
func applyPatch(e Event, patch EventPatch) Event {
	out := cloneEvent(e)
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.Description != nil {
		out.Description = *patch.Description
	}
	if patch.Date != nil {
		out.Date = *patch.Date
	}
	if patch.Timezone != nil {
		out.Timezone = *patch.Timezone
	}
	if patch.AllDay != nil {
		out.AllDay = *patch.AllDay
	}
	switch {
	case patch.ClearLocation:
		out.Location = nil
	case patch.Location != nil:
		out.Location = cloneString(patch.Location)
	}
	if patch.Category != nil {
		out.Category = *patch.Category
	}
	if patch.Priority != nil {
		out.Priority = *patch.Priority
	}
	if patch.IsRecurring != nil {
		out.IsRecurring = *patch.IsRecurring
		if !out.IsRecurring {
			out.Recurrence = nil
		}
	}
	if patch.Recurrence != nil {
		out.Recurrence = cloneRule(patch.Recurrence)
	}
	switch {
	case patch.ClearReminder:
		out.ReminderMinutes = nil
	case patch.ReminderMinutes != nil:
		out.ReminderMinutes = cloneInt(patch.ReminderMinutes)
	}
	return out
}
