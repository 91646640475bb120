package application

import "time"

// cloneCached deep copies values held by the query cache.
func cloneCached(value any) any {
	switch v := value.(type) {
	case Page:
		return clonePage(v)
	case Stats:
		return cloneStats(v)
	case []AuditEntry:
		return cloneAuditEntries(v)
	default:
		return value
	}
}

func clonePage(p Page) Page {
	out := p
	out.Events = cloneEvents(p.Events)
	if p.Occurrences != nil {
		out.Occurrences = append([]Occurrence(nil), p.Occurrences...)
	}
	if p.Warnings != nil {
		out.Warnings = append([]string(nil), p.Warnings...)
	}
	return out
}

func cloneStats(s Stats) Stats {
	out := s
	if s.NextEvent != nil {
		next := cloneEvent(*s.NextEvent)
		out.NextEvent = &next
	}
	out.NextEventDate = cloneTime(s.NextEventDate)
	return out
}

func cloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = cloneEvent(e)
	}
	return out
}

func cloneEvent(e Event) Event {
	out := e
	out.Location = cloneString(e.Location)
	out.ReminderMinutes = cloneInt(e.ReminderMinutes)
	out.DeletedAt = cloneTime(e.DeletedAt)
	out.Recurrence = cloneRule(e.Recurrence)
	return out
}

func cloneRule(r *RecurrenceRule) *RecurrenceRule {
	if r == nil {
		return nil
	}
	out := *r
	out.EndDate = cloneTime(r.EndDate)
	out.MaxOccurrences = cloneInt(r.MaxOccurrences)
	out.DayOfMonth = cloneInt(r.DayOfMonth)
	if r.DaysOfWeek != nil {
		out.DaysOfWeek = append([]int(nil), r.DaysOfWeek...)
	}
	return &out
}

func cloneAuditEntries(entries []AuditEntry) []AuditEntry {
	if entries == nil {
		return nil
	}
	out := make([]AuditEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		if entry.ChangedFields != nil {
			out[i].ChangedFields = append([]string(nil), entry.ChangedFields...)
		}
		out[i].OldValues = cloneValueMap(entry.OldValues)
		out[i].NewValues = cloneValueMap(entry.NewValues)
	}
	return out
}

func cloneValueMap(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneValueMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []int:
		return append([]int(nil), typed...)
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
