package application

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/milestone-calendar/internal/filter"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxLocationLength    = 500
	minInterval          = 1
	maxInterval          = 365
	maxOccurrencesLimit  = 10000
	maxReminderMinutes   = 40320
)

var (
	validCategories = map[string]struct{}{
		CategoryAnniversary: {},
		CategoryBirthday:    {},
		CategoryDate:        {},
		CategoryMilestone:   {},
		CategoryOther:       {},
	}
	validPriorities = map[string]struct{}{
		PriorityLow:    {},
		PriorityMedium: {},
		PriorityHigh:   {},
	}
)

func validateActor(actor string, vErr *ValidationError) {
	if strings.TrimSpace(actor) == "" {
		vErr.add("actor", "actor is required")
	}
}

// validateEvent checks a fully merged event before it is written.
func validateEvent(e Event, vErr *ValidationError) {
	title := strings.TrimSpace(e.Title)
	switch {
	case title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	if utf8.RuneCountInString(e.Description) > maxDescriptionLength {
		vErr.add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	if e.Location != nil && utf8.RuneCountInString(*e.Location) > maxLocationLength {
		vErr.add("location", fmt.Sprintf("location must be at most %d characters", maxLocationLength))
	}

	if e.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if e.Timezone != "" {
		if _, err := time.LoadLocation(e.Timezone); err != nil {
			vErr.add("timezone", "timezone is not a known IANA zone")
		}
	}

	if _, ok := validCategories[e.Category]; !ok {
		vErr.add("category", "category must be one of anniversary, birthday, date, milestone, other")
	}
	if _, ok := validPriorities[e.Priority]; !ok {
		vErr.add("priority", "priority must be one of low, medium, high")
	}

	if e.ReminderMinutes != nil && (*e.ReminderMinutes < 0 || *e.ReminderMinutes > maxReminderMinutes) {
		vErr.add("reminder_minutes", fmt.Sprintf("reminder_minutes must be between 0 and %d", maxReminderMinutes))
	}

	switch {
	case e.IsRecurring && e.Recurrence == nil:
		vErr.add("recurrence", "recurrence is required for recurring events")
	case !e.IsRecurring && e.Recurrence != nil:
		vErr.add("recurrence", "recurrence is only allowed for recurring events")
	case e.Recurrence != nil:
		validateRule(*e.Recurrence, e.Date, vErr)
	}
}

func validateRule(rule RecurrenceRule, anchor time.Time, vErr *ValidationError) {
	switch rule.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		vErr.add("recurrence.frequency", "frequency must be one of daily, weekly, monthly, yearly")
	}

	if rule.Interval < minInterval || rule.Interval > maxInterval {
		vErr.add("recurrence.interval", fmt.Sprintf("interval must be between %d and %d", minInterval, maxInterval))
	}

	if len(rule.DaysOfWeek) > 0 {
		if rule.Frequency != FrequencyWeekly {
			vErr.add("recurrence.days_of_week", "days_of_week is only allowed for weekly rules")
		}
		for _, day := range rule.DaysOfWeek {
			if day < 0 || day > 6 {
				vErr.add("recurrence.days_of_week", "days_of_week entries must be between 0 and 6")
				break
			}
		}
	}

	if rule.DayOfMonth != nil {
		if rule.Frequency != FrequencyMonthly {
			vErr.add("recurrence.day_of_month", "day_of_month is only allowed for monthly rules")
		} else if *rule.DayOfMonth < 1 || *rule.DayOfMonth > 31 {
			vErr.add("recurrence.day_of_month", "day_of_month must be between 1 and 31")
		}
	}

	if rule.MaxOccurrences != nil && (*rule.MaxOccurrences < 1 || *rule.MaxOccurrences > maxOccurrencesLimit) {
		vErr.add("recurrence.max_occurrences", fmt.Sprintf("max_occurrences must be between 1 and %d", maxOccurrencesLimit))
	}

	if rule.EndDate != nil && !anchor.IsZero() {
		end := civilDay(*rule.EndDate)
		start := civilDay(anchor)
		if end.Before(start) {
			vErr.add("recurrence.end_date", "end_date must not precede the event date")
		}
	}
}

func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// validateQuery normalises paging and checks the closed filter set.
func validateQuery(q EventQuery) (EventQuery, *ValidationError) {
	vErr := &ValidationError{}

	if q.Page < 0 {
		vErr.add("page", "page must be at least 1")
	}
	if q.PageSize < 0 || q.PageSize > filter.MaxPageSize {
		vErr.add("page_size", fmt.Sprintf("page_size must be between 1 and %d", filter.MaxPageSize))
	}
	q.Page, q.PageSize = filter.NormalizePage(q.Page, q.PageSize)

	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		vErr.add("to", "to must not precede from")
	}
	for _, c := range q.Categories {
		if _, ok := validCategories[c]; !ok {
			vErr.add("category", fmt.Sprintf("unknown category %q", c))
			break
		}
	}
	for _, p := range q.Priorities {
		if _, ok := validPriorities[p]; !ok {
			vErr.add("priority", fmt.Sprintf("unknown priority %q", p))
			break
		}
	}
	switch q.Recurring {
	case filter.RecurringInclude, filter.RecurringExclude, filter.RecurringOnly:
	default:
		vErr.add("recurring", "recurring must be true, false or only")
	}

	if vErr.HasErrors() {
		return q, vErr
	}
	return q, nil
}
