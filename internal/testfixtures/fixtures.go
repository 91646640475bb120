package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/milestone-calendar/internal/application"
	"github.com/example/milestone-calendar/internal/persistence"
)

var eventCounter uint64

var referenceTime = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical "now" used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// EventFixture is a deterministic event that can be materialised for
// application, persistence or HTTP tests.
type EventFixture struct {
	ID              int64
	Title           string
	Description     string
	Date            time.Time
	Timezone        string
	AllDay          bool
	Location        *string
	Category        string
	Priority        string
	Recurrence      *application.RecurrenceRule
	ReminderMinutes *int
	Actor           string
	CreatedAt       time.Time
	Version         int
	DeletedAt       *time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one-off medium priority event a month after
// ReferenceTime, with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	fixture := EventFixture{
		Title:     fmt.Sprintf("Milestone %03d", idx),
		Date:      referenceTime.AddDate(0, 1, 0),
		Timezone:  "UTC",
		Category:  application.CategoryMilestone,
		Priority:  application.PriorityMedium,
		Actor:     "partner-a",
		CreatedAt: referenceTime,
		Version:   1,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID sets the identifier used by Application.
func WithEventID(id int64) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

// WithEventTitle overrides the title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

// WithEventDate sets the anchor date and its timezone.
func WithEventDate(date time.Time, timezone string) EventOption {
	return func(f *EventFixture) {
		f.Date = date
		f.Timezone = timezone
	}
}

// WithEventCategory overrides the category.
func WithEventCategory(category string) EventOption {
	return func(f *EventFixture) { f.Category = category }
}

// WithEventPriority overrides the priority.
func WithEventPriority(priority string) EventOption {
	return func(f *EventFixture) { f.Priority = priority }
}

// WithEventLocation sets the location.
func WithEventLocation(location string) EventOption {
	return func(f *EventFixture) { f.Location = &location }
}

// WithAllDay marks the event as all-day.
func WithAllDay() EventOption {
	return func(f *EventFixture) { f.AllDay = true }
}

// WithReminderMinutes sets the per-event reminder lead.
func WithReminderMinutes(minutes int) EventOption {
	return func(f *EventFixture) { f.ReminderMinutes = &minutes }
}

// WithRecurrence makes the event repeat by rule.
func WithRecurrence(rule application.RecurrenceRule) EventOption {
	return func(f *EventFixture) { f.Recurrence = &rule }
}

// Monthly is shorthand for a monthly rule with interval one.
func Monthly() EventOption {
	return WithRecurrence(application.RecurrenceRule{Frequency: application.FrequencyMonthly, Interval: 1})
}

// Yearly is shorthand for a yearly rule with interval one.
func Yearly() EventOption {
	return WithRecurrence(application.RecurrenceRule{Frequency: application.FrequencyYearly, Interval: 1})
}

// WithActor overrides the creating actor.
func WithActor(actor string) EventOption {
	return func(f *EventFixture) { f.Actor = actor }
}

// Deleted marks the fixture soft-deleted at t.
func Deleted(t time.Time) EventOption {
	return func(f *EventFixture) { f.DeletedAt = &t }
}

// Input returns the creation payload for the fixture.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		Timezone:        f.Timezone,
		AllDay:          f.AllDay,
		Location:        f.Location,
		Category:        f.Category,
		Priority:        f.Priority,
		IsRecurring:     f.Recurrence != nil,
		Recurrence:      f.Recurrence,
		ReminderMinutes: f.ReminderMinutes,
	}
}

// Application returns the fixture as a stored application event.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:              f.ID,
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		Timezone:        f.Timezone,
		AllDay:          f.AllDay,
		Location:        f.Location,
		Category:        f.Category,
		Priority:        f.Priority,
		IsRecurring:     f.Recurrence != nil,
		Recurrence:      f.Recurrence,
		ReminderMinutes: f.ReminderMinutes,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
		CreatedBy:       f.Actor,
		UpdatedBy:       f.Actor,
		Version:         f.Version,
		DeletedAt:       f.DeletedAt,
	}
}

// Persistence returns the fixture in its stored form, ready for CreateEvent.
func (f EventFixture) Persistence() persistence.Event {
	event := persistence.Event{
		ID:              f.ID,
		Title:           f.Title,
		Description:     f.Description,
		Date:            f.Date,
		Timezone:        f.Timezone,
		AllDay:          f.AllDay,
		Location:        f.Location,
		Category:        f.Category,
		Priority:        f.Priority,
		IsRecurring:     f.Recurrence != nil,
		ReminderMinutes: f.ReminderMinutes,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
		CreatedBy:       f.Actor,
		UpdatedBy:       f.Actor,
		Version:         f.Version,
		DeletedAt:       f.DeletedAt,
	}
	if rule := f.Recurrence; rule != nil {
		cfg := persistence.NewRecurrenceConfig(rule.Frequency, rule.Interval)
		cfg.SetEndDate(rule.EndDate)
		cfg.MaxOccurrences = rule.MaxOccurrences
		cfg.DaysOfWeek = rule.DaysOfWeek
		cfg.DayOfMonth = rule.DayOfMonth
		event.Recurrence = cfg
	}
	return event
}

// CreatedAudit returns the audit entry that accompanies the fixture's creation.
func (f EventFixture) CreatedAudit() persistence.AuditEntry {
	return persistence.AuditEntry{
		Action:    persistence.AuditCreated,
		ChangedBy: f.Actor,
		ChangedAt: f.CreatedAt,
	}
}
