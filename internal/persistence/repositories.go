package persistence

import (
	"context"
	"time"
)

// EventRepository stores events together with their audit trail.
//
// Every mutating method runs in a single transaction that also appends the
// supplied audit entry; the stored version is incremented by the store.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event, audit AuditEntry, reminders []Reminder) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	UpdateEvent(ctx context.Context, event Event, audit AuditEntry) (Event, error)
	SoftDeleteEvent(ctx context.Context, id int64, actor string, at time.Time, audit AuditEntry) (Event, error)
	RestoreEvent(ctx context.Context, id int64, actor string, at time.Time, audit AuditEntry) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	ListAudit(ctx context.Context, eventID int64) ([]AuditEntry, error)
}

// ReminderRepository stores reminder plan entries.
type ReminderRepository interface {
	ReplacePending(ctx context.Context, eventID int64, reminders []Reminder, at time.Time) ([]Reminder, error)
	CancelPending(ctx context.Context, eventID int64, at time.Time) (int, error)
	GetReminder(ctx context.Context, id int64) (Reminder, error)
	UpdateReminder(ctx context.Context, reminder Reminder) error
	ListReminders(ctx context.Context, eventID int64) ([]Reminder, error)
	ListPending(ctx context.Context) ([]Reminder, error)
}
