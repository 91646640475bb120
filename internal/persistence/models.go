package persistence

import "time"

// Event is the stored form of a calendar event.
type Event struct {
	ID              int64
	Title           string
	Description     string
	Date            time.Time
	Timezone        string
	AllDay          bool
	Location        *string
	Category        string
	Priority        string
	IsRecurring     bool
	Recurrence      *RecurrenceConfig
	ReminderMinutes *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CreatedBy       string
	UpdatedBy       string
	Version         int
	DeletedAt       *time.Time
}

// Audit actions.
const (
	AuditCreated  = "created"
	AuditUpdated  = "updated"
	AuditDeleted  = "deleted"
	AuditRestored = "restored"
)

// AuditEntry is one append-only record of an event mutation.
type AuditEntry struct {
	ID            int64
	EventID       int64
	Action        string
	ChangedFields []string
	OldValues     map[string]any
	NewValues     map[string]any
	ChangedBy     string
	ChangedAt     time.Time
}

// Reminder statuses.
const (
	ReminderPending   = "pending"
	ReminderSent      = "sent"
	ReminderFailed    = "failed"
	ReminderCancelled = "cancelled"
)

// Reminder is one planned notification for an event.
type Reminder struct {
	ID          int64
	EventID     int64
	FireTime    time.Time
	LeadMinutes int
	// OccurrenceAt is the occurrence the entry reminds of. Zero on rows
	// written before the column existed.
	OccurrenceAt time.Time
	Channel      string
	Status       string
	RetryCount   int
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventFilter narrows event listings at the storage level.
//
// From and To bound the anchor date of one-off events. Recurring events are
// only required to start on or before To; callers window them afterwards.
type EventFilter struct {
	IncludeDeleted bool
	From           *time.Time
	To             *time.Time
	Categories     []string
	Priorities     []string
	RecurringOnly  bool
}
