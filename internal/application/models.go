package application

import (
	"time"

	"github.com/example/milestone-calendar/internal/filter"
)

// Event categories.
const (
	CategoryAnniversary = "anniversary"
	CategoryBirthday    = "birthday"
	CategoryDate        = "date"
	CategoryMilestone   = "milestone"
	CategoryOther       = "other"
)

// Event priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Recurrence frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// Audit actions.
const (
	AuditCreated  = "created"
	AuditUpdated  = "updated"
	AuditDeleted  = "deleted"
	AuditRestored = "restored"
)

// Reminder statuses.
const (
	ReminderPending   = "pending"
	ReminderSent      = "sent"
	ReminderFailed    = "failed"
	ReminderCancelled = "cancelled"
)

// Event is a milestone on the shared calendar.
type Event struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Date            time.Time       `json:"date"`
	Timezone        string          `json:"timezone"`
	AllDay          bool            `json:"all_day"`
	Location        *string         `json:"location,omitempty"`
	Category        string          `json:"category"`
	Priority        string          `json:"priority"`
	IsRecurring     bool            `json:"is_recurring"`
	Recurrence      *RecurrenceRule `json:"recurrence,omitempty"`
	ReminderMinutes *int            `json:"reminder_minutes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CreatedBy       string          `json:"created_by"`
	UpdatedBy       string          `json:"updated_by"`
	Version         int             `json:"version"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
}

// RecurrenceRule describes how an event repeats.
type RecurrenceRule struct {
	Frequency      string     `json:"frequency"`
	Interval       int        `json:"interval"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	MaxOccurrences *int       `json:"max_occurrences,omitempty"`
	DaysOfWeek     []int      `json:"days_of_week,omitempty"`
	DayOfMonth     *int       `json:"day_of_month,omitempty"`
}

// EventInput carries the fields supplied when creating an event.
type EventInput struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Date            time.Time       `json:"date"`
	Timezone        string          `json:"timezone"`
	AllDay          bool            `json:"all_day"`
	Location        *string         `json:"location,omitempty"`
	Category        string          `json:"category"`
	Priority        string          `json:"priority"`
	IsRecurring     bool            `json:"is_recurring"`
	Recurrence      *RecurrenceRule `json:"recurrence,omitempty"`
	ReminderMinutes *int            `json:"reminder_minutes,omitempty"`
}

// EventPatch lists optional field changes. Nil pointers leave a field as is.
type EventPatch struct {
	Title           *string         `json:"title,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Date            *time.Time      `json:"date,omitempty"`
	Timezone        *string         `json:"timezone,omitempty"`
	AllDay          *bool           `json:"all_day,omitempty"`
	Location        *string         `json:"location,omitempty"`
	ClearLocation   bool            `json:"clear_location,omitempty"`
	Category        *string         `json:"category,omitempty"`
	Priority        *string         `json:"priority,omitempty"`
	IsRecurring     *bool           `json:"is_recurring,omitempty"`
	Recurrence      *RecurrenceRule `json:"recurrence,omitempty"`
	ReminderMinutes *int            `json:"reminder_minutes,omitempty"`
	ClearReminder   bool            `json:"clear_reminder,omitempty"`
}

// AuditEntry records one successful mutation of an event.
type AuditEntry struct {
	ID            int64          `json:"id"`
	EventID       int64          `json:"event_id"`
	Action        string         `json:"action"`
	ChangedFields []string       `json:"changed_fields"`
	OldValues     map[string]any `json:"old_values,omitempty"`
	NewValues     map[string]any `json:"new_values,omitempty"`
	ChangedBy     string         `json:"changed_by"`
	ChangedAt     time.Time      `json:"changed_at"`
}

// ReminderEntry is one planned notification for an event.
type ReminderEntry struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	FireTime     time.Time `json:"fire_time"`
	LeadMinutes  int       `json:"lead_minutes"`
	OccurrenceAt time.Time `json:"occurrence_at"`
	Channel      string    `json:"channel"`
	Status       string    `json:"status"`
	RetryCount   int       `json:"retry_count"`
	LastError    *string   `json:"last_error,omitempty"`
}

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	ID         string    `json:"occurrence_id"`
	EventID    int64     `json:"event_id"`
	Date       time.Time `json:"date"`
	IsOriginal bool      `json:"is_original"`
	Index      int       `json:"occurrence_index"`
}

// OccurrenceList is the expansion of one event over a window.
type OccurrenceList struct {
	EventID       int64        `json:"event_id"`
	Occurrences   []Occurrence `json:"occurrences"`
	LimitExceeded bool         `json:"limit_exceeded"`
}

// EventQuery is the closed set of list filters.
type EventQuery struct {
	From              *time.Time
	To                *time.Time
	Categories        []string
	Priorities        []string
	Search            string
	Recurring         filter.RecurringMode
	IncludeDeleted    bool
	PastFirst         bool
	Page              int
	PageSize          int
	ExpandOccurrences bool
}

// Page is one page of query results.
type Page struct {
	Events      []Event      `json:"events"`
	Total       int          `json:"total"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// Stats summarises the calendar for dashboards.
type Stats struct {
	Total         int        `json:"total"`
	Upcoming      int        `json:"upcoming"`
	Past          int        `json:"past"`
	Recurring     int        `json:"recurring"`
	ThisMonth     int        `json:"this_month"`
	NextEvent     *Event     `json:"next_event,omitempty"`
	NextEventDate *time.Time `json:"next_event_date,omitempty"`
}

// EventRepositoryFilter narrows listings issued to the event repository.
type EventRepositoryFilter struct {
	IncludeDeleted bool
	From           *time.Time
	To             *time.Time
	Categories     []string
	Priorities     []string
	RecurringOnly  bool
}
