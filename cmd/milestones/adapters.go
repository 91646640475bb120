package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/milestone-calendar/internal/application"
	"github.com/example/milestone-calendar/internal/persistence"
	"github.com/example/milestone-calendar/internal/reminder"
)

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event, audit application.AuditEntry, reminders []application.ReminderEntry) (application.Event, error) {
	planned := make([]persistence.Reminder, 0, len(reminders))
	for _, r := range reminders {
		planned = append(planned, toPersistenceReminder(r, event.CreatedAt))
	}
	stored, err := a.repo.CreateEvent(ctx, toPersistenceEvent(event), toPersistenceAudit(audit), planned)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id int64) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event, audit application.AuditEntry) (application.Event, error) {
	stored, err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event), toPersistenceAudit(audit))
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored)
}

func (a *eventRepositoryAdapter) SoftDeleteEvent(ctx context.Context, id int64, actor string, at time.Time, audit application.AuditEntry) (application.Event, error) {
	stored, err := a.repo.SoftDeleteEvent(ctx, id, actor, at, toPersistenceAudit(audit))
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored)
}

func (a *eventRepositoryAdapter) RestoreEvent(ctx context.Context, id int64, actor string, at time.Time, audit application.AuditEntry) (application.Event, error) {
	stored, err := a.repo.RestoreEvent(ctx, id, actor, at, toPersistenceAudit(audit))
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventRepositoryFilter) ([]application.Event, error) {
	stored, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		IncludeDeleted: filter.IncludeDeleted,
		From:           cloneTime(filter.From),
		To:             cloneTime(filter.To),
		Categories:     append([]string(nil), filter.Categories...),
		Priorities:     append([]string(nil), filter.Priorities...),
		RecurringOnly:  filter.RecurringOnly,
	})
	if err != nil {
		return nil, err
	}
	events := make([]application.Event, 0, len(stored))
	for _, model := range stored {
		event, err := toApplicationEvent(model)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (a *eventRepositoryAdapter) ListAudit(ctx context.Context, eventID int64) ([]application.AuditEntry, error) {
	stored, err := a.repo.ListAudit(ctx, eventID)
	if err != nil {
		return nil, err
	}
	entries := make([]application.AuditEntry, 0, len(stored))
	for _, model := range stored {
		entries = append(entries, application.AuditEntry{
			ID:            model.ID,
			EventID:       model.EventID,
			Action:        model.Action,
			ChangedFields: model.ChangedFields,
			OldValues:     model.OldValues,
			NewValues:     model.NewValues,
			ChangedBy:     model.ChangedBy,
			ChangedAt:     model.ChangedAt,
		})
	}
	return entries, nil
}

// reminderPlanner exposes the reminder scheduler to the event service.
type reminderPlanner struct {
	scheduler *reminder.Scheduler
}

func (p *reminderPlanner) Schedule(ctx context.Context, event application.Event) error {
	return p.scheduler.Schedule(ctx, toReminderEvent(event))
}

func (p *reminderPlanner) Clear(ctx context.Context, eventID int64) error {
	return p.scheduler.Clear(ctx, eventID)
}

func (p *reminderPlanner) List(ctx context.Context, eventID int64) ([]application.ReminderEntry, error) {
	stored, err := p.scheduler.List(ctx, eventID)
	if err != nil {
		return nil, err
	}
	entries := make([]application.ReminderEntry, 0, len(stored))
	for _, model := range stored {
		entries = append(entries, application.ReminderEntry{
			ID:           model.ID,
			EventID:      model.EventID,
			FireTime:     model.FireTime,
			LeadMinutes:  model.LeadMinutes,
			OccurrenceAt: model.OccurrenceAt,
			Channel:      model.Channel,
			Status:       model.Status,
			RetryCount:   model.RetryCount,
			LastError:    cloneString(model.LastError),
		})
	}
	return entries, nil
}

// reminderEventSource resolves events for the scheduler at delivery time,
// including soft-deleted ones so their reminders can be cancelled.
type reminderEventSource struct {
	repo persistence.EventRepository
}

func (s *reminderEventSource) ReminderEvent(ctx context.Context, id int64) (reminder.Event, error) {
	stored, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return reminder.Event{}, reminder.ErrEventNotFound
		}
		return reminder.Event{}, err
	}
	event, err := toApplicationEvent(stored)
	if err != nil {
		return reminder.Event{}, err
	}
	return toReminderEvent(event), nil
}

func toReminderEvent(event application.Event) reminder.Event {
	return reminder.Event{
		ID:              event.ID,
		Title:           event.Title,
		Category:        event.Category,
		Priority:        event.Priority,
		ReminderMinutes: cloneInt(event.ReminderMinutes),
		Deleted:         event.DeletedAt != nil,
		Series:          application.SeriesFor(event),
	}
}

func toApplicationEvent(model persistence.Event) (application.Event, error) {
	event := application.Event{
		ID:              model.ID,
		Title:           model.Title,
		Description:     model.Description,
		Date:            model.Date,
		Timezone:        model.Timezone,
		AllDay:          model.AllDay,
		Location:        cloneString(model.Location),
		Category:        model.Category,
		Priority:        model.Priority,
		IsRecurring:     model.IsRecurring,
		ReminderMinutes: cloneInt(model.ReminderMinutes),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		CreatedBy:       model.CreatedBy,
		UpdatedBy:       model.UpdatedBy,
		Version:         model.Version,
		DeletedAt:       cloneTime(model.DeletedAt),
	}
	if cfg := model.Recurrence; cfg != nil {
		end, err := cfg.EndTime()
		if err != nil {
			return application.Event{}, fmt.Errorf("event %d: %w", model.ID, err)
		}
		event.Recurrence = &application.RecurrenceRule{
			Frequency:      cfg.Frequency,
			Interval:       cfg.Interval,
			EndDate:        end,
			MaxOccurrences: cloneInt(cfg.MaxOccurrences),
			DaysOfWeek:     append([]int(nil), cfg.DaysOfWeek...),
			DayOfMonth:     cloneInt(cfg.DayOfMonth),
		}
	}
	return event, nil
}

func toPersistenceEvent(event application.Event) persistence.Event {
	model := persistence.Event{
		ID:              event.ID,
		Title:           event.Title,
		Description:     event.Description,
		Date:            event.Date,
		Timezone:        event.Timezone,
		AllDay:          event.AllDay,
		Location:        cloneString(event.Location),
		Category:        event.Category,
		Priority:        event.Priority,
		IsRecurring:     event.IsRecurring,
		ReminderMinutes: cloneInt(event.ReminderMinutes),
		CreatedAt:       event.CreatedAt,
		UpdatedAt:       event.UpdatedAt,
		CreatedBy:       event.CreatedBy,
		UpdatedBy:       event.UpdatedBy,
		Version:         event.Version,
		DeletedAt:       cloneTime(event.DeletedAt),
	}
	if rule := event.Recurrence; rule != nil {
		cfg := persistence.NewRecurrenceConfig(rule.Frequency, rule.Interval)
		cfg.SetEndDate(rule.EndDate)
		cfg.MaxOccurrences = cloneInt(rule.MaxOccurrences)
		cfg.DaysOfWeek = append([]int(nil), rule.DaysOfWeek...)
		cfg.DayOfMonth = cloneInt(rule.DayOfMonth)
		model.Recurrence = cfg
	}
	return model
}

func toPersistenceAudit(entry application.AuditEntry) persistence.AuditEntry {
	return persistence.AuditEntry{
		ID:            entry.ID,
		EventID:       entry.EventID,
		Action:        entry.Action,
		ChangedFields: entry.ChangedFields,
		OldValues:     entry.OldValues,
		NewValues:     entry.NewValues,
		ChangedBy:     entry.ChangedBy,
		ChangedAt:     entry.ChangedAt,
	}
}

func toPersistenceReminder(entry application.ReminderEntry, at time.Time) persistence.Reminder {
	status := entry.Status
	if status == "" {
		status = persistence.ReminderPending
	}
	return persistence.Reminder{
		ID:           entry.ID,
		EventID:      entry.EventID,
		FireTime:     entry.FireTime,
		LeadMinutes:  entry.LeadMinutes,
		OccurrenceAt: entry.OccurrenceAt,
		Channel:      entry.Channel,
		Status:       status,
		RetryCount:   entry.RetryCount,
		LastError:    cloneString(entry.LastError),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
