package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/milestone-calendar/internal/persistence"
)

// EventRepository implements persistence.EventRepository on database/sql.
type EventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

var _ persistence.EventRepository = (*EventRepository)(nil)

// NewEventRepository creates a repository bound to pool.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

func (r *EventRepository) eventColumns() string {
	return `id, title, description, event_date, timezone, all_day, location, category, priority,
		is_recurring, ` + r.pool.Dialect().JSONColumn("recurrence_config") + `, reminder_minutes,
		created_at, updated_at, created_by, updated_by, version, deleted_at`
}

// CreateEvent inserts the event at version 1 together with its audit entry
// and initial reminders.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event, audit persistence.AuditEntry, reminders []persistence.Reminder) (persistence.Event, error) {
	recurrence, err := persistence.EncodeRecurrenceConfig(event.Recurrence)
	if err != nil {
		return persistence.Event{}, err
	}
	if event.Timezone == "" {
		event.Timezone = "UTC"
	}
	event.Version = 1
	event.DeletedAt = nil

	var created persistence.Event
	err = r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var id int64
			err := r.helper.QueryRowTx(ctx, tx, `
				INSERT INTO events (title, description, event_date, timezone, all_day, location, category, priority,
					is_recurring, recurrence_config, reminder_minutes, created_at, updated_at, created_by, updated_by, version)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
				RETURNING id`,
				event.Title,
				event.Description,
				formatTime(event.Date),
				event.Timezone,
				event.AllDay,
				nullableString(event.Location),
				event.Category,
				event.Priority,
				event.IsRecurring,
				nullableString(recurrence),
				nullableInt(event.ReminderMinutes),
				formatTime(event.CreatedAt),
				formatTime(event.UpdatedAt),
				event.CreatedBy,
				event.UpdatedBy,
			).Scan(&id)
			if err != nil {
				return r.mapper.MapError(err)
			}

			audit.EventID = id
			if err := r.insertAudit(ctx, tx, audit); err != nil {
				return err
			}
			for _, reminder := range reminders {
				reminder.EventID = id
				if _, err := insertReminder(ctx, r.helper, tx, reminder); err != nil {
					return err
				}
			}

			created, err = r.getTx(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return created, nil
}

// GetEvent returns the event with id, including soft-deleted ones.
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	var event persistence.Event
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		event, err = r.getTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

func (r *EventRepository) getTx(ctx context.Context, tx *sql.Tx, id int64) (persistence.Event, error) {
	row := r.helper.QueryRowTx(ctx, tx, `SELECT `+r.eventColumns()+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// UpdateEvent overwrites the mutable fields of a live event, increments its
// version and appends the audit entry.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event, audit persistence.AuditEntry) (persistence.Event, error) {
	recurrence, err := persistence.EncodeRecurrenceConfig(event.Recurrence)
	if err != nil {
		return persistence.Event{}, err
	}
	if event.Timezone == "" {
		event.Timezone = "UTC"
	}

	var updated persistence.Event
	err = r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, `
				UPDATE events
				SET title = ?, description = ?, event_date = ?, timezone = ?, all_day = ?, location = ?,
					category = ?, priority = ?, is_recurring = ?, recurrence_config = ?, reminder_minutes = ?,
					updated_at = ?, updated_by = ?, version = version + 1
				WHERE id = ? AND deleted_at IS NULL`,
				event.Title,
				event.Description,
				formatTime(event.Date),
				event.Timezone,
				event.AllDay,
				nullableString(event.Location),
				event.Category,
				event.Priority,
				event.IsRecurring,
				nullableString(recurrence),
				nullableInt(event.ReminderMinutes),
				formatTime(event.UpdatedAt),
				event.UpdatedBy,
				event.ID,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			if err := requireAffected(result); err != nil {
				return err
			}

			audit.EventID = event.ID
			if err := r.insertAudit(ctx, tx, audit); err != nil {
				return err
			}
			updated, err = r.getTx(ctx, tx, event.ID)
			return err
		})
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return updated, nil
}

// SoftDeleteEvent marks a live event deleted, increments its version, appends
// the audit entry and cancels its pending reminders.
func (r *EventRepository) SoftDeleteEvent(ctx context.Context, id int64, actor string, at time.Time, audit persistence.AuditEntry) (persistence.Event, error) {
	var deleted persistence.Event
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			stamp := formatTime(at)
			result, err := r.helper.ExecTx(ctx, tx, `
				UPDATE events
				SET deleted_at = ?, updated_at = ?, updated_by = ?, version = version + 1
				WHERE id = ? AND deleted_at IS NULL`,
				stamp, stamp, actor, id,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			if err := requireAffected(result); err != nil {
				return err
			}

			audit.EventID = id
			if err := r.insertAudit(ctx, tx, audit); err != nil {
				return err
			}
			if _, err := cancelPendingReminders(ctx, r.helper, tx, id, at); err != nil {
				return r.mapper.MapError(err)
			}

			deleted, err = r.getTx(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return deleted, nil
}

// RestoreEvent clears deleted_at on a soft-deleted event, increments its
// version and appends the audit entry.
func (r *EventRepository) RestoreEvent(ctx context.Context, id int64, actor string, at time.Time, audit persistence.AuditEntry) (persistence.Event, error) {
	var restored persistence.Event
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, `
				UPDATE events
				SET deleted_at = NULL, updated_at = ?, updated_by = ?, version = version + 1
				WHERE id = ? AND deleted_at IS NOT NULL`,
				formatTime(at), actor, id,
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			if err := requireAffected(result); err != nil {
				return err
			}

			audit.EventID = id
			if err := r.insertAudit(ctx, tx, audit); err != nil {
				return err
			}
			restored, err = r.getTx(ctx, tx, id)
			return err
		})
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return restored, nil
}

// ListEvents returns events matching the storage-level filter ordered by date then id.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.RecurringOnly {
		clauses = append(clauses, "is_recurring = ?")
		args = append(args, true)
	}
	switch {
	case filter.From != nil && filter.To != nil:
		clauses = append(clauses, "((is_recurring = ? AND event_date <= ?) OR (event_date >= ? AND event_date <= ?))")
		args = append(args, true, formatTime(*filter.To), formatTime(*filter.From), formatTime(*filter.To))
	case filter.From != nil:
		clauses = append(clauses, "(is_recurring = ? OR event_date >= ?)")
		args = append(args, true, formatTime(*filter.From))
	case filter.To != nil:
		clauses = append(clauses, "event_date <= ?")
		args = append(args, formatTime(*filter.To))
	}
	if len(filter.Categories) > 0 {
		clauses = append(clauses, "category IN ("+Placeholders(len(filter.Categories))+")")
		for _, c := range filter.Categories {
			args = append(args, c)
		}
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, "priority IN ("+Placeholders(len(filter.Priorities))+")")
		for _, p := range filter.Priorities {
			args = append(args, p)
		}
	}

	query := `SELECT ` + r.eventColumns() + ` FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY event_date ASC, id ASC"

	var events []persistence.Event
	err := r.retry.WithRetry(ctx, func() error {
		events = events[:0]
		return r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
			rows, err := r.helper.QueryTx(ctx, tx, query, args...)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				event, err := scanEvent(rows)
				if err != nil {
					return err
				}
				events = append(events, event)
			}
			return rows.Err()
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListAudit returns the audit trail of an event, oldest first.
func (r *EventRepository) ListAudit(ctx context.Context, eventID int64) ([]persistence.AuditEntry, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, event_id, action, changed_fields, old_values, new_values, changed_by, changed_at
		FROM event_audit
		WHERE event_id = ?
		ORDER BY id ASC`, eventID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []persistence.AuditEntry
	for rows.Next() {
		var (
			entry     persistence.AuditEntry
			fields    string
			oldValues sql.NullString
			newValues sql.NullString
			changedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.Action, &fields, &oldValues, &newValues, &entry.ChangedBy, &changedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if err := json.Unmarshal([]byte(fields), &entry.ChangedFields); err != nil {
			return nil, fmt.Errorf("decode changed_fields for audit %d: %w", entry.ID, err)
		}
		if oldValues.Valid {
			if err := json.Unmarshal([]byte(oldValues.String), &entry.OldValues); err != nil {
				return nil, fmt.Errorf("decode old_values for audit %d: %w", entry.ID, err)
			}
		}
		if newValues.Valid {
			if err := json.Unmarshal([]byte(newValues.String), &entry.NewValues); err != nil {
				return nil, fmt.Errorf("decode new_values for audit %d: %w", entry.ID, err)
			}
		}
		if entry.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return entries, nil
}

func (r *EventRepository) insertAudit(ctx context.Context, tx *sql.Tx, audit persistence.AuditEntry) error {
	fields := audit.ChangedFields
	if fields == nil {
		fields = []string{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode changed_fields: %w", err)
	}
	var oldValues, newValues sql.NullString
	if audit.OldValues != nil {
		if oldValues, err = encodeJSON(audit.OldValues); err != nil {
			return fmt.Errorf("encode old_values: %w", err)
		}
	}
	if audit.NewValues != nil {
		if newValues, err = encodeJSON(audit.NewValues); err != nil {
			return fmt.Errorf("encode new_values: %w", err)
		}
	}

	_, err = r.helper.ExecTx(ctx, tx, `
		INSERT INTO event_audit (event_id, action, changed_fields, old_values, new_values, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		audit.EventID,
		audit.Action,
		string(fieldsJSON),
		oldValues,
		newValues,
		audit.ChangedBy,
		formatTime(audit.ChangedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event           persistence.Event
		date            string
		location        sql.NullString
		recurrence      sql.NullString
		reminderMinutes sql.NullInt64
		createdAt       string
		updatedAt       string
		deletedAt       sql.NullString
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&date,
		&event.Timezone,
		&event.AllDay,
		&location,
		&event.Category,
		&event.Priority,
		&event.IsRecurring,
		&recurrence,
		&reminderMinutes,
		&createdAt,
		&updatedAt,
		&event.CreatedBy,
		&event.UpdatedBy,
		&event.Version,
		&deletedAt,
	)
	if err != nil {
		return persistence.Event{}, err
	}

	if event.Date, err = parseTime(date); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, err
	}
	if event.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return persistence.Event{}, err
	}
	event.Location = stringPtr(location)
	event.ReminderMinutes = intPtr(reminderMinutes)

	if recurrence.Valid && recurrence.String != "" {
		cfg, err := persistence.DecodeRecurrenceConfig(recurrence.String)
		if err != nil {
			return persistence.Event{}, fmt.Errorf("event %d: %w", event.ID, err)
		}
		event.Recurrence = cfg
	}
	return event, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
