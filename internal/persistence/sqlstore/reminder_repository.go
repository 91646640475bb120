package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/milestone-calendar/internal/persistence"
)

// ReminderRepository implements persistence.ReminderRepository on database/sql.
type ReminderRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

var _ persistence.ReminderRepository = (*ReminderRepository)(nil)

// NewReminderRepository creates a repository bound to pool.
func NewReminderRepository(pool *ConnectionPool) *ReminderRepository {
	return &ReminderRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const reminderColumns = `id, event_id, fire_time, lead_minutes, occurrence_at, channel, status, retry_count, last_error, created_at, updated_at`

// ReplacePending cancels the event's pending entries and inserts reminders in
// their place, returning the stored rows.
func (r *ReminderRepository) ReplacePending(ctx context.Context, eventID int64, reminders []persistence.Reminder, at time.Time) ([]persistence.Reminder, error) {
	var stored []persistence.Reminder
	err := r.retry.WithRetry(ctx, func() error {
		stored = stored[:0]
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := cancelPendingReminders(ctx, r.helper, tx, eventID, at); err != nil {
				return err
			}
			for _, reminder := range reminders {
				reminder.EventID = eventID
				if reminder.Status == "" {
					reminder.Status = persistence.ReminderPending
				}
				if reminder.CreatedAt.IsZero() {
					reminder.CreatedAt = at
				}
				if reminder.UpdatedAt.IsZero() {
					reminder.UpdatedAt = at
				}
				id, err := insertReminder(ctx, r.helper, tx, reminder)
				if err != nil {
					return err
				}
				reminder.ID = id
				stored = append(stored, reminder)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// CancelPending marks every pending entry of the event cancelled.
func (r *ReminderRepository) CancelPending(ctx context.Context, eventID int64, at time.Time) (int, error) {
	var cancelled int
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var err error
			cancelled, err = cancelPendingReminders(ctx, r.helper, tx, eventID, at)
			return err
		})
	})
	return cancelled, err
}

// GetReminder returns a single entry.
func (r *ReminderRepository) GetReminder(ctx context.Context, id int64) (persistence.Reminder, error) {
	var reminder persistence.Reminder
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		row := r.helper.QueryRowTx(ctx, tx, `SELECT `+reminderColumns+` FROM event_reminders WHERE id = ?`, id)
		var err error
		reminder, err = scanReminder(row)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reminder{}, persistence.ErrNotFound
		}
		return persistence.Reminder{}, r.mapper.MapError(err)
	}
	return reminder, nil
}

// UpdateReminder persists the delivery state of an entry. Only pending rows
// are written; a row that has already been sent, failed or cancelled yields
// persistence.ErrReminderNotPending.
func (r *ReminderRepository) UpdateReminder(ctx context.Context, reminder persistence.Reminder) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := r.helper.ExecTx(ctx, tx, `
				UPDATE event_reminders
				SET fire_time = ?, status = ?, retry_count = ?, last_error = ?, updated_at = ?
				WHERE id = ? AND status = ?`,
				formatTime(reminder.FireTime),
				reminder.Status,
				reminder.RetryCount,
				nullableString(reminder.LastError),
				formatTime(reminder.UpdatedAt),
				reminder.ID,
				persistence.ReminderPending,
			)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected > 0 {
				return nil
			}
			var status string
			if err := r.helper.QueryRowTx(ctx, tx, `SELECT status FROM event_reminders WHERE id = ?`, reminder.ID).Scan(&status); err != nil {
				return err
			}
			return persistence.ErrReminderNotPending
		})
	})
}

// ListReminders returns every entry of an event ordered by fire time.
func (r *ReminderRepository) ListReminders(ctx context.Context, eventID int64) ([]persistence.Reminder, error) {
	return r.list(ctx, `SELECT `+reminderColumns+` FROM event_reminders WHERE event_id = ? ORDER BY fire_time ASC, id ASC`, eventID)
}

// ListPending returns all pending entries ordered by fire time.
func (r *ReminderRepository) ListPending(ctx context.Context) ([]persistence.Reminder, error) {
	return r.list(ctx, `SELECT `+reminderColumns+` FROM event_reminders WHERE status = ? ORDER BY fire_time ASC, id ASC`, persistence.ReminderPending)
}

func (r *ReminderRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Reminder, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reminders []persistence.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reminders, nil
}

func insertReminder(ctx context.Context, helper *QueryHelper, tx *sql.Tx, reminder persistence.Reminder) (int64, error) {
	if reminder.Status == "" {
		reminder.Status = persistence.ReminderPending
	}
	var id int64
	err := helper.QueryRowTx(ctx, tx, `
		INSERT INTO event_reminders (event_id, fire_time, lead_minutes, occurrence_at, channel, status, retry_count, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		reminder.EventID,
		formatTime(reminder.FireTime),
		reminder.LeadMinutes,
		occurrenceColumn(reminder.OccurrenceAt),
		reminder.Channel,
		reminder.Status,
		reminder.RetryCount,
		nullableString(reminder.LastError),
		formatTime(reminder.CreatedAt),
		formatTime(reminder.UpdatedAt),
	).Scan(&id)
	if err != nil {
		return 0, NewErrorMapper().MapError(err)
	}
	return id, nil
}

func cancelPendingReminders(ctx context.Context, helper *QueryHelper, tx *sql.Tx, eventID int64, at time.Time) (int, error) {
	result, err := helper.ExecTx(ctx, tx, `
		UPDATE event_reminders
		SET status = ?, updated_at = ?
		WHERE event_id = ? AND status = ?`,
		persistence.ReminderCancelled, formatTime(at), eventID, persistence.ReminderPending,
	)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func scanReminder(row rowScanner) (persistence.Reminder, error) {
	var (
		reminder     persistence.Reminder
		fireTime     string
		occurrenceAt sql.NullString
		lastError    sql.NullString
		createdAt    string
		updatedAt    string
	)
	if err := row.Scan(
		&reminder.ID,
		&reminder.EventID,
		&fireTime,
		&reminder.LeadMinutes,
		&occurrenceAt,
		&reminder.Channel,
		&reminder.Status,
		&reminder.RetryCount,
		&lastError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Reminder{}, err
	}
	var err error
	if reminder.FireTime, err = parseTime(fireTime); err != nil {
		return persistence.Reminder{}, err
	}
	if reminder.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Reminder{}, err
	}
	if reminder.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Reminder{}, err
	}
	occurrence, err := parseNullableTime(occurrenceAt)
	if err != nil {
		return persistence.Reminder{}, err
	}
	if occurrence != nil {
		reminder.OccurrenceAt = *occurrence
	}
	reminder.LastError = stringPtr(lastError)
	return reminder, nil
}

func occurrenceColumn(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return nullableTime(&t)
}
