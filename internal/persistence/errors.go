package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a check constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrCorruptRecurrence is returned when a stored recurrence column fails validation on read.
	ErrCorruptRecurrence = errors.New("persistence: corrupt recurrence config")
	// ErrReminderNotPending is returned when a reminder update finds the entry
	// already sent, failed or cancelled.
	ErrReminderNotPending = errors.New("persistence: reminder is no longer pending")
	// ErrUnavailable marks transient storage failures worth retrying.
	ErrUnavailable = errors.New("persistence: storage unavailable")
)
