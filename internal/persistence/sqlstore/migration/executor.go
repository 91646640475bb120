package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const versionTableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL,
	checksum TEXT,
	execution_time_ms INTEGER
)`

// Executor applies migrations and maintains schema_migrations.
type Executor struct {
	db     *sql.DB
	rebind func(string) string
	now    func() time.Time
}

// NewExecutor creates an executor. rebind rewrites ? placeholders for the
// target dialect and may be nil for SQLite.
func NewExecutor(db *sql.DB, rebind func(string) string) *Executor {
	if rebind == nil {
		rebind = func(q string) string { return q }
	}
	return &Executor{db: db, rebind: rebind, now: time.Now}
}

// InitializeVersionTable creates schema_migrations if needed.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableDDL); err != nil {
		return newError("", "schema_migrations", "create version table", err)
	}
	return nil
}

// Apply runs every statement of m and records it, all in one transaction.
func (e *Executor) Apply(ctx context.Context, m Migration) (time.Duration, error) {
	statements := splitStatements(m.SQL)
	if len(statements) == 0 {
		return 0, newError(m.Version, m.FilePath, "parse SQL", fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newError(m.Version, m.FilePath, "begin transaction", err)
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return 0, newError(m.Version, m.FilePath, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	elapsed := e.now().Sub(started)
	insert := e.rebind(`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, m.Version, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds()); err != nil {
		_ = tx.Rollback()
		return 0, newError(m.Version, m.FilePath, "record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, newError(m.Version, m.FilePath, "commit transaction", err)
	}
	return elapsed, nil
}

// Applied returns the recorded migrations ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, newError("", "schema_migrations", "list applied", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			row       AppliedMigration
			appliedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&row.Version, &appliedAt, &elapsedMS, &row.Checksum); err != nil {
			return nil, newError("", "schema_migrations", "scan applied", err)
		}
		if parsed, err := time.Parse(time.RFC3339, appliedAt); err == nil {
			row.AppliedAt = parsed
		}
		row.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("", "schema_migrations", "iterate applied", err)
	}
	return applied, nil
}

// IsApplied reports whether version has been recorded.
func (e *Executor) IsApplied(ctx context.Context, version string) (bool, error) {
	var one int
	err := e.db.QueryRowContext(ctx, e.rebind(`SELECT 1 FROM schema_migrations WHERE version = ?`), version).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, newError(version, "schema_migrations", "check applied", err)
	}
	return true, nil
}
