package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Source lists the available migrations.
type Source interface {
	Scan() ([]Migration, error)
}

// Target applies migrations and reports what was applied.
type Target interface {
	InitializeVersionTable(ctx context.Context) error
	Apply(ctx context.Context, m Migration) (time.Duration, error)
	Applied(ctx context.Context) ([]AppliedMigration, error)
}

// Manager runs pending migrations in version order.
type Manager struct {
	source Source
	target Target
	logger *slog.Logger
}

// NewManager wires a Source and Target. A nil logger falls back to slog.Default.
func NewManager(source Source, target Target, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, target: target, logger: logger.With("component", "migration")}
}

// Run applies every pending migration, stopping at the first failure.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()
	if err := m.target.InitializeVersionTable(ctx); err != nil {
		m.logger.Error("failed to initialize version table", "error", err)
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("schema status", "current_version", status.CurrentVersion, "pending", len(status.Pending))

	for i, mig := range status.Pending {
		logger := m.logger.With("version", mig.Version, "description", mig.Description)
		logger.Info("applying migration", "step", i+1, "of", len(status.Pending))

		elapsed, err := m.target.Apply(ctx, mig)
		if err != nil {
			logger.Error("migration failed", "error", err)
			return newError(mig.Version, mig.FilePath, "execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		logger.Info("migration applied", "duration", elapsed)
	}

	if len(status.Pending) > 0 {
		m.logger.Info("migrations complete", "applied", len(status.Pending), "duration", time.Since(started))
	}
	return nil
}

// Status compares available files with the recorded versions.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	available, err := m.source.Scan()
	if err != nil {
		return Status{}, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.target.Applied(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get applied versions: %w", err)
	}
	if err := validateSequence(available, applied); err != nil {
		m.logger.Error("migration sequence validation failed", "error", err)
		return Status{}, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	current := ""
	maxVersion := -1
	for _, a := range applied {
		v, _ := strconv.Atoi(a.Version)
		appliedByVersion[v] = a
		if v > maxVersion {
			maxVersion = v
			current = a.Version
		}
	}

	status := Status{CurrentVersion: current, Applied: applied}
	for _, mig := range available {
		v, _ := strconv.Atoi(mig.Version)
		if a, ok := appliedByVersion[v]; ok {
			if a.Checksum != "" && mig.Checksum != "" && a.Checksum != mig.Checksum {
				return Status{}, newError(mig.Version, mig.FilePath, "verify checksum", ErrChecksumMismatch)
			}
			continue
		}
		status.Pending = append(status.Pending, mig)
	}
	return status, nil
}

// validateSequence rejects gaps in available versions and applied versions
// without a file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	known := make(map[int]bool, len(available))
	for i, mig := range available {
		v, err := strconv.Atoi(mig.Version)
		if err != nil {
			return newError(mig.Version, mig.FilePath, "validate sequence", fmt.Errorf("%w: version is not numeric", ErrInvalidMigrationFile))
		}
		if i > 0 {
			prev, _ := strconv.Atoi(available[i-1].Version)
			if v != prev+1 {
				return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, prev+1)
			}
		}
		known[v] = true
	}
	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil || !known[v] {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, a.Version)
		}
	}
	return nil
}
