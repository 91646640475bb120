package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"path"

	"github.com/example/milestone-calendar/internal/persistence/sqlstore/migration"
)

//go:embed migrations
var migrationFiles embed.FS

// Storage bundles the pool with the repositories built on it.
type Storage struct {
	pool      *ConnectionPool
	logger    *slog.Logger
	Events    *EventRepository
	Reminders *ReminderRepository
}

// Open connects to the configured database and constructs the repositories.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:      pool,
		logger:    logger,
		Events:    NewEventRepository(pool),
		Reminders: NewReminderRepository(pool),
	}, nil
}

// Migrate applies the embedded schema for the storage dialect.
func (s *Storage) Migrate(ctx context.Context) error {
	dialect := s.pool.Dialect()
	scanner := migration.NewScanner(migrationFiles, path.Join("migrations", dialect.Name))
	executor := migration.NewExecutor(s.pool.DB(), dialect.Rebind)
	if err := migration.NewManager(scanner, executor, s.logger).Run(ctx); err != nil {
		return fmt.Errorf("migrate %s schema: %w", dialect.Name, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connections.
func (s *Storage) Close() error {
	return s.pool.Close()
}
