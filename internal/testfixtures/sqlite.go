package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/milestone-calendar/internal/persistence"
	"github.com/example/milestone-calendar/internal/persistence/sqlstore"
)

// SQLiteHarness provides repositories backed by a migrated, temporary SQLite
// database.
type SQLiteHarness struct {
	Storage   *sqlstore.Storage
	Events    persistence.EventRepository
	Reminders persistence.ReminderRepository
}

// NewSQLiteHarness opens a fresh database under tb.TempDir and registers its
// cleanup with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	dsn := filepath.Join(tb.TempDir(), "milestones.db")
	storage, err := sqlstore.Open(ctx, sqlstore.DefaultConfig("sqlite", dsn), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &SQLiteHarness{
		Storage:   storage,
		Events:    storage.Events,
		Reminders: storage.Reminders,
	}
}

// Seed stores each fixture and returns the stored rows in order.
func (h *SQLiteHarness) Seed(tb testing.TB, fixtures ...EventFixture) []persistence.Event {
	tb.Helper()

	stored := make([]persistence.Event, 0, len(fixtures))
	for _, f := range fixtures {
		event, err := h.Events.CreateEvent(context.Background(), f.Persistence(), f.CreatedAudit(), nil)
		if err != nil {
			tb.Fatalf("seed %q: %v", f.Title, err)
		}
		stored = append(stored, event)
	}
	return stored
}
