package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/milestone-calendar/internal/application"
)

type capturingEventRepo struct {
	created application.Event
	audit   application.AuditEntry
}

func (c *capturingEventRepo) CreateEvent(_ context.Context, event application.Event, audit application.AuditEntry, _ []application.ReminderEntry) (application.Event, error) {
	event.ID = 1
	event.Version = 1
	c.created, c.audit = event, audit
	return event, nil
}

func (c *capturingEventRepo) GetEvent(context.Context, int64) (application.Event, error) {
	return application.Event{}, application.ErrNotFound
}

func (c *capturingEventRepo) UpdateEvent(_ context.Context, event application.Event, _ application.AuditEntry) (application.Event, error) {
	return event, nil
}

func (c *capturingEventRepo) SoftDeleteEvent(context.Context, int64, string, time.Time, application.AuditEntry) (application.Event, error) {
	return application.Event{}, application.ErrNotFound
}

func (c *capturingEventRepo) RestoreEvent(context.Context, int64, string, time.Time, application.AuditEntry) (application.Event, error) {
	return application.Event{}, application.ErrNotFound
}

func (c *capturingEventRepo) ListEvents(context.Context, application.EventRepositoryFilter) ([]application.Event, error) {
	return nil, nil
}

func (c *capturingEventRepo) ListAudit(context.Context, int64) ([]application.AuditEntry, error) {
	return nil, nil
}

func TestServiceFactoryNewEventService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingEventRepo{}

	svc, err := factory.NewEventService(EventServiceDeps{Events: repo})
	if err != nil {
		t.Fatalf("NewEventService returned error: %v", err)
	}

	fixture := NewEventFixture(WithEventTitle("Moving day"))
	event, err := svc.Create(context.Background(), fixture.Input(), fixture.Actor)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if event.ID != 1 || repo.created.Title != "Moving day" {
		t.Fatalf("unexpected created event %+v", repo.created)
	}
	if !repo.created.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), repo.created.CreatedAt)
	}
	if repo.audit.Action != application.AuditCreated || repo.audit.ChangedBy != "partner-a" {
		t.Fatalf("unexpected audit entry %+v", repo.audit)
	}
}
