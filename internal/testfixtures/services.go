package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/milestone-calendar/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// a shared controllable clock.
type ServiceFactory struct {
	Clock *Clock
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{Clock: NewClock(time.Time{})}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// EventServiceDeps captures dependencies for constructing an event service.
// Cache defaults to a fresh query cache driven by the factory clock.
type EventServiceDeps struct {
	Events    application.EventRepository
	Reminders application.ReminderScheduler
	Cache     application.QueryCache
	Config    *application.EventServiceConfig
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewEventService builds an event service from deps combined with the
// factory defaults.
func (f *ServiceFactory) NewEventService(deps EventServiceDeps) (*application.EventService, error) {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	cache := deps.Cache
	if cache == nil {
		c, err := application.NewQueryCache(100, now)
		if err != nil {
			return nil, err
		}
		cache = c
	}
	cfg := application.DefaultEventServiceConfig()
	if deps.Config != nil {
		cfg = *deps.Config
	}
	return application.NewEventService(deps.Events, deps.Reminders, cache, cfg, now, deps.Logger), nil
}
