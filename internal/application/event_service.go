package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/milestone-calendar/internal/filter"
	"github.com/example/milestone-calendar/internal/persistence"
	"github.com/example/milestone-calendar/internal/querycache"
	"github.com/example/milestone-calendar/internal/recurrence"
)

// EventRepository captures the persistence interactions needed by the service.
// Mutations are transactional: the row, its audit entry and any reminder rows
// are written together or not at all.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event, audit AuditEntry, reminders []ReminderEntry) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	UpdateEvent(ctx context.Context, event Event, audit AuditEntry) (Event, error)
	SoftDeleteEvent(ctx context.Context, id int64, actor string, at time.Time, audit AuditEntry) (Event, error)
	RestoreEvent(ctx context.Context, id int64, actor string, at time.Time, audit AuditEntry) (Event, error)
	ListEvents(ctx context.Context, filter EventRepositoryFilter) ([]Event, error)
	ListAudit(ctx context.Context, eventID int64) ([]AuditEntry, error)
}

// ReminderScheduler maintains the reminder plan of events.
type ReminderScheduler interface {
	Schedule(ctx context.Context, event Event) error
	Clear(ctx context.Context, eventID int64) error
	List(ctx context.Context, eventID int64) ([]ReminderEntry, error)
}

// QueryCache memoises read results. Readers capture Generation before
// loading and store with SetIfGeneration, so a result loaded before an
// invalidation is never cached after it.
type QueryCache interface {
	Get(key string) (any, bool)
	Generation() uint64
	SetIfGeneration(key string, value any, ttl time.Duration, gen uint64) bool
	Invalidate(substring string) int
}

// EventServiceConfig tunes caching and reminder defaults.
type EventServiceConfig struct {
	ListTTL    time.Duration
	StatsTTL   time.Duration
	HistoryTTL time.Duration
	// ReminderChannel names the channel of the reminder written with a new event.
	ReminderChannel string
	// Location partitions "this month" in Stats.
	Location *time.Location
	// DefaultTimezone is applied to events created without one.
	DefaultTimezone string
}

// DefaultEventServiceConfig returns the stock TTLs and channel.
func DefaultEventServiceConfig() EventServiceConfig {
	return EventServiceConfig{
		ListTTL:         5 * time.Minute,
		StatsTTL:        time.Minute,
		HistoryTTL:      30 * time.Minute,
		ReminderChannel: "websocket",
		Location:        time.UTC,
		DefaultTimezone: "UTC",
	}
}

// NewQueryCache builds the cache the service expects, with deep copies of its values.
func NewQueryCache(capacity int, now func() time.Time) (*querycache.Cache, error) {
	return querycache.New(querycache.Options{Capacity: capacity, Now: now, Clone: cloneCached})
}

const eventServiceName = "EventService"

// EventService orchestrates validation, persistence, caching and reminder
// planning for events.
type EventService struct {
	events    EventRepository
	reminders ReminderScheduler
	cache     QueryCache
	engine    *recurrence.Engine
	cfg       EventServiceConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewEventService wires dependencies for event operations. The cache and
// reminder scheduler are optional.
func NewEventService(events EventRepository, reminders ReminderScheduler, cache QueryCache, cfg EventServiceConfig, now func() time.Time, logger *slog.Logger) *EventService {
	defaults := DefaultEventServiceConfig()
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = defaults.ListTTL
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = defaults.StatsTTL
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = defaults.HistoryTTL
	}
	if cfg.ReminderChannel == "" {
		cfg.ReminderChannel = defaults.ReminderChannel
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = defaults.DefaultTimezone
	}
	if now == nil {
		now = time.Now
	}
	logger = defaultLogger(logger)
	return &EventService{
		events:    events,
		reminders: reminders,
		cache:     cache,
		engine:    recurrence.NewEngine(logger),
		cfg:       cfg,
		now:       now,
		logger:    logger,
	}
}

// Create validates the input and stores a new event at version 1 with its
// audit entry and, when reminder_minutes is set, its first reminder.
func (s *EventService) Create(ctx context.Context, input EventInput, actor string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "Create", "actor", actor)

	now := s.now()
	event := s.normalize(Event{
		Title:           input.Title,
		Description:     input.Description,
		Date:            input.Date,
		Timezone:        input.Timezone,
		AllDay:          input.AllDay,
		Location:        cloneString(input.Location),
		Category:        input.Category,
		Priority:        input.Priority,
		IsRecurring:     input.IsRecurring,
		Recurrence:      cloneRule(input.Recurrence),
		ReminderMinutes: cloneInt(input.ReminderMinutes),
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       actor,
		UpdatedBy:       actor,
	})

	vErr := &ValidationError{}
	validateActor(actor, vErr)
	validateEvent(event, vErr)
	if vErr.HasErrors() {
		logOutcome(logger, vErr, "create event")
		return Event{}, vErr
	}

	audit := AuditEntry{
		Action:    AuditCreated,
		NewValues: snapshot(event),
		ChangedBy: actor,
		ChangedAt: now,
	}

	created, err := s.events.CreateEvent(context.WithoutCancel(ctx), event, audit, s.initialReminders(event, now))
	if err != nil {
		err = mapEventRepoError("create event", err)
		logOutcome(logger, err, "create event")
		return Event{}, err
	}

	s.invalidate(logger)
	s.replan(ctx, logger, created)
	logOutcome(logger, nil, "event created", "event_id", created.ID)
	return created, nil
}

// Update applies patch to a live event. A patch that changes nothing
// succeeds without a write and returns the stored event.
func (s *EventService) Update(ctx context.Context, id int64, patch EventPatch, actor string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "Update", "actor", actor, "event_id", id)

	vErr := &ValidationError{}
	validateActor(actor, vErr)
	if vErr.HasErrors() {
		logOutcome(logger, vErr, "update event")
		return Event{}, vErr
	}

	existing, err := s.live(ctx, id)
	if err != nil {
		logOutcome(logger, err, "update event")
		return Event{}, err
	}

	merged := s.normalize(applyPatch(existing, patch))
	changed, oldValues, newValues := diffEvents(existing, merged)
	if len(changed) == 0 {
		logger.Debug("update event skipped, nothing changed")
		return existing, nil
	}

	validateEvent(merged, vErr)
	if vErr.HasErrors() {
		logOutcome(logger, vErr, "update event")
		return Event{}, vErr
	}

	now := s.now()
	merged.UpdatedAt = now
	merged.UpdatedBy = actor
	audit := AuditEntry{
		Action:        AuditUpdated,
		ChangedFields: changed,
		OldValues:     oldValues,
		NewValues:     newValues,
		ChangedBy:     actor,
		ChangedAt:     now,
	}

	updated, err := s.events.UpdateEvent(context.WithoutCancel(ctx), merged, audit)
	if err != nil {
		err = mapEventRepoError("update event", err)
		logOutcome(logger, err, "update event")
		return Event{}, err
	}

	s.invalidate(logger)
	s.replan(ctx, logger, updated)
	logOutcome(logger, nil, "event updated", "changed_fields", changed, "version", updated.Version)
	return updated, nil
}

// SoftDelete marks a live event deleted and cancels its pending reminders.
func (s *EventService) SoftDelete(ctx context.Context, id int64, actor string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "SoftDelete", "actor", actor, "event_id", id)

	vErr := &ValidationError{}
	validateActor(actor, vErr)
	if vErr.HasErrors() {
		logOutcome(logger, vErr, "delete event")
		return Event{}, vErr
	}

	existing, err := s.live(ctx, id)
	if err != nil {
		logOutcome(logger, err, "delete event")
		return Event{}, err
	}

	now := s.now()
	audit := AuditEntry{
		Action:    AuditDeleted,
		OldValues: snapshot(existing),
		ChangedBy: actor,
		ChangedAt: now,
	}
	deleted, err := s.events.SoftDeleteEvent(context.WithoutCancel(ctx), id, actor, now, audit)
	if err != nil {
		err = mapEventRepoError("delete event", err)
		logOutcome(logger, err, "delete event")
		return Event{}, err
	}

	s.invalidate(logger)
	if s.reminders != nil {
		if err := s.reminders.Clear(context.WithoutCancel(ctx), id); err != nil {
			logger.Warn("failed to clear reminders", "error", err)
		}
	}
	logOutcome(logger, nil, "event deleted", "version", deleted.Version)
	return deleted, nil
}

// Restore brings a soft-deleted event back. Reminders are not re-planned.
func (s *EventService) Restore(ctx context.Context, id int64, actor string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "Restore", "actor", actor, "event_id", id)

	vErr := &ValidationError{}
	validateActor(actor, vErr)
	if vErr.HasErrors() {
		logOutcome(logger, vErr, "restore event")
		return Event{}, vErr
	}

	now := s.now()
	audit := AuditEntry{
		Action:        AuditRestored,
		ChangedFields: []string{"deleted_at"},
		NewValues:     map[string]any{"deleted_at": nil},
		ChangedBy:     actor,
		ChangedAt:     now,
	}
	restored, err := s.events.RestoreEvent(context.WithoutCancel(ctx), id, actor, now, audit)
	if err != nil {
		err = mapEventRepoError("restore event", err)
		logOutcome(logger, err, "restore event")
		return Event{}, err
	}

	s.invalidate(logger)
	logOutcome(logger, nil, "event restored", "version", restored.Version)
	return restored, nil
}

// Get returns one event. Deleted events are only returned when includeDeleted is set.
func (s *EventService) Get(ctx context.Context, id int64, includeDeleted bool) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if includeDeleted {
		return s.lookup(ctx, id)
	}
	return s.live(ctx, id)
}

// Query lists events matching q, one page at a time.
func (s *EventService) Query(ctx context.Context, q EventQuery) (Page, error) {
	if s == nil {
		return Page{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Page{}, fmt.Errorf("event repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "Query")

	q, vErr := validateQuery(q)
	if vErr != nil {
		logOutcome(logger, vErr, "query events")
		return Page{}, vErr
	}

	// An expanded page without From is windowed from now, which the key
	// does not capture.
	cacheable := !(q.ExpandOccurrences && q.From == nil)
	key := queryCacheKey(q)
	if cacheable {
		if cached, ok := s.cacheGet(key); ok {
			if page, ok := cached.(Page); ok {
				logger.Debug("query served from cache", "cache_key", key)
				return page, nil
			}
		}
	}
	gen := s.cacheGeneration()

	stored, err := s.events.ListEvents(ctx, EventRepositoryFilter{
		IncludeDeleted: q.IncludeDeleted,
		From:           q.From,
		To:             q.To,
		Categories:     q.Categories,
		Priorities:     q.Priorities,
		RecurringOnly:  q.Recurring == filter.RecurringOnly,
	})
	if err != nil {
		err = mapEventRepoError("query events", err)
		logOutcome(logger, err, "query events")
		return Page{}, err
	}

	byID := make(map[int64]Event, len(stored))
	items := make([]filter.Item, 0, len(stored))
	for _, e := range stored {
		byID[e.ID] = e
		items = append(items, toFilterItem(e))
	}

	var warnings []string
	criteria := filter.Criteria{
		IncludeDeleted: q.IncludeDeleted,
		From:           q.From,
		To:             q.To,
		Categories:     q.Categories,
		Priorities:     q.Priorities,
		Search:         q.Search,
		Recurring:      q.Recurring,
		Occurs: func(item filter.Item, from, to time.Time) bool {
			ok, err := s.engine.OccursWithin(SeriesFor(byID[item.ID]), from, to)
			if errors.Is(err, recurrence.ErrCalculationLimit) {
				warnings = append(warnings, fmt.Sprintf("occurrence calculation for event %d was truncated", item.ID))
			}
			return ok
		},
	}
	order := filter.DateAscending
	if q.PastFirst {
		order = filter.DateDescending
	}

	matched := filter.Sort(filter.Apply(items, criteria), order)
	pageItems, total := filter.Paginate(matched, q.Page, q.PageSize)

	page := Page{
		Events:   make([]Event, 0, len(pageItems)),
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	for _, item := range pageItems {
		page.Events = append(page.Events, byID[item.ID])
	}

	if q.ExpandOccurrences {
		from, to := s.expansionWindow(q)
		for _, e := range page.Events {
			if !e.IsRecurring {
				continue
			}
			res, err := s.engine.Occurrences(SeriesFor(e), from, to, recurrence.DefaultMaxResults)
			if errors.Is(err, recurrence.ErrCalculationLimit) {
				warnings = append(warnings, fmt.Sprintf("occurrence calculation for event %d was truncated", e.ID))
			}
			page.Occurrences = append(page.Occurrences, toOccurrences(res.Occurrences)...)
		}
	}
	page.Warnings = warnings

	if cacheable {
		s.cacheSet(logger, key, page, s.cfg.ListTTL, gen)
	}
	logger.Debug("query evaluated", "total", total, "returned", len(page.Events))
	return page, nil
}

// Stats summarises live events relative to now from a single read.
func (s *EventService) Stats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Stats{}, fmt.Errorf("event repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "Stats")

	if cached, ok := s.cacheGet(querycache.StatsKey); ok {
		if stats, ok := cached.(Stats); ok {
			return stats, nil
		}
	}
	gen := s.cacheGeneration()

	stored, err := s.events.ListEvents(ctx, EventRepositoryFilter{})
	if err != nil {
		err = mapEventRepoError("compute stats", err)
		logOutcome(logger, err, "compute stats")
		return Stats{}, err
	}

	now := s.now()
	local := now.In(s.cfg.Location)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, s.cfg.Location)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)

	stats := Stats{Total: len(stored)}
	var nextDate time.Time
	for _, e := range stored {
		if e.IsRecurring {
			stats.Recurring++
		}

		series := SeriesFor(e)
		upcoming, at := s.nextDate(series, e, now)
		if upcoming {
			stats.Upcoming++
			if stats.NextEvent == nil || at.Before(nextDate) ||
				(at.Equal(nextDate) && nextEventBefore(e, *stats.NextEvent)) {
				candidate := e
				stats.NextEvent = &candidate
				nextDate = at
			}
		} else {
			stats.Past++
		}

		if within, _ := s.engine.OccursWithin(series, monthStart, monthEnd); within {
			stats.ThisMonth++
		}
	}
	if stats.NextEvent != nil {
		stats.NextEventDate = &nextDate
	}

	s.cacheSet(logger, querycache.StatsKey, stats, s.cfg.StatsTTL, gen)
	return stats, nil
}

// History returns the audit trail of an event, oldest first. Deleted events
// keep their history readable.
func (s *EventService) History(ctx context.Context, id int64) ([]AuditEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "History", "event_id", id)

	key := querycache.HistoryKey(id)
	if cached, ok := s.cacheGet(key); ok {
		if entries, ok := cached.([]AuditEntry); ok {
			return entries, nil
		}
	}
	gen := s.cacheGeneration()

	if _, err := s.lookup(ctx, id); err != nil {
		logOutcome(logger, err, "read history")
		return nil, err
	}
	entries, err := s.events.ListAudit(ctx, id)
	if err != nil {
		err = mapEventRepoError("read history", err)
		logOutcome(logger, err, "read history")
		return nil, err
	}

	s.cacheSet(logger, key, entries, s.cfg.HistoryTTL, gen)
	return entries, nil
}

// Occurrences expands a live event over [from, to]. When the calculation
// ceiling is hit the partial list is returned together with ErrCalculationLimit.
func (s *EventService) Occurrences(ctx context.Context, id int64, from, to time.Time, limit int) (OccurrenceList, error) {
	if s == nil {
		return OccurrenceList{}, fmt.Errorf("EventService is nil")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "Occurrences", "event_id", id)

	if to.Before(from) {
		vErr := &ValidationError{}
		vErr.add("to", "to must not precede from")
		return OccurrenceList{}, vErr
	}
	event, err := s.live(ctx, id)
	if err != nil {
		logOutcome(logger, err, "expand occurrences")
		return OccurrenceList{}, err
	}

	res, err := s.engine.Occurrences(SeriesFor(event), from, to, limit)
	list := OccurrenceList{
		EventID:       id,
		Occurrences:   toOccurrences(res.Occurrences),
		LimitExceeded: res.LimitExceeded,
	}
	if err != nil {
		if errors.Is(err, recurrence.ErrCalculationLimit) {
			logOutcome(logger, ErrCalculationLimit, "expand occurrences", "returned", len(list.Occurrences))
			return list, ErrCalculationLimit
		}
		return OccurrenceList{}, fmt.Errorf("expand occurrences: %w", err)
	}
	return list, nil
}

// Next returns the first occurrence of a live event strictly after reference,
// or nil when none exists within the lookahead horizon.
func (s *EventService) Next(ctx context.Context, id int64, reference time.Time) (*Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	event, err := s.live(ctx, id)
	if err != nil {
		return nil, err
	}
	occ, ok, err := s.engine.Next(SeriesFor(event), reference)
	if ok {
		out := toOccurrence(occ)
		return &out, nil
	}
	if err != nil && errors.Is(err, recurrence.ErrCalculationLimit) {
		return nil, ErrCalculationLimit
	}
	return nil, nil
}

// ListReminders returns the reminder plan of an event.
func (s *EventService) ListReminders(ctx context.Context, id int64) ([]ReminderEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if _, err := s.lookup(ctx, id); err != nil {
		return nil, err
	}
	if s.reminders == nil {
		return nil, nil
	}
	entries, err := s.reminders.List(ctx, id)
	if err != nil {
		return nil, mapEventRepoError("list reminders", err)
	}
	return entries, nil
}

// Calendar returns every live event, ordered by date, for export.
func (s *EventService) Calendar(ctx context.Context) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}
	events, err := s.events.ListEvents(ctx, EventRepositoryFilter{})
	if err != nil {
		return nil, mapEventRepoError("export calendar", err)
	}
	return events, nil
}

func (s *EventService) live(ctx context.Context, id int64) (Event, error) {
	event, err := s.lookup(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if event.DeletedAt != nil {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (s *EventService) lookup(ctx context.Context, id int64) (Event, error) {
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	if id <= 0 {
		return Event{}, ErrNotFound
	}
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return Event{}, mapEventRepoError("get event", err)
	}
	return event, nil
}

func (s *EventService) normalize(e Event) Event {
	e.Title = strings.TrimSpace(e.Title)
	e.Timezone = strings.TrimSpace(e.Timezone)
	if e.Timezone == "" {
		e.Timezone = s.cfg.DefaultTimezone
	}
	if e.Location != nil {
		trimmed := strings.TrimSpace(*e.Location)
		if trimmed == "" {
			e.Location = nil
		} else {
			e.Location = &trimmed
		}
	}
	return e
}

// initialReminders returns the reminder written in the create transaction:
// one entry reminder_minutes before the next occurrence, if still ahead.
func (s *EventService) initialReminders(e Event, now time.Time) []ReminderEntry {
	if e.ReminderMinutes == nil {
		return nil
	}
	occ, ok, _ := s.engine.NextOnOrAfter(SeriesFor(e), now)
	if !ok {
		return nil
	}
	lead := *e.ReminderMinutes
	fire := occ.Date.Add(-time.Duration(lead) * time.Minute)
	if !fire.After(now) {
		return nil
	}
	return []ReminderEntry{{
		FireTime:     fire,
		LeadMinutes:  lead,
		OccurrenceAt: occ.Date,
		Channel:      s.cfg.ReminderChannel,
		Status:       ReminderPending,
	}}
}

// nextDate reports whether e is still ahead of now and the date it next occurs.
func (s *EventService) nextDate(series recurrence.Series, e Event, now time.Time) (bool, time.Time) {
	if !e.IsRecurring {
		return !e.Date.Before(now), e.Date
	}
	occ, ok, _ := s.engine.NextOnOrAfter(series, now)
	return ok, occ.Date
}

func nextEventBefore(a, b Event) bool {
	if ra, rb := filter.PriorityRank(a.Priority), filter.PriorityRank(b.Priority); ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

func (s *EventService) expansionWindow(q EventQuery) (time.Time, time.Time) {
	from := s.now()
	if q.From != nil {
		from = *q.From
	}
	to := from.AddDate(1, 0, 0)
	if q.To != nil {
		to = *q.To
	}
	return from, to
}

func (s *EventService) replan(ctx context.Context, logger *slog.Logger, e Event) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.Schedule(context.WithoutCancel(ctx), e); err != nil {
		logger.Warn("failed to plan reminders", "event_id", e.ID, "error", err)
	}
}

func (s *EventService) invalidate(logger *slog.Logger) {
	if s.cache == nil {
		return
	}
	removed := s.cache.Invalidate(querycache.Namespace)
	logger.Debug("query cache invalidated", "removed", removed)
}

func (s *EventService) cacheGet(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *EventService) cacheGeneration() uint64 {
	if s.cache == nil {
		return 0
	}
	return s.cache.Generation()
}

func (s *EventService) cacheSet(logger *slog.Logger, key string, value any, ttl time.Duration, gen uint64) {
	if s.cache == nil {
		return
	}
	if !s.cache.SetIfGeneration(key, value, ttl, gen) {
		logger.Debug("query cache store skipped, invalidated during read", "cache_key", key)
	}
}

func queryCacheKey(q EventQuery) string {
	kb := &querycache.KeyBuilder{}
	return kb.
		Time("from", q.From).
		Time("to", q.To).
		List("categories", q.Categories).
		List("priorities", q.Priorities).
		String("search", strings.ToLower(strings.TrimSpace(q.Search))).
		Int("recurring", int(q.Recurring)).
		Bool("include_deleted", q.IncludeDeleted).
		Bool("past_first", q.PastFirst).
		Int("page", q.Page).
		Int("page_size", q.PageSize).
		Bool("expand", q.ExpandOccurrences).
		QueryKey()
}

func mapEventRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
