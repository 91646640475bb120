package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"

	"github.com/example/milestone-calendar/internal/persistence"
)

// Defaults applied by NewScheduler when Config leaves a field unset.
const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = time.Minute
	DefaultMaxBackoff  = 30 * time.Minute
	DefaultSweepSpec   = "@every 1m"
)

// ErrEventNotFound is returned by an EventSource when the event is gone.
var ErrEventNotFound = errors.New("reminder: event not found")

// EventSource resolves the event a reminder belongs to at delivery time.
type EventSource interface {
	ReminderEvent(ctx context.Context, id int64) (Event, error)
}

// Timer is the subset of *time.Timer the scheduler relies on.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a timer that calls f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// inFlight holds a reminder's slot in the timer table while it is being
// delivered, so a sweep cannot arm the same entry twice.
type inFlight struct {
	reminderID int64
}

func (*inFlight) Stop() bool { return false }

// Config tunes planning and delivery.
type Config struct {
	Preferences Preferences
	QuietHours  QuietHours
	// MaxRetries is the number of failed retries tolerated before an entry is
	// marked failed.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// SweepSpec is a robfig/cron schedule for the recovery sweep.
	SweepSpec string
}

// Scheduler keeps one cancellable timer per pending reminder, grouped by event.
type Scheduler struct {
	repo     persistence.ReminderRepository
	events   EventSource
	primary  Channel
	fallback Channel
	planner  *Planner
	cfg      Config
	now      func() time.Time
	after    AfterFunc
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[int64]map[int64]Timer

	cron *cron.Cron
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAfterFunc overrides how timers are armed.
func WithAfterFunc(after AfterFunc) Option {
	return func(s *Scheduler) {
		if after != nil {
			s.after = after
		}
	}
}

// NewScheduler wires a scheduler. The fallback channel is optional.
func NewScheduler(repo persistence.ReminderRepository, events EventSource, primary, fallback Channel, cfg Config, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if repo == nil {
		return nil, fmt.Errorf("reminder repository is required")
	}
	if primary == nil {
		return nil, fmt.Errorf("primary channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = DefaultSweepSpec
	}

	s := &Scheduler{
		repo:     repo,
		events:   events,
		primary:  primary,
		fallback: fallback,
		planner:  NewPlanner(logger),
		cfg:      cfg,
		now:      time.Now,
		after:    stdAfterFunc,
		logger:   logger.With("component", "reminder_scheduler"),
		timers:   make(map[int64]map[int64]Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Schedule replaces the pending plan of event and arms a timer per entry.
func (s *Scheduler) Schedule(ctx context.Context, event Event) error {
	if event.Deleted {
		return s.Clear(ctx, event.ID)
	}
	now := s.now()
	entries := s.entriesFor(event.ID, s.planner.Plan(event, s.cfg.Preferences, now))

	s.stopTimers(event.ID)
	stored, err := s.repo.ReplacePending(ctx, event.ID, entries, now)
	if err != nil {
		return fmt.Errorf("replace reminders for event %d: %w", event.ID, err)
	}
	for _, entry := range stored {
		s.arm(entry, now)
	}
	s.logger.Debug("reminders planned", "event_id", event.ID, "count", len(stored))
	return nil
}

func (s *Scheduler) entriesFor(eventID int64, planned []Planned) []persistence.Reminder {
	entries := make([]persistence.Reminder, 0, len(planned))
	for _, p := range planned {
		entries = append(entries, persistence.Reminder{
			EventID:      eventID,
			FireTime:     p.FireTime,
			LeadMinutes:  p.LeadMinutes,
			OccurrenceAt: p.Occurrence,
			Channel:      s.primary.Name(),
			Status:       persistence.ReminderPending,
		})
	}
	return entries
}

// Clear cancels the pending entries of an event and stops its timers. It is
// safe to call repeatedly.
func (s *Scheduler) Clear(ctx context.Context, eventID int64) error {
	s.stopTimers(eventID)
	cancelled, err := s.repo.CancelPending(ctx, eventID, s.now())
	if err != nil {
		return fmt.Errorf("cancel reminders for event %d: %w", eventID, err)
	}
	s.logger.Debug("reminders cleared", "event_id", eventID, "cancelled", cancelled)
	return nil
}

// List returns every entry of the event's plan ordered by fire time.
func (s *Scheduler) List(ctx context.Context, eventID int64) ([]persistence.Reminder, error) {
	return s.repo.ListReminders(ctx, eventID)
}

// Armed returns the number of timers currently armed for an event, counting
// entries that are mid-delivery.
func (s *Scheduler) Armed(eventID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[eventID])
}

// Sweep arms pending entries that have no timer, such as those left over from
// a previous process. It returns the number of timers armed.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending reminders: %w", err)
	}
	now := s.now()
	armed := 0
	for _, entry := range pending {
		if s.hasTimer(entry.EventID, entry.ID) {
			continue
		}
		s.arm(entry, now)
		armed++
	}
	if armed > 0 {
		s.logger.Info("reminder sweep armed timers", "armed", armed, "pending", len(pending))
	}
	return armed, nil
}

// Start runs an initial sweep and then sweeps on the configured schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(s.cfg.SweepSpec, func() {
		if _, err := s.Sweep(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("reminder sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder sweep %q: %w", s.cfg.SweepSpec, err)
	}
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Warn("initial reminder sweep failed", "error", err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()
	s.logger.Info("reminder scheduler started", "sweep", s.cfg.SweepSpec, "quiet_hours", s.cfg.QuietHours.String())
	return nil
}

// Stop halts the sweep and every armed timer. Entries stay pending in the
// store and are picked up by the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	for eventID, timers := range s.timers {
		for _, t := range timers {
			t.Stop()
		}
		delete(s.timers, eventID)
	}
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.logger.Info("reminder scheduler stopped")
}

func (s *Scheduler) arm(entry persistence.Reminder, now time.Time) {
	delay := entry.FireTime.Sub(now)
	if delay < 0 {
		delay = 0
	}
	eventID, reminderID := entry.EventID, entry.ID

	s.mu.Lock()
	defer s.mu.Unlock()
	timers, ok := s.timers[eventID]
	if !ok {
		timers = make(map[int64]Timer)
		s.timers[eventID] = timers
	}
	if existing, ok := timers[reminderID]; ok {
		existing.Stop()
	}
	timers[reminderID] = s.after(delay, func() {
		s.fire(eventID, reminderID)
	})
}

func (s *Scheduler) hasTimer(eventID, reminderID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[eventID][reminderID]
	return ok
}

// claim swaps the fired timer for an in-flight marker. It reports false when
// the timer was stopped or replaced before it ran, or the entry is already
// being delivered.
func (s *Scheduler) claim(eventID, reminderID int64) (*inFlight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.timers[eventID][reminderID]
	if !ok {
		return nil, false
	}
	if _, busy := current.(*inFlight); busy {
		return nil, false
	}
	marker := &inFlight{reminderID: reminderID}
	s.timers[eventID][reminderID] = marker
	return marker, true
}

// release drops the marker unless delivery re-armed the entry meanwhile.
func (s *Scheduler) release(eventID, reminderID int64, marker *inFlight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	timers := s.timers[eventID]
	if current, ok := timers[reminderID]; ok && current == Timer(marker) {
		delete(timers, reminderID)
	}
	if len(timers) == 0 {
		delete(s.timers, eventID)
	}
}

func (s *Scheduler) stopTimers(eventID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers[eventID] {
		t.Stop()
	}
	delete(s.timers, eventID)
}

// fire runs on the timer goroutine.
func (s *Scheduler) fire(eventID, reminderID int64) {
	marker, ok := s.claim(eventID, reminderID)
	if !ok {
		return
	}
	defer s.release(eventID, reminderID, marker)
	s.deliver(context.Background(), reminderID)
}

func (s *Scheduler) deliver(ctx context.Context, reminderID int64) {
	logger := s.logger.With("reminder_id", reminderID)

	entry, err := s.repo.GetReminder(ctx, reminderID)
	if err != nil {
		logger.Error("failed to load reminder", "error", err)
		return
	}
	if entry.Status != persistence.ReminderPending {
		return
	}
	logger = logger.With("event_id", entry.EventID)

	now := s.now()
	if s.cfg.QuietHours.Contains(now) {
		entry.FireTime = s.cfg.QuietHours.Release(now)
		entry.UpdatedAt = now
		if err := s.repo.UpdateReminder(ctx, entry); err != nil {
			logUpdateError(logger, "failed to defer reminder", err)
			return
		}
		s.arm(entry, now)
		logger.Info("reminder deferred by quiet hours", "fire_time", entry.FireTime)
		return
	}

	event, err := s.lookup(ctx, entry.EventID)
	if errors.Is(err, ErrEventNotFound) || (err == nil && event.Deleted) {
		entry.Status = persistence.ReminderCancelled
		entry.UpdatedAt = now
		if err := s.repo.UpdateReminder(ctx, entry); err != nil {
			logUpdateError(logger, "failed to cancel orphaned reminder", err)
		}
		return
	}
	if err != nil {
		s.retry(ctx, logger, entry, now, err)
		return
	}

	n := buildNotification(event, entry, now)
	delivered, err := s.send(ctx, logger, n)
	if !delivered {
		if err == nil {
			err = errors.New("no channel accepted the notification")
		}
		if s.retry(ctx, logger, entry, now, err) {
			s.advance(ctx, logger, event, entry, now)
		}
		return
	}

	entry.Status = persistence.ReminderSent
	entry.LastError = nil
	entry.UpdatedAt = now
	if err := s.repo.UpdateReminder(ctx, entry); err != nil {
		logUpdateError(logger, "failed to mark reminder sent", err)
		return
	}
	logger.Info("reminder delivered", "lead_minutes", entry.LeadMinutes)
	s.advance(ctx, logger, event, entry, now)
}

// advance plans the next occurrence of a recurring event once the last
// pending entry of its current plan has been sent or given up on.
func (s *Scheduler) advance(ctx context.Context, logger *slog.Logger, event Event, entry persistence.Reminder, now time.Time) {
	if !event.Series.Recurring || event.Deleted {
		return
	}
	current, err := s.repo.ListReminders(ctx, event.ID)
	if err != nil {
		logger.Error("failed to list reminders for re-planning", "error", err)
		return
	}
	for _, other := range current {
		if other.Status == persistence.ReminderPending {
			return
		}
	}

	reminded := entry.OccurrenceAt
	if reminded.IsZero() {
		reminded = entry.FireTime.Add(time.Duration(entry.LeadMinutes) * time.Minute)
	}
	entries := s.entriesFor(event.ID, s.planner.PlanAfter(event, s.cfg.Preferences, now, reminded))
	if len(entries) == 0 {
		logger.Debug("recurring event has no further reminders")
		return
	}
	stored, err := s.repo.ReplacePending(ctx, event.ID, entries, now)
	if err != nil {
		logger.Error("failed to plan next occurrence", "error", err)
		return
	}
	for _, next := range stored {
		s.arm(next, now)
	}
	logger.Info("reminders planned for next occurrence", "occurrence", stored[0].OccurrenceAt, "count", len(stored))
}

// logUpdateError treats a lost compare-and-set as routine: the entry was
// cancelled or replaced while it was being handled.
func logUpdateError(logger *slog.Logger, msg string, err error) {
	if errors.Is(err, persistence.ErrReminderNotPending) {
		logger.Info("reminder changed during delivery, leaving it as stored")
		return
	}
	logger.Error(msg, "error", err)
}

// send tries the primary channel and then the fallback.
func (s *Scheduler) send(ctx context.Context, logger *slog.Logger, n Notification) (bool, error) {
	ok, err := s.primary.Deliver(ctx, n)
	if ok && err == nil {
		return true, nil
	}
	if err != nil {
		logger.Warn("primary channel failed", "channel", s.primary.Name(), "error", err)
	}
	if s.fallback == nil {
		return false, err
	}
	ok, fbErr := s.fallback.Deliver(ctx, n)
	if ok && fbErr == nil {
		return true, nil
	}
	if fbErr != nil {
		err = fbErr
	}
	return false, err
}

// retry reschedules entry with backoff. It reports true when the entry has
// exhausted its retries and was marked failed.
func (s *Scheduler) retry(ctx context.Context, logger *slog.Logger, entry persistence.Reminder, now time.Time, cause error) bool {
	entry.RetryCount++
	msg := cause.Error()
	entry.LastError = &msg
	entry.UpdatedAt = now

	if entry.RetryCount > s.cfg.MaxRetries {
		entry.Status = persistence.ReminderFailed
		if err := s.repo.UpdateReminder(ctx, entry); err != nil {
			logUpdateError(logger, "failed to mark reminder failed", err)
			return false
		}
		logger.Error("reminder delivery failed", "retry_count", entry.RetryCount, "error", cause)
		return true
	}

	entry.FireTime = now.Add(s.Backoff(entry.RetryCount - 1))
	if err := s.repo.UpdateReminder(ctx, entry); err != nil {
		logUpdateError(logger, "failed to reschedule reminder", err)
		return false
	}
	s.arm(entry, now)
	logger.Warn("reminder delivery will be retried", "retry_count", entry.RetryCount, "fire_time", entry.FireTime, "error", cause)
	return false
}

// Backoff returns the delay before the n-th retry, counting from zero.
func (s *Scheduler) Backoff(n int) time.Duration {
	delay := s.cfg.BaseBackoff
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= s.cfg.MaxBackoff {
			return s.cfg.MaxBackoff
		}
	}
	if delay > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return delay
}

func (s *Scheduler) lookup(ctx context.Context, eventID int64) (Event, error) {
	if s.events == nil {
		return Event{ID: eventID}, nil
	}
	return s.events.ReminderEvent(ctx, eventID)
}

func buildNotification(event Event, entry persistence.Reminder, now time.Time) Notification {
	title := event.Title
	if title == "" {
		title = "Upcoming event"
	}
	body := "today"
	if entry.LeadMinutes > 0 {
		lead := time.Duration(entry.LeadMinutes) * time.Minute
		body = humanize.RelTime(now.Add(lead), now, "ago", "from now")
	}
	return Notification{
		Title: title,
		Body:  title + " " + body,
		Metadata: map[string]string{
			"event_id":     strconv.FormatInt(entry.EventID, 10),
			"reminder_id":  strconv.FormatInt(entry.ID, 10),
			"lead_minutes": strconv.Itoa(entry.LeadMinutes),
			"category":     event.Category,
			"priority":     event.Priority,
		},
	}
}
