package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/milestone-calendar/internal/filter"
	"github.com/example/milestone-calendar/internal/persistence"
)

type eventRepoStub struct {
	mu        sync.Mutex
	nextID    int64
	events    map[int64]Event
	audit     map[int64][]AuditEntry
	reminders map[int64][]ReminderEntry
	writes    int
	lists     int
	err       error
	// afterList runs once the listing snapshot is taken, outside the lock.
	afterList func()
}

func newEventRepoStub() *eventRepoStub {
	return &eventRepoStub{
		events:    make(map[int64]Event),
		audit:     make(map[int64][]AuditEntry),
		reminders: make(map[int64][]ReminderEntry),
	}
}

func (r *eventRepoStub) CreateEvent(ctx context.Context, event Event, audit AuditEntry, reminders []ReminderEntry) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Event{}, r.err
	}
	r.writes++
	r.nextID++
	event.ID = r.nextID
	event.Version = 1
	r.events[event.ID] = cloneEvent(event)
	audit.EventID = event.ID
	r.audit[event.ID] = append(r.audit[event.ID], audit)
	r.reminders[event.ID] = append(r.reminders[event.ID], reminders...)
	return cloneEvent(event), nil
}

func (r *eventRepoStub) GetEvent(ctx context.Context, id int64) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Event{}, r.err
	}
	event, ok := r.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	return cloneEvent(event), nil
}

func (r *eventRepoStub) UpdateEvent(ctx context.Context, event Event, audit AuditEntry) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Event{}, r.err
	}
	current, ok := r.events[event.ID]
	if !ok || current.DeletedAt != nil {
		return Event{}, persistence.ErrNotFound
	}
	r.writes++
	event.Version = current.Version + 1
	event.CreatedAt, event.CreatedBy = current.CreatedAt, current.CreatedBy
	r.events[event.ID] = cloneEvent(event)
	r.audit[event.ID] = append(r.audit[event.ID], audit)
	return cloneEvent(event), nil
}

func (r *eventRepoStub) SoftDeleteEvent(ctx context.Context, id int64, actor string, at time.Time, audit AuditEntry) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Event{}, r.err
	}
	current, ok := r.events[id]
	if !ok || current.DeletedAt != nil {
		return Event{}, persistence.ErrNotFound
	}
	r.writes++
	current.DeletedAt = &at
	current.Version++
	current.UpdatedBy = actor
	r.events[id] = current
	r.audit[id] = append(r.audit[id], audit)
	for i := range r.reminders[id] {
		if r.reminders[id][i].Status == ReminderPending {
			r.reminders[id][i].Status = ReminderCancelled
		}
	}
	return cloneEvent(current), nil
}

func (r *eventRepoStub) RestoreEvent(ctx context.Context, id int64, actor string, at time.Time, audit AuditEntry) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Event{}, r.err
	}
	current, ok := r.events[id]
	if !ok || current.DeletedAt == nil {
		return Event{}, persistence.ErrNotFound
	}
	r.writes++
	current.DeletedAt = nil
	current.Version++
	current.UpdatedBy = actor
	r.events[id] = current
	r.audit[id] = append(r.audit[id], audit)
	return cloneEvent(current), nil
}

func (r *eventRepoStub) ListEvents(ctx context.Context, f EventRepositoryFilter) ([]Event, error) {
	out, err := r.listEvents(f)
	if r.afterList != nil {
		r.afterList()
	}
	return out, err
}

func (r *eventRepoStub) listEvents(f EventRepositoryFilter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.lists++
	var out []Event
	for _, e := range r.events {
		if e.DeletedAt != nil && !f.IncludeDeleted {
			continue
		}
		if f.RecurringOnly && !e.IsRecurring {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *eventRepoStub) ListAudit(ctx context.Context, eventID int64) ([]AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return cloneAuditEntries(r.audit[eventID]), nil
}

type reminderSchedulerStub struct {
	mu        sync.Mutex
	scheduled []int64
	cleared   []int64
	err       error
	entries   []ReminderEntry
}

func (s *reminderSchedulerStub) Schedule(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, event.ID)
	return s.err
}

func (s *reminderSchedulerStub) Clear(ctx context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, eventID)
	return s.err
}

func (s *reminderSchedulerStub) List(ctx context.Context, eventID int64) ([]ReminderEntry, error) {
	return s.entries, s.err
}

type serviceHarness struct {
	service   *EventService
	repo      *eventRepoStub
	reminders *reminderSchedulerStub
	now       *time.Time
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	current := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }
	cache, err := NewQueryCache(100, now)
	if err != nil {
		t.Fatalf("NewQueryCache returned error: %v", err)
	}
	repo := newEventRepoStub()
	reminders := &reminderSchedulerStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewEventService(repo, reminders, cache, DefaultEventServiceConfig(), now, logger)
	return &serviceHarness{service: service, repo: repo, reminders: reminders, now: &current}
}

func anniversaryInput() EventInput {
	minutes := 60
	return EventInput{
		Title:           "  Wedding anniversary ",
		Description:     "Book the restaurant",
		Date:            time.Date(2025, time.June, 20, 19, 0, 0, 0, time.UTC),
		Category:        CategoryAnniversary,
		Priority:        PriorityHigh,
		ReminderMinutes: &minutes,
	}
}

func TestEventService_CreateValidInput(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	created, err := h.service.Create(context.Background(), anniversaryInput(), "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == 0 || created.Version != 1 {
		t.Fatalf("expected id and version 1, got %+v", created)
	}
	if created.Title != "Wedding anniversary" || created.Timezone != "UTC" {
		t.Fatalf("expected normalised title and default timezone, got %q %q", created.Title, created.Timezone)
	}
	if created.CreatedBy != "alex" || created.UpdatedBy != "alex" {
		t.Fatalf("expected actor recorded, got %+v", created)
	}

	audit := h.repo.audit[created.ID]
	if len(audit) != 1 || audit[0].Action != AuditCreated || audit[0].NewValues["title"] != "Wedding anniversary" {
		t.Fatalf("unexpected audit trail %+v", audit)
	}

	reminders := h.repo.reminders[created.ID]
	if len(reminders) != 1 {
		t.Fatalf("expected initial reminder, got %+v", reminders)
	}
	wantFire := time.Date(2025, time.June, 20, 18, 0, 0, 0, time.UTC)
	if !reminders[0].FireTime.Equal(wantFire) || reminders[0].Channel != "websocket" {
		t.Fatalf("unexpected initial reminder %+v", reminders[0])
	}

	if len(h.reminders.scheduled) != 1 || h.reminders.scheduled[0] != created.ID {
		t.Fatalf("expected reminder plan for the new event, got %v", h.reminders.scheduled)
	}
}

func TestEventService_CreateSkipsReminderInThePast(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	input := anniversaryInput()
	input.Date = time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

	created, err := h.service.Create(context.Background(), input, "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if got := h.repo.reminders[created.ID]; len(got) != 0 {
		t.Fatalf("expected no reminder when the lead time has passed, got %+v", got)
	}
}

func TestEventService_CreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	long := make([]rune, 201)
	for i := range long {
		long[i] = 'x'
	}
	negative := -5
	badDay := 32

	tests := []struct {
		name   string
		mutate func(*EventInput)
		actor  string
		field  string
	}{
		{name: "missing actor", mutate: func(*EventInput) {}, actor: "", field: "actor"},
		{name: "blank title", mutate: func(in *EventInput) { in.Title = "   " }, actor: "alex", field: "title"},
		{name: "long title", mutate: func(in *EventInput) { in.Title = string(long) }, actor: "alex", field: "title"},
		{name: "missing date", mutate: func(in *EventInput) { in.Date = time.Time{} }, actor: "alex", field: "date"},
		{name: "unknown timezone", mutate: func(in *EventInput) { in.Timezone = "Mars/Olympus" }, actor: "alex", field: "timezone"},
		{name: "category", mutate: func(in *EventInput) { in.Category = "holiday" }, actor: "alex", field: "category"},
		{name: "priority", mutate: func(in *EventInput) { in.Priority = "urgent" }, actor: "alex", field: "priority"},
		{name: "reminder minutes", mutate: func(in *EventInput) { in.ReminderMinutes = &negative }, actor: "alex", field: "reminder_minutes"},
		{name: "recurring without rule", mutate: func(in *EventInput) { in.IsRecurring = true }, actor: "alex", field: "recurrence"},
		{
			name: "interval 400",
			mutate: func(in *EventInput) {
				in.IsRecurring = true
				in.Recurrence = &RecurrenceRule{Frequency: FrequencyDaily, Interval: 400}
			},
			actor: "alex",
			field: "recurrence.interval",
		},
		{
			name: "day of month",
			mutate: func(in *EventInput) {
				in.IsRecurring = true
				in.Recurrence = &RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, DayOfMonth: &badDay}
			},
			actor: "alex",
			field: "recurrence.day_of_month",
		},
		{
			name: "end before anchor",
			mutate: func(in *EventInput) {
				end := in.Date.AddDate(0, 0, -1)
				in.IsRecurring = true
				in.Recurrence = &RecurrenceRule{Frequency: FrequencyYearly, Interval: 1, EndDate: &end}
			},
			actor: "alex",
			field: "recurrence.end_date",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newServiceHarness(t)
			input := anniversaryInput()
			tt.mutate(&input)

			_, err := h.service.Create(context.Background(), input, tt.actor)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tt.field]; !ok {
				t.Fatalf("expected field %q in %v", tt.field, vErr.FieldErrors)
			}
			if h.repo.writes != 0 {
				t.Fatalf("expected nothing persisted, got %d writes", h.repo.writes)
			}
		})
	}
}

func TestEventService_UpdateWithoutChangesSkipsWrite(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	created, err := h.service.Create(ctx, anniversaryInput(), "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	sameTitle := "Wedding anniversary "
	sameDate := created.Date
	got, err := h.service.Update(ctx, created.ID, EventPatch{Title: &sameTitle, Date: &sameDate}, "sam")
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got.Version != 1 || h.repo.writes != 1 {
		t.Fatalf("expected no write for identical patch, version=%d writes=%d", got.Version, h.repo.writes)
	}
	if len(h.repo.audit[created.ID]) != 1 {
		t.Fatalf("expected no audit entry for identical patch")
	}
}

func TestEventService_UpdateRecordsDiff(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	created, err := h.service.Create(ctx, anniversaryInput(), "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	title := "Tenth anniversary"
	priority := PriorityMedium
	updated, err := h.service.Update(ctx, created.ID, EventPatch{Title: &title, Priority: &priority, ClearReminder: true}, "sam")
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Version != 2 || updated.UpdatedBy != "sam" || updated.ReminderMinutes != nil {
		t.Fatalf("unexpected updated event %+v", updated)
	}

	audit := h.repo.audit[created.ID]
	last := audit[len(audit)-1]
	want := []string{"title", "priority", "reminder_minutes"}
	if fmt.Sprint(last.ChangedFields) != fmt.Sprint(want) {
		t.Fatalf("expected changed fields %v, got %v", want, last.ChangedFields)
	}
	if last.OldValues["title"] != "Wedding anniversary" || last.NewValues["title"] != title {
		t.Fatalf("unexpected audit values old=%v new=%v", last.OldValues, last.NewValues)
	}
	if last.OldValues["reminder_minutes"] != 60 || last.NewValues["reminder_minutes"] != nil {
		t.Fatalf("unexpected reminder audit values old=%v new=%v", last.OldValues, last.NewValues)
	}
	if len(h.reminders.scheduled) != 2 {
		t.Fatalf("expected reminders re-planned after update, got %v", h.reminders.scheduled)
	}
}

func TestEventService_UpdateValidatesMergedEvent(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	created, err := h.service.Create(ctx, anniversaryInput(), "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	recurring := true
	_, err = h.service.Update(ctx, created.ID, EventPatch{IsRecurring: &recurring}, "sam")
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["recurrence"] == "" {
		t.Fatalf("expected recurrence validation error, got %v", err)
	}

	if _, err := h.service.Update(ctx, 999, EventPatch{}, "sam"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing event, got %v", err)
	}
}

func TestEventService_DeleteRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	created, err := h.service.Create(ctx, anniversaryInput(), "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	deleted, err := h.service.SoftDelete(ctx, created.ID, "sam")
	if err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}
	if deleted.DeletedAt == nil {
		t.Fatalf("expected deleted_at to be set")
	}
	if len(h.reminders.cleared) != 1 || h.reminders.cleared[0] != created.ID {
		t.Fatalf("expected reminder timers cleared, got %v", h.reminders.cleared)
	}
	if h.repo.reminders[created.ID][0].Status != ReminderCancelled {
		t.Fatalf("expected pending reminders cancelled with the delete")
	}

	if _, err := h.service.Get(ctx, created.ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted event hidden, got %v", err)
	}
	if _, err := h.service.Get(ctx, created.ID, true); err != nil {
		t.Fatalf("expected deleted event addressable, got %v", err)
	}
	if _, err := h.service.SoftDelete(ctx, created.ID, "sam"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	title := "edit while deleted"
	if _, err := h.service.Update(ctx, created.ID, EventPatch{Title: &title}, "sam"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a deleted event, got %v", err)
	}

	restored, err := h.service.Restore(ctx, created.ID, "alex")
	if err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if restored.DeletedAt != nil || restored.Version != created.Version+2 {
		t.Fatalf("expected live event at version %d, got %+v", created.Version+2, restored)
	}
	if len(h.reminders.scheduled) != 1 {
		t.Fatalf("expected restore not to re-plan reminders")
	}
	if _, err := h.service.Restore(ctx, created.ID, "alex"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound restoring a live event, got %v", err)
	}

	history, err := h.service.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	actions := make([]string, len(history))
	for i, entry := range history {
		actions[i] = entry.Action
	}
	if fmt.Sprint(actions) != fmt.Sprint([]string{AuditCreated, AuditDeleted, AuditRestored}) {
		t.Fatalf("unexpected audit actions %v", actions)
	}
	if history[1].OldValues["title"] != "Wedding anniversary" {
		t.Fatalf("expected pre-delete snapshot, got %v", history[1].OldValues)
	}
}

func TestEventService_QueryReflectsEveryWrite(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	query := EventQuery{Categories: []string{CategoryAnniversary}, Search: "anniversary"}

	page, err := h.service.Query(ctx, query)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected empty calendar, got %d", page.Total)
	}

	created, err := h.service.Create(ctx, anniversaryInput(), "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	page, _ = h.service.Query(ctx, query)
	if page.Total != 1 {
		t.Fatalf("expected created event to be visible, got %d", page.Total)
	}

	// Served from cache.
	lists := h.repo.lists
	if _, err := h.service.Query(ctx, query); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if h.repo.lists != lists {
		t.Fatalf("expected repeated query to hit the cache")
	}

	title := "Wedding day"
	if _, err := h.service.Update(ctx, created.ID, EventPatch{Title: &title}, "sam"); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	page, _ = h.service.Query(ctx, query)
	if page.Total != 0 {
		t.Fatalf("expected renamed event to drop out of the search, got %d", page.Total)
	}

	page, _ = h.service.Query(ctx, EventQuery{Search: "wedding"})
	if page.Total != 1 || page.Events[0].Title != title {
		t.Fatalf("expected updated title, got %+v", page.Events)
	}

	if _, err := h.service.SoftDelete(ctx, created.ID, "sam"); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}
	page, _ = h.service.Query(ctx, EventQuery{Search: "wedding"})
	if page.Total != 0 {
		t.Fatalf("expected deleted event to be excluded, got %d", page.Total)
	}

	if _, err := h.service.Restore(ctx, created.ID, "alex"); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	page, _ = h.service.Query(ctx, EventQuery{Search: "wedding"})
	if page.Total != 1 {
		t.Fatalf("expected restored event to be visible, got %d", page.Total)
	}
}

func TestEventService_ReadRacingWriteIsNotCached(t *testing.T) {
	t.Parallel()

	// pauseFirstList blocks the first listing after its snapshot was taken
	// until release is closed.
	pauseFirstList := func(h *serviceHarness) (entered, release chan struct{}) {
		entered = make(chan struct{})
		release = make(chan struct{})
		var once sync.Once
		h.repo.afterList = func() {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		return entered, release
	}

	t.Run("query", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)
		ctx := context.Background()
		if _, err := h.service.Create(ctx, anniversaryInput(), "alex"); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}

		entered, release := pauseFirstList(h)
		done := make(chan Page, 1)
		go func() {
			page, _ := h.service.Query(ctx, EventQuery{})
			done <- page
		}()

		<-entered
		if _, err := h.service.Create(ctx, anniversaryInput(), "sam"); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		close(release)
		if page := <-done; page.Total != 1 {
			t.Fatalf("expected the racing read to see its own snapshot, got %d", page.Total)
		}

		page, err := h.service.Query(ctx, EventQuery{})
		if err != nil {
			t.Fatalf("Query returned error: %v", err)
		}
		if page.Total != 2 {
			t.Fatalf("expected fresh total 2 after the write, got %d", page.Total)
		}
	})

	t.Run("stats", func(t *testing.T) {
		t.Parallel()
		h := newServiceHarness(t)
		ctx := context.Background()
		if _, err := h.service.Create(ctx, anniversaryInput(), "alex"); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}

		entered, release := pauseFirstList(h)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = h.service.Stats(ctx)
		}()

		<-entered
		if _, err := h.service.Create(ctx, anniversaryInput(), "sam"); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		close(release)
		<-done

		stats, err := h.service.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats returned error: %v", err)
		}
		if stats.Total != 2 {
			t.Fatalf("expected fresh total 2 after the write, got %d", stats.Total)
		}
	})
}

func TestEventService_ExpandedQueryWithoutFromIsNotCached(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	in := anniversaryInput()
	in.IsRecurring = true
	in.Recurrence = &RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1}
	if _, err := h.service.Create(ctx, in, "alex"); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	first, err := h.service.Query(ctx, EventQuery{ExpandOccurrences: true})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	*h.now = h.now.AddDate(0, 6, 0)
	lists := h.repo.lists
	second, err := h.service.Query(ctx, EventQuery{ExpandOccurrences: true})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if h.repo.lists != lists+1 {
		t.Fatalf("expected expanded query windowed from now to bypass the cache")
	}
	if len(first.Occurrences) == 0 || len(second.Occurrences) == 0 {
		t.Fatalf("expected occurrences in both pages")
	}
	if !second.Occurrences[0].Date.After(first.Occurrences[0].Date) {
		t.Fatalf("expected the window to move with now, first %s second %s",
			first.Occurrences[0].Date, second.Occurrences[0].Date)
	}
}

func TestEventService_CreatePlansReminderBeyondTwoYears(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	in := anniversaryInput()
	in.Category = CategoryMilestone
	in.Priority = PriorityMedium
	in.Date = time.Date(2028, time.June, 1, 12, 0, 0, 0, time.UTC)

	created, err := h.service.Create(context.Background(), in, "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	reminders := h.repo.reminders[created.ID]
	if len(reminders) != 1 {
		t.Fatalf("expected initial reminder, got %+v", reminders)
	}
	if want := in.Date.Add(-time.Hour); !reminders[0].FireTime.Equal(want) {
		t.Fatalf("expected fire time %s, got %s", want, reminders[0].FireTime)
	}
}

func TestEventService_StatsLongIntervalIsUpcoming(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	in := EventInput{
		Title: "Vow renewal", Date: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
		Category: CategoryAnniversary, Priority: PriorityHigh,
		IsRecurring: true, Recurrence: &RecurrenceRule{Frequency: FrequencyYearly, Interval: 5},
	}
	if _, err := h.service.Create(ctx, in, "alex"); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	stats, err := h.service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Upcoming != 1 || stats.Past != 0 {
		t.Fatalf("expected the event to count as upcoming, got %+v", stats)
	}
	want := time.Date(2029, time.June, 1, 12, 0, 0, 0, time.UTC)
	if stats.NextEventDate == nil || !stats.NextEventDate.Equal(want) {
		t.Fatalf("expected next date %s, got %v", want, stats.NextEventDate)
	}
}

func TestEventService_QueryCachedPageIsIsolated(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	if _, err := h.service.Create(ctx, anniversaryInput(), "alex"); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	first, _ := h.service.Query(ctx, EventQuery{})
	first.Events[0].Title = "mutated"
	second, _ := h.service.Query(ctx, EventQuery{})
	if second.Events[0].Title != "Wedding anniversary" {
		t.Fatalf("expected cached page to be unaffected by caller mutation")
	}
}

func TestEventService_QueryWindowsRecurringEvents(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()

	monthly := EventInput{
		Title:       "Month-versary",
		Date:        time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
		Category:    CategoryDate,
		Priority:    PriorityLow,
		IsRecurring: true,
		Recurrence:  &RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1},
	}
	oneOff := EventInput{
		Title:    "Concert",
		Date:     time.Date(2024, time.December, 1, 20, 0, 0, 0, time.UTC),
		Category: CategoryDate,
		Priority: PriorityMedium,
	}
	limited := monthly
	limited.Title = "Short series"
	count := 1
	limited.Recurrence = &RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, MaxOccurrences: &count}

	for _, in := range []EventInput{monthly, oneOff, limited} {
		if _, err := h.service.Create(ctx, in, "alex"); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	from := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.April, 30, 23, 59, 59, 0, time.UTC)
	page, err := h.service.Query(ctx, EventQuery{From: &from, To: &to, ExpandOccurrences: true})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if page.Total != 1 || page.Events[0].Title != "Month-versary" {
		t.Fatalf("expected only the open monthly series in April, got %+v", page.Events)
	}
	if len(page.Occurrences) != 1 || !page.Occurrences[0].Date.Equal(time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected the clamped April occurrence, got %+v", page.Occurrences)
	}

	page, err = h.service.Query(ctx, EventQuery{Recurring: filter.RecurringExclude, PastFirst: true})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if page.Total != 1 || page.Events[0].Title != "Concert" {
		t.Fatalf("expected only the one-off event, got %+v", page.Events)
	}
}

func TestEventService_QueryValidatesFilters(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)

	tests := []struct {
		name  string
		query EventQuery
		field string
	}{
		{name: "inverted range", query: EventQuery{From: &from, To: &to}, field: "to"},
		{name: "page size", query: EventQuery{PageSize: 101}, field: "page_size"},
		{name: "negative page", query: EventQuery{Page: -1}, field: "page"},
		{name: "category", query: EventQuery{Categories: []string{"holiday"}}, field: "category"},
		{name: "priority", query: EventQuery{Priorities: []string{"urgent"}}, field: "priority"},
	}
	for _, tt := range tests {
		_, err := h.service.Query(context.Background(), tt.query)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors[tt.field] == "" {
			t.Fatalf("%s: expected validation error on %s, got %v", tt.name, tt.field, err)
		}
	}
}

func TestEventService_QueryPaginates(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		in := anniversaryInput()
		in.Title = fmt.Sprintf("Event %02d", i)
		in.Date = in.Date.AddDate(0, 0, i)
		in.ReminderMinutes = nil
		if _, err := h.service.Create(ctx, in, "alex"); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	page, err := h.service.Query(ctx, EventQuery{Page: 2})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if page.Total != 25 || page.PageSize != 20 || len(page.Events) != 5 || page.Events[0].Title != "Event 20" {
		t.Fatalf("unexpected second page total=%d size=%d len=%d", page.Total, page.PageSize, len(page.Events))
	}
}

func TestEventService_Stats(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()

	inputs := []EventInput{
		{Title: "Past dinner", Date: time.Date(2024, 11, 2, 19, 0, 0, 0, time.UTC), Category: CategoryDate, Priority: PriorityLow},
		{Title: "Low tie", Date: time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC), Category: CategoryOther, Priority: PriorityLow},
		{Title: "High tie", Date: time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC), Category: CategoryBirthday, Priority: PriorityHigh},
		{
			Title: "Weekly walk", Date: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), Category: CategoryDate, Priority: PriorityMedium,
			IsRecurring: true, Recurrence: &RecurrenceRule{Frequency: FrequencyWeekly, Interval: 1},
		},
	}
	for _, in := range inputs {
		if _, err := h.service.Create(ctx, in, "alex"); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	stats, err := h.service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Total != 4 || stats.Upcoming != 3 || stats.Past != 1 || stats.Recurring != 1 || stats.ThisMonth != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	// The weekly walk next falls on Saturday 2025-01-18, ahead of the tied pair.
	if stats.NextEvent == nil || stats.NextEvent.Title != "Weekly walk" {
		t.Fatalf("expected weekly walk as next event, got %+v", stats.NextEvent)
	}
	if stats.NextEventDate == nil || !stats.NextEventDate.Equal(time.Date(2025, 1, 18, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next event date %v", stats.NextEventDate)
	}

	walk := stats.NextEvent.ID
	if _, err := h.service.SoftDelete(ctx, walk, "alex"); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}
	stats, err = h.service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.NextEvent == nil || stats.NextEvent.Title != "High tie" {
		t.Fatalf("expected high priority to win the tie, got %+v", stats.NextEvent)
	}
}

func TestEventService_Occurrences(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	ctx := context.Background()
	created, err := h.service.Create(ctx, EventInput{
		Title:       "Month-versary",
		Date:        time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
		Category:    CategoryDate,
		Priority:    PriorityMedium,
		IsRecurring: true,
		Recurrence:  &RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1},
	}, "alex")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	list, err := h.service.Occurrences(ctx, created.ID,
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC), 10)
	if err != nil {
		t.Fatalf("Occurrences returned error: %v", err)
	}
	want := []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"}
	if len(list.Occurrences) != len(want) {
		t.Fatalf("expected %d occurrences, got %+v", len(want), list.Occurrences)
	}
	for i, occ := range list.Occurrences {
		if occ.Date.Format("2006-01-02") != want[i] || occ.Index != i || occ.IsOriginal != (i == 0) {
			t.Fatalf("occurrence %d: unexpected %+v", i, occ)
		}
	}

	next, err := h.service.Next(ctx, created.ID, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC))
	if err != nil || next == nil || next.Date.Format("2006-01-02") != "2025-03-31" {
		t.Fatalf("unexpected next occurrence %+v err=%v", next, err)
	}

	if _, err := h.service.Occurrences(ctx, created.ID, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 10); err == nil {
		t.Fatalf("expected inverted window to be rejected")
	}
}

func TestEventService_StorageFailures(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	h.repo.err = fmt.Errorf("%w: database is locked", persistence.ErrUnavailable)

	_, err := h.service.Create(context.Background(), anniversaryInput(), "alex")
	var sErr *StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if !errors.Is(err, persistence.ErrUnavailable) {
		t.Fatalf("expected storage error to wrap cause")
	}
	if _, err := h.service.Query(context.Background(), EventQuery{}); !errors.As(err, &sErr) {
		t.Fatalf("expected StorageError from query, got %v", err)
	}
	if ErrorKind(err) != "storage" {
		t.Fatalf("expected storage kind, got %s", ErrorKind(err))
	}
}

func TestEventService_ReminderFailureDoesNotFailWrite(t *testing.T) {
	t.Parallel()

	h := newServiceHarness(t)
	h.reminders.err = errors.New("channel offline")

	created, err := h.service.Create(context.Background(), anniversaryInput(), "alex")
	if err != nil {
		t.Fatalf("expected create to succeed despite reminder failure, got %v", err)
	}
	if _, err := h.service.SoftDelete(context.Background(), created.ID, "alex"); err != nil {
		t.Fatalf("expected delete to succeed despite reminder failure, got %v", err)
	}
}
