package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/milestone-calendar/internal/application"
	"github.com/example/milestone-calendar/internal/filter"
)

type eventService interface {
	Create(ctx context.Context, input application.EventInput, actor string) (application.Event, error)
	Update(ctx context.Context, id int64, patch application.EventPatch, actor string) (application.Event, error)
	SoftDelete(ctx context.Context, id int64, actor string) (application.Event, error)
	Restore(ctx context.Context, id int64, actor string) (application.Event, error)
	Get(ctx context.Context, id int64, includeDeleted bool) (application.Event, error)
	Query(ctx context.Context, q application.EventQuery) (application.Page, error)
	Stats(ctx context.Context) (application.Stats, error)
	History(ctx context.Context, id int64) ([]application.AuditEntry, error)
	Occurrences(ctx context.Context, id int64, from, to time.Time, limit int) (application.OccurrenceList, error)
	Next(ctx context.Context, id int64, reference time.Time) (*application.Occurrence, error)
	ListReminders(ctx context.Context, id int64) ([]application.ReminderEntry, error)
	Calendar(ctx context.Context) ([]application.Event, error)
}

const eventHandlerName = "EventHandler"

// EventHandler serves the /events resource.
type EventHandler struct {
	service   eventService
	responder responder
	now       func() time.Time
}

// NewEventHandler wires the event service into HTTP handlers.
func NewEventHandler(service eventService, now func() time.Time, logger *slog.Logger) *EventHandler {
	if now == nil {
		now = time.Now
	}
	return &EventHandler{service: service, responder: newResponder(logger), now: now}
}

type occurrencesResponse struct {
	application.OccurrenceList
	Warnings []string `json:"warnings,omitempty"`
}

type nextResponse struct {
	EventID    int64                   `json:"event_id"`
	Occurrence *application.Occurrence `json:"occurrence"`
	Warnings   []string                `json:"warnings,omitempty"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input application.EventInput
	if err := decodeJSON(r, &input); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	event, err := h.service.Create(r.Context(), input, actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/events/%d", event.ID))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, event)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var patch application.EventPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	actor, _ := ActorFromContext(r.Context())
	event, err := h.service.Update(r.Context(), id, patch, actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	event, err := h.service.SoftDelete(r.Context(), id, actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, event)
}

func (h *EventHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	actor, _ := ActorFromContext(r.Context())
	event, err := h.service.Restore(r.Context(), id, actor)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	includeDeleted, err := parseBool(r.URL.Query(), "include_deleted")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	event, err := h.service.Get(r.Context(), id, includeDeleted)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, event)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := buildEventQuery(r.URL.Query())
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	page, err := h.service.Query(r.Context(), q)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if page.Events == nil {
		page.Events = []application.Event{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, page)
}

func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, stats)
}

func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if entries == nil {
		entries = []application.AuditEntry{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, entries)
}

func (h *EventHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	values := r.URL.Query()
	from, err := parseTime(values, "from")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTime(values, "to")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	limit, err := parseInt(values, "limit")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	start := h.now()
	if from != nil {
		start = *from
	}
	end := start.AddDate(1, 0, 0)
	if to != nil {
		end = *to
	}

	list, err := h.service.Occurrences(r.Context(), id, start, end, limit)
	resp := occurrencesResponse{OccurrenceList: list}
	if err != nil {
		if !errors.Is(err, application.ErrCalculationLimit) {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		resp.Warnings = []string{limitWarning}
	}
	if resp.Occurrences == nil {
		resp.Occurrences = []application.Occurrence{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *EventHandler) Next(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	after, err := parseTime(r.URL.Query(), "after")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	reference := h.now()
	if after != nil {
		reference = *after
	}

	occ, err := h.service.Next(r.Context(), id, reference)
	resp := nextResponse{EventID: id, Occurrence: occ}
	if err != nil {
		if !errors.Is(err, application.ErrCalculationLimit) {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		resp.Warnings = []string{limitWarning}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *EventHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListReminders(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if entries == nil {
		entries = []application.ReminderEntry{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, entries)
}

const limitWarning = "occurrence calculation limit reached, results are partial"

func (h *EventHandler) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		handlerLogger(r.Context(), h.responder.logger, eventHandlerName, "eventID").
			DebugContext(r.Context(), "rejecting event id", "raw", raw)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func buildEventQuery(values url.Values) (application.EventQuery, error) {
	var q application.EventQuery
	var err error

	if q.From, err = parseTime(values, "from"); err != nil {
		return q, err
	}
	if q.To, err = parseTime(values, "to"); err != nil {
		return q, err
	}
	q.Categories = parseList(values, "category")
	q.Priorities = parseList(values, "priority")
	q.Search = strings.TrimSpace(values.Get("q"))

	mode, ok := filter.ParseRecurringMode(values.Get("recurring"))
	if !ok {
		return q, fmt.Errorf("recurring must be true, false or only")
	}
	q.Recurring = mode

	if q.IncludeDeleted, err = parseBool(values, "include_deleted"); err != nil {
		return q, err
	}
	if q.PastFirst, err = parseBool(values, "past_first"); err != nil {
		return q, err
	}
	if q.ExpandOccurrences, err = parseBool(values, "expand"); err != nil {
		return q, err
	}
	if q.Page, err = parseInt(values, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = parseInt(values, "page_size"); err != nil {
		return q, err
	}
	return q, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates, read as UTC midnight.
func parseTime(values url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", key)
}

func parseList(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseBool(values url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}

func parseInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}
