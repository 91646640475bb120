package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/milestone-calendar/internal/application"
	"github.com/example/milestone-calendar/internal/ical"
)

type calendarSource interface {
	Calendar(ctx context.Context) ([]application.Event, error)
}

// CalendarHandler serves the iCalendar feed.
type CalendarHandler struct {
	source    calendarSource
	responder responder
	now       func() time.Time
}

// NewCalendarHandler builds the /calendar.ics handler.
func NewCalendarHandler(source calendarSource, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{source: source, responder: newResponder(logger), now: now}
}

func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	events, err := h.source.Calendar(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := ical.Export(&buf, events, h.now()); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	handlerLogger(r.Context(), h.responder.logger, "CalendarHandler", "Export").
		DebugContext(r.Context(), "calendar exported", "events", len(events), "bytes", buf.Len())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="milestones.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
