package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouterConfig collects the handlers mounted by NewRouter. Nil entries are skipped.
type RouterConfig struct {
	Events     *EventHandler
	Calendar   *CalendarHandler
	WebSocket  http.Handler
	Health     http.Handler
	Middleware []mux.MiddlewareFunc
}

// NewRouter mounts the API below /api.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api := r.PathPrefix("/api").Subrouter()

	if cfg.Health != nil {
		api.Handle("/health", cfg.Health).Methods(http.MethodGet)
	}
	if cfg.WebSocket != nil {
		api.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}
	if cfg.Calendar != nil {
		api.HandleFunc("/calendar.ics", cfg.Calendar.Export).Methods(http.MethodGet)
	}

	if h := cfg.Events; h != nil {
		api.HandleFunc("/events", h.List).Methods(http.MethodGet)
		api.HandleFunc("/events", h.Create).Methods(http.MethodPost)
		api.HandleFunc("/events/stats", h.Stats).Methods(http.MethodGet)
		api.HandleFunc("/events/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
		api.HandleFunc("/events/{id:[0-9]+}", h.Update).Methods(http.MethodPatch)
		api.HandleFunc("/events/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
		api.HandleFunc("/events/{id:[0-9]+}/restore", h.Restore).Methods(http.MethodPost)
		api.HandleFunc("/events/{id:[0-9]+}/history", h.History).Methods(http.MethodGet)
		api.HandleFunc("/events/{id:[0-9]+}/occurrences", h.Occurrences).Methods(http.MethodGet)
		api.HandleFunc("/events/{id:[0-9]+}/next", h.Next).Methods(http.MethodGet)
		api.HandleFunc("/events/{id:[0-9]+}/reminders", h.Reminders).Methods(http.MethodGet)
	}

	return r
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	newResponder(LoggerFromContext(r.Context())).writeError(r.Context(), w, http.StatusMethodNotAllowed, nil)
}
