package http

import (
	"context"
	"log/slog"
	"net/http"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
	WSClients   int    `json:"ws_clients"`
}

// HealthHandler reports database reachability and connected websocket clients.
func HealthHandler(db Pinger, clients func() int, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", DBConnected: true}
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
				resp.DBConnected = false
				resp.Status = "degraded"
			}
		}
		if clients != nil {
			resp.WSClients = clients()
		}

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		responder.writeJSON(r.Context(), w, status, resp)
	}
}
