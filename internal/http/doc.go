// Package http exposes the event engine over a JSON API.
//
// The router mounts everything below /api:
//   - GET /events, POST /events: query (from, to, category, priority, q,
//     recurring, include_deleted, past_first, page, page_size, expand) and create.
//   - GET /events/stats: dashboard counters and the next upcoming event.
//   - GET, PATCH, DELETE /events/{id}; POST /events/{id}/restore.
//   - GET /events/{id}/history, /occurrences (from, to, limit), /next (after)
//     and /reminders.
//   - GET /calendar.ics: iCalendar feed of live events.
//   - GET /ws: websocket stream of reminder notifications.
//   - GET /health.
//
// Mutations require the X-Actor-ID header. Request and response DTOs are the
// application types, so their JSON tags are the wire format.
package http
