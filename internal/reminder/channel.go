package reminder

import (
	"context"
	"log/slog"
	"sort"
)

// Notification is what a channel delivers.
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Channel delivers notifications. Deliver reports false without an error when
// nobody could be reached.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) (bool, error)
}

// LogChannel writes notifications to a structured logger. It always delivers.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel returns a LogChannel. A nil logger falls back to slog.Default.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

// Name implements Channel.
func (c *LogChannel) Name() string {
	return "log"
}

// Deliver implements Channel.
func (c *LogChannel) Deliver(ctx context.Context, n Notification) (bool, error) {
	attrs := []any{"title", n.Title, "body", n.Body}
	keys := make([]string, 0, len(n.Metadata))
	for key := range n.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		attrs = append(attrs, key, n.Metadata[key])
	}
	c.logger.InfoContext(ctx, "reminder", attrs...)
	return true, nil
}
