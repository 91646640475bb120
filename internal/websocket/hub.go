// Package websocket pushes reminder notifications to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/example/milestone-calendar/internal/reminder"
)

const sendBuffer = 64

// MessageType identifies a server to client message.
type MessageType string

const (
	// TypeReminder carries a reminder notification.
	TypeReminder MessageType = "reminder"
)

// Message is the envelope written to clients.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// Hub keeps the set of connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	now     func() time.Time
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		now:     time.Now,
		logger:  logger.With("component", "websocket_hub"),
	}
}

// Client is one registered connection.
type Client struct {
	send chan []byte
	once sync.Once
}

// NewClient creates a client with a buffered outbound queue.
func NewClient() *Client {
	return &Client{send: make(chan []byte, sendBuffer)}
}

// Send returns the outbound queue. It is closed when the hub drops the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", "total", total)
}

// Unregister removes a client and closes its queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client disconnected", "total", total)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for every client and returns how many accepted
// it. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- message:
			sent++
		default:
			delete(h.clients, c)
			c.close()
			h.logger.Warn("websocket client dropped, send buffer full")
		}
	}
	return sent
}

// Name implements reminder.Channel.
func (h *Hub) Name() string {
	return "websocket"
}

// Deliver implements reminder.Channel. It reports false when no client is
// connected.
func (h *Hub) Deliver(ctx context.Context, n reminder.Notification) (bool, error) {
	payload, err := json.Marshal(Message{Type: TypeReminder, Timestamp: h.now().UTC(), Payload: n})
	if err != nil {
		return false, err
	}
	return h.Broadcast(payload) > 0, nil
}

// Close drops every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

var _ reminder.Channel = (*Hub)(nil)
