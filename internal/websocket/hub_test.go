package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/milestone-calendar/internal/reminder"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubDeliverWithoutClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(discardLogger())
	ok, err := hub.Deliver(context.Background(), reminder.Notification{Title: "Dinner"})
	if err != nil || ok {
		t.Fatalf("expected no delivery without clients, got ok=%v err=%v", ok, err)
	}
}

func TestHubBroadcastQueuesForClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(discardLogger())
	hub.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	a, b := NewClient(), NewClient()
	hub.Register(a)
	hub.Register(b)

	ok, err := hub.Deliver(context.Background(), reminder.Notification{Title: "Dinner", Body: "Dinner 1 hour from now"})
	if err != nil || !ok {
		t.Fatalf("expected delivery, got ok=%v err=%v", ok, err)
	}
	for _, c := range []*Client{a, b} {
		select {
		case raw := <-c.Send():
			var msg struct {
				Type      string                `json:"type"`
				Timestamp time.Time             `json:"timestamp"`
				Payload   reminder.Notification `json:"payload"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("unmarshal message: %v", err)
			}
			if msg.Type != "reminder" || msg.Payload.Title != "Dinner" {
				t.Fatalf("unexpected message %+v", msg)
			}
		default:
			t.Fatalf("expected queued message")
		}
	}

	hub.Unregister(a)
	hub.Unregister(a)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected one client left, got %d", hub.ClientCount())
	}
	if _, open := <-a.Send(); open {
		t.Fatalf("expected unregistered client queue closed")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	t.Parallel()

	hub := NewHub(discardLogger())
	slow := NewClient()
	hub.Register(slow)
	for i := 0; i < sendBuffer; i++ {
		if hub.Broadcast([]byte("x")) != 1 {
			t.Fatalf("expected message %d to be queued", i)
		}
	}
	if sent := hub.Broadcast([]byte("overflow")); sent != 0 {
		t.Fatalf("expected overflow to be rejected, got %d", sent)
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected slow client dropped")
	}
}

func TestHandlerStreamsReminders(t *testing.T) {
	t.Parallel()

	hub := NewHub(discardLogger())
	server := httptest.NewServer(Handler(hub, discardLogger()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ok, err := hub.Deliver(context.Background(), reminder.Notification{Title: "Anniversary"}); !ok || err != nil {
		t.Fatalf("expected delivery, got ok=%v err=%v", ok, err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `"title":"Anniversary"`) {
		t.Fatalf("unexpected frame %s", raw)
	}

	hub.Close()
	if hub.ClientCount() != 0 {
		t.Fatalf("expected hub to drop clients on close")
	}
}
