package persistence_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/milestone-calendar/internal/persistence"
)

func TestRecurrenceConfig_Encode(t *testing.T) {
	t.Parallel()

	cfg := persistence.NewRecurrenceConfig("weekly", 2)
	cfg.DaysOfWeek = []int{1, 3, 5}
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	cfg.SetEndDate(&end)

	raw, err := persistence.EncodeRecurrenceConfig(cfg)
	if err != nil {
		t.Fatalf("EncodeRecurrenceConfig returned error: %v", err)
	}
	if raw == nil || !strings.Contains(*raw, `"type":"recurrence"`) {
		t.Fatalf("expected tagged document, got %v", raw)
	}

	decoded, err := persistence.DecodeRecurrenceConfig(*raw)
	if err != nil {
		t.Fatalf("DecodeRecurrenceConfig returned error: %v", err)
	}
	endTime, err := decoded.EndTime()
	if err != nil || endTime == nil || !endTime.Equal(end) {
		t.Fatalf("expected end date %s, got %v (%v)", end, endTime, err)
	}
	if len(decoded.DaysOfWeek) != 3 || decoded.Interval != 2 {
		t.Fatalf("unexpected decoded document: %+v", decoded)
	}

	if raw, err := persistence.EncodeRecurrenceConfig(nil); err != nil || raw != nil {
		t.Fatalf("expected nil config to encode to nil, got %v %v", raw, err)
	}
}

func TestRecurrenceConfig_DecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":          `{"type":`,
		"missing tag":       `{"frequency":"daily","interval":1,"version":1}`,
		"unknown version":   `{"type":"recurrence","version":2,"frequency":"daily","interval":1}`,
		"unknown frequency": `{"type":"recurrence","version":1,"frequency":"hourly","interval":1}`,
		"interval too big":  `{"type":"recurrence","version":1,"frequency":"daily","interval":400}`,
		"bad weekday":       `{"type":"recurrence","version":1,"frequency":"weekly","interval":1,"days_of_week":[7]}`,
		"bad day of month":  `{"type":"recurrence","version":1,"frequency":"monthly","interval":1,"day_of_month":0}`,
		"bad end date":      `{"type":"recurrence","version":1,"frequency":"daily","interval":1,"end_date":"June"}`,
	}

	for name, raw := range cases {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := persistence.DecodeRecurrenceConfig(raw); !errors.Is(err, persistence.ErrCorruptRecurrence) {
				t.Fatalf("expected ErrCorruptRecurrence, got %v", err)
			}
		})
	}
}
