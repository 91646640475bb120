package querycache

import (
	"strings"
	"testing"
	"time"
)

func TestQueryKeyIsCanonical(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	fromUTC := from.UTC()

	a := (&KeyBuilder{}).
		List("category", []string{"birthday", "anniversary"}).
		Time("from", &from).
		Int("page", 1).
		QueryKey()
	b := (&KeyBuilder{}).
		List("category", []string{"anniversary", "birthday"}).
		Time("from", &fromUTC).
		Int("page", 1).
		QueryKey()

	if a != b {
		t.Fatalf("expected equivalent filters to share a key: %s != %s", a, b)
	}
	if !strings.HasPrefix(a, "events:query:") {
		t.Fatalf("unexpected key prefix %s", a)
	}
	if len(strings.TrimPrefix(a, "events:query:")) != 2*digestSize {
		t.Fatalf("expected %d hex characters in %s", 2*digestSize, a)
	}

	c := (&KeyBuilder{}).
		List("category", []string{"anniversary"}).
		Time("from", &from).
		Int("page", 1).
		QueryKey()
	if a == c {
		t.Fatalf("expected different filters to produce different keys")
	}
}

func TestKeyBuilderSeparatesValues(t *testing.T) {
	first := (&KeyBuilder{}).String("q", "a;b").String("r", "").Canonical()
	second := (&KeyBuilder{}).String("q", "a").String("r", "b").Canonical()
	if first == second {
		t.Fatalf("expected quoting to keep fields apart: %s", first)
	}
}

func TestNamedKeys(t *testing.T) {
	if StatsKey != "events:stats" {
		t.Fatalf("unexpected stats key %s", StatsKey)
	}
	if HistoryKey(42) != "events:history:42" {
		t.Fatalf("unexpected history key %s", HistoryKey(42))
	}
}
