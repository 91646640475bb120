package sqlstore

import "testing"

func TestDialectRebind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{
			name:    "sqlite keeps markers",
			dialect: SQLite,
			query:   "SELECT * FROM events WHERE id = ? AND title = ?",
			want:    "SELECT * FROM events WHERE id = ? AND title = ?",
		},
		{
			name:    "postgres numbers markers",
			dialect: Postgres,
			query:   "SELECT * FROM events WHERE id = ? AND title = ?",
			want:    "SELECT * FROM events WHERE id = $1 AND title = $2",
		},
		{
			name:    "postgres skips quoted literals",
			dialect: Postgres,
			query:   "SELECT '?' AS mark, id FROM events WHERE id = ?",
			want:    "SELECT '?' AS mark, id FROM events WHERE id = $1",
		},
		{
			name:    "postgres without markers",
			dialect: Postgres,
			query:   "SELECT 1",
			want:    "SELECT 1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.dialect.Rebind(tt.query); got != tt.want {
				t.Fatalf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	t.Parallel()

	for driver, want := range map[string]string{
		"":           "sqlite",
		"sqlite":     "sqlite",
		"pgx":        "postgres",
		"PostgreSQL": "postgres",
	} {
		got, err := DialectFor(driver)
		if err != nil {
			t.Fatalf("DialectFor(%q) returned error: %v", driver, err)
		}
		if got.Name != want {
			t.Fatalf("DialectFor(%q) = %s, want %s", driver, got.Name, want)
		}
	}

	if _, err := DialectFor("mysql"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestJSONColumnAndPlaceholders(t *testing.T) {
	t.Parallel()

	if got := Postgres.JSONColumn("recurrence_config"); got != "recurrence_config::text" {
		t.Fatalf("unexpected postgres json column %q", got)
	}
	if got := SQLite.JSONColumn("recurrence_config"); got != "recurrence_config" {
		t.Fatalf("unexpected sqlite json column %q", got)
	}
	if got := Placeholders(3); got != "?, ?, ?" {
		t.Fatalf("unexpected placeholders %q", got)
	}
	if got := Placeholders(0); got != "" {
		t.Fatalf("expected empty placeholders, got %q", got)
	}
}
