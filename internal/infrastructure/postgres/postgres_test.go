package postgres

import (
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	files := fstest.MapFS{
		"migrations/010_late.sql":   {Data: []byte("SELECT 10;")},
		"migrations/002_second.sql": {Data: []byte("SELECT 2;")},
		"migrations/001_first.sql":  {Data: []byte("SELECT 1;")},
		"migrations/README.md":      {Data: []byte("notes")},
		"migrations/draft.sql":      {Data: []byte("SELECT 0;")},
	}

	migs, err := LoadMigrations(files)
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migs) != 3 {
		t.Fatalf("got %d migrations, want 3", len(migs))
	}
	want := []int{1, 2, 10}
	for i, m := range migs {
		if m.Version != want[i] {
			t.Errorf("migration %d version = %d, want %d", i, m.Version, want[i])
		}
	}
	if migs[2].SQL != "SELECT 10;" {
		t.Errorf("SQL = %q", migs[2].SQL)
	}
}

func TestEmbeddedMigrationsCreateCoreTables(t *testing.T) {
	migs, err := LoadMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migs) == 0 || migs[0].Version != 1 {
		t.Fatalf("first migration missing: %+v", migs)
	}
	for _, table := range []string{"profiles", "patients", "doctors", "appointments", "inventory",
		"prescription_events", "prescriptions", "invoices", "documents", "settings",
		"activity_log", "outbox", "inbox"} {
		if !strings.Contains(migs[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("table %s not created", table)
		}
	}
}

func TestListQueryBuild(t *testing.T) {
	q := ListQuery{
		Table:         "patients",
		Columns:       Cols("id", "first_name"),
		SearchColumns: []string{"first_name", "email"},
		SortColumns:   map[string]exp.Orderable{"name": goqu.C("first_name")},
		Tiebreak:      "id",
	}
	p := listing.Params{Search: "sarah", Sort: "name", Desc: true, Limit: 10, Offset: 20}

	page, count := q.Build(p, goqu.C("status").Eq("Critical"))

	sql, args, err := page.ToSQL()
	if err != nil {
		t.Fatalf("page ToSQL: %v", err)
	}
	for _, frag := range []string{`FROM "patients"`, "ILIKE", `"first_name" DESC NULLS LAST`, `"id" ASC`, "LIMIT", "OFFSET"} {
		if !strings.Contains(sql, frag) {
			t.Errorf("page sql missing %q: %s", frag, sql)
		}
	}
	if !containsArg(args, "%sarah%") || !containsArg(args, "Critical") {
		t.Errorf("args = %v", args)
	}

	csql, _, err := count.ToSQL()
	if err != nil {
		t.Fatalf("count ToSQL: %v", err)
	}
	if !strings.Contains(csql, "COUNT(*)") || strings.Contains(csql, "LIMIT") || strings.Contains(csql, "ORDER BY") {
		t.Errorf("count sql = %s", csql)
	}
}

func TestListQueryBuildWithoutSearch(t *testing.T) {
	q := ListQuery{Table: "doctors", Columns: Cols("id"), SearchColumns: []string{"first_name"}}
	page, _ := q.Build(listing.Params{})
	sql, _, err := page.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}
	if strings.Contains(sql, "WHERE") || strings.Contains(sql, "LIMIT") {
		t.Errorf("unexpected clauses: %s", sql)
	}
}

func TestListQuerySearchesFullName(t *testing.T) {
	q := ListQuery{
		Table:         "patients",
		Columns:       Cols("id"),
		SearchColumns: []string{"first_name", "last_name"},
		SearchExprs:   []exp.Likeable{FullName()},
	}
	page, _ := q.Build(listing.Params{Search: "Priya Patel"})
	sql, args, err := page.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}
	if !strings.Contains(sql, "(first_name || ' ' || last_name) ILIKE") {
		t.Errorf("full name not searched: %s", sql)
	}
	if !containsArg(args, "%Priya Patel%") {
		t.Errorf("args = %v", args)
	}
}

func TestListQueryEscapesWildcards(t *testing.T) {
	q := ListQuery{Table: "inventory", Columns: Cols("id"), SearchColumns: []string{"name"}}
	page, _ := q.Build(listing.Params{Search: `50%_a\b`})
	_, args, err := page.ToSQL()
	if err != nil {
		t.Fatalf("ToSQL: %v", err)
	}
	if !containsArg(args, `%50\%\_a\\b%`) {
		t.Errorf("args = %v", args)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"paracetamol": "paracetamol",
		"_":           `\_`,
		"100%":        `100\%`,
		`a\b`:         `a\\b`,
	}
	for in, want := range tests {
		if got := EscapeLike(in); got != want {
			t.Errorf("EscapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeadLetterPayload(t *testing.T) {
	lastErr := "broker unavailable"
	entry := &OutboxEntry{
		ID:          7,
		EventID:     "evt-1",
		AggregateID: "patient-1",
		EventType:   "patient.registered",
		Topic:       "hospital.events",
		Payload:     json.RawMessage(`{"id":"evt-1"}`),
		RetryCount:  5,
		LastError:   &lastErr,
		CreatedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	raw, err := deadLetterPayload(entry)
	if err != nil {
		t.Fatalf("deadLetterPayload: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["original_topic"] != "hospital.events" || got["last_error"] != lastErr {
		t.Errorf("payload = %v", got)
	}
	if got["retry_count"].(float64) != 5 {
		t.Errorf("retry_count = %v", got["retry_count"])
	}
	if inner, ok := got["payload"].(map[string]any); !ok || inner["id"] != "evt-1" {
		t.Errorf("inner payload = %v", got["payload"])
	}
}

func TestDeadLetterTopic(t *testing.T) {
	if DeadLetterTopic != "hospital.events.dlq" {
		t.Errorf("DeadLetterTopic = %s", DeadLetterTopic)
	}
}

func containsArg(args []any, want string) bool {
	for _, a := range args {
		if s, ok := a.(string); ok && s == want {
			return true
		}
	}
	return false
}
