package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	ctx := ContextWithActor(context.Background(), "user-42")
	evt, err := Record(ctx, PatientRegistered, "patient", "p-1", map[string]string{"name": "Sarah Johnson"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if evt.Actor != "user-42" || evt.ID == "" || evt.OccurredAt.IsZero() {
		t.Errorf("event = %+v", evt)
	}

	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Type != PatientRegistered || parsed.AggregateID != "p-1" {
		t.Errorf("parsed = %+v", parsed)
	}
	var data map[string]string
	if err := parsed.Decode(&data); err != nil || data["name"] != "Sarah Johnson" {
		t.Errorf("data = %v, %v", data, err)
	}
}

func TestParseRejectsIncompleteEnvelope(t *testing.T) {
	for _, raw := range []string{`{"type":"patient.registered"}`, `{"id":"x"}`, `not json`} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("Parse(%s) succeeded", raw)
		}
	}
}

func TestActorFromEmptyContext(t *testing.T) {
	if got := ActorFromContext(context.Background()); got != "" {
		t.Errorf("actor = %q", got)
	}
}
