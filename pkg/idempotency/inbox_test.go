package idempotency

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKeyIsDeterministic(t *testing.T) {
	a := Key("activity", "evt-1")
	if a != Key("activity", "evt-1") {
		t.Fatal("same parts produced different keys")
	}
	if a == Key("activity", "evt-2") {
		t.Error("different parts collided")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}

func TestDailyKey(t *testing.T) {
	morning := time.Date(2024, 6, 3, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 6, 3, 22, 30, 0, 0, time.UTC)
	nextDay := time.Date(2024, 6, 4, 0, 5, 0, 0, time.UTC)

	if DailyKey(morning, "low-stock", "item-1") != DailyKey(evening, "low-stock", "item-1") {
		t.Error("same day produced different keys")
	}
	if DailyKey(morning, "low-stock", "item-1") == DailyKey(nextDay, "low-stock", "item-1") {
		t.Error("next day reused the key")
	}
	ist := time.FixedZone("IST", 5*3600+1800)
	if DailyKey(evening.In(ist), "x") != DailyKey(evening, "x") {
		t.Error("key depends on the caller's time zone")
	}
}

func TestPermanentErrors(t *testing.T) {
	base := errors.New("supplier rejected payload")
	perm := Permanent(base)

	if !isTerminalError(perm) || !isTerminalError(fmt.Errorf("wrap: %w", perm)) {
		t.Error("permanent error not detected")
	}
	if !errors.Is(perm, base) {
		t.Error("Permanent hides the cause")
	}
	if isTerminalError(errors.New("connection reset")) {
		t.Error("plain error treated as permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
}
