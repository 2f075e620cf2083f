package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("service down")
var errRejected = errors.New("bad credentials")

func testConfig() Config {
	cfg := DefaultConfig("test")
	cfg.Timeout = time.Hour
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errRejected) }
	return cfg
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	cb, err := New(testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Run(ctx, func(context.Context) error { return errDown }); !errors.Is(err, errDown) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	called := false
	err = cb.Run(ctx, func(context.Context) error { called = true; return nil })
	if !IsOpen(err) || called {
		t.Errorf("open breaker: err = %v, called = %v", err, called)
	}
}

func TestExcludedErrorsDoNotTrip(t *testing.T) {
	cb, _ := New(testConfig(), nil)
	for i := 0; i < 10; i++ {
		err := cb.Run(context.Background(), func(context.Context) error { return errRejected })
		if !errors.Is(err, errRejected) {
			t.Fatalf("err = %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestDoReturnsValue(t *testing.T) {
	cb, _ := New(testConfig(), nil)
	got, err := Do(context.Background(), cb, func(context.Context) (string, error) { return "token", nil })
	if err != nil || got != "token" {
		t.Errorf("Do = %q, %v", got, err)
	}
}

func TestManagerReusesBreakers(t *testing.T) {
	m := NewManager(testConfig(), nil)
	a, _ := m.Get("MedSupply Co")
	b, _ := m.Get("MedSupply Co")
	c, _ := m.Get("PharmaDirect")
	if a != b || a == c {
		t.Error("expected one breaker per name")
	}
	_ = a.Run(context.Background(), func(context.Context) error { return errDown })

	health := m.Health()
	if len(health) != 2 || health[0].Name != "MedSupply Co" || health[0].Failures != 1 {
		t.Errorf("health = %+v", health)
	}
}

func TestManagerAddReportsExternalBreaker(t *testing.T) {
	m := NewManager(testConfig(), nil)
	cfg := testConfig()
	cfg.Name = "auth-provider"
	cb, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Add(cb)
	if got, _ := m.Get("auth-provider"); got != cb {
		t.Error("Get returned a different breaker")
	}
	if health := m.Health(); len(health) != 1 || health[0].Name != cb.Name() {
		t.Errorf("health = %+v", health)
	}
}
