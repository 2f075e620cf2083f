package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
)

const remoteUserID = "6f1c2a8e-3b7d-4c59-9a41-0d2e8f7b6c15"

func newGoTrueServer(t *testing.T, status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("grant_type") != "password" || r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "remote-access-token",
			"user": map[string]any{
				"id":            remoteUserID,
				"email":         body["email"],
				"user_metadata": map[string]any{"role": "doctor"},
			},
		})
	})
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.Header.Get("Authorization") != "Bearer recovery-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": remoteUserID, "email": "dr.sharma@hospital.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGoTrueSignIn(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := newGoTrueServer(t, &status, &hits)

	g, err := NewGoTrue(RemoteConfig{URL: srv.URL, APIKey: "anon-key"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ident, err := g.SignIn(context.Background(), "dr.sharma@hospital.com", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if ident.ID.String() != remoteUserID || ident.Source != SourceRemote {
		t.Errorf("identity = %+v", ident)
	}
	if ident.RoleHint != settings.RoleDoctor || ident.AccessToken != "remote-access-token" {
		t.Errorf("role hint = %s, token = %q", ident.RoleHint, ident.AccessToken)
	}
}

func TestGoTrueRejectionsDoNotTripBreaker(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusBadRequest)
	srv := newGoTrueServer(t, &status, &hits)
	g, _ := NewGoTrue(RemoteConfig{URL: srv.URL, APIKey: "anon-key"}, nil)

	for i := 0; i < 6; i++ {
		_, err := g.SignIn(context.Background(), "dr.sharma@hospital.com", "wrong")
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if g.breaker.State() != circuitbreaker.StateClosed || hits.Load() != 6 {
		t.Errorf("state = %s, hits = %d", g.breaker.State(), hits.Load())
	}
}

func TestGoTrueServerErrorsTripBreaker(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusBadGateway)
	srv := newGoTrueServer(t, &status, &hits)
	g, _ := NewGoTrue(RemoteConfig{URL: srv.URL, APIKey: "anon-key"}, nil)

	for i := 0; i < 5; i++ {
		_, err := g.SignIn(context.Background(), "dr.sharma@hospital.com", "password123")
		if err == nil || errors.Is(err, ErrRejected) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if g.breaker.State() != circuitbreaker.StateOpen {
		t.Errorf("state = %s, want open", g.breaker.State())
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want calls to stop once open", hits.Load())
	}
}

func TestGoTrueUpdatePassword(t *testing.T) {
	var status, hits atomic.Int32
	srv := newGoTrueServer(t, &status, &hits)
	g, _ := NewGoTrue(RemoteConfig{URL: srv.URL, APIKey: "anon-key"}, nil)

	ident, err := g.UpdatePassword(context.Background(), "recovery-token", "new-secret")
	if err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if ident.AccessToken != "recovery-token" || ident.Email != "dr.sharma@hospital.com" {
		t.Errorf("identity = %+v", ident)
	}
	if _, err := g.UpdatePassword(context.Background(), "stale", "new-secret"); !errors.Is(err, ErrRejected) {
		t.Errorf("stale token: err = %v", err)
	}
}

func TestNewGoTrueRequiresURL(t *testing.T) {
	if _, err := NewGoTrue(RemoteConfig{URL: "not a url"}, nil); err == nil {
		t.Error("expected error")
	}
}
