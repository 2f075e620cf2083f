package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/auth"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/cache"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
)

type fakeSessions map[string]*auth.Principal

func (f fakeSessions) CurrentSession(_ context.Context, token string) (*auth.Principal, error) {
	if token == "broken" {
		return nil, errors.New("redis: connection refused")
	}
	p, ok := f[token]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return p, nil
}

var nurseID = uuid.MustParse("0b5d7f1e-2c3a-4e8b-9f60-1a2b3c4d5e6f")

var sessions = fakeSessions{
	"nurse-token": {UserID: nurseID, Role: settings.RoleNurse, ExpiresAt: time.Now().Add(time.Hour)},
	"admin-token": {UserID: uuid.New(), Role: settings.RoleAdmin, ExpiresAt: time.Now().Add(time.Hour)},
}

func echoActor(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(events.ActorFromContext(r.Context())))
}

func TestAuthenticate(t *testing.T) {
	h := Authenticate(sessions, zap.NewNop())(http.HandlerFunc(echoActor))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer stale", http.StatusUnauthorized},
		{"verifier failure", "Bearer broken", http.StatusInternalServerError},
		{"valid", "Bearer nurse-token", http.StatusOK},
		{"case-insensitive scheme", "bearer nurse-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK && rec.Body.String() != nurseID.String() {
				t.Errorf("actor = %q", rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Authenticate(sessions, zap.NewNop())(RequireRole(settings.RolePharmacy)(ok))

	for token, want := range map[string]int{
		"nurse-token": http.StatusForbidden,
		"admin-token": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/x/dispense", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", token, rec.Code, want)
		}
	}

	rec := httptest.NewRecorder()
	RequireRole(settings.RoleDoctor)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no principal: status = %d", rec.Code)
	}
}

type roleTable map[uuid.UUID]settings.Role

func (r roleTable) RoleOf(_ context.Context, id uuid.UUID) (settings.Role, bool, error) {
	role, ok := r[id]
	return role, ok, nil
}

func (r roleTable) EnsureProfile(_ context.Context, id uuid.UUID, email string, role settings.Role) (*settings.Profile, error) {
	if _, ok := r[id]; !ok {
		r[id] = role
	}
	return &settings.Profile{ID: id, Email: email, Role: r[id]}, nil
}

func TestRequireRoleAfterDemotion(t *testing.T) {
	dir := auth.NewDirectory(bcrypt.MinCost)
	if err := dir.Seed(auth.DemoAccounts()...); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tokens, err := auth.NewTokens("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	roles := roleTable{}
	svc := auth.NewService(nil, dir, tokens, cache.NewMemory(), roles, nil)

	ctx := context.Background()
	sess, err := svc.SignIn(ctx, "admin@hospital.com", auth.DemoPassword)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Authenticate(svc, zap.NewNop())(RequireRole(settings.RoleAdmin)(ok))
	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := call(); code != http.StatusNoContent {
		t.Fatalf("admin: status = %d", code)
	}
	roles[sess.Principal.UserID] = settings.RoleStaff
	if err := svc.ForgetRole(ctx, sess.Principal.UserID); err != nil {
		t.Fatalf("ForgetRole: %v", err)
	}
	if code := call(); code != http.StatusForbidden {
		t.Errorf("demoted admin: status = %d, want 403", code)
	}
}

func TestLoggerRecordsUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestID(Logger(zap.New(core))(Authenticate(sessions, zap.NewNop())(http.HandlerFunc(echoActor))))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer nurse-token")
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["user_id"] != nurseID.String() || fields["request_id"] != "req-42" {
		t.Errorf("fields = %v", fields)
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/patients/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+id, nil))
	}
	got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/patients/{id}", "404"))
	if got != 3 {
		t.Errorf("count = %v, want 3", got)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://hub.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	pre := httptest.NewRequest(http.MethodOptions, "/api/v1/patients", nil)
	pre.Header.Set("Origin", "https://hub.example")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://hub.example" {
		t.Errorf("preflight: status = %d, headers = %v", rec.Code, rec.Header())
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin allowed")
	}
}

func TestRecover(t *testing.T) {
	h := Recover(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
