package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api/handlers"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/auth"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
)

type tokenSessions map[string]*auth.Principal

func (s tokenSessions) CurrentSession(_ context.Context, token string) (*auth.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, auth.ErrUnauthorized
}

func principalWith(role settings.Role) *auth.Principal {
	return &auth.Principal{UserID: uuid.New(), Role: role, ExpiresAt: time.Now().Add(time.Hour)}
}

var roleTokens = tokenSessions{
	"admin":    principalWith(settings.RoleAdmin),
	"doctor":   principalWith(settings.RoleDoctor),
	"nurse":    principalWith(settings.RoleNurse),
	"staff":    principalWith(settings.RoleStaff),
	"pharmacy": principalWith(settings.RolePharmacy),
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestRouter(db Pinger) http.Handler {
	logger := zap.NewNop()
	h := Handlers{
		Auth:          handlers.NewAuthHandler(nil, nil, logger),
		Patients:      handlers.NewPatientHandler(nil, handlers.PatientRecords{}, logger),
		Doctors:       handlers.NewDoctorHandler(nil, logger),
		Appointments:  handlers.NewAppointmentHandler(nil, logger),
		Inventory:     handlers.NewInventoryHandler(nil, logger),
		Prescriptions: handlers.NewPrescriptionHandler(nil, logger),
		Invoices:      handlers.NewInvoiceHandler(nil, logger),
		Documents:     handlers.NewDocumentHandler(nil, logger),
		Reports:       handlers.NewReportHandler(nil, logger),
		Settings:      handlers.NewSettingsHandler(nil, logger),
	}
	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig("supplier"), logger)
	breakers.Get("supplier:medline")
	return NewRouter(h, Deps{
		Sessions: roleTokens,
		Metrics:  metrics.New(),
		DB:       db,
		Breakers: breakers,
		Version:  "test",
		Logger:   logger,
	})
}

// The paths below carry a malformed id, so a request that clears the role
// check is answered 400 by the handler before any service is touched.
func TestRoleRules(t *testing.T) {
	router := newTestRouter(pinger{})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous", http.MethodGet, "/api/v1/patients/x", "", http.StatusUnauthorized},
		{"any role reads patients", http.MethodGet, "/api/v1/patients/x", "nurse", http.StatusBadRequest},
		{"nurse cannot restock", http.MethodPost, "/api/v1/inventory/x/restock", "nurse", http.StatusForbidden},
		{"pharmacy restocks", http.MethodPost, "/api/v1/inventory/x/restock", "pharmacy", http.StatusBadRequest},
		{"admin restocks", http.MethodPost, "/api/v1/inventory/x/restock", "admin", http.StatusBadRequest},
		{"nurse reads inventory", http.MethodGet, "/api/v1/inventory/x", "nurse", http.StatusBadRequest},
		{"doctor cannot dispense", http.MethodPost, "/api/v1/prescriptions/x/dispense", "doctor", http.StatusForbidden},
		{"pharmacy dispenses", http.MethodPost, "/api/v1/prescriptions/x/dispense", "pharmacy", http.StatusBadRequest},
		{"pharmacy cannot prescribe", http.MethodPost, "/api/v1/prescriptions/", "pharmacy", http.StatusForbidden},
		{"doctor prescribes", http.MethodPost, "/api/v1/prescriptions/", "doctor", http.StatusBadRequest},
		{"nurse cannot bill", http.MethodGet, "/api/v1/invoices/x", "nurse", http.StatusForbidden},
		{"staff bills", http.MethodGet, "/api/v1/invoices/x", "staff", http.StatusBadRequest},
		{"pharmacy bills", http.MethodPost, "/api/v1/invoices/x/pay", "pharmacy", http.StatusBadRequest},
		{"nurse cannot set roles", http.MethodPut, "/api/v1/users/x/role", "nurse", http.StatusForbidden},
		{"admin sets roles", http.MethodPut, "/api/v1/users/x/role", "admin", http.StatusBadRequest},
		{"doctor cannot edit settings", http.MethodPut, "/api/v1/settings", "doctor", http.StatusForbidden},
		{"session needs a token", http.MethodGet, "/api/v1/auth/session", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(pinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != ServiceName || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
	}{
		{"database up", pinger{}, http.StatusOK},
		{"database down", pinger{err: errors.New("dial tcp: connection refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(tt.db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body struct {
				CircuitBreakers []circuitbreaker.HealthStatus `json:"circuit_breakers"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if len(body.CircuitBreakers) != 1 || body.CircuitBreakers[0].Name != "supplier:medline" {
				t.Errorf("breakers = %+v", body.CircuitBreakers)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(pinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
