package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
)

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/v1/patients", 200, 20*time.Millisecond)
	m.ObserveHTTP(http.MethodGet, "/api/v1/patients", 200, 5*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/api/v1/patients", 422, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/patients", "200")); got != 2 {
		t.Errorf("GET 200 count = %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/patients", "422")); got != 1 {
		t.Errorf("POST 422 count = %v", got)
	}
}

func TestObserveBreakers(t *testing.T) {
	m := New()
	m.ObserveBreakers([]circuitbreaker.HealthStatus{
		{Name: "MedSupply Co", State: circuitbreaker.StateOpen},
		{Name: "PharmaDirect", State: circuitbreaker.StateClosed},
	})
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("MedSupply Co")); got != 1 {
		t.Errorf("open breaker = %v", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("PharmaDirect")); got != 0 {
		t.Errorf("closed breaker = %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.EventsPublished.WithLabelValues("patient.registered").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `hospital_events_published_total{type="patient.registered"} 1`) {
		t.Errorf("metric missing from /metrics output")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Errorf("runtime collector missing")
	}
}
