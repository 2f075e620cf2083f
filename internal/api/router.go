// Package api assembles the HTTP router of the hospital API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api/handlers"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api/middleware"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
)

// ServiceName labels traces and the health payload.
const ServiceName = "hospital-api"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerHealth lists the circuit breakers guarding outbound calls.
type BreakerHealth interface {
	Health() []circuitbreaker.HealthStatus
}

// Handlers bundles every endpoint group.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Patients      *handlers.PatientHandler
	Doctors       *handlers.DoctorHandler
	Appointments  *handlers.AppointmentHandler
	Inventory     *handlers.InventoryHandler
	Prescriptions *handlers.PrescriptionHandler
	Invoices      *handlers.InvoiceHandler
	Documents     *handlers.DocumentHandler
	Reports       *handlers.ReportHandler
	Settings      *handlers.SettingsHandler
}

// Deps is everything the router needs besides the handlers.
type Deps struct {
	Sessions    middleware.SessionVerifier
	Metrics     *metrics.Metrics
	DB          Pinger
	Breakers    BreakerHealth
	CORSOrigins []string
	Version     string
	Logger      *zap.Logger
}

// NewRouter wires the middleware chain and every route.
func NewRouter(h Handlers, d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(ServiceName))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": ServiceName,
			"version": d.Version,
		})
	})
	r.Get("/ready", readyHandler(d))

	authenticated := middleware.Authenticate(d.Sessions, logger)
	adminOnly := middleware.RequireRole(settings.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-in", h.Auth.SignIn)
			r.Post("/sign-up", h.Auth.SignUp)
			r.Post("/forgot-password", h.Auth.ForgotPassword)
			r.Post("/reset-password", h.Auth.ResetPassword)
			r.With(authenticated).Post("/sign-out", h.Auth.SignOut)
			r.With(authenticated).Get("/session", h.Auth.Session)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Route("/patients", func(r chi.Router) {
				r.Get("/", h.Patients.List)
				r.Post("/", h.Patients.Create)
				r.Get("/{id}", h.Patients.Get)
				r.Put("/{id}", h.Patients.Update)
				r.Delete("/{id}", h.Patients.Delete)
				r.Get("/{id}/summary", h.Patients.Summary)
			})

			r.Route("/doctors", func(r chi.Router) {
				r.Get("/", h.Doctors.List)
				r.Post("/", h.Doctors.Create)
				r.Get("/{id}", h.Doctors.Get)
				r.Put("/{id}", h.Doctors.Update)
				r.Delete("/{id}", h.Doctors.Delete)
			})

			r.Route("/appointments", func(r chi.Router) {
				r.Get("/", h.Appointments.List)
				r.Post("/", h.Appointments.Create)
				r.Get("/{id}", h.Appointments.Get)
				r.Put("/{id}", h.Appointments.Update)
				r.Post("/{id}/cancel", h.Appointments.Cancel)
				r.Post("/{id}/complete", h.Appointments.Complete)
				r.Post("/{id}/no-show", h.Appointments.NoShow)
			})

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", h.Inventory.List)
				r.Get("/{id}", h.Inventory.Get)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(settings.RolePharmacy))
					r.Post("/", h.Inventory.Create)
					r.Put("/{id}", h.Inventory.Update)
					r.Delete("/{id}", h.Inventory.Delete)
					r.Post("/{id}/restock", h.Inventory.Restock)
					r.Post("/{id}/adjust", h.Inventory.Adjust)
				})
			})

			r.Route("/prescriptions", func(r chi.Router) {
				r.Get("/", h.Prescriptions.List)
				r.With(middleware.RequireRole(settings.RoleDoctor)).Post("/", h.Prescriptions.Create)
				r.Get("/{id}", h.Prescriptions.Get)
				r.Get("/{id}/events", h.Prescriptions.Events)
				r.With(middleware.RequireRole(settings.RolePharmacy)).Post("/{id}/dispense", h.Prescriptions.Dispense)
				r.Post("/{id}/cancel", h.Prescriptions.Cancel)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Use(middleware.RequireRole(settings.RoleStaff, settings.RolePharmacy))
				r.Get("/", h.Invoices.List)
				r.Post("/", h.Invoices.Create)
				r.Get("/{id}", h.Invoices.Get)
				r.Put("/{id}", h.Invoices.Update)
				r.Post("/{id}/issue", h.Invoices.Issue)
				r.Post("/{id}/pay", h.Invoices.Pay)
				r.Post("/{id}/void", h.Invoices.Void)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", h.Documents.List)
				r.Post("/", h.Documents.Upload)
				r.Get("/{id}", h.Documents.Get)
				r.Get("/{id}/content", h.Documents.Content)
				r.Delete("/{id}", h.Documents.Delete)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/dashboard", h.Reports.Dashboard)
				r.Get("/series", h.Reports.Series)
				r.Get("/activity", h.Reports.Activity)
			})

			r.Get("/profile", h.Settings.Profile)
			r.Put("/profile", h.Settings.UpdateProfile)
			r.Get("/settings", h.Settings.Hospital)
			r.With(adminOnly).Put("/settings", h.Settings.UpdateHospital)
			r.With(adminOnly).Get("/users", h.Settings.Users)
			r.With(adminOnly).Put("/users/{id}/role", h.Settings.SetRole)
		})
	})

	return r
}

func readyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := map[string]any{"status": "ready"}
		code := http.StatusOK
		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				body["status"] = "not ready"
				body["database"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if d.Breakers != nil {
			health := d.Breakers.Health()
			body["circuit_breakers"] = health
			if d.Metrics != nil {
				d.Metrics.ObserveBreakers(health)
			}
		}
		writeStatus(w, code, body)
	}
}

func writeStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
