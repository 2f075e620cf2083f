package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api/handlers"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/auth"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/calendar"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/config"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/appointment"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/billing"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/doctor"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/document"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/patient"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/prescription"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/report"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/settings"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/blob"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/cache"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/redis"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/tracing"
	"github.com/abhishek2k21/purpletide-hospital-hub/pkg/circuitbreaker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	e, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	cfg, logger, pool := e.cfg, e.logger, e.pool

	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    api.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	store, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	blobs, err := openBlobs(cfg, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig("default"), logger)

	settingsSvc := settings.NewService(settings.NewPGStore(pool), logger)
	zone := calendar.NewZone(settingsSvc.Location, time.Minute)
	settingsSvc.OnHospitalChanged(zone.Invalidate)

	patients := patient.NewService(patient.NewPGStore(pool), logger).WithBlobs(blobs)
	doctors := doctor.NewService(doctor.NewPGStore(pool), logger)
	stock := inventory.NewService(inventory.NewPGStore(pool), logger)
	appointments := appointment.NewService(appointment.NewPGStore(pool), patients, doctors, zone, logger)
	prescriptions := prescription.NewService(prescription.NewPGStore(pool), patients, doctors, stock, logger)
	invoices := billing.NewService(billing.NewPGStore(pool), patients, appointments, stock, settingsSvc, zone, logger)
	documents := document.NewService(document.NewPGStore(pool), blobs, patients, logger)
	reports := report.NewService(report.NewPGStore(pool), store, cfg.ReportCacheTTL, zone, logger)

	authSvc, err := newAuth(cfg, store, settingsSvc, breakers, logger)
	if err != nil {
		return err
	}
	settingsSvc.OnRoleChanged(authSvc.ForgetRole)

	h := api.Handlers{
		Auth: handlers.NewAuthHandler(authSvc, m, logger),
		Patients: handlers.NewPatientHandler(patients, handlers.PatientRecords{
			Appointments:  appointments,
			Prescriptions: prescriptions,
			Invoices:      invoices,
			Documents:     documents,
		}, logger),
		Doctors:       handlers.NewDoctorHandler(doctors, logger),
		Appointments:  handlers.NewAppointmentHandler(appointments, logger),
		Inventory:     handlers.NewInventoryHandler(stock, logger),
		Prescriptions: handlers.NewPrescriptionHandler(prescriptions, logger),
		Invoices:      handlers.NewInvoiceHandler(invoices, logger),
		Documents:     handlers.NewDocumentHandler(documents, logger),
		Reports:       handlers.NewReportHandler(reports, logger),
		Settings:      handlers.NewSettingsHandler(settingsSvc, logger),
	}
	router := api.NewRouter(h, api.Deps{
		Sessions:    authSvc,
		Metrics:     m,
		DB:          pool,
		Breakers:    breakers,
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting hospital API", zap.String("port", cfg.Port), zap.String("version", version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}
	logger.Info("server stopped")
	return nil
}

func newAuth(cfg *config.Config, store cache.Cache, profiles auth.Profiles, breakers *circuitbreaker.Manager, logger *zap.Logger) (*auth.Service, error) {
	directory := auth.NewDirectory(0)
	if cfg.SeedDemoAccounts {
		if err := directory.Seed(auth.DemoAccounts()...); err != nil {
			return nil, err
		}
		logger.Info("demo accounts loaded", zap.Int("count", len(auth.DemoAccounts())))
	}

	var remote auth.Remote
	if cfg.AuthProviderURL != "" {
		gt, err := auth.NewGoTrue(auth.RemoteConfig{
			URL:     cfg.AuthProviderURL,
			APIKey:  cfg.AuthProviderKey,
			Timeout: cfg.AuthProviderTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		breakers.Add(gt.Breaker())
		remote = gt
	} else {
		logger.Info("no auth provider configured, using the local directory only")
	}

	secret := cfg.SessionSecret
	if secret == "" {
		// ValidateAPI only lets this through in development.
		secret = randomSecret()
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	tokens, err := auth.NewTokens(secret, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return auth.NewService(remote, directory, tokens, store, profiles, logger), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, using an in-process cache")
		return cache.NewMemory(), func() {}, nil
	}
	client, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to redis")
	return cache.NewRedis(client, "hospital:"), func() { _ = client.Close() }, nil
}

func openBlobs(cfg *config.Config, logger *zap.Logger) (blob.Store, error) {
	if cfg.S3Endpoint == "" && cfg.S3AccessKey == "" {
		if !cfg.IsDev() {
			return nil, errors.New("S3_ENDPOINT or S3_ACCESS_KEY is required outside development")
		}
		logger.Warn("no object storage configured, documents are kept in memory")
		return blob.NewMemoryStore(), nil
	}
	return blob.NewS3Store(blob.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}, logger)
}
