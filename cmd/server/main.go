package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"enrolld/internal/audit"
	"enrolld/internal/identity/document"
	"enrolld/internal/identity/guard"
	identityservice "enrolld/internal/identity/service"
	identitystore "enrolld/internal/identity/store"
	onboardingservice "enrolld/internal/onboarding/service"
	onboardingstore "enrolld/internal/onboarding/store"
	otpservice "enrolld/internal/otp/service"
	otpstore "enrolld/internal/otp/store"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/database"
	"enrolld/internal/platform/httpserver"
	"enrolld/internal/platform/logger"
	"enrolld/internal/platform/metrics"
	"enrolld/internal/platform/middleware"
	platformredis "enrolld/internal/platform/redis"
	"enrolld/internal/provider"
	"enrolld/internal/provider/mock"
	"enrolld/internal/reconcile"
	httptransport "enrolld/internal/transport/http"
	"enrolld/pkg/platform/tx"
)

const leaseTTL = 30 * time.Second

// main wires configuration, storage, providers and services together and
// runs the HTTP server until a shutdown signal arrives. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	processStore := onboardingstore.NewPostgres(db)
	otpStore := otpstore.NewPostgres(db)
	identityStore := identitystore.NewPostgres(db)
	txRunner := tx.DBRunner{DB: db}

	var processGuard guard.Guard = guard.NewMemory(leaseTTL)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		processGuard = guard.NewRedis(redisClient.Client, leaseTTL)
		log.Info("process guard backed by redis")
	} else {
		log.Info("no redis configured, process guard runs in-process")
	}

	registry := provider.NewRegistry()
	registry.RegisterOnboarding(mock.Name, mock.NewOnboardingProvider(log))
	registry.RegisterVerification(mock.Name, mock.NewDocumentVerificationProvider())
	registry.RegisterPresence(mock.Name, mock.NewPresenceCheckProvider())
	registry.RegisterEvaluation(mock.Name, mock.NewClientEvaluationProvider())

	onboardingProvider, err := registry.Onboarding(cfg.Identity.OnboardingProvider)
	if err != nil {
		log.Error("failed to resolve onboarding provider", "error", err)
		os.Exit(1)
	}
	verificationProvider, err := registry.Verification(cfg.Identity.DocumentVerificationProvider)
	if err != nil {
		log.Error("failed to resolve document verification provider", "error", err)
		os.Exit(1)
	}
	presenceProvider, err := registry.Presence(cfg.Identity.PresenceCheckProvider)
	if err != nil {
		log.Error("failed to resolve presence check provider", "error", err)
		os.Exit(1)
	}
	evaluationProvider, err := registry.Evaluation(cfg.Identity.ClientEvaluationProvider)
	if err != nil {
		log.Error("failed to resolve client evaluation provider", "error", err)
		os.Exit(1)
	}
	activations := mock.NewActivationService(log)

	m := metrics.New()

	var auditPublisher *audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		auditPublisher, err = audit.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, audit.WithLogger(log))
		if err != nil {
			log.Error("failed to create audit publisher", "error", err)
			os.Exit(1)
		}
		if err := auditPublisher.EnsureTopic(ctx, 1, 1); err != nil {
			log.Error("failed to ensure audit topic", "error", err)
			os.Exit(1)
		}
		log.Info("audit trail publishing enabled", "topic", cfg.Kafka.AuditTopic)
	}

	otps := otpservice.New(otpStore, processStore, cfg.Onboarding,
		otpservice.WithLogger(log), otpservice.WithMetrics(m))

	lifecycleOpts := []onboardingservice.Option{
		onboardingservice.WithLogger(log),
		onboardingservice.WithMetrics(m),
	}
	if auditPublisher != nil {
		lifecycleOpts = append(lifecycleOpts, onboardingservice.WithAuditPublisher(auditPublisher))
	}
	lifecycle := onboardingservice.New(processStore, otps, onboardingProvider, activations, cfg.Onboarding, lifecycleOpts...)

	engine := document.New(identityStore, verificationProvider, txRunner, cfg.Identity,
		document.WithLogger(log), document.WithMetrics(m))

	identityOpts := []identityservice.Option{
		identityservice.WithLogger(log),
		identityservice.WithMetrics(m),
	}
	if auditPublisher != nil {
		identityOpts = append(identityOpts, identityservice.WithAuditPublisher(auditPublisher))
	}
	identity := identityservice.New(identityservice.Deps{
		Store:       identityStore,
		Processes:   processStore,
		Engine:      engine,
		Guard:       processGuard,
		Otps:        otps,
		Onboarding:  onboardingProvider,
		Verifier:    verificationProvider,
		Presence:    presenceProvider,
		Evaluation:  evaluationProvider,
		Activations: activations,
		TxRunner:    txRunner,
	}, cfg.Identity, identityOpts...)

	if cfg.Reconciliation.Enabled {
		scheduler := reconcile.New(identityStore, engine, identity, cfg.Reconciliation.Interval,
			reconcile.WithLogger(log), reconcile.WithMetrics(m))
		go func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("reconciliation scheduler stopped", "error", err)
			}
		}()
		log.Info("reconciliation sweeps enabled", "interval", cfg.Reconciliation.Interval.String())
	}

	validator := middleware.NewTokenValidator(cfg.Server.JWTSigningKey)
	handler := httptransport.NewHandler(lifecycle, identity, validator, log)
	router := httptransport.NewRouter(handler)

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("starting enrolld", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if auditPublisher != nil {
		if err := auditPublisher.Close(shutdownCtx); err != nil {
			log.Warn("audit publisher close failed", "error", err)
		}
	}
}
