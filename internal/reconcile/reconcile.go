// Package reconcile pulls provider-side progress into the database in the
// background: document submissions whose provider confirmation never arrived
// and verifications stuck waiting for a provider result.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"enrolld/internal/identity/document"
	identityservice "enrolld/internal/identity/service"
	"enrolld/internal/identity/store"
	"enrolld/internal/platform/metrics"
	"enrolld/pkg/owner"
)

const (
	sweepSubmits       = "document_submits"
	sweepVerifications = "verification_results"
)

// Scheduler periodically runs the reconciliation sweeps until its context is
// cancelled. Each entry commits independently; one failing entry is logged
// and skipped, never aborting the sweep.
type Scheduler struct {
	store    store.Store
	engine   *document.Engine
	identity *identityservice.Service
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a scheduler sweeping at the given interval.
func New(st store.Store, engine *document.Engine, identity *identityservice.Service, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		engine:   engine,
		identity: identity,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run blocks sweeping until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tick runs both sweeps once, in parallel. Exported for testability; Run
// calls it on every interval.
func (s *Scheduler) Tick(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.sweepDocumentSubmits(ctx)
		return nil
	})
	g.Go(func() error {
		s.sweepVerificationResults(ctx)
		return nil
	})
	_ = g.Wait()
}

// sweepDocumentSubmits re-polls the provider for documents whose submission
// outcome was never recorded, e.g. because the process crashed between the
// provider call and the commit.
func (s *Scheduler) sweepDocumentSubmits(ctx context.Context) {
	start := time.Now()
	defer s.observe(sweepSubmits, start)

	docs, err := s.store.ListDocumentsPendingSubmitCheck(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list documents pending submit check",
			slog.String("error", err.Error()))
		return
	}
	for i := range docs {
		doc := &docs[i]
		ownerID := owner.ID{ActivationID: doc.ActivationID}
		if err := s.engine.CheckDocumentSubmitWithProvider(ctx, ownerID, doc); err != nil {
			s.fail(sweepSubmits)
			s.logger.WarnContext(ctx, "document submit check failed",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
		}
	}
}

// sweepVerificationResults polls provider results for verifications stuck in
// the document verification phase.
func (s *Scheduler) sweepVerificationResults(ctx context.Context) {
	start := time.Now()
	defer s.observe(sweepVerifications, start)

	ivs, err := s.store.ListVerificationsWithDocumentsInProgress(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list verifications in progress",
			slog.String("error", err.Error()))
		return
	}
	for i := range ivs {
		iv := &ivs[i]
		if err := s.identity.ReconcileVerification(ctx, iv); err != nil {
			s.fail(sweepVerifications)
			s.logger.WarnContext(ctx, "verification result check failed",
				slog.String("identity_verification_id", iv.ID),
				slog.String("process_id", iv.ProcessID),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) observe(sweep string, start time.Time) {
	if s.metrics != nil {
		s.metrics.SweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
	}
}

func (s *Scheduler) fail(sweep string) {
	if s.metrics != nil {
		s.metrics.SweepItemFailures.WithLabelValues(sweep).Inc()
	}
}
