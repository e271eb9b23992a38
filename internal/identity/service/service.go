// Package service orchestrates one activation's identity verification: it
// owns the phase/status workflow, delegates document work to the document
// engine, gates transitions through the state machine and serializes
// mutations with the concurrency guard.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"enrolld/internal/identity/document"
	"enrolld/internal/identity/guard"
	"enrolld/internal/identity/models"
	"enrolld/internal/identity/requiredcheck"
	"enrolld/internal/identity/statemachine"
	"enrolld/internal/identity/store"
	onboardingmodels "enrolld/internal/onboarding/models"
	onboardingstore "enrolld/internal/onboarding/store"
	otpmodels "enrolld/internal/otp/models"
	otpservice "enrolld/internal/otp/service"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/metrics"
	"enrolld/internal/provider"
	domainerrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/owner"
	"enrolld/pkg/requestcontext"
	"enrolld/pkg/platform/tx"
)

// AuditPublisher records workflow milestones on the audit trail. Publishing
// must never block or fail an operation.
type AuditPublisher interface {
	Publish(ctx context.Context, eventType string, fields map[string]string)
}

// Service is the identity verification orchestrator.
type Service struct {
	store       store.Store
	processes   onboardingstore.Store
	engine      *document.Engine
	guard       guard.Guard
	otps        *otpservice.Service
	check       *requiredcheck.Check
	onboarding  provider.OnboardingProvider
	verifier    provider.DocumentVerificationProvider
	presence    provider.PresenceCheckProvider
	evaluation  provider.ClientEvaluationProvider
	activations provider.ActivationService
	txr         tx.Runner
	config      config.IdentityVerificationConfig
	metrics     *metrics.Metrics
	audit       AuditPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Store       store.Store
	Processes   onboardingstore.Store
	Engine      *document.Engine
	Guard       guard.Guard
	Otps        *otpservice.Service
	Onboarding  provider.OnboardingProvider
	Verifier    provider.DocumentVerificationProvider
	Presence    provider.PresenceCheckProvider
	Evaluation  provider.ClientEvaluationProvider
	Activations provider.ActivationService
	TxRunner    tx.Runner
}

// New constructs the orchestrator.
func New(deps Deps, cfg config.IdentityVerificationConfig, opts ...Option) *Service {
	s := &Service{
		store:       deps.Store,
		processes:   deps.Processes,
		engine:      deps.Engine,
		guard:       deps.Guard,
		otps:        deps.Otps,
		check:       requiredcheck.New(cfg.RequiredDocumentCount, models.DocumentType(cfg.PrimaryDocumentType)),
		onboarding:  deps.Onboarding,
		verifier:    deps.Verifier,
		presence:    deps.Presence,
		evaluation:  deps.Evaluation,
		activations: deps.Activations,
		txr:         deps.TxRunner,
		config:      cfg,
		tracer:      otel.Tracer("enrolld/identity"),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// withProcessLock serializes a mutating transition: acquire the lease, then
// re-read the process under the lock. A process that cannot be matched under
// the lock aborts the transition instead of proceeding on stale state.
func (s *Service) withProcessLock(ctx context.Context, ownerID owner.ID, processID string, fn func(ctx context.Context, process *onboardingmodels.Process) error) error {
	lease, err := s.guard.Acquire(ctx, processID)
	if err != nil {
		if domainerrors.HasCode(err, domainerrors.CodeStateConflict) && s.metrics != nil {
			s.metrics.GuardContention.Inc()
		}
		return err
	}
	defer func() {
		if rErr := lease.Release(ctx); rErr != nil {
			s.logger.WarnContext(ctx, "failed to release process lease",
				slog.String("process_id", processID),
				slog.String("error", rErr.Error()))
		}
	}()

	process, err := s.processes.FindByActivationIDAndStatus(ctx, ownerID.ActivationID, onboardingmodels.StatusVerificationInProgress)
	if err != nil {
		if errors.Is(err, onboardingstore.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeFatalOrchestration, "no verification-in-progress process for activation")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "load process under lock")
	}
	if process.ID != processID {
		return domainerrors.New(domainerrors.CodeFatalOrchestration, "process does not match activation")
	}
	return fn(ctx, process)
}

// InitializeIdentityVerification creates the identity verification for the
// activation in the initial DOCUMENT_UPLOAD/IN_PROGRESS state. A still
// running verification for the same activation is a state conflict.
func (s *Service) InitializeIdentityVerification(ctx context.Context, ownerID owner.ID, processID string) (*models.IdentityVerification, error) {
	var created *models.IdentityVerification
	err := s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, process *onboardingmodels.Process) error {
		existing, err := s.store.FindLatestVerificationByActivation(ctx, ownerID.ActivationID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "find latest verification")
		}
		if err == nil && !existing.Terminal() {
			return domainerrors.New(domainerrors.CodeStateConflict, "identity verification already in progress")
		}

		iv := &models.IdentityVerification{
			ID:               uuid.NewString(),
			ActivationID:     ownerID.ActivationID,
			UserID:           process.UserID,
			ProcessID:        process.ID,
			Phase:            statemachine.Initial.Phase,
			Status:           statemachine.Initial.Status,
			TimestampCreated: s.now(),
		}
		if err := s.store.CreateVerification(ctx, iv); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "create identity verification")
		}
		created = iv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.VerificationsStarted.Inc()
	}
	s.publish(ctx, "identity_verification_initialized", map[string]string{
		"process_id":    processID,
		"activation_id": ownerID.ActivationID,
	})
	return created, nil
}

// SubmitDocuments gates the submission on the document-upload phase,
// delegates to the document engine and recomputes the ready-for-verification
// signal.
func (s *Service) SubmitDocuments(ctx context.Context, ownerID owner.ID, processID string, req document.SubmitRequest) ([]models.DocumentVerification, error) {
	var out []models.DocumentVerification
	err := s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, _ *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := statemachine.Apply(iv, statemachine.EventDocumentsSubmitted); err != nil {
			return err
		}

		ctx, span := s.tracer.Start(ctx, "document.submit")
		docs, err := s.engine.SubmitDocuments(ctx, ownerID, iv, req)
		span.End()
		if err != nil {
			return err
		}
		out = docs

		iv.TimestampUpdated = s.now()
		if err := s.store.UpdateVerification(ctx, iv); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
		}
		return s.checkDocumentsReady(ctx, iv)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckIdentityDocumentsForVerification flips the verification to
// VERIFICATION_PENDING when every document counted toward the outcome has
// finished provider-side processing. It stays in the upload phase: the
// signal means "ready, waiting for a trigger", not "verifying".
func (s *Service) CheckIdentityDocumentsForVerification(ctx context.Context, ownerID owner.ID, processID string) error {
	return s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, _ *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		return s.checkDocumentsReady(ctx, iv)
	})
}

func (s *Service) checkDocumentsReady(ctx context.Context, iv *models.IdentityVerification) error {
	state := statemachine.State{Phase: iv.Phase, Status: iv.Status}
	if !statemachine.Allowed(state, statemachine.EventDocumentsReady) {
		return nil
	}
	docs, err := s.store.ListDocumentsUsedForVerification(ctx, iv.ID)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "list documents")
	}
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if doc.Status != models.DocumentStatusVerificationPending {
			return nil
		}
	}
	if err := statemachine.Apply(iv, statemachine.EventDocumentsReady); err != nil {
		return err
	}
	iv.TimestampUpdated = s.now()
	if err := s.store.UpdateVerification(ctx, iv); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
	}
	return nil
}

// UploadDocument stages a binary payload for a later document submission.
func (s *Service) UploadDocument(ctx context.Context, ownerID owner.ID, image provider.Image) (*models.StagedUpload, error) {
	iv, err := s.currentVerification(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if iv.Terminal() {
		return nil, domainerrors.New(domainerrors.CodeStateConflict, "identity verification already completed")
	}
	return s.engine.UploadDocument(ctx, ownerID, iv, image)
}

// StartVerification sends all pending documents to the provider as one
// batched verification and moves the workflow to DOCUMENT_VERIFICATION.
func (s *Service) StartVerification(ctx context.Context, ownerID owner.ID, processID string) error {
	return s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, _ *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := statemachine.Apply(iv, statemachine.EventVerificationStarted); err != nil {
			return err
		}

		docs, err := s.store.ListDocuments(ctx, iv.ID, []models.DocumentStatus{models.DocumentStatusVerificationPending})
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "list pending documents")
		}
		uploadIDs := make([]string, 0, len(docs))
		for _, doc := range docs {
			if doc.Type == models.DocumentTypeSelfiePhoto && !s.config.VerifySelfieWithDocumentsEnabled {
				continue
			}
			uploadIDs = append(uploadIDs, doc.UploadID)
		}
		if len(uploadIDs) == 0 {
			return domainerrors.New(domainerrors.CodeStateConflict, "no documents pending verification")
		}

		ctx, span := s.tracer.Start(ctx, "provider.verify_documents")
		result, err := s.verifier.VerifyDocuments(ctx, ownerID, uploadIDs)
		span.End()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeProvider, "verify documents")
		}

		now := s.now()
		return s.txr.Run(ctx, func(ctx context.Context) error {
			for i := range docs {
				doc := &docs[i]
				if doc.Type == models.DocumentTypeSelfiePhoto && !s.config.VerifySelfieWithDocumentsEnabled {
					// Excluded from the bundle, so nothing will ever resolve it.
					doc.Status = models.DocumentStatusAccepted
					doc.TimestampUpdated = now
					if err := s.store.UpdateDocument(ctx, doc); err != nil {
						return domainerrors.Wrap(err, domainerrors.CodeInternal, "update document")
					}
					continue
				}
				doc.Status = models.DocumentStatusVerificationInProgress
				doc.VerificationID = result.VerificationID
				doc.TimestampUpdated = now
				if err := s.store.UpdateDocument(ctx, doc); err != nil {
					return domainerrors.Wrap(err, domainerrors.CodeInternal, "update document")
				}
			}
			iv.TimestampUpdated = now
			if err := s.store.UpdateVerification(ctx, iv); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
			}
			return nil
		})
	})
}

// CheckVerificationResult polls the provider for every batched verification
// the documents belong to, applies per-document outcomes and resolves the
// aggregate when all documents reached a terminal status.
func (s *Service) CheckVerificationResult(ctx context.Context, ownerID owner.ID, processID string) error {
	return s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, process *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		return s.checkVerificationResult(ctx, ownerID, process, iv)
	})
}

func (s *Service) checkVerificationResult(ctx context.Context, ownerID owner.ID, process *onboardingmodels.Process, iv *models.IdentityVerification) error {
	if iv.Phase != models.PhaseDocumentVerification || iv.Status != models.StatusInProgress {
		return domainerrors.New(domainerrors.CodeStateConflict, "verification is not awaiting document results")
	}

	docs, err := s.store.ListDocuments(ctx, iv.ID, []models.DocumentStatus{models.DocumentStatusVerificationInProgress})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "list documents in verification")
	}
	byVerification := make(map[string][]*models.DocumentVerification)
	for i := range docs {
		doc := &docs[i]
		byVerification[doc.VerificationID] = append(byVerification[doc.VerificationID], doc)
	}

	now := s.now()
	allResolved := true
	for verificationID, group := range byVerification {
		ctx, span := s.tracer.Start(ctx, "provider.get_verification_result")
		result, err := s.verifier.GetVerificationResult(ctx, ownerID, verificationID)
		span.End()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeProvider, "get verification result")
		}
		if result.Status == provider.VerificationStatusInProgress {
			allResolved = false
			continue
		}
		if err := s.applyVerificationResult(ctx, group, result, now); err != nil {
			return err
		}
	}
	if !allResolved {
		return nil
	}

	return s.resolveAggregate(ctx, ownerID, process, iv)
}

func (s *Service) applyVerificationResult(ctx context.Context, group []*models.DocumentVerification, result provider.DocumentsVerificationResult, now time.Time) error {
	byUpload := make(map[string]provider.DocumentVerificationResult, len(result.Results))
	for _, r := range result.Results {
		byUpload[r.UploadID] = r
	}
	return s.txr.Run(ctx, func(ctx context.Context) error {
		for _, doc := range group {
			res, ok := byUpload[doc.UploadID]
			if !ok {
				// Batch-level outcome with no per-document detail.
				res = provider.DocumentVerificationResult{
					UploadID:    doc.UploadID,
					Status:      result.Status,
					ErrorDetail: result.ErrorDetail,
				}
			}
			switch res.Status {
			case provider.VerificationStatusAccepted:
				doc.Status = models.DocumentStatusAccepted
			case provider.VerificationStatusRejected:
				doc.Status = models.DocumentStatusRejected
				doc.RejectReason = res.RejectReason
			default:
				doc.Status = models.DocumentStatusFailed
				doc.ErrorDetail = res.ErrorDetail
			}
			doc.TimestampUpdated = now
			if err := s.store.UpdateDocument(ctx, doc); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "update document")
			}
			record := &models.DocumentResult{
				ID:                     uuid.NewString(),
				DocumentVerificationID: doc.ID,
				Phase:                  models.ResultPhaseVerification,
				VerificationPayload:    res.VerificationPayload,
				ExtractedData:          res.ExtractedData,
				ErrorDetail:            res.ErrorDetail,
				RejectReason:           res.RejectReason,
				TimestampCreated:       now,
			}
			if err := s.store.AppendResult(ctx, record); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "append verification result")
			}
		}
		return nil
	})
}

// ProcessDocumentVerificationResult resolves the aggregate outcome from
// documents already in a terminal status, e.g. after an OTP-gated replay.
func (s *Service) ProcessDocumentVerificationResult(ctx context.Context, ownerID owner.ID, processID string) error {
	return s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, process *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		if iv.Phase != models.PhaseDocumentVerification || iv.Status != models.StatusInProgress {
			return domainerrors.New(domainerrors.CodeStateConflict, "verification is not awaiting document results")
		}
		return s.resolveAggregate(ctx, ownerID, process, iv)
	})
}

// resolveAggregate applies the precedence rule FAILED > REJECTED >
// all-ACCEPTED over the documents counted toward the outcome, then advances
// the workflow.
func (s *Service) resolveAggregate(ctx context.Context, ownerID owner.ID, process *onboardingmodels.Process, iv *models.IdentityVerification) error {
	docs, err := s.store.ListDocumentsUsedForVerification(ctx, iv.ID)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "list documents")
	}

	anyFailed, anyRejected, allAccepted := false, false, len(docs) > 0
	var errorDetail, rejectReason string
	for _, doc := range docs {
		switch doc.Status {
		case models.DocumentStatusFailed:
			anyFailed = true
			allAccepted = false
			if errorDetail == "" {
				errorDetail = doc.ErrorDetail
			}
		case models.DocumentStatusRejected:
			anyRejected = true
			allAccepted = false
			if rejectReason == "" {
				rejectReason = doc.RejectReason
			}
		case models.DocumentStatusAccepted:
		default:
			// Still unresolved; keep waiting.
			return nil
		}
	}

	now := s.now()
	switch {
	case anyFailed:
		if err := statemachine.Apply(iv, statemachine.EventVerificationFailed); err != nil {
			return err
		}
		if errorDetail == "" {
			errorDetail = models.ErrorDocumentVerificationFailed
		}
		iv.ErrorDetail = errorDetail
		iv.ErrorOrigin = onboardingmodels.OriginDocumentVerification
	case anyRejected:
		if err := statemachine.Apply(iv, statemachine.EventVerificationRejected); err != nil {
			return err
		}
		iv.RejectReason = rejectReason
		iv.RejectOrigin = models.RejectOriginDocumentVerification
	case allAccepted:
		if err := statemachine.Apply(iv, statemachine.EventVerificationAccepted); err != nil {
			return err
		}
	default:
		return nil
	}

	iv.TimestampUpdated = now
	if err := s.store.UpdateVerification(ctx, iv); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
	}
	s.observeOutcome(iv)

	if iv.Status == models.StatusAccepted {
		return s.advance(ctx, ownerID, process, iv)
	}
	return nil
}

// advance moves an accepted stage to the next enabled one. Client-driven
// stages (presence check) stop the advance; server-driven ones run inline.
func (s *Service) advance(ctx context.Context, ownerID owner.ID, process *onboardingmodels.Process, iv *models.IdentityVerification) error {
	state := statemachine.State{Phase: iv.Phase, Status: iv.Status}

	if s.config.ClientEvaluationEnabled && statemachine.Allowed(state, statemachine.EventClientEvaluationStarted) {
		return s.evaluateClient(ctx, ownerID, process, iv)
	}
	if s.config.PresenceCheckEnabled && statemachine.Allowed(state, statemachine.EventPresenceCheckStarted) {
		// Waits for the client to start the liveness session.
		return nil
	}
	if s.config.VerificationOtpEnabled && statemachine.Allowed(state, statemachine.EventOtpVerificationStarted) {
		return s.startOtpVerification(ctx, process, iv)
	}
	return s.complete(ctx, process, iv, statemachine.EventCompletedAccepted)
}

func (s *Service) evaluateClient(ctx context.Context, ownerID owner.ID, process *onboardingmodels.Process, iv *models.IdentityVerification) error {
	if err := statemachine.Apply(iv, statemachine.EventClientEvaluationStarted); err != nil {
		return err
	}
	verificationID := ""
	if docs, err := s.store.ListDocumentsUsedForVerification(ctx, iv.ID); err == nil && len(docs) > 0 {
		verificationID = docs[0].VerificationID
	}

	ctx, span := s.tracer.Start(ctx, "provider.evaluate_client")
	result, err := s.evaluation.EvaluateClient(ctx, provider.ClientEvaluationRequest{
		ProcessID:              process.ID,
		UserID:                 process.UserID,
		IdentityVerificationID: iv.ID,
		VerificationID:         verificationID,
	})
	span.End()
	if err != nil {
		// Recorded on the row; the reconciliation sweep cannot help here, a
		// later replay can.
		iv.ErrorDetail = err.Error()
		if applyErr := statemachine.Apply(iv, statemachine.EventClientEvaluationFailed); applyErr != nil {
			return applyErr
		}
		iv.TimestampUpdated = s.now()
		if uErr := s.store.UpdateVerification(ctx, iv); uErr != nil {
			return domainerrors.Wrap(uErr, domainerrors.CodeInternal, "update verification")
		}
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "evaluate client")
	}

	event := statemachine.EventClientEvaluationAccepted
	if !result.Accepted {
		event = statemachine.EventClientEvaluationRejected
		iv.RejectReason = result.ErrorDetail
		iv.RejectOrigin = models.RejectOriginClientEvaluation
	}
	if err := statemachine.Apply(iv, event); err != nil {
		return err
	}
	iv.TimestampUpdated = s.now()
	if err := s.store.UpdateVerification(ctx, iv); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
	}
	s.observeOutcome(iv)
	if iv.Status == models.StatusAccepted {
		return s.advance(ctx, ownerID, process, iv)
	}
	return nil
}

func (s *Service) startOtpVerification(ctx context.Context, process *onboardingmodels.Process, iv *models.IdentityVerification) error {
	if err := statemachine.Apply(iv, statemachine.EventOtpVerificationStarted); err != nil {
		return err
	}
	iv.TimestampUpdated = s.now()
	if err := s.store.UpdateVerification(ctx, iv); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
	}

	otp, err := s.otps.Create(ctx, process, otpmodels.TypeUserVerification)
	if err != nil {
		return err
	}
	if process.UserID == "" {
		return nil
	}
	err = s.onboarding.SendOtpCode(ctx, provider.SendOtpCodeRequest{
		ProcessID: process.ID,
		UserID:    process.UserID,
		OtpCode:   otp.Code,
		Locale:    requestcontext.Locale(ctx),
		OtpType:   string(otpmodels.TypeUserVerification),
	})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeDelivery, "deliver verification otp")
	}
	return nil
}

// CompleteVerification verifies the USER_VERIFICATION code and finishes the
// workflow. The precomplete check runs after a successful code: a failing
// check forces COMPLETED/FAILED regardless of the document outcome.
func (s *Service) CompleteVerification(ctx context.Context, ownerID owner.ID, processID, otpCode string) (*otpservice.VerifyResult, error) {
	var verifyResult *otpservice.VerifyResult
	err := s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, process *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		if iv.Phase != models.PhaseOtpVerification || iv.Status != models.StatusInProgress {
			return domainerrors.New(domainerrors.CodeStateConflict, "verification is not awaiting the completion code")
		}

		result, err := s.otps.Verify(ctx, processID, otpCode, otpmodels.TypeUserVerification)
		if err != nil {
			return err
		}
		verifyResult = result
		if !result.Verified {
			if result.ProcessStatus == onboardingmodels.StatusFailed {
				return s.complete(ctx, process, iv, statemachine.EventCompletedFailed)
			}
			return nil
		}
		return s.finishAfterPrecompleteCheck(ctx, process, iv)
	})
	if err != nil {
		return nil, err
	}
	return verifyResult, nil
}

// finishAfterPrecompleteCheck runs the required-document-set guard and
// completes the verification accordingly.
func (s *Service) finishAfterPrecompleteCheck(ctx context.Context, process *onboardingmodels.Process, iv *models.IdentityVerification) error {
	docs, err := s.store.ListDocumentsUsedForVerification(ctx, iv.ID)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "list documents")
	}
	if !s.check.Evaluate(docs) {
		iv.ErrorDetail = models.ErrorDocumentVerificationFailed
		iv.ErrorOrigin = onboardingmodels.OriginFinalValidation
		return s.complete(ctx, process, iv, statemachine.EventCompletedFailed)
	}
	return s.complete(ctx, process, iv, statemachine.EventCompletedAccepted)
}

func (s *Service) complete(ctx context.Context, process *onboardingmodels.Process, iv *models.IdentityVerification, event statemachine.Event) error {
	if err := statemachine.Apply(iv, event); err != nil {
		return err
	}
	now := s.now()
	iv.TimestampUpdated = now
	switch iv.Status {
	case models.StatusAccepted:
		iv.TimestampFinished = now
		process.Status = onboardingmodels.StatusFinished
		process.TimestampUpdated = now
		process.TimestampFinished = now
	case models.StatusFailed:
		iv.TimestampFailed = now
		if !process.Terminal() {
			process.Fail(iv.ErrorDetail, iv.ErrorOrigin, now)
		}
	case models.StatusRejected:
		iv.TimestampFinished = now
	}

	err := s.txr.Run(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateVerification(ctx, iv); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
		}
		if err := s.processes.Update(ctx, process); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update process")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.observeOutcome(iv)
	s.publish(ctx, "identity_verification_completed", map[string]string{
		"process_id": process.ID,
		"status":     string(iv.Status),
	})
	return nil
}

// StartPresenceCheck opens a liveness session with the extracted portrait.
func (s *Service) StartPresenceCheck(ctx context.Context, ownerID owner.ID, processID string) (string, error) {
	var sessionInfo string
	err := s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, _ *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := statemachine.Apply(iv, statemachine.EventPresenceCheckStarted); err != nil {
			return err
		}

		photo, err := s.portraitFor(ctx, iv)
		if err != nil {
			return err
		}
		ctx, span := s.tracer.Start(ctx, "provider.presence_init")
		session, err := s.presence.InitSession(ctx, ownerID, photo)
		span.End()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeProvider, "init presence session")
		}
		iv.SessionInfo = session
		iv.TimestampUpdated = s.now()
		if err := s.store.UpdateVerification(ctx, iv); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
		}
		sessionInfo = session
		return nil
	})
	if err != nil {
		return "", err
	}
	return sessionInfo, nil
}

func (s *Service) portraitFor(ctx context.Context, iv *models.IdentityVerification) (provider.Image, error) {
	docs, err := s.store.ListDocumentsUsedForVerification(ctx, iv.ID)
	if err != nil {
		return provider.Image{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "list documents")
	}
	for _, doc := range docs {
		if doc.PhotoID == "" {
			continue
		}
		photo, err := s.verifier.GetPhoto(ctx, doc.PhotoID)
		if err != nil {
			return provider.Image{}, domainerrors.Wrap(err, domainerrors.CodeProvider, "get extracted photo")
		}
		return photo, nil
	}
	return provider.Image{}, domainerrors.New(domainerrors.CodeStateConflict, "no extracted portrait available for presence check")
}

// CompletePresenceCheck polls the liveness session outcome and advances.
func (s *Service) CompletePresenceCheck(ctx context.Context, ownerID owner.ID, processID string) error {
	return s.withProcessLock(ctx, ownerID, processID, func(ctx context.Context, process *onboardingmodels.Process) error {
		iv, err := s.currentVerification(ctx, ownerID)
		if err != nil {
			return err
		}
		if iv.Phase == models.PhasePresenceCheck && iv.Status == models.StatusInProgress {
			if err := statemachine.Apply(iv, statemachine.EventPresenceCheckSubmitted); err != nil {
				return err
			}
		}
		if iv.Phase != models.PhasePresenceCheck || iv.Status != models.StatusVerificationPending {
			return domainerrors.New(domainerrors.CodeStateConflict, "no presence check awaiting a result")
		}

		ctx2, span := s.tracer.Start(ctx, "provider.presence_result")
		result, err := s.presence.GetResult(ctx2, ownerID, iv.SessionInfo)
		span.End()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeProvider, "get presence result")
		}

		var event statemachine.Event
		switch result.Status {
		case provider.VerificationStatusAccepted:
			event = statemachine.EventPresenceCheckAccepted
		case provider.VerificationStatusRejected:
			event = statemachine.EventPresenceCheckRejected
			iv.RejectReason = result.RejectReason
			iv.RejectOrigin = models.RejectOriginPresenceCheck
		default:
			event = statemachine.EventPresenceCheckFailed
			iv.ErrorDetail = result.ErrorDetail
		}
		if err := statemachine.Apply(iv, event); err != nil {
			return err
		}
		iv.TimestampUpdated = s.now()
		if err := s.store.UpdateVerification(ctx, iv); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update verification")
		}
		s.observeOutcome(iv)
		if iv.Status == models.StatusAccepted {
			return s.advance(ctx, ownerID, process, iv)
		}
		return nil
	})
}

// StatusReport is the externally visible verification state. Document error
// and reject detail is replaced by a fixed generic message.
type StatusReport struct {
	Phase     models.Phase
	Status    models.Status
	Documents []DocumentStatusReport
}

// DocumentStatusReport is one document's externally visible state. Rejection
// reasons are provider classifications and safe to expose, unlike raw error
// detail.
type DocumentStatusReport struct {
	ID            string
	Type          models.DocumentType
	Side          models.CardSide
	Status        models.DocumentStatus
	ErrorDetail   string
	RejectReasons []string
}

// CheckStatus reports the verification and its documents. Raw provider
// diagnostics never leave the server.
func (s *Service) CheckStatus(ctx context.Context, ownerID owner.ID) (*StatusReport, error) {
	iv, err := s.currentVerification(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, iv.ID, nil)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list documents")
	}

	report := &StatusReport{Phase: iv.Phase, Status: iv.Status}
	for _, doc := range docs {
		if doc.Status == models.DocumentStatusDisposed {
			continue
		}
		entry := DocumentStatusReport{
			ID:     doc.ID,
			Type:   doc.Type,
			Side:   doc.Side,
			Status: doc.Status,
		}
		if doc.ErrorDetail != "" || doc.RejectReason != "" {
			entry.ErrorDetail = models.ErrorDocumentVerificationFailed
		}
		if doc.Status == models.DocumentStatusRejected {
			entry.RejectReasons = s.rejectionReasons(ctx, doc)
		}
		report.Documents = append(report.Documents, entry)
	}
	return report, nil
}

func (s *Service) rejectionReasons(ctx context.Context, doc models.DocumentVerification) []string {
	result, err := s.store.LatestResultForDocument(ctx, doc.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "latest document result lookup failed", "document_id", doc.ID, "error", err)
		}
		return nil
	}
	reasons, err := s.verifier.ParseRejectionReasons(*result)
	if err != nil {
		s.logger.WarnContext(ctx, "parsing rejection reasons failed", "document_id", doc.ID, "error", err)
		return nil
	}
	return reasons
}

// GetPhoto fetches an extracted portrait from the provider.
func (s *Service) GetPhoto(ctx context.Context, photoID string) (provider.Image, error) {
	if photoID == "" {
		return provider.Image{}, domainerrors.New(domainerrors.CodeValidation, "photo id is required")
	}
	photo, err := s.verifier.GetPhoto(ctx, photoID)
	if err != nil {
		return provider.Image{}, domainerrors.Wrap(err, domainerrors.CodeProvider, "get photo")
	}
	return photo, nil
}

// Cleanup cascades failure into the running verification and its unfinished
// documents, removes provider-side uploads and resets activation flags so
// the client must re-initialize.
func (s *Service) Cleanup(ctx context.Context, ownerID owner.ID) error {
	now := s.now()
	if s.config.DocumentCleanupEnabled {
		uploadIDs, err := s.store.ListUploadIDs(ctx, ownerID.ActivationID)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "list upload ids")
		}
		if len(uploadIDs) > 0 {
			ctx2, span := s.tracer.Start(ctx, "provider.cleanup_documents")
			err = s.verifier.CleanupDocuments(ctx2, ownerID, uploadIDs)
			span.End()
			if err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeProvider, "cleanup provider documents")
			}
		}
	}

	err := s.txr.Run(ctx, func(ctx context.Context) error {
		if err := s.store.FailDocumentsNotFinished(ctx, ownerID.ActivationID, now); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "fail unfinished documents")
		}
		if err := s.store.FailRunningVerifications(ctx, ownerID.ActivationID, now); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "fail running verifications")
		}
		if err := s.store.DeleteStagedUploadsByActivation(ctx, ownerID.ActivationID); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "delete staged uploads")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.activations.ResetFlags(ctx, ownerID.ActivationID); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "reset activation flags")
	}
	s.publish(ctx, "identity_verification_cleaned_up", map[string]string{
		"activation_id": ownerID.ActivationID,
	})
	return nil
}

// ReconcileVerification polls provider results for one verification stuck in
// DOCUMENT_VERIFICATION/IN_PROGRESS on behalf of the background sweep.
func (s *Service) ReconcileVerification(ctx context.Context, iv *models.IdentityVerification) error {
	ownerID := owner.ID{ActivationID: iv.ActivationID, UserID: iv.UserID}
	return s.CheckVerificationResult(ctx, ownerID, iv.ProcessID)
}

func (s *Service) currentVerification(ctx context.Context, ownerID owner.ID) (*models.IdentityVerification, error) {
	iv, err := s.store.FindLatestVerificationByActivation(ctx, ownerID.ActivationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "identity verification not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "find latest verification")
	}
	return iv, nil
}

func (s *Service) observeOutcome(iv *models.IdentityVerification) {
	if s.metrics == nil {
		return
	}
	switch iv.Status {
	case models.StatusAccepted, models.StatusRejected, models.StatusFailed:
		s.metrics.VerificationOutcomes.WithLabelValues(string(iv.Status)).Inc()
	}
}

func (s *Service) publish(ctx context.Context, eventType string, fields map[string]string) {
	if s.audit != nil {
		s.audit.Publish(ctx, eventType, fields)
	}
}
