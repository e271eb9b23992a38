// Package service drives onboarding process lifecycle: create/resume with a
// canonical identification fingerprint, per-user rate limiting, activation
// OTP issuance, expiry reporting and user-requested cleanup.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"enrolld/internal/onboarding/models"
	"enrolld/internal/onboarding/store"
	otpmodels "enrolld/internal/otp/models"
	otpservice "enrolld/internal/otp/service"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/metrics"
	"enrolld/internal/provider"
	domainerrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/owner"
	"enrolld/pkg/requestcontext"
)

// AuditPublisher records lifecycle milestones on the audit trail. Publishing
// must never block or fail an operation.
type AuditPublisher interface {
	Publish(ctx context.Context, eventType string, fields map[string]string)
}

// Service is the onboarding process lifecycle manager.
type Service struct {
	processes   store.Store
	otps        *otpservice.Service
	onboarding  provider.OnboardingProvider
	activations provider.ActivationService
	config      config.OnboardingConfig
	metrics     *metrics.Metrics
	audit       AuditPublisher
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// New constructs the lifecycle manager.
func New(
	processes store.Store,
	otps *otpservice.Service,
	onboarding provider.OnboardingProvider,
	activations provider.ActivationService,
	cfg config.OnboardingConfig,
	opts ...Option,
) *Service {
	s := &Service{
		processes:   processes,
		otps:        otps,
		onboarding:  onboarding,
		activations: activations,
		config:      cfg,
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

// Start creates a new onboarding process for the identification payload, or
// resumes the existing ACTIVATION_IN_PROGRESS process with the same
// fingerprint. The per-user daily quota is enforced after create/resume; a
// violation persists the process FAILED and rejects the call. On success an
// activation OTP is issued and delivered when a user is bound.
func (s *Service) Start(ctx context.Context, identification map[string]any) (*models.Process, error) {
	if len(identification) == 0 {
		return nil, domainerrors.New(domainerrors.CodeValidation, "identification is required")
	}
	fingerprint, err := models.Fingerprint(identification)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "fingerprint identification")
	}

	now := s.now()
	process, resumed, err := s.findOrCreate(ctx, identification, fingerprint, now)
	if err != nil {
		return nil, err
	}

	if err := s.enforceRateLimit(ctx, process, now); err != nil {
		return nil, err
	}

	if process.UserID != "" {
		if err := s.issueActivationOtp(ctx, process, false); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		if resumed {
			s.metrics.ProcessesResumed.Inc()
		} else {
			s.metrics.ProcessesStarted.Inc()
		}
	}
	s.logger.InfoContext(ctx, "onboarding process started",
		slog.String("process_id", process.ID),
		slog.Bool("resumed", resumed))
	event := "onboarding_process_started"
	if resumed {
		event = "onboarding_process_resumed"
	}
	s.publish(ctx, event, map[string]string{"process_id": process.ID})
	return process, nil
}

func (s *Service) publish(ctx context.Context, eventType string, fields map[string]string) {
	if s.audit != nil {
		s.audit.Publish(ctx, eventType, fields)
	}
}

func (s *Service) findOrCreate(ctx context.Context, identification map[string]any, fingerprint string, now time.Time) (*models.Process, bool, error) {
	existing, err := s.processes.FindByFingerprint(ctx, fingerprint, models.StatusActivationInProgress)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "find process by fingerprint")
	}
	if err == nil {
		// Resume. The user bound to the process must not have changed; a
		// divergent lookup result is a data-integrity failure, not a user
		// error.
		userID, lookupErr := s.onboarding.LookupUser(ctx, provider.LookupUserRequest{
			Identification: identification,
			ProcessID:      existing.ID,
		})
		if lookupErr == nil && existing.UserID != "" && userID != existing.UserID {
			return nil, false, domainerrors.New(domainerrors.CodeFatalOrchestration, "user lookup resolved a different user on resume")
		}
		if lookupErr == nil && existing.UserID == "" && userID != "" {
			existing.UserID = userID
			existing.TimestampUpdated = now
			if err := s.processes.Update(ctx, existing); err != nil {
				return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "bind user on resume")
			}
		}
		return existing, true, nil
	}

	process := &models.Process{
		ID:                 uuid.NewString(),
		IdentificationData: fingerprint,
		Status:             models.StatusActivationInProgress,
		TimestampCreated:   now,
	}
	userID, lookupErr := s.onboarding.LookupUser(ctx, provider.LookupUserRequest{
		Identification: identification,
		ProcessID:      process.ID,
	})
	if lookupErr != nil {
		// Tolerated: the process continues anonymously until a later lookup
		// resolves the user.
		s.logger.WarnContext(ctx, "user lookup failed, continuing anonymously",
			slog.String("process_id", process.ID),
			slog.String("error", lookupErr.Error()))
	} else {
		process.UserID = userID
	}
	if err := s.processes.Create(ctx, process); err != nil {
		return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "create process")
	}
	return process, false, nil
}

func (s *Service) enforceRateLimit(ctx context.Context, process *models.Process, now time.Time) error {
	if process.UserID == "" {
		return nil
	}
	count, err := s.processes.CountForUserSince(ctx, process.UserID, now.Add(-24*time.Hour))
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "count processes for user")
	}
	if count <= s.config.MaxProcessCountPerDay {
		return nil
	}

	process.Fail(models.ErrorTooManyProcessesPerUser, models.OriginProcessLimitCheck, now)
	if err := s.processes.Update(ctx, process); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "persist rate-limited process")
	}
	if s.metrics != nil {
		s.metrics.ProcessesRateLimited.Inc()
	}
	s.logger.WarnContext(ctx, "process rate limit exceeded",
		slog.String("process_id", process.ID),
		slog.String("user_id", process.UserID))
	return domainerrors.New(domainerrors.CodeRateLimit, "too many onboarding processes for user")
}

func (s *Service) issueActivationOtp(ctx context.Context, process *models.Process, resend bool) error {
	var otp *otpmodels.Otp
	var err error
	if resend {
		otp, err = s.otps.CreateForResend(ctx, process, otpmodels.TypeActivation)
	} else {
		otp, err = s.otps.Create(ctx, process, otpmodels.TypeActivation)
	}
	if err != nil {
		return err
	}
	err = s.onboarding.SendOtpCode(ctx, provider.SendOtpCodeRequest{
		ProcessID: process.ID,
		UserID:    process.UserID,
		OtpCode:   otp.Code,
		Resend:    resend,
		Locale:    requestcontext.Locale(ctx),
		OtpType:   string(otpmodels.TypeActivation),
	})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeDelivery, "deliver otp code")
	}
	return nil
}

// ActivateResult reports an activation attempt.
type ActivateResult struct {
	Activated         bool
	RemainingAttempts int
	ProcessStatus     models.Status
}

// Activate verifies the activation code and, on success, binds the external
// activation to the process and moves it to VERIFICATION_IN_PROGRESS.
func (s *Service) Activate(ctx context.Context, processID, otpCode, activationID string) (*ActivateResult, error) {
	process, err := s.findProcess(ctx, processID)
	if err != nil {
		return nil, err
	}
	if process.Status != models.StatusActivationInProgress {
		return nil, domainerrors.New(domainerrors.CodeStateConflict, "process is not awaiting activation")
	}
	if activationID == "" {
		return nil, domainerrors.New(domainerrors.CodeValidation, "activation id is required")
	}

	verify, err := s.otps.Verify(ctx, processID, otpCode, otpmodels.TypeActivation)
	if err != nil {
		return nil, err
	}
	result := &ActivateResult{
		RemainingAttempts: verify.RemainingAttempts,
		ProcessStatus:     verify.ProcessStatus,
	}
	if !verify.Verified {
		return result, nil
	}

	process.ActivationID = activationID
	process.Status = models.StatusVerificationInProgress
	process.TimestampUpdated = s.now()
	if err := s.processes.Update(ctx, process); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "bind activation")
	}
	result.Activated = true
	result.ProcessStatus = process.Status
	s.logger.InfoContext(ctx, "process activated",
		slog.String("process_id", processID),
		slog.String("activation_id", activationID))
	s.publish(ctx, "onboarding_process_activated", map[string]string{
		"process_id":    processID,
		"activation_id": activationID,
	})
	return result, nil
}

// ResendOtp re-issues the activation code and redelivers it. An unresolved
// user silently skips delivery.
func (s *Service) ResendOtp(ctx context.Context, processID string) error {
	process, err := s.findProcess(ctx, processID)
	if err != nil {
		return err
	}
	if process.Status != models.StatusActivationInProgress {
		return domainerrors.New(domainerrors.CodeStateConflict, "process is not awaiting activation")
	}
	if process.UserID == "" {
		return nil
	}
	return s.issueActivationOtp(ctx, process, true)
}

// StatusReport is the externally visible process state. An expired process
// reports FAILED without the stored row changing; persistence of expiry is
// left to cleanup paths.
type StatusReport struct {
	ProcessID   string
	Status      models.Status
	ErrorDetail string
	ErrorOrigin models.ErrorOrigin
}

// Status reports the process status, applying the three expiry windows
// (activation, verification, absolute age) against the creation timestamp.
func (s *Service) Status(ctx context.Context, processID string) (*StatusReport, error) {
	process, err := s.findProcess(ctx, processID)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		ProcessID:   process.ID,
		Status:      process.Status,
		ErrorDetail: process.ErrorDetail,
		ErrorOrigin: process.ErrorOrigin,
	}
	if s.expired(process, s.now()) {
		report.Status = models.StatusFailed
		report.ErrorDetail = models.ErrorProcessExpired
		report.ErrorOrigin = models.OriginProcessExpiry
	}
	return report, nil
}

func (s *Service) expired(process *models.Process, now time.Time) bool {
	age := now.Sub(process.TimestampCreated)
	switch {
	case age > s.config.ProcessExpiration:
		return true
	case process.Status == models.StatusActivationInProgress && age > s.config.ActivationExpiration:
		return true
	case process.Status == models.StatusVerificationInProgress && age > s.config.VerificationExpiration:
		return true
	}
	return false
}

// Cleanup cancels outstanding codes of both types, fails the process with a
// cancellation error and requests removal of the bound activation. A failed
// removal is surfaced to the caller; the process stays FAILED either way.
func (s *Service) Cleanup(ctx context.Context, processID string) error {
	process, err := s.findProcess(ctx, processID)
	if err != nil {
		return err
	}

	if err := s.otps.Cancel(ctx, processID, otpmodels.TypeActivation); err != nil {
		return err
	}
	if err := s.otps.Cancel(ctx, processID, otpmodels.TypeUserVerification); err != nil {
		return err
	}

	process.Fail(models.ErrorProcessCanceled, models.OriginUserRequest, s.now())
	if err := s.processes.Update(ctx, process); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "persist canceled process")
	}

	if process.ActivationID != "" {
		if err := s.activations.RemoveActivation(ctx, process.ActivationID); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeProvider, "remove activation")
		}
	}
	s.logger.InfoContext(ctx, "onboarding process canceled",
		slog.String("process_id", processID))
	s.publish(ctx, "onboarding_process_canceled", map[string]string{"process_id": processID})
	return nil
}

// VerifyProcessID confirms the claimed process is the one bound to the
// caller's activation. A mismatch is a hard failure.
func (s *Service) VerifyProcessID(ctx context.Context, ownerID owner.ID, processID string) error {
	process, err := s.processes.FindByActivationID(ctx, ownerID.ActivationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "no process bound to activation")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "find process by activation")
	}
	if process.ID != processID {
		return domainerrors.New(domainerrors.CodeFatalOrchestration, "process does not match activation")
	}
	return nil
}

// FindProcessWithVerificationInProgress returns the VERIFICATION_IN_PROGRESS
// process bound to the activation.
func (s *Service) FindProcessWithVerificationInProgress(ctx context.Context, activationID string) (*models.Process, error) {
	process, err := s.processes.FindByActivationIDAndStatus(ctx, activationID, models.StatusVerificationInProgress)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "no verification in progress for activation")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "find process by activation")
	}
	return process, nil
}

// FindProcessByActivationID returns the process bound to the activation in
// any status.
func (s *Service) FindProcessByActivationID(ctx context.Context, activationID string) (*models.Process, error) {
	process, err := s.processes.FindByActivationID(ctx, activationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "no process bound to activation")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "find process by activation")
	}
	return process, nil
}

// FetchConsentText returns the consent document for the process.
func (s *Service) FetchConsentText(ctx context.Context, processID, consentType, locale string) (string, error) {
	process, err := s.findProcess(ctx, processID)
	if err != nil {
		return "", err
	}
	text, err := s.onboarding.FetchConsent(ctx, provider.ConsentTextRequest{
		ProcessID:   process.ID,
		UserID:      process.UserID,
		ConsentType: consentType,
		Locale:      locale,
	})
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeProvider, "fetch consent text")
	}
	return text, nil
}

// ApproveConsent records the user's consent decision with the provider.
func (s *Service) ApproveConsent(ctx context.Context, processID, consentType string, approved bool) error {
	process, err := s.findProcess(ctx, processID)
	if err != nil {
		return err
	}
	err = s.onboarding.ApproveConsent(ctx, provider.ApproveConsentRequest{
		ProcessID:   process.ID,
		UserID:      process.UserID,
		ConsentType: consentType,
		Approved:    approved,
	})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "approve consent")
	}
	return nil
}

func (s *Service) findProcess(ctx context.Context, processID string) (*models.Process, error) {
	process, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "onboarding process not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load process")
	}
	return process, nil
}
