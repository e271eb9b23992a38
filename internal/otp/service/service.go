// Package service issues and verifies one-time codes gating onboarding
// activation and verification completion.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	onboardingmodels "enrolld/internal/onboarding/models"
	onboardingstore "enrolld/internal/onboarding/store"
	"enrolld/internal/otp/models"
	"enrolld/internal/otp/store"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/metrics"
	domainerrors "enrolld/pkg/domain-errors"
)

// Service generates, supersedes and verifies one-time codes. Each freshly
// issued code starts with a clean attempt budget; superseded codes keep
// their recorded attempts for audit.
type Service struct {
	otps      store.Store
	processes onboardingstore.Store
	config    config.OnboardingConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
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

// New constructs an OTP service over the given stores.
func New(otps store.Store, processes onboardingstore.Store, cfg config.OnboardingConfig, opts ...Option) *Service {
	s := &Service{
		otps:      otps,
		processes: processes,
		config:    cfg,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create generates a fresh code for the (process, type) pair, canceling any
// still-active predecessor and resetting the failure counter.
func (s *Service) Create(ctx context.Context, process *onboardingmodels.Process, otpType models.Type) (*models.Otp, error) {
	return s.create(ctx, process, otpType)
}

// CreateForResend behaves like Create; the caller flags delivery as a
// resend when pushing the code out.
func (s *Service) CreateForResend(ctx context.Context, process *onboardingmodels.Process, otpType models.Type) (*models.Otp, error) {
	return s.create(ctx, process, otpType)
}

func (s *Service) create(ctx context.Context, process *onboardingmodels.Process, otpType models.Type) (*models.Otp, error) {
	if process.Terminal() {
		return nil, domainerrors.New(domainerrors.CodeStateConflict, "process is already finished")
	}

	if _, err := s.otps.CancelActive(ctx, process.ID, otpType); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "cancel active otp")
	}

	code, err := generateCode(s.config.OtpLength)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate otp code")
	}

	now := s.now()
	otp := &models.Otp{
		ID:               uuid.NewString(),
		ProcessID:        process.ID,
		Type:             otpType,
		Code:             code,
		Status:           models.StatusActive,
		FailedAttempts:   0,
		ExpiresAt:        now.Add(s.config.OtpExpiration),
		TimestampCreated: now,
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create otp")
	}

	if s.metrics != nil {
		s.metrics.OtpCodesIssued.Inc()
	}
	s.logger.InfoContext(ctx, "otp code issued",
		slog.String("process_id", process.ID),
		slog.String("otp_type", string(otpType)))
	return otp, nil
}

// VerifyResult reports the outcome of a verification attempt together with
// the remaining attempt budget and the process status after the attempt.
type VerifyResult struct {
	Verified          bool
	RemainingAttempts int
	Expired           bool
	ProcessStatus     onboardingmodels.Status
}

// Verify checks the submitted code against the newest code of the pair. A
// mismatch burns one attempt; exhausting the budget fails the code and the
// owning process.
func (s *Service) Verify(ctx context.Context, processID, code string, otpType models.Type) (*VerifyResult, error) {
	process, err := s.processes.FindByID(ctx, processID)
	if err != nil {
		if errors.Is(err, onboardingstore.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "onboarding process not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load process")
	}

	otp, err := s.otps.FindNewest(ctx, processID, otpType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "otp code not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load otp")
	}

	now := s.now()
	result := &VerifyResult{
		RemainingAttempts: s.remaining(otp.FailedAttempts),
		ProcessStatus:     process.Status,
	}

	if otp.Status != models.StatusActive {
		return result, nil
	}
	if otp.Expired(now) {
		result.Expired = true
		return result, nil
	}

	if otp.Code == code {
		otp.Status = models.StatusUsed
		otp.TimestampUpdated = now
		if err := s.otps.Update(ctx, otp); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "mark otp used")
		}
		result.Verified = true
		return result, nil
	}

	otp.FailedAttempts++
	otp.TimestampUpdated = now
	if otp.FailedAttempts >= s.config.OtpMaxFailedAttempts {
		otp.Status = models.StatusFailed
		process.Fail(onboardingmodels.ErrorMaxFailedAttemptsOtp, onboardingmodels.OriginOtpVerification, now)
		if err := s.processes.Update(ctx, process); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "fail process on otp exhaustion")
		}
		s.logger.WarnContext(ctx, "otp attempt budget exhausted, process failed",
			slog.String("process_id", processID))
	}
	if err := s.otps.Update(ctx, otp); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "record failed otp attempt")
	}

	if s.metrics != nil {
		s.metrics.OtpVerifyFailures.Inc()
	}
	result.RemainingAttempts = s.remaining(otp.FailedAttempts)
	result.ProcessStatus = process.Status
	return result, nil
}

// Cancel forces any still-active code of the pair to CANCELED.
func (s *Service) Cancel(ctx context.Context, processID string, otpType models.Type) error {
	if _, err := s.otps.CancelActive(ctx, processID, otpType); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "cancel otp")
	}
	return nil
}

func (s *Service) remaining(failedAttempts int) int {
	remaining := s.config.OtpMaxFailedAttempts - failedAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// generateCode draws a uniformly random numeric code of the given length.
func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
