package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"enrolld/internal/identity/document"
	"enrolld/internal/identity/guard"
	"enrolld/internal/identity/models"
	"enrolld/internal/identity/store"
	onboardingmodels "enrolld/internal/onboarding/models"
	onboardingstore "enrolld/internal/onboarding/store"
	otpmodels "enrolld/internal/otp/models"
	otpservice "enrolld/internal/otp/service"
	otpstore "enrolld/internal/otp/store"
	"enrolld/internal/platform/config"
	"enrolld/internal/provider"
	"enrolld/internal/provider/mocks"
	domainerrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/owner"
	"enrolld/pkg/platform/tx"
	"enrolld/pkg/requestcontext"
)

type OrchestratorSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	store       *store.MemoryStore
	processes   *onboardingstore.MemoryStore
	otpStore    *otpstore.MemoryStore
	guard       guard.Guard
	verifier    *mocks.MockDocumentVerificationProvider
	onboarding  *mocks.MockOnboardingProvider
	presence    *mocks.MockPresenceCheckProvider
	evaluation  *mocks.MockClientEvaluationProvider
	activations *mocks.MockActivationService
	otps        *otpservice.Service
	owner       owner.ID
	process     *onboardingmodels.Process
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewMemory()
	s.processes = onboardingstore.NewMemory()
	s.otpStore = otpstore.NewMemory()
	s.guard = guard.NewMemory(time.Minute)
	s.verifier = mocks.NewMockDocumentVerificationProvider(s.ctrl)
	s.onboarding = mocks.NewMockOnboardingProvider(s.ctrl)
	s.presence = mocks.NewMockPresenceCheckProvider(s.ctrl)
	s.evaluation = mocks.NewMockClientEvaluationProvider(s.ctrl)
	s.activations = mocks.NewMockActivationService(s.ctrl)
	s.owner = owner.New("act-1", "user-1")

	s.otps = otpservice.New(s.otpStore, s.processes, config.OnboardingConfig{
		OtpLength:            8,
		OtpExpiration:        time.Minute,
		OtpMaxFailedAttempts: 5,
	})

	s.process = &onboardingmodels.Process{
		ID:               "proc-1",
		UserID:           "user-1",
		ActivationID:     "act-1",
		Status:           onboardingmodels.StatusVerificationInProgress,
		TimestampCreated: time.Now(),
	}
	s.Require().NoError(s.processes.Create(context.Background(), s.process))
}

func (s *OrchestratorSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *OrchestratorSuite) newService(cfg config.IdentityVerificationConfig) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := document.New(s.store, s.verifier, tx.NopRunner{}, cfg, document.WithLogger(logger))
	return New(Deps{
		Store:       s.store,
		Processes:   s.processes,
		Engine:      engine,
		Guard:       s.guard,
		Otps:        s.otps,
		Onboarding:  s.onboarding,
		Verifier:    s.verifier,
		Presence:    s.presence,
		Evaluation:  s.evaluation,
		Activations: s.activations,
		TxRunner:    tx.NopRunner{},
	}, cfg, WithLogger(logger))
}

func (s *OrchestratorSuite) seedVerification(phase models.Phase, status models.Status) *models.IdentityVerification {
	iv := &models.IdentityVerification{
		ID:               "iv-1",
		ActivationID:     "act-1",
		UserID:           "user-1",
		ProcessID:        "proc-1",
		Phase:            phase,
		Status:           status,
		TimestampCreated: time.Now(),
	}
	s.Require().NoError(s.store.CreateVerification(context.Background(), iv))
	return iv
}

func (s *OrchestratorSuite) seedDocument(id string, typ models.DocumentType, side models.CardSide, status models.DocumentStatus) *models.DocumentVerification {
	doc := &models.DocumentVerification{
		ID:                     id,
		ActivationID:           "act-1",
		IdentityVerificationID: "iv-1",
		Type:                   typ,
		Side:                   side,
		Status:                 status,
		UploadID:               "up-" + id,
		VerificationID:         "ver-1",
		UsedForVerification:    true,
		TimestampCreated:       time.Now(),
	}
	s.Require().NoError(s.store.CreateDocument(context.Background(), doc))
	return doc
}

func (s *OrchestratorSuite) currentIV() *models.IdentityVerification {
	iv, err := s.store.FindLatestVerificationByActivation(context.Background(), "act-1")
	s.Require().NoError(err)
	return iv
}

func (s *OrchestratorSuite) TestInitializeCreatesVerification() {
	svc := s.newService(config.IdentityVerificationConfig{})

	iv, err := svc.InitializeIdentityVerification(context.Background(), s.owner, "proc-1")
	s.Require().NoError(err)
	s.Equal(models.PhaseDocumentUpload, iv.Phase)
	s.Equal(models.StatusInProgress, iv.Status)
	s.Equal("proc-1", iv.ProcessID)
	s.Equal("user-1", iv.UserID)
}

func (s *OrchestratorSuite) TestInitializeConflictsWithRunningVerification() {
	svc := s.newService(config.IdentityVerificationConfig{})

	_, err := svc.InitializeIdentityVerification(context.Background(), s.owner, "proc-1")
	s.Require().NoError(err)

	_, err = svc.InitializeIdentityVerification(context.Background(), s.owner, "proc-1")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeStateConflict))
}

func (s *OrchestratorSuite) TestInitializeRejectsForeignProcess() {
	svc := s.newService(config.IdentityVerificationConfig{})

	_, err := svc.InitializeIdentityVerification(context.Background(), s.owner, "proc-other")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeFatalOrchestration))
}

func (s *OrchestratorSuite) TestSubmitDocumentsMovesToPending() {
	svc := s.newService(config.IdentityVerificationConfig{
		DocumentVerificationProvider: "mock",
	})
	s.seedVerification(models.PhaseDocumentUpload, models.StatusInProgress)

	s.verifier.EXPECT().SubmitDocuments(gomock.Any(), s.owner, gomock.Any()).
		Return(provider.DocumentsSubmitResult{
			Results: []provider.DocumentSubmitResult{
				{UploadID: "up-1", ExtractedData: `{}`},
				{UploadID: "up-2", ExtractedData: `{}`},
			},
		}, nil)

	docs, err := svc.SubmitDocuments(context.Background(), s.owner, "proc-1", document.SubmitRequest{
		Metadata: []document.Metadata{
			{Filename: "front.jpg", Type: models.DocumentTypeIDCard, Side: models.CardSideFront},
			{Filename: "back.jpg", Type: models.DocumentTypeIDCard, Side: models.CardSideBack},
		},
		Inline: []provider.Image{
			{Filename: "front.jpg", Data: []byte("front")},
			{Filename: "back.jpg", Data: []byte("back")},
		},
	})
	s.Require().NoError(err)
	s.Len(docs, 2)

	iv := s.currentIV()
	s.Equal(models.PhaseDocumentUpload, iv.Phase)
	s.Equal(models.StatusVerificationPending, iv.Status)
}

func (s *OrchestratorSuite) TestStartVerificationBatchesPendingDocuments() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentUpload, models.StatusVerificationPending)
	s.seedDocument("d1", models.DocumentTypeIDCard, models.CardSideFront, models.DocumentStatusVerificationPending)
	s.seedDocument("d2", models.DocumentTypeIDCard, models.CardSideBack, models.DocumentStatusVerificationPending)

	s.verifier.EXPECT().VerifyDocuments(gomock.Any(), s.owner, []string{"up-d1", "up-d2"}).
		Return(provider.DocumentsVerificationResult{VerificationID: "ver-9"}, nil)

	s.Require().NoError(svc.StartVerification(context.Background(), s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.PhaseDocumentVerification, iv.Phase)
	s.Equal(models.StatusInProgress, iv.Status)

	docs, err := s.store.ListDocuments(context.Background(), "iv-1", nil)
	s.Require().NoError(err)
	for _, doc := range docs {
		s.Equal(models.DocumentStatusVerificationInProgress, doc.Status)
		s.Equal("ver-9", doc.VerificationID)
	}
}

func (s *OrchestratorSuite) TestStartVerificationExcludesSelfie() {
	svc := s.newService(config.IdentityVerificationConfig{
		VerifySelfieWithDocumentsEnabled: false,
	})
	s.seedVerification(models.PhaseDocumentUpload, models.StatusVerificationPending)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusVerificationPending)
	s.seedDocument("d2", models.DocumentTypeSelfiePhoto, models.CardSideNone, models.DocumentStatusVerificationPending)

	s.verifier.EXPECT().VerifyDocuments(gomock.Any(), s.owner, []string{"up-d1"}).
		Return(provider.DocumentsVerificationResult{VerificationID: "ver-9"}, nil)

	s.Require().NoError(svc.StartVerification(context.Background(), s.owner, "proc-1"))

	// An excluded selfie is accepted right away, otherwise the aggregate
	// could never resolve while it stays pending.
	selfie, err := s.store.FindDocumentByID(context.Background(), "d2")
	s.Require().NoError(err)
	s.Equal(models.DocumentStatusAccepted, selfie.Status)

	passport, err := s.store.FindDocumentByID(context.Background(), "d1")
	s.Require().NoError(err)
	s.Equal(models.DocumentStatusVerificationInProgress, passport.Status)
	s.Equal("ver-9", passport.VerificationID)
}

func (s *OrchestratorSuite) TestCheckResultAcceptsAndStartsOtpVerification() {
	svc := s.newService(config.IdentityVerificationConfig{
		VerificationOtpEnabled: true,
	})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypeIDCard, models.CardSideFront, models.DocumentStatusVerificationInProgress)
	s.seedDocument("d2", models.DocumentTypeIDCard, models.CardSideBack, models.DocumentStatusVerificationInProgress)

	s.verifier.EXPECT().GetVerificationResult(gomock.Any(), s.owner, "ver-1").
		Return(provider.DocumentsVerificationResult{
			VerificationID: "ver-1",
			Status:         provider.VerificationStatusAccepted,
			Results: []provider.DocumentVerificationResult{
				{UploadID: "up-d1", Status: provider.VerificationStatusAccepted},
				{UploadID: "up-d2", Status: provider.VerificationStatusAccepted},
			},
		}, nil)
	s.onboarding.EXPECT().SendOtpCode(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req provider.SendOtpCodeRequest) error {
			s.Equal("proc-1", req.ProcessID)
			s.Equal(string(otpmodels.TypeUserVerification), req.OtpType)
			s.NotEmpty(req.OtpCode)
			s.Equal("cs", req.Locale)
			return nil
		})

	ctx := requestcontext.WithLocale(context.Background(), "cs")
	s.Require().NoError(svc.CheckVerificationResult(ctx, s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.PhaseOtpVerification, iv.Phase)
	s.Equal(models.StatusInProgress, iv.Status)

	otp, err := s.otpStore.FindNewest(context.Background(), "proc-1", otpmodels.TypeUserVerification)
	s.Require().NoError(err)
	s.Equal(otpmodels.StatusActive, otp.Status)
}

func (s *OrchestratorSuite) TestCheckResultLeavesStateWhileProviderRuns() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusVerificationInProgress)

	s.verifier.EXPECT().GetVerificationResult(gomock.Any(), s.owner, "ver-1").
		Return(provider.DocumentsVerificationResult{
			VerificationID: "ver-1",
			Status:         provider.VerificationStatusInProgress,
		}, nil)

	s.Require().NoError(svc.CheckVerificationResult(context.Background(), s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.PhaseDocumentVerification, iv.Phase)
	s.Equal(models.StatusInProgress, iv.Status)
}

func (s *OrchestratorSuite) TestFailedDocumentOutranksRejected() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypeIDCard, models.CardSideFront, models.DocumentStatusVerificationInProgress)
	s.seedDocument("d2", models.DocumentTypeIDCard, models.CardSideBack, models.DocumentStatusVerificationInProgress)

	s.verifier.EXPECT().GetVerificationResult(gomock.Any(), s.owner, "ver-1").
		Return(provider.DocumentsVerificationResult{
			VerificationID: "ver-1",
			Status:         provider.VerificationStatusFailed,
			Results: []provider.DocumentVerificationResult{
				{UploadID: "up-d1", Status: provider.VerificationStatusFailed, ErrorDetail: "provider timeout during extraction"},
				{UploadID: "up-d2", Status: provider.VerificationStatusRejected, RejectReason: "expired"},
			},
		}, nil)

	s.Require().NoError(svc.CheckVerificationResult(context.Background(), s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.PhaseDocumentVerification, iv.Phase)
	s.Equal(models.StatusFailed, iv.Status)
	s.Equal("provider timeout during extraction", iv.ErrorDetail)
	s.Equal(onboardingmodels.OriginDocumentVerification, iv.ErrorOrigin)
}

func (s *OrchestratorSuite) TestFailedDocumentWithoutDetailGetsGenericError() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusVerificationInProgress)

	s.verifier.EXPECT().GetVerificationResult(gomock.Any(), s.owner, "ver-1").
		Return(provider.DocumentsVerificationResult{
			VerificationID: "ver-1",
			Status:         provider.VerificationStatusFailed,
			Results: []provider.DocumentVerificationResult{
				{UploadID: "up-d1", Status: provider.VerificationStatusFailed},
			},
		}, nil)

	s.Require().NoError(svc.CheckVerificationResult(context.Background(), s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.StatusFailed, iv.Status)
	s.Equal(models.ErrorDocumentVerificationFailed, iv.ErrorDetail)
	s.Equal(onboardingmodels.OriginDocumentVerification, iv.ErrorOrigin)
}

func (s *OrchestratorSuite) TestRejectedDocumentRejectsVerification() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusVerificationInProgress)

	s.verifier.EXPECT().GetVerificationResult(gomock.Any(), s.owner, "ver-1").
		Return(provider.DocumentsVerificationResult{
			VerificationID: "ver-1",
			Status:         provider.VerificationStatusRejected,
			Results: []provider.DocumentVerificationResult{
				{UploadID: "up-d1", Status: provider.VerificationStatusRejected, RejectReason: "document expired"},
			},
		}, nil)

	s.Require().NoError(svc.CheckVerificationResult(context.Background(), s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.StatusRejected, iv.Status)
	s.Equal(models.RejectOriginDocumentVerification, iv.RejectOrigin)
	s.Equal("document expired", iv.RejectReason)
}

func (s *OrchestratorSuite) TestClientEvaluationRunsInline() {
	svc := s.newService(config.IdentityVerificationConfig{
		ClientEvaluationEnabled: true,
	})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusVerificationInProgress)

	s.verifier.EXPECT().GetVerificationResult(gomock.Any(), s.owner, "ver-1").
		Return(provider.DocumentsVerificationResult{
			VerificationID: "ver-1",
			Status:         provider.VerificationStatusAccepted,
			Results: []provider.DocumentVerificationResult{
				{UploadID: "up-d1", Status: provider.VerificationStatusAccepted},
			},
		}, nil)
	s.evaluation.EXPECT().EvaluateClient(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req provider.ClientEvaluationRequest) (provider.ClientEvaluationResult, error) {
			s.Equal("proc-1", req.ProcessID)
			s.Equal("iv-1", req.IdentityVerificationID)
			return provider.ClientEvaluationResult{Accepted: true}, nil
		})

	s.Require().NoError(svc.CheckVerificationResult(context.Background(), s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.PhaseCompleted, iv.Phase)
	s.Equal(models.StatusAccepted, iv.Status)

	process, err := s.processes.FindByID(context.Background(), "proc-1")
	s.Require().NoError(err)
	s.Equal(onboardingmodels.StatusFinished, process.Status)
}

func (s *OrchestratorSuite) TestClientEvaluationRejectionStops() {
	svc := s.newService(config.IdentityVerificationConfig{
		ClientEvaluationEnabled: true,
	})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusVerificationInProgress)

	s.verifier.EXPECT().GetVerificationResult(gomock.Any(), s.owner, "ver-1").
		Return(provider.DocumentsVerificationResult{
			VerificationID: "ver-1",
			Status:         provider.VerificationStatusAccepted,
			Results: []provider.DocumentVerificationResult{
				{UploadID: "up-d1", Status: provider.VerificationStatusAccepted},
			},
		}, nil)
	s.evaluation.EXPECT().EvaluateClient(gomock.Any(), gomock.Any()).
		Return(provider.ClientEvaluationResult{Accepted: false, ErrorDetail: "risk threshold"}, nil)

	s.Require().NoError(svc.CheckVerificationResult(context.Background(), s.owner, "proc-1"))

	iv := s.currentIV()
	s.Equal(models.PhaseClientEvaluation, iv.Phase)
	s.Equal(models.StatusRejected, iv.Status)
	s.Equal(models.RejectOriginClientEvaluation, iv.RejectOrigin)
}

func (s *OrchestratorSuite) acceptedRequiredDocuments() {
	s.seedDocument("d1", models.DocumentTypeIDCard, models.CardSideFront, models.DocumentStatusAccepted)
	s.seedDocument("d2", models.DocumentTypeIDCard, models.CardSideBack, models.DocumentStatusAccepted)
	s.seedDocument("d3", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusAccepted)
}

func (s *OrchestratorSuite) TestCompleteVerificationAccepts() {
	svc := s.newService(config.IdentityVerificationConfig{
		VerificationOtpEnabled: true,
		RequiredDocumentCount:  2,
		PrimaryDocumentType:    string(models.DocumentTypeIDCard),
	})
	s.seedVerification(models.PhaseOtpVerification, models.StatusInProgress)
	s.acceptedRequiredDocuments()

	otp, err := s.otps.Create(context.Background(), s.process, otpmodels.TypeUserVerification)
	s.Require().NoError(err)

	result, err := svc.CompleteVerification(context.Background(), s.owner, "proc-1", otp.Code)
	s.Require().NoError(err)
	s.True(result.Verified)

	iv := s.currentIV()
	s.Equal(models.PhaseCompleted, iv.Phase)
	s.Equal(models.StatusAccepted, iv.Status)

	process, err := s.processes.FindByID(context.Background(), "proc-1")
	s.Require().NoError(err)
	s.Equal(onboardingmodels.StatusFinished, process.Status)
}

func (s *OrchestratorSuite) TestCompleteVerificationFailsWithoutRequiredDocuments() {
	svc := s.newService(config.IdentityVerificationConfig{
		VerificationOtpEnabled: true,
		RequiredDocumentCount:  2,
		PrimaryDocumentType:    string(models.DocumentTypeIDCard),
	})
	s.seedVerification(models.PhaseOtpVerification, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusAccepted)

	otp, err := s.otps.Create(context.Background(), s.process, otpmodels.TypeUserVerification)
	s.Require().NoError(err)

	result, err := svc.CompleteVerification(context.Background(), s.owner, "proc-1", otp.Code)
	s.Require().NoError(err)
	s.True(result.Verified)

	iv := s.currentIV()
	s.Equal(models.PhaseCompleted, iv.Phase)
	s.Equal(models.StatusFailed, iv.Status)
	s.Equal(models.ErrorDocumentVerificationFailed, iv.ErrorDetail)
	s.Equal(onboardingmodels.OriginFinalValidation, iv.ErrorOrigin)

	process, err := s.processes.FindByID(context.Background(), "proc-1")
	s.Require().NoError(err)
	s.Equal(onboardingmodels.StatusFailed, process.Status)
	s.Equal(models.ErrorDocumentVerificationFailed, process.ErrorDetail)
}

func (s *OrchestratorSuite) TestCompleteVerificationWrongCodeKeepsState() {
	svc := s.newService(config.IdentityVerificationConfig{
		VerificationOtpEnabled: true,
		RequiredDocumentCount:  2,
		PrimaryDocumentType:    string(models.DocumentTypeIDCard),
	})
	s.seedVerification(models.PhaseOtpVerification, models.StatusInProgress)
	s.acceptedRequiredDocuments()

	_, err := s.otps.Create(context.Background(), s.process, otpmodels.TypeUserVerification)
	s.Require().NoError(err)

	result, err := svc.CompleteVerification(context.Background(), s.owner, "proc-1", "wrong-code")
	s.Require().NoError(err)
	s.False(result.Verified)
	s.Equal(4, result.RemainingAttempts)

	iv := s.currentIV()
	s.Equal(models.PhaseOtpVerification, iv.Phase)
	s.Equal(models.StatusInProgress, iv.Status)
}

func (s *OrchestratorSuite) TestPresenceCheckFlow() {
	svc := s.newService(config.IdentityVerificationConfig{
		PresenceCheckEnabled: true,
	})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusAccepted)
	doc := s.seedDocument("d1", models.DocumentTypeIDCard, models.CardSideFront, models.DocumentStatusAccepted)
	doc.PhotoID = "photo-1"
	s.Require().NoError(s.store.UpdateDocument(context.Background(), doc))

	portrait := provider.Image{Filename: "portrait.jpg", Data: []byte("portrait")}
	s.verifier.EXPECT().GetPhoto(gomock.Any(), "photo-1").Return(portrait, nil)
	s.presence.EXPECT().InitSession(gomock.Any(), s.owner, portrait).Return("session-1", nil)

	session, err := svc.StartPresenceCheck(context.Background(), s.owner, "proc-1")
	s.Require().NoError(err)
	s.Equal("session-1", session)

	iv := s.currentIV()
	s.Equal(models.PhasePresenceCheck, iv.Phase)
	s.Equal(models.StatusInProgress, iv.Status)
	s.Equal("session-1", iv.SessionInfo)

	s.presence.EXPECT().GetResult(gomock.Any(), s.owner, "session-1").
		Return(provider.PresenceCheckResult{Status: provider.VerificationStatusAccepted}, nil)

	s.Require().NoError(svc.CompletePresenceCheck(context.Background(), s.owner, "proc-1"))

	iv = s.currentIV()
	s.Equal(models.PhaseCompleted, iv.Phase)
	s.Equal(models.StatusAccepted, iv.Status)
}

func (s *OrchestratorSuite) TestPresenceCheckRejection() {
	svc := s.newService(config.IdentityVerificationConfig{
		PresenceCheckEnabled: true,
	})
	iv := s.seedVerification(models.PhasePresenceCheck, models.StatusInProgress)
	iv.SessionInfo = "session-1"
	s.Require().NoError(s.store.UpdateVerification(context.Background(), iv))

	s.presence.EXPECT().GetResult(gomock.Any(), s.owner, "session-1").
		Return(provider.PresenceCheckResult{
			Status:       provider.VerificationStatusRejected,
			RejectReason: "face mismatch",
		}, nil)

	s.Require().NoError(svc.CompletePresenceCheck(context.Background(), s.owner, "proc-1"))

	got := s.currentIV()
	s.Equal(models.PhasePresenceCheck, got.Phase)
	s.Equal(models.StatusRejected, got.Status)
	s.Equal(models.RejectOriginPresenceCheck, got.RejectOrigin)
	s.Equal("face mismatch", got.RejectReason)
}

func (s *OrchestratorSuite) TestStartPresenceCheckWithoutPortrait() {
	svc := s.newService(config.IdentityVerificationConfig{
		PresenceCheckEnabled: true,
	})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusAccepted)
	s.seedDocument("d1", models.DocumentTypeIDCard, models.CardSideFront, models.DocumentStatusAccepted)

	_, err := svc.StartPresenceCheck(context.Background(), s.owner, "proc-1")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeStateConflict))
}

func (s *OrchestratorSuite) TestCheckStatusMasksProviderDetail() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusFailed)
	doc := s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusFailed)
	doc.ErrorDetail = "provider stack trace with internals"
	s.Require().NoError(s.store.UpdateDocument(context.Background(), doc))

	report, err := svc.CheckStatus(context.Background(), s.owner)
	s.Require().NoError(err)
	s.Require().Len(report.Documents, 1)
	s.Equal(models.ErrorDocumentVerificationFailed, report.Documents[0].ErrorDetail)
}

func (s *OrchestratorSuite) TestCheckStatusReportsRejectionReasons() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentVerification, models.StatusRejected)
	doc := s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusRejected)
	doc.RejectReason = "document expired"
	s.Require().NoError(s.store.UpdateDocument(context.Background(), doc))
	s.Require().NoError(s.store.AppendResult(context.Background(), &models.DocumentResult{
		ID:                     "res-1",
		DocumentVerificationID: "d1",
		Phase:                  models.ResultPhaseVerification,
		RejectReason:           "document expired",
		TimestampCreated:       time.Now(),
	}))

	s.verifier.EXPECT().ParseRejectionReasons(gomock.Any()).
		DoAndReturn(func(result models.DocumentResult) ([]string, error) {
			s.Equal("res-1", result.ID)
			return []string{"DOCUMENT_EXPIRED"}, nil
		})

	report, err := svc.CheckStatus(context.Background(), s.owner)
	s.Require().NoError(err)
	s.Require().Len(report.Documents, 1)
	s.Equal([]string{"DOCUMENT_EXPIRED"}, report.Documents[0].RejectReasons)
	// Reasons are classifications, the raw detail stays masked.
	s.Equal(models.ErrorDocumentVerificationFailed, report.Documents[0].ErrorDetail)
}

func (s *OrchestratorSuite) TestCheckStatusSkipsDisposedDocuments() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentUpload, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusAccepted)
	s.seedDocument("d2", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusDisposed)

	report, err := svc.CheckStatus(context.Background(), s.owner)
	s.Require().NoError(err)
	s.Require().Len(report.Documents, 1)
	s.Equal("d1", report.Documents[0].ID)
}

func (s *OrchestratorSuite) TestCleanupCascades() {
	svc := s.newService(config.IdentityVerificationConfig{
		DocumentCleanupEnabled: true,
	})
	s.seedVerification(models.PhaseDocumentUpload, models.StatusInProgress)
	s.seedDocument("d1", models.DocumentTypeIDCard, models.CardSideFront, models.DocumentStatusUploadInProgress)
	s.Require().NoError(s.store.CreateStagedUpload(context.Background(), &models.StagedUpload{
		ID:           "staged-1",
		ActivationID: "act-1",
		Filename:     "back.jpg",
		Data:         []byte("payload"),
	}))

	s.verifier.EXPECT().CleanupDocuments(gomock.Any(), s.owner, []string{"up-d1"}).Return(nil)
	s.activations.EXPECT().ResetFlags(gomock.Any(), "act-1").Return(nil)

	s.Require().NoError(svc.Cleanup(context.Background(), s.owner))

	iv := s.currentIV()
	s.Equal(models.StatusFailed, iv.Status)

	doc, err := s.store.FindDocumentByID(context.Background(), "d1")
	s.Require().NoError(err)
	s.Equal(models.DocumentStatusFailed, doc.Status)

	_, err = s.store.FindStagedUpload(context.Background(), "staged-1")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *OrchestratorSuite) TestConcurrentTransitionsOneWins() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentUpload, models.StatusVerificationPending)
	s.seedDocument("d1", models.DocumentTypePassport, models.CardSideNone, models.DocumentStatusVerificationPending)

	s.verifier.EXPECT().VerifyDocuments(gomock.Any(), s.owner, []string{"up-d1"}).
		Return(provider.DocumentsVerificationResult{VerificationID: "ver-9"}, nil).
		Times(1)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.StartVerification(context.Background(), s.owner, "proc-1")
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case domainerrors.HasCode(err, domainerrors.CodeStateConflict):
			conflicts++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, successes)
	s.Equal(1, conflicts)
}

func (s *OrchestratorSuite) TestHeldLeaseBlocksMutation() {
	svc := s.newService(config.IdentityVerificationConfig{})
	s.seedVerification(models.PhaseDocumentUpload, models.StatusInProgress)

	lease, err := s.guard.Acquire(context.Background(), "proc-1")
	s.Require().NoError(err)

	err = svc.CheckIdentityDocumentsForVerification(context.Background(), s.owner, "proc-1")
	s.Require().Error(err)
	s.True(domainerrors.HasCode(err, domainerrors.CodeStateConflict))

	s.Require().NoError(lease.Release(context.Background()))
	s.Require().NoError(svc.CheckIdentityDocumentsForVerification(context.Background(), s.owner, "proc-1"))
}
