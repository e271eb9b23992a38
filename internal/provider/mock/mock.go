// Package mock provides deterministic in-memory provider implementations for
// local runs and tests. Behavior can be steered through well-known
// identification flags and document filenames.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	idmodels "enrolld/internal/identity/models"
	"enrolld/internal/provider"
	"enrolld/pkg/owner"
)

// Name is the registry key for all mock providers.
const Name = "mock"

// OnboardingProvider resolves users deterministically from identification
// attributes. Setting identification["shouldFail"] = true makes the lookup
// fail so anonymous-process paths can be exercised.
type OnboardingProvider struct {
	ConsentText string
	logger      *slog.Logger
}

// NewOnboardingProvider creates the mock onboarding provider.
func NewOnboardingProvider(logger *slog.Logger) *OnboardingProvider {
	return &OnboardingProvider{
		ConsentText: "I consent to the processing of my identity documents.",
		logger:      logger,
	}
}

func (p *OnboardingProvider) LookupUser(_ context.Context, req provider.LookupUserRequest) (string, error) {
	if fail, _ := req.Identification["shouldFail"].(bool); fail {
		return "", fmt.Errorf("mock asked to fail via identification flag")
	}
	clientNumber, _ := req.Identification["clientNumber"].(string)
	if clientNumber == "" {
		return "", fmt.Errorf("missing clientNumber in identification")
	}
	return "mockuser_" + clientNumber, nil
}

func (p *OnboardingProvider) SendOtpCode(_ context.Context, req provider.SendOtpCodeRequest) error {
	if p.logger != nil {
		p.logger.Info("mock otp delivery",
			"process_id", req.ProcessID,
			"user_id", req.UserID,
			"resend", req.Resend,
		)
	}
	return nil
}

func (p *OnboardingProvider) FetchConsent(_ context.Context, _ provider.ConsentTextRequest) (string, error) {
	return p.ConsentText, nil
}

func (p *OnboardingProvider) ApproveConsent(_ context.Context, _ provider.ApproveConsentRequest) error {
	return nil
}

// DocumentVerificationProvider simulates the document verification service.
// Filenames containing "reject" are rejected, filenames containing "error"
// fail; everything else is accepted. Verification results become available on
// the second poll to exercise the asynchronous reconciliation path.
type DocumentVerificationProvider struct {
	mu            sync.Mutex
	uploads       map[string]provider.SubmittedDocument // uploadID -> document
	verifications map[string][]string                   // verificationID -> uploadIDs
	polls         map[string]int                        // verificationID -> poll count
}

// NewDocumentVerificationProvider creates the mock verification provider.
func NewDocumentVerificationProvider() *DocumentVerificationProvider {
	return &DocumentVerificationProvider{
		uploads:       make(map[string]provider.SubmittedDocument),
		verifications: make(map[string][]string),
		polls:         make(map[string]int),
	}
}

func (p *DocumentVerificationProvider) SubmitDocuments(_ context.Context, _ owner.ID, documents []provider.SubmittedDocument) (provider.DocumentsSubmitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := provider.DocumentsSubmitResult{ExtractedPhotoID: uuid.NewString()}
	for _, doc := range documents {
		result := provider.DocumentSubmitResult{DocumentID: doc.DocumentID}
		switch {
		case strings.Contains(doc.Photo.Filename, "error"):
			result.ErrorDetail = "mock upload error"
		case strings.Contains(doc.Photo.Filename, "reject"):
			result.RejectReason = "mock upload rejected"
		default:
			uploadID := uuid.NewString()
			p.uploads[uploadID] = doc
			result.UploadID = uploadID
			result.ExtractedData = fmt.Sprintf(`{"filename":%q}`, doc.Photo.Filename)
		}
		out.Results = append(out.Results, result)
	}
	return out, nil
}

func (p *DocumentVerificationProvider) CheckDocumentUpload(_ context.Context, _ owner.ID, uploadID string) (provider.DocumentsSubmitResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.uploads[uploadID]
	if !ok {
		return provider.DocumentsSubmitResult{}, fmt.Errorf("unknown upload %s", uploadID)
	}
	return provider.DocumentsSubmitResult{
		Results: []provider.DocumentSubmitResult{{
			DocumentID:    doc.DocumentID,
			UploadID:      uploadID,
			ExtractedData: fmt.Sprintf(`{"filename":%q}`, doc.Photo.Filename),
		}},
	}, nil
}

func (p *DocumentVerificationProvider) VerifyDocuments(_ context.Context, _ owner.ID, uploadIDs []string) (provider.DocumentsVerificationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	verificationID := uuid.NewString()
	p.verifications[verificationID] = append([]string(nil), uploadIDs...)
	return provider.DocumentsVerificationResult{
		VerificationID: verificationID,
		Status:         provider.VerificationStatusInProgress,
	}, nil
}

func (p *DocumentVerificationProvider) GetVerificationResult(_ context.Context, _ owner.ID, verificationID string) (provider.DocumentsVerificationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	uploadIDs, ok := p.verifications[verificationID]
	if !ok {
		return provider.DocumentsVerificationResult{}, fmt.Errorf("unknown verification %s", verificationID)
	}

	p.polls[verificationID]++
	if p.polls[verificationID] < 2 {
		return provider.DocumentsVerificationResult{
			VerificationID: verificationID,
			Status:         provider.VerificationStatusInProgress,
		}, nil
	}

	out := provider.DocumentsVerificationResult{
		VerificationID: verificationID,
		Status:         provider.VerificationStatusAccepted,
		Accepted:       true,
	}
	for _, uploadID := range uploadIDs {
		doc := p.uploads[uploadID]
		result := provider.DocumentVerificationResult{
			UploadID: uploadID,
			Status:   provider.VerificationStatusAccepted,
		}
		if strings.Contains(doc.Photo.Filename, "lateReject") {
			result.Status = provider.VerificationStatusRejected
			result.RejectReason = "mock verification rejected"
			out.Status = provider.VerificationStatusRejected
			out.Accepted = false
		}
		out.Results = append(out.Results, result)
	}
	return out, nil
}

func (p *DocumentVerificationProvider) GetPhoto(_ context.Context, photoID string) (provider.Image, error) {
	return provider.Image{Filename: photoID + ".jpg", Data: []byte("mock-photo")}, nil
}

func (p *DocumentVerificationProvider) CleanupDocuments(_ context.Context, _ owner.ID, uploadIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range uploadIDs {
		delete(p.uploads, id)
	}
	return nil
}

func (p *DocumentVerificationProvider) ParseRejectionReasons(result idmodels.DocumentResult) ([]string, error) {
	if result.RejectReason == "" {
		return nil, nil
	}
	return []string{result.RejectReason}, nil
}

// PresenceCheckProvider simulates a liveness check that always passes.
type PresenceCheckProvider struct{}

// NewPresenceCheckProvider creates the mock presence check provider.
func NewPresenceCheckProvider() *PresenceCheckProvider {
	return &PresenceCheckProvider{}
}

func (p *PresenceCheckProvider) InitSession(_ context.Context, ownerID owner.ID, _ provider.Image) (string, error) {
	return fmt.Sprintf(`{"mockSession":%q}`, ownerID.ActivationID), nil
}

func (p *PresenceCheckProvider) GetResult(_ context.Context, _ owner.ID, _ string) (provider.PresenceCheckResult, error) {
	return provider.PresenceCheckResult{Status: provider.VerificationStatusAccepted}, nil
}

func (p *PresenceCheckProvider) Cleanup(_ context.Context, _ owner.ID) error {
	return nil
}

// ActivationService simulates the activation subsystem; removals and flag
// resets are logged and succeed.
type ActivationService struct {
	logger *slog.Logger
}

// NewActivationService creates the mock activation service.
func NewActivationService(logger *slog.Logger) *ActivationService {
	return &ActivationService{logger: logger}
}

func (s *ActivationService) RemoveActivation(_ context.Context, activationID string) error {
	if s.logger != nil {
		s.logger.Info("mock activation removal", "activation_id", activationID)
	}
	return nil
}

func (s *ActivationService) ResetFlags(_ context.Context, activationID string) error {
	if s.logger != nil {
		s.logger.Info("mock activation flag reset", "activation_id", activationID)
	}
	return nil
}

// ClientEvaluationProvider simulates a risk evaluation that always accepts.
type ClientEvaluationProvider struct{}

// NewClientEvaluationProvider creates the mock client evaluation provider.
func NewClientEvaluationProvider() *ClientEvaluationProvider {
	return &ClientEvaluationProvider{}
}

func (p *ClientEvaluationProvider) EvaluateClient(_ context.Context, _ provider.ClientEvaluationRequest) (provider.ClientEvaluationResult, error) {
	return provider.ClientEvaluationResult{Accepted: true}, nil
}
