// Package provider defines the collaborator contracts consumed by the
// orchestration core: user lookup and OTP delivery, document verification,
// presence checks, client evaluation and the activation subsystem. A registry
// keyed by configuration selects implementations at startup.
package provider

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"

	idmodels "enrolld/internal/identity/models"
	"enrolld/pkg/owner"
)

// LookupUserRequest asks the onboarding provider to resolve a user from
// identification attributes.
type LookupUserRequest struct {
	Identification map[string]any
	ProcessID      string
}

// SendOtpCodeRequest delivers an OTP code through the provider's channel.
type SendOtpCodeRequest struct {
	ProcessID string
	UserID    string
	OtpCode   string
	Resend    bool
	Locale    string
	OtpType   string
}

// ConsentTextRequest fetches the consent text shown to the user.
type ConsentTextRequest struct {
	ProcessID   string
	UserID      string
	ConsentType string
	Locale      string
}

// ApproveConsentRequest records the user's consent decision.
type ApproveConsentRequest struct {
	ProcessID   string
	UserID      string
	ConsentType string
	Approved    bool
}

// OnboardingProvider covers user lookup, OTP delivery and consent handling.
// LookupUser failure is tolerated by callers; the process proceeds without a
// resolved user. SendOtpCode failure is fatal to the originating call.
type OnboardingProvider interface {
	LookupUser(ctx context.Context, req LookupUserRequest) (userID string, err error)
	SendOtpCode(ctx context.Context, req SendOtpCodeRequest) error
	FetchConsent(ctx context.Context, req ConsentTextRequest) (string, error)
	ApproveConsent(ctx context.Context, req ApproveConsentRequest) error
}

// Image is an opaque binary photo payload with its filename.
type Image struct {
	Filename string
	Data     []byte
}

// SubmittedDocument is one document handed to the verification provider.
type SubmittedDocument struct {
	DocumentID string // staged upload reference, empty for inline payloads
	Type       idmodels.DocumentType
	Side       idmodels.CardSide
	Photo      Image
}

// DocumentSubmitResult is the provider's per-document submission outcome.
// ErrorDetail and RejectReason are mutually exclusive with a successful
// upload; ExtractedData is present only once provider-side processing
// finished.
type DocumentSubmitResult struct {
	DocumentID    string
	UploadID      string
	ErrorDetail   string
	RejectReason  string
	ExtractedData string
}

// DocumentsSubmitResult aggregates submission outcomes for a batch.
type DocumentsSubmitResult struct {
	Results          []DocumentSubmitResult
	ExtractedPhotoID string
}

// DocumentVerificationStatus is the provider-side state of a verification.
type DocumentVerificationStatus string

const (
	VerificationStatusInProgress DocumentVerificationStatus = "IN_PROGRESS"
	VerificationStatusAccepted   DocumentVerificationStatus = "ACCEPTED"
	VerificationStatusRejected   DocumentVerificationStatus = "REJECTED"
	VerificationStatusFailed     DocumentVerificationStatus = "FAILED"
)

// DocumentVerificationResult is the provider's outcome for one document
// within a batched verification.
type DocumentVerificationResult struct {
	UploadID            string
	Status              DocumentVerificationStatus
	ErrorDetail         string
	RejectReason        string
	VerificationPayload string
	ExtractedData       string
}

// DocumentsVerificationResult is the provider's outcome for a whole batch.
type DocumentsVerificationResult struct {
	VerificationID string
	Status         DocumentVerificationStatus
	Accepted       bool
	Results        []DocumentVerificationResult
	ErrorDetail    string
}

// DocumentVerificationProvider is the external document-verification service
// boundary. Implementations own their transport timeouts.
type DocumentVerificationProvider interface {
	SubmitDocuments(ctx context.Context, ownerID owner.ID, documents []SubmittedDocument) (DocumentsSubmitResult, error)
	CheckDocumentUpload(ctx context.Context, ownerID owner.ID, uploadID string) (DocumentsSubmitResult, error)
	VerifyDocuments(ctx context.Context, ownerID owner.ID, uploadIDs []string) (DocumentsVerificationResult, error)
	GetVerificationResult(ctx context.Context, ownerID owner.ID, verificationID string) (DocumentsVerificationResult, error)
	GetPhoto(ctx context.Context, photoID string) (Image, error)
	CleanupDocuments(ctx context.Context, ownerID owner.ID, uploadIDs []string) error
	ParseRejectionReasons(result idmodels.DocumentResult) ([]string, error)
}

// PresenceCheckResult is the outcome of a liveness/presence session.
type PresenceCheckResult struct {
	Status       DocumentVerificationStatus
	RejectReason string
	ErrorDetail  string
}

// PresenceCheckProvider is the liveness-check service boundary.
type PresenceCheckProvider interface {
	InitSession(ctx context.Context, ownerID owner.ID, photo Image) (sessionInfo string, err error)
	GetResult(ctx context.Context, ownerID owner.ID, sessionInfo string) (PresenceCheckResult, error)
	Cleanup(ctx context.Context, ownerID owner.ID) error
}

// ClientEvaluationRequest asks for a risk evaluation of the onboarding client.
type ClientEvaluationRequest struct {
	ProcessID              string
	UserID                 string
	IdentityVerificationID string
	VerificationID         string
}

// ClientEvaluationResult reports whether the client passed risk evaluation.
type ClientEvaluationResult struct {
	Accepted    bool
	ErrorDetail string
}

// ClientEvaluationProvider is the client-risk evaluation boundary.
type ClientEvaluationProvider interface {
	EvaluateClient(ctx context.Context, req ClientEvaluationRequest) (ClientEvaluationResult, error)
}

// ActivationService is the activation subsystem boundary used for
// compensating removal and flag resets.
type ActivationService interface {
	RemoveActivation(ctx context.Context, activationID string) error
	ResetFlags(ctx context.Context, activationID string) error
}

// Registry holds named implementations of each capability, selected by
// configuration at startup.
type Registry struct {
	onboarding   map[string]OnboardingProvider
	verification map[string]DocumentVerificationProvider
	presence     map[string]PresenceCheckProvider
	evaluation   map[string]ClientEvaluationProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		onboarding:   make(map[string]OnboardingProvider),
		verification: make(map[string]DocumentVerificationProvider),
		presence:     make(map[string]PresenceCheckProvider),
		evaluation:   make(map[string]ClientEvaluationProvider),
	}
}

// RegisterOnboarding adds a named onboarding provider.
func (r *Registry) RegisterOnboarding(name string, p OnboardingProvider) {
	r.onboarding[name] = p
}

// RegisterVerification adds a named document verification provider.
func (r *Registry) RegisterVerification(name string, p DocumentVerificationProvider) {
	r.verification[name] = p
}

// RegisterPresence adds a named presence check provider.
func (r *Registry) RegisterPresence(name string, p PresenceCheckProvider) {
	r.presence[name] = p
}

// RegisterEvaluation adds a named client evaluation provider.
func (r *Registry) RegisterEvaluation(name string, p ClientEvaluationProvider) {
	r.evaluation[name] = p
}

// Onboarding resolves the configured onboarding provider.
func (r *Registry) Onboarding(name string) (OnboardingProvider, error) {
	p, ok := r.onboarding[name]
	if !ok {
		return nil, fmt.Errorf("onboarding provider %q not registered", name)
	}
	return p, nil
}

// Verification resolves the configured document verification provider.
func (r *Registry) Verification(name string) (DocumentVerificationProvider, error) {
	p, ok := r.verification[name]
	if !ok {
		return nil, fmt.Errorf("document verification provider %q not registered", name)
	}
	return p, nil
}

// Presence resolves the configured presence check provider.
func (r *Registry) Presence(name string) (PresenceCheckProvider, error) {
	p, ok := r.presence[name]
	if !ok {
		return nil, fmt.Errorf("presence check provider %q not registered", name)
	}
	return p, nil
}

// Evaluation resolves the configured client evaluation provider.
func (r *Registry) Evaluation(name string) (ClientEvaluationProvider, error) {
	p, ok := r.evaluation[name]
	if !ok {
		return nil, fmt.Errorf("client evaluation provider %q not registered", name)
	}
	return p, nil
}
