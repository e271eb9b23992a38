// Package models defines the identity verification aggregate: the
// verification itself, its document verifications and their append-only
// results.
package models

import (
	"time"

	onboarding "enrolld/internal/onboarding/models"
)

// Phase is the workflow phase an identity verification is in.
type Phase string

const (
	PhaseDocumentUpload       Phase = "DOCUMENT_UPLOAD"
	PhaseDocumentVerification Phase = "DOCUMENT_VERIFICATION"
	PhaseClientEvaluation     Phase = "CLIENT_EVALUATION"
	PhasePresenceCheck        Phase = "PRESENCE_CHECK"
	PhaseOtpVerification      Phase = "OTP_VERIFICATION"
	PhaseCompleted            Phase = "COMPLETED"
)

// Status is the progress status within a phase.
type Status string

const (
	StatusInProgress          Status = "IN_PROGRESS"
	StatusVerificationPending Status = "VERIFICATION_PENDING"
	StatusAccepted            Status = "ACCEPTED"
	StatusRejected            Status = "REJECTED"
	StatusFailed              Status = "FAILED"
)

// RejectOrigin records which subsystem rejected a verification.
type RejectOrigin string

const (
	RejectOriginDocumentVerification RejectOrigin = "DOCUMENT_VERIFICATION"
	RejectOriginPresenceCheck        RejectOrigin = "PRESENCE_CHECK"
	RejectOriginClientEvaluation     RejectOrigin = "CLIENT_EVALUATION"
)

// ErrorDocumentVerificationFailed is the only document error text ever shown
// to callers; raw provider diagnostics stay server-side.
const ErrorDocumentVerificationFailed = "documentVerificationFailed"

// IdentityVerification is the phase/status workflow evaluating one
// activation's documents and optional presence/client checks. Exactly one
// non-terminal row exists per activation; the latest by creation time defines
// current state.
type IdentityVerification struct {
	ID                string
	ActivationID      string
	UserID            string
	ProcessID         string
	Phase             Phase
	Status            Status
	RejectReason      string
	RejectOrigin      RejectOrigin
	ErrorDetail       string
	ErrorOrigin       onboarding.ErrorOrigin
	SessionInfo       string // opaque provider session blob
	TimestampCreated  time.Time
	TimestampUpdated  time.Time
	TimestampFinished time.Time
	TimestampFailed   time.Time
}

// Terminal reports whether the verification reached its final phase.
func (iv *IdentityVerification) Terminal() bool {
	return iv.Phase == PhaseCompleted
}

// DocumentType classifies a submitted identity document.
type DocumentType string

const (
	DocumentTypeIDCard         DocumentType = "ID_CARD"
	DocumentTypePassport       DocumentType = "PASSPORT"
	DocumentTypeDrivingLicense DocumentType = "DRIVING_LICENSE"
	DocumentTypeSelfiePhoto    DocumentType = "SELFIE_PHOTO"
)

// TwoSided reports whether the type requires FRONT and BACK captures.
func (t DocumentType) TwoSided() bool {
	return t == DocumentTypeIDCard || t == DocumentTypeDrivingLicense
}

// CardSide identifies which side of a document a capture shows.
type CardSide string

const (
	CardSideFront CardSide = "FRONT"
	CardSideBack  CardSide = "BACK"
	CardSideNone  CardSide = "NONE"
)

// DocumentStatus is the per-document processing status.
type DocumentStatus string

const (
	DocumentStatusUploadInProgress       DocumentStatus = "UPLOAD_IN_PROGRESS"
	DocumentStatusVerificationPending    DocumentStatus = "VERIFICATION_PENDING"
	DocumentStatusVerificationInProgress DocumentStatus = "VERIFICATION_IN_PROGRESS"
	DocumentStatusAccepted               DocumentStatus = "ACCEPTED"
	DocumentStatusRejected               DocumentStatus = "REJECTED"
	DocumentStatusFailed                 DocumentStatus = "FAILED"
	DocumentStatusDisposed               DocumentStatus = "DISPOSED"
)

// DocumentStatusesNotFinished lists statuses a cleanup cascades failure into.
var DocumentStatusesNotFinished = []DocumentStatus{
	DocumentStatusUploadInProgress,
	DocumentStatusVerificationPending,
	DocumentStatusVerificationInProgress,
}

// DocumentStatusesProcessed lists terminal per-document statuses used when
// resolving an aggregate outcome from already-finalized documents.
var DocumentStatusesProcessed = []DocumentStatus{
	DocumentStatusAccepted,
	DocumentStatusFailed,
	DocumentStatusRejected,
}

// DocumentVerification tracks one submitted document through upload, provider
// verification and resolution.
type DocumentVerification struct {
	ID                     string
	ActivationID           string
	IdentityVerificationID string
	Type                   DocumentType
	Side                   CardSide
	Status                 DocumentStatus
	Filename               string
	UploadID               string // provider handle from document submit
	VerificationID         string // provider handle from batched verification
	PhotoID                string // provider handle of the extracted portrait
	OriginalDocumentID     string // resubmission back-reference
	OtherSideID            string // two-sided peer link
	UsedForVerification    bool
	ProviderName           string
	ErrorDetail            string
	RejectReason           string
	TimestampCreated       time.Time
	TimestampUploaded      time.Time
	TimestampUpdated       time.Time
	TimestampDisposed      time.Time
}

// ResultPhase distinguishes upload results from verification results.
type ResultPhase string

const (
	ResultPhaseUpload       ResultPhase = "UPLOAD"
	ResultPhaseVerification ResultPhase = "VERIFICATION"
)

// DocumentResult is an append-only record of one provider interaction with a
// document. The latest result governs externally visible metadata.
type DocumentResult struct {
	ID                     string
	DocumentVerificationID string
	Phase                  ResultPhase
	VerificationPayload    string // opaque provider payload
	ExtractedData          string
	ErrorDetail            string
	RejectReason           string
	TimestampCreated       time.Time
}

// StagedUpload is a binary payload uploaded ahead of document submission and
// referenced by uploadId. Deleted once the provider consumed it.
type StagedUpload struct {
	ID                     string
	ActivationID           string
	IdentityVerificationID string
	Filename               string
	Data                   []byte
	TimestampCreated       time.Time
}
