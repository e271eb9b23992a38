// Package store persists the identity verification aggregate. An identity
// verification exclusively owns its document verifications; document results
// are append-only under a document. Stores are pure I/O.
package store

import (
	"context"
	"errors"
	"time"

	"enrolld/internal/identity/models"
)

// ErrNotFound is returned when no row matches the query.
var ErrNotFound = errors.New("identity record not found")

// Store persists identity verifications, their documents, append-only
// document results and staged binary uploads.
type Store interface {
	CreateVerification(ctx context.Context, iv *models.IdentityVerification) error
	UpdateVerification(ctx context.Context, iv *models.IdentityVerification) error
	// FindLatestVerificationByActivation returns the newest verification for
	// the activation; it defines the activation's current state.
	FindLatestVerificationByActivation(ctx context.Context, activationID string) (*models.IdentityVerification, error)
	// ListVerificationsWithDocumentsInProgress returns verifications stuck in
	// DOCUMENT_VERIFICATION/IN_PROGRESS for the reconciliation sweep.
	ListVerificationsWithDocumentsInProgress(ctx context.Context) ([]models.IdentityVerification, error)
	// FailRunningVerifications marks all non-terminal verifications of the
	// activation FAILED.
	FailRunningVerifications(ctx context.Context, activationID string, now time.Time) error

	CreateDocument(ctx context.Context, doc *models.DocumentVerification) error
	UpdateDocument(ctx context.Context, doc *models.DocumentVerification) error
	FindDocumentByID(ctx context.Context, id string) (*models.DocumentVerification, error)
	// ListDocuments returns the verification's documents restricted to the
	// given statuses; an empty status list returns all documents.
	ListDocuments(ctx context.Context, identityVerificationID string, statuses []models.DocumentStatus) ([]models.DocumentVerification, error)
	// ListDocumentsUsedForVerification returns documents still counted toward
	// the verification outcome.
	ListDocumentsUsedForVerification(ctx context.Context, identityVerificationID string) ([]models.DocumentVerification, error)
	// ListUploadIDs returns provider upload handles for all documents of an
	// activation, for provider-side cleanup.
	ListUploadIDs(ctx context.Context, activationID string) ([]string, error)
	// SetOtherSide links a document to its opposite side.
	SetOtherSide(ctx context.Context, documentID, otherSideID string) error
	// FailDocumentsNotFinished cascades failure into all documents of the
	// activation that did not reach a terminal status.
	FailDocumentsNotFinished(ctx context.Context, activationID string, now time.Time) error
	// ListDocumentsPendingSubmitCheck returns documents whose provider-side
	// submission has not been confirmed yet, for the reconciliation sweep.
	ListDocumentsPendingSubmitCheck(ctx context.Context) ([]models.DocumentVerification, error)

	AppendResult(ctx context.Context, result *models.DocumentResult) error
	LatestResultForDocument(ctx context.Context, documentVerificationID string) (*models.DocumentResult, error)

	CreateStagedUpload(ctx context.Context, upload *models.StagedUpload) error
	FindStagedUpload(ctx context.Context, id string) (*models.StagedUpload, error)
	DeleteStagedUpload(ctx context.Context, id string) error
	DeleteStagedUploadsByActivation(ctx context.Context, activationID string) error
}
