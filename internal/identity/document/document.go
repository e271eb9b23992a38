// Package document is the document processing engine: payload staging,
// submission to the verification provider, deterministic translation of
// provider responses, resubmission handling and two-sided pairing.
package document

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"enrolld/internal/identity/models"
	"enrolld/internal/identity/store"
	"enrolld/internal/platform/config"
	"enrolld/internal/platform/metrics"
	"enrolld/internal/provider"
	domainerrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/owner"
	"enrolld/pkg/platform/tx"
)

// Metadata describes one document entry of a submission request. The binary
// payload comes either inline (matched by Filename) or from a staged upload
// referenced by UploadID.
type Metadata struct {
	Filename           string
	Type               models.DocumentType
	Side               models.CardSide
	UploadID           string
	OriginalDocumentID string
	Resubmit           bool
}

// SubmitRequest is a batch of documents to submit in one call.
type SubmitRequest struct {
	Metadata []Metadata
	Inline   []provider.Image
}

// Engine drives documents through upload, provider submission and
// translation of provider outcomes into document statuses.
type Engine struct {
	store    store.Store
	verifier provider.DocumentVerificationProvider
	txr      tx.Runner
	config   config.IdentityVerificationConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New constructs the document engine.
func New(
	st store.Store,
	verifier provider.DocumentVerificationProvider,
	txr tx.Runner,
	cfg config.IdentityVerificationConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:    st,
		verifier: verifier,
		txr:      txr,
		config:   cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// UploadDocument stages a binary payload for a later submission. The
// returned upload's ID is the reference clients pass in Metadata.UploadID.
func (e *Engine) UploadDocument(ctx context.Context, ownerID owner.ID, iv *models.IdentityVerification, image provider.Image) (*models.StagedUpload, error) {
	if len(image.Data) == 0 {
		return nil, domainerrors.New(domainerrors.CodeValidation, "document payload is empty")
	}
	upload := &models.StagedUpload{
		ID:                     uuid.NewString(),
		ActivationID:           ownerID.ActivationID,
		IdentityVerificationID: iv.ID,
		Filename:               image.Filename,
		Data:                   image.Data,
		TimestampCreated:       e.now(),
	}
	if err := e.store.CreateStagedUpload(ctx, upload); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "stage document upload")
	}
	return upload, nil
}

// SubmitDocuments creates a DocumentVerification per metadata entry,
// resolves payloads, disposes resubmitted originals, forwards the batch to
// the provider and persists the translated outcome in one transaction.
func (e *Engine) SubmitDocuments(ctx context.Context, ownerID owner.ID, iv *models.IdentityVerification, req SubmitRequest) ([]models.DocumentVerification, error) {
	if len(req.Metadata) == 0 {
		return nil, domainerrors.New(domainerrors.CodeValidation, "no documents in request")
	}
	for _, meta := range req.Metadata {
		if meta.Resubmit != (meta.OriginalDocumentID != "") {
			return nil, domainerrors.New(domainerrors.CodeValidation,
				"resubmit flag and originalDocumentId must be set together")
		}
	}

	now := e.now()
	docs := make([]*models.DocumentVerification, 0, len(req.Metadata))
	submitted := make([]provider.SubmittedDocument, 0, len(req.Metadata))
	consumedUploads := make([]string, 0)

	for _, meta := range req.Metadata {
		photo, stagedID, err := e.resolvePayload(ctx, ownerID, meta, req.Inline)
		if err != nil {
			return nil, err
		}
		if stagedID != "" {
			consumedUploads = append(consumedUploads, stagedID)
		}
		doc := &models.DocumentVerification{
			ID:                     uuid.NewString(),
			ActivationID:           ownerID.ActivationID,
			IdentityVerificationID: iv.ID,
			Type:                   meta.Type,
			Side:                   meta.Side,
			Status:                 models.DocumentStatusUploadInProgress,
			Filename:               photo.Filename,
			OriginalDocumentID:     meta.OriginalDocumentID,
			UsedForVerification:    true,
			ProviderName:           e.config.DocumentVerificationProvider,
			TimestampCreated:       now,
		}
		docs = append(docs, doc)
		submitted = append(submitted, provider.SubmittedDocument{
			DocumentID: doc.ID,
			Type:       meta.Type,
			Side:       meta.Side,
			Photo:      photo,
		})
	}

	result, err := e.verifier.SubmitDocuments(ctx, ownerID, submitted)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeProvider, "submit documents")
	}
	if len(result.Results) != len(docs) {
		return nil, domainerrors.New(domainerrors.CodeProvider, "provider returned a result count mismatch")
	}

	err = e.txr.Run(ctx, func(ctx context.Context) error {
		for i, doc := range docs {
			if doc.OriginalDocumentID != "" {
				if err := e.disposeOriginal(ctx, iv, doc.OriginalDocumentID, now); err != nil {
					return err
				}
			}
			if err := e.applySubmitResult(ctx, ownerID, doc, result.Results[i], now); err != nil {
				return err
			}
			if err := e.store.CreateDocument(ctx, doc); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "create document")
			}
			if err := e.appendUploadResult(ctx, doc, result.Results[i], now); err != nil {
				return err
			}
		}
		if result.ExtractedPhotoID != "" {
			e.attachExtractedPhoto(docs, result.ExtractedPhotoID)
			for _, doc := range docs {
				if doc.PhotoID != "" {
					if err := e.store.UpdateDocument(ctx, doc); err != nil {
						return domainerrors.Wrap(err, domainerrors.CodeInternal, "attach extracted photo")
					}
				}
			}
		}
		if err := e.pairTwoSided(ctx, docs); err != nil {
			return err
		}
		// The provider owns the payload now; keeping the staged copy would
		// retain the binary twice.
		for _, id := range consumedUploads {
			if err := e.store.DeleteStagedUpload(ctx, id); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "delete consumed staged upload")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.DocumentsSubmitted.Add(float64(len(docs)))
		for _, meta := range req.Metadata {
			if meta.Resubmit {
				e.metrics.DocumentsResubmitted.Inc()
			}
		}
	}

	out := make([]models.DocumentVerification, len(docs))
	for i, doc := range docs {
		out[i] = *doc
	}
	return out, nil
}

func (e *Engine) resolvePayload(ctx context.Context, ownerID owner.ID, meta Metadata, inline []provider.Image) (provider.Image, string, error) {
	for _, img := range inline {
		if img.Filename == meta.Filename && meta.Filename != "" {
			return img, "", nil
		}
	}
	if meta.UploadID == "" {
		return provider.Image{}, "", domainerrors.Newf(domainerrors.CodeValidation,
			"no payload for document %q: neither inline data nor uploadId", meta.Filename)
	}
	upload, err := e.store.FindStagedUpload(ctx, meta.UploadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return provider.Image{}, "", domainerrors.New(domainerrors.CodeNotFound, "staged upload not found")
		}
		return provider.Image{}, "", domainerrors.Wrap(err, domainerrors.CodeInternal, "load staged upload")
	}
	if upload.ActivationID != ownerID.ActivationID {
		return provider.Image{}, "", domainerrors.New(domainerrors.CodeValidation,
			"staged upload belongs to a different activation")
	}
	return provider.Image{Filename: upload.Filename, Data: upload.Data}, upload.ID, nil
}

func (e *Engine) disposeOriginal(ctx context.Context, iv *models.IdentityVerification, originalID string, now time.Time) error {
	original, err := e.store.FindDocumentByID(ctx, originalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "original document not found")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "load original document")
	}
	if original.IdentityVerificationID != iv.ID {
		return domainerrors.New(domainerrors.CodeValidation,
			"original document belongs to a different identity verification")
	}
	original.Status = models.DocumentStatusDisposed
	original.UsedForVerification = false
	original.TimestampDisposed = now
	original.TimestampUpdated = now
	if err := e.store.UpdateDocument(ctx, original); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "dispose original document")
	}
	return nil
}

// applySubmitResult is the deterministic translation of a provider
// submission outcome into a document status.
func (e *Engine) applySubmitResult(ctx context.Context, ownerID owner.ID, doc *models.DocumentVerification, res provider.DocumentSubmitResult, now time.Time) error {
	doc.UploadID = res.UploadID
	doc.TimestampUploaded = now
	doc.TimestampUpdated = now

	switch {
	case res.ErrorDetail != "":
		doc.Status = models.DocumentStatusFailed
		doc.ErrorDetail = res.ErrorDetail
	case res.RejectReason != "":
		doc.Status = models.DocumentStatusRejected
		doc.RejectReason = res.RejectReason
	case doc.Type == models.DocumentTypeSelfiePhoto:
		if e.config.VerifySelfieWithDocumentsEnabled {
			doc.Status = models.DocumentStatusVerificationPending
		} else {
			doc.Status = models.DocumentStatusAccepted
		}
	case res.ExtractedData == "":
		// Provider still processing; the reconciliation sweep re-polls.
		doc.Status = models.DocumentStatusUploadInProgress
	case e.config.VerificationOnSubmitEnabled:
		verification, err := e.verifier.VerifyDocuments(ctx, ownerID, []string{doc.UploadID})
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeProvider, "verify document on submit")
		}
		doc.VerificationID = verification.VerificationID
		doc.Status = models.DocumentStatusUploadInProgress
	default:
		doc.Status = models.DocumentStatusVerificationPending
	}
	return nil
}

func (e *Engine) appendUploadResult(ctx context.Context, doc *models.DocumentVerification, res provider.DocumentSubmitResult, now time.Time) error {
	record := &models.DocumentResult{
		ID:                     uuid.NewString(),
		DocumentVerificationID: doc.ID,
		Phase:                  models.ResultPhaseUpload,
		ExtractedData:          res.ExtractedData,
		ErrorDetail:            res.ErrorDetail,
		RejectReason:           res.RejectReason,
		TimestampCreated:       now,
	}
	if err := e.store.AppendResult(ctx, record); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "append upload result")
	}
	return nil
}

// attachExtractedPhoto binds the provider's extracted portrait to the selfie
// document of the batch, falling back to the first document.
func (e *Engine) attachExtractedPhoto(docs []*models.DocumentVerification, photoID string) {
	for _, doc := range docs {
		if doc.Type == models.DocumentTypeSelfiePhoto {
			doc.PhotoID = photoID
			return
		}
	}
	if len(docs) > 0 {
		docs[0].PhotoID = photoID
	}
}

// PairTwoSidedDocuments cross-links FRONT and BACK captures of two-sided
// types submitted in one batch. Quadratic in batch size; batches are small.
func (e *Engine) PairTwoSidedDocuments(ctx context.Context, docs []*models.DocumentVerification) error {
	return e.pairTwoSided(ctx, docs)
}

func (e *Engine) pairTwoSided(ctx context.Context, docs []*models.DocumentVerification) error {
	for _, doc := range docs {
		if !doc.Type.TwoSided() || doc.OtherSideID != "" {
			continue
		}
		for _, other := range docs {
			if other.ID == doc.ID || other.Type != doc.Type || other.Side == doc.Side {
				continue
			}
			doc.OtherSideID = other.ID
			other.OtherSideID = doc.ID
			if err := e.store.SetOtherSide(ctx, doc.ID, other.ID); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "pair document sides")
			}
			if err := e.store.SetOtherSide(ctx, other.ID, doc.ID); err != nil {
				return domainerrors.Wrap(err, domainerrors.CodeInternal, "pair document sides")
			}
			break
		}
	}
	return nil
}

// CheckDocumentSubmitWithProvider re-polls the provider for one document's
// submission outcome and re-applies the translation rule. Used by the
// reconciliation sweep; each call commits on its own.
func (e *Engine) CheckDocumentSubmitWithProvider(ctx context.Context, ownerID owner.ID, doc *models.DocumentVerification) error {
	result, err := e.verifier.CheckDocumentUpload(ctx, ownerID, doc.UploadID)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "check document upload")
	}
	var res *provider.DocumentSubmitResult
	for i := range result.Results {
		if result.Results[i].UploadID == doc.UploadID || result.Results[i].DocumentID == doc.ID {
			res = &result.Results[i]
			break
		}
	}
	if res == nil {
		return domainerrors.New(domainerrors.CodeProvider, "provider returned no result for document")
	}

	now := e.now()
	return e.txr.Run(ctx, func(ctx context.Context) error {
		if err := e.applySubmitResult(ctx, ownerID, doc, *res, now); err != nil {
			return err
		}
		if err := e.store.UpdateDocument(ctx, doc); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "update document")
		}
		return e.appendUploadResult(ctx, doc, *res, now)
	})
}
