package httptransport

import (
	"encoding/json"
	"net/http"

	"enrolld/internal/identity/document"
	"enrolld/internal/identity/models"
	"enrolld/internal/platform/middleware"
	"enrolld/internal/provider"
	domainerrors "enrolld/pkg/domain-errors"
	"enrolld/pkg/owner"
)

func (h *Handler) ownerFrom(w http.ResponseWriter, r *http.Request) (owner.ID, bool) {
	ownerID, ok := middleware.GetOwner(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "owner missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "authentication context error"))
		return owner.ID{}, false
	}
	return ownerID, true
}

type identityInitResponse struct {
	ID     string `json:"id"`
	Phase  string `json:"phase"`
	Status string `json:"status"`
}

func (h *Handler) handleIdentityInit(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	iv, err := h.identity.InitializeIdentityVerification(r.Context(), ownerID, req.ProcessID)
	if err != nil {
		h.logError(r, "failed to initialize identity verification", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityInitResponse{
		ID:     iv.ID,
		Phase:  string(iv.Phase),
		Status: string(iv.Status),
	})
}

type documentStatusEntry struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Side          string   `json:"side,omitempty"`
	Status        string   `json:"status"`
	ErrorDetail   string   `json:"errorDetail,omitempty"`
	RejectReasons []string `json:"rejectReasons,omitempty"`
}

type identityStatusResponse struct {
	Phase     string                `json:"phase"`
	Status    string                `json:"status"`
	Documents []documentStatusEntry `json:"documents"`
}

func (h *Handler) handleIdentityStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}

	report, err := h.identity.CheckStatus(r.Context(), ownerID)
	if err != nil {
		h.logError(r, "failed to read identity verification status", err)
		writeError(w, err)
		return
	}
	resp := identityStatusResponse{
		Phase:     string(report.Phase),
		Status:    string(report.Status),
		Documents: make([]documentStatusEntry, 0, len(report.Documents)),
	}
	for _, doc := range report.Documents {
		resp.Documents = append(resp.Documents, documentStatusEntry{
			ID:            doc.ID,
			Type:          string(doc.Type),
			Side:          string(doc.Side),
			Status:        string(doc.Status),
			ErrorDetail:   doc.ErrorDetail,
			RejectReasons: doc.RejectReasons,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type documentUploadRequest struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

type documentUploadResponse struct {
	UploadID string `json:"uploadId"`
	Filename string `json:"filename"`
}

func (h *Handler) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req documentUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	upload, err := h.identity.UploadDocument(r.Context(), ownerID, provider.Image{
		Filename: req.Filename,
		Data:     req.Data,
	})
	if err != nil {
		h.logError(r, "failed to stage document upload", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentUploadResponse{
		UploadID: upload.ID,
		Filename: upload.Filename,
	})
}

type documentMetadataRequest struct {
	Filename           string `json:"filename"`
	Type               string `json:"type"`
	Side               string `json:"side,omitempty"`
	UploadID           string `json:"uploadId,omitempty"`
	OriginalDocumentID string `json:"originalDocumentId,omitempty"`
	Resubmit           bool   `json:"resubmit,omitempty"`
}

type inlineImage struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

type documentSubmitRequest struct {
	ProcessID string                    `json:"processId"`
	Documents []documentMetadataRequest `json:"documents"`
	Images    []inlineImage             `json:"images,omitempty"`
}

type documentSubmitResponse struct {
	Documents []documentStatusEntry `json:"documents"`
}

func (h *Handler) handleDocumentSubmit(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req documentSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	submit := document.SubmitRequest{
		Metadata: make([]document.Metadata, 0, len(req.Documents)),
		Inline:   make([]provider.Image, 0, len(req.Images)),
	}
	for _, meta := range req.Documents {
		submit.Metadata = append(submit.Metadata, document.Metadata{
			Filename:           meta.Filename,
			Type:               models.DocumentType(meta.Type),
			Side:               models.CardSide(meta.Side),
			UploadID:           meta.UploadID,
			OriginalDocumentID: meta.OriginalDocumentID,
			Resubmit:           meta.Resubmit,
		})
	}
	for _, img := range req.Images {
		submit.Inline = append(submit.Inline, provider.Image{
			Filename: img.Filename,
			Data:     img.Data,
		})
	}

	docs, err := h.identity.SubmitDocuments(r.Context(), ownerID, req.ProcessID, submit)
	if err != nil {
		h.logError(r, "failed to submit documents", err)
		writeError(w, err)
		return
	}
	resp := documentSubmitResponse{Documents: make([]documentStatusEntry, 0, len(docs))}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, documentStatusEntry{
			ID:     doc.ID,
			Type:   string(doc.Type),
			Side:   string(doc.Side),
			Status: string(doc.Status),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVerifyStart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	if err := h.identity.StartVerification(r.Context(), ownerID, req.ProcessID); err != nil {
		h.logError(r, "failed to start document verification", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyResult(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	if err := h.identity.CheckVerificationResult(r.Context(), ownerID, req.ProcessID); err != nil {
		h.logError(r, "failed to check verification result", err)
		writeError(w, err)
		return
	}
	h.handleIdentityStatus(w, r)
}

type presenceCheckInitResponse struct {
	SessionAttributes string `json:"sessionAttributes"`
}

func (h *Handler) handlePresenceCheckInit(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	session, err := h.identity.StartPresenceCheck(r.Context(), ownerID, req.ProcessID)
	if err != nil {
		h.logError(r, "failed to start presence check", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presenceCheckInitResponse{SessionAttributes: session})
}

func (h *Handler) handlePresenceCheckSubmit(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	if err := h.identity.CompletePresenceCheck(r.Context(), ownerID, req.ProcessID); err != nil {
		h.logError(r, "failed to complete presence check", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeVerificationRequest struct {
	ProcessID string `json:"processId"`
	OtpCode   string `json:"otpCode"`
}

type completeVerificationResponse struct {
	Verified          bool   `json:"verified"`
	RemainingAttempts int    `json:"remainingAttempts"`
	OnboardingStatus  string `json:"onboardingStatus"`
}

func (h *Handler) handleCompleteVerification(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}
	var req completeVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	result, err := h.identity.CompleteVerification(r.Context(), ownerID, req.ProcessID, req.OtpCode)
	if err != nil {
		h.logError(r, "failed to complete identity verification", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeVerificationResponse{
		Verified:          result.Verified,
		RemainingAttempts: result.RemainingAttempts,
		OnboardingStatus:  string(result.ProcessStatus),
	})
}

func (h *Handler) handleIdentityCleanup(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerFrom(w, r)
	if !ok {
		return
	}

	if err := h.identity.Cleanup(r.Context(), ownerID); err != nil {
		h.logError(r, "failed to clean up identity verification", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownerFrom(w, r); !ok {
		return
	}
	photoID := r.URL.Query().Get("photoId")

	photo, err := h.identity.GetPhoto(r.Context(), photoID)
	if err != nil {
		h.logError(r, "failed to fetch photo", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(photo.Data)
}
