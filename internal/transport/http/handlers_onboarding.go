package httptransport

import (
	"encoding/json"
	"net/http"

	"enrolld/internal/platform/middleware"
	domainerrors "enrolld/pkg/domain-errors"
)

type startRequest struct {
	Identification map[string]any `json:"identification"`
}

type startResponse struct {
	ProcessID        string `json:"processId"`
	OnboardingStatus string `json:"onboardingStatus"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	process, err := h.lifecycle.Start(ctx, req.Identification)
	if err != nil {
		h.logError(r, "failed to start onboarding process", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{
		ProcessID:        process.ID,
		OnboardingStatus: string(process.Status),
	})
}

type activateRequest struct {
	ProcessID    string `json:"processId"`
	OtpCode      string `json:"otpCode"`
	ActivationID string `json:"activationId"`
}

type activateResponse struct {
	Activated         bool   `json:"activated"`
	RemainingAttempts int    `json:"remainingAttempts"`
	OnboardingStatus  string `json:"onboardingStatus"`
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	result, err := h.lifecycle.Activate(ctx, req.ProcessID, req.OtpCode, req.ActivationID)
	if err != nil {
		h.logError(r, "failed to activate process", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activateResponse{
		Activated:         result.Activated,
		RemainingAttempts: result.RemainingAttempts,
		OnboardingStatus:  string(result.ProcessStatus),
	})
}

type processRequest struct {
	ProcessID string `json:"processId"`
}

type processStatusResponse struct {
	ProcessID        string `json:"processId"`
	OnboardingStatus string `json:"onboardingStatus"`
	ErrorDetail      string `json:"errorDetail,omitempty"`
	ErrorOrigin      string `json:"errorOrigin,omitempty"`
}

func (h *Handler) handleProcessStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	report, err := h.lifecycle.Status(ctx, req.ProcessID)
	if err != nil {
		h.logError(r, "failed to read process status", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processStatusResponse{
		ProcessID:        report.ProcessID,
		OnboardingStatus: string(report.Status),
		ErrorDetail:      report.ErrorDetail,
		ErrorOrigin:      string(report.ErrorOrigin),
	})
}

func (h *Handler) handleResendOtp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	if err := h.lifecycle.ResendOtp(ctx, req.ProcessID); err != nil {
		h.logError(r, "failed to resend otp", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProcessCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	if err := h.lifecycle.Cleanup(ctx, req.ProcessID); err != nil {
		h.logError(r, "failed to clean up process", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type consentTextRequest struct {
	ProcessID   string `json:"processId"`
	ConsentType string `json:"consentType"`
	Locale      string `json:"locale"`
}

type consentTextResponse struct {
	ConsentText string `json:"consentText"`
}

func (h *Handler) handleConsentText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req consentTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	text, err := h.lifecycle.FetchConsentText(ctx, req.ProcessID, req.ConsentType, req.Locale)
	if err != nil {
		h.logError(r, "failed to fetch consent text", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, consentTextResponse{ConsentText: text})
}

type consentApproveRequest struct {
	ProcessID   string `json:"processId"`
	ConsentType string `json:"consentType"`
	Approved    bool   `json:"approved"`
}

func (h *Handler) handleConsentApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req consentApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}

	if err := h.lifecycle.ApproveConsent(ctx, req.ProcessID, req.ConsentType, req.Approved); err != nil {
		h.logError(r, "failed to record consent decision", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
}
