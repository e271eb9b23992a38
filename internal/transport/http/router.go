// Package httptransport is the thin HTTP layer. Handlers decode requests,
// delegate to the domain services and encode responses; business rules stay
// out of this package.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	identityservice "enrolld/internal/identity/service"
	onboardingservice "enrolld/internal/onboarding/service"
	"enrolld/internal/platform/middleware"
)

// Handler bundles the domain services behind the public endpoints.
type Handler struct {
	lifecycle *onboardingservice.Service
	identity  *identityservice.Service
	validator *middleware.TokenValidator
	logger    *slog.Logger
}

// NewHandler creates the HTTP handler layer.
func NewHandler(
	lifecycle *onboardingservice.Service,
	identity *identityservice.Service,
	validator *middleware.TokenValidator,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		identity:  identity,
		validator: validator,
		logger:    logger,
	}
}

// NewRouter wires all endpoints. Everything under /api requires an owner
// token; liveness and metrics stay open.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Locale)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireOwner(h.validator, h.logger))

		api.Route("/onboarding", func(o chi.Router) {
			o.Post("/start", h.handleStart)
			o.Post("/activate", h.handleActivate)
			o.Post("/status", h.handleProcessStatus)
			o.Post("/otp/resend", h.handleResendOtp)
			o.Post("/cleanup", h.handleProcessCleanup)
			o.Post("/consent/text", h.handleConsentText)
			o.Post("/consent/approve", h.handleConsentApprove)
		})

		api.Route("/identity", func(id chi.Router) {
			id.Post("/init", h.handleIdentityInit)
			id.Post("/status", h.handleIdentityStatus)
			id.Post("/document/upload", h.handleDocumentUpload)
			id.Post("/document/submit", h.handleDocumentSubmit)
			id.Post("/verify/start", h.handleVerifyStart)
			id.Post("/verify/result", h.handleVerifyResult)
			id.Post("/presence-check/init", h.handlePresenceCheckInit)
			id.Post("/presence-check/submit", h.handlePresenceCheckSubmit)
			id.Post("/otp/verify", h.handleCompleteVerification)
			id.Post("/cleanup", h.handleIdentityCleanup)
			id.Get("/photo", h.handleGetPhoto)
		})
	})
	return r
}

const requestTimeout = 30 * time.Second
