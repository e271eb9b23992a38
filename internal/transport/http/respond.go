package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "enrolld/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates coded domain errors into the JSON error envelope.
// Messages pass through as-is; services already keep provider internals out
// of them.
func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	message := "internal error"
	var coded *domainerrors.Error
	if errors.As(err, &coded) {
		message = coded.Message
	}
	writeJSON(w, statusOf(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}

func statusOf(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeValidation:
		return http.StatusBadRequest
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeStateConflict:
		return http.StatusConflict
	case domainerrors.CodeRateLimit:
		return http.StatusTooManyRequests
	case domainerrors.CodeExpired:
		return http.StatusGone
	case domainerrors.CodeDelivery, domainerrors.CodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
