package httptransport

import (
	"encoding/json"
	"net/http"

	"cultivar/pkg/domainerrors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every endpoint returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	writeJSON(w, statusFor(code), map[string]string{
		"error": string(code),
	})
}

func statusFor(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case domainerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeConsentPersistFailure:
		// The decision was taken but not durably recorded; the client may
		// retry the write.
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
