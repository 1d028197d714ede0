package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Error maps a core error to its HTTP status. Forbidden and NotFound stay
// distinguishable; state violations follow the reference behavior (400).
func Error(w http.ResponseWriter, err error) {
	switch {
	case apperr.IsForbidden(err):
		JSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case apperr.IsNotFound(err):
		JSONError(w, http.StatusNotFound, "not_found", err.Error())
	case apperr.IsConflict(err):
		JSONError(w, http.StatusConflict, "conflict", err.Error())
	case apperr.IsInvalidState(err), apperr.IsValidation(err):
		JSONError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
