package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/warp/request-engine/generic"
)

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// Response wraps every API payload.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the machine-readable error kind as Code.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_ = json.NewEncoder(w).Encode(Response{
			Success: false,
			Error:   &ErrorDetail{Code: "encoding_error", Message: "failed to encode response"},
		})
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeCreated(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// statusFor maps an engine error kind to an HTTP status.
func statusFor(kind generic.ErrorKind) int {
	switch kind {
	case generic.KindValidation:
		return http.StatusBadRequest
	case generic.KindNotFound:
		return http.StatusNotFound
	case generic.KindOutOfScope:
		return http.StatusForbidden
	case generic.KindAlreadyProcessed, generic.KindInsufficientBalance:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err in the envelope. Internal faults never leak
// their cause to the client.
func writeError(w http.ResponseWriter, err error) {
	kind := generic.KindOf(err)
	detail := &ErrorDetail{Code: string(kind), Message: err.Error()}

	var verr *generic.ValidationError
	if errors.As(err, &verr) {
		detail.Message = "validation failed"
		detail.Details = verr.ToMap()
	}
	var ibe *generic.InsufficientBalanceError
	if errors.As(err, &ibe) {
		detail.Details = map[string]string{
			"category":  string(ibe.Category),
			"available": strconv.Itoa(ibe.Available),
			"requested": strconv.Itoa(ibe.Requested),
		}
	}
	if kind == generic.KindInternal {
		detail.Message = "an unexpected error occurred"
	}

	writeJSON(w, statusFor(kind), Response{Success: false, Error: detail})
}

// badRequest reports malformed input that never reached the engine.
func badRequest(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    string(generic.KindValidation),
			Message: "validation failed",
			Details: map[string]string{field: message},
		},
	})
}
