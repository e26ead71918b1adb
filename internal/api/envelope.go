package api

import (
	"encoding/json"
	"net/http"

	"vidtube/internal/apperr"
)

// Envelope is the body of every API response. Failed requests carry a nil
// Data and Success false.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		StatusCode: status,
		Success:    status < http.StatusBadRequest,
		Message:    message,
		Data:       data,
	})
}

// WriteError writes a failure envelope with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message, nil)
}

// WriteAppError writes a failure envelope for err, hiding the message of
// internal errors.
func WriteAppError(w http.ResponseWriter, err error) {
	WriteError(w, StatusFor(err), apperr.Message(err))
}

// StatusFor maps an error onto its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
