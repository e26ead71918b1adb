package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"vidtube/internal/apperr"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil {
		return apperr.Invalid("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Invalid("request body is required")
		case errors.As(err, &tooLarge):
			return apperr.Invalid("request body too large")
		default:
			return apperr.Invalid("invalid request body: %v", err)
		}
	}
	return nil
}
