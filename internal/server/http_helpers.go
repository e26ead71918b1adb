package server

import (
	"net/http"

	"vidtube/internal/api"
)

// writeMiddlewareError keeps middleware rejections in the API envelope shape.
func writeMiddlewareError(w http.ResponseWriter, status int, message string) {
	api.WriteError(w, status, message)
}
