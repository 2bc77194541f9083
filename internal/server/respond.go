package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// errorBody is the payload of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

// messageBody is the payload of simple success responses.
type messageBody struct {
	Message string   `json:"message"`
	Folder  string   `json:"folder,omitempty"`
	Files   []string `json:"files,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// statusFor maps an error category to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"detail": ...} with the mapped status. Server
// errors are logged with the request.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	detail := err.Error()
	if status == http.StatusUnauthorized {
		detail = "No autenticado"
	}
	writeJSON(w, status, errorBody{Detail: detail})
}
