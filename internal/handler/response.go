package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/service"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a service error to its HTTP status and body.
// Internal errors are logged and never described to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	var (
		fieldErr    *domain.FieldDeniedError
		permErr     *service.PermissionError
		conflictErr *service.ConflictError
	)

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, service.ErrNothingToUpdate):
		return http.StatusBadRequest, ErrorResponse{Code: "NOTHING_TO_UPDATE", Message: err.Error()}
	case errors.Is(err, service.ErrSamePassword):
		return http.StatusBadRequest, ErrorResponse{Code: "SAME_PASSWORD", Message: err.Error()}
	case errors.Is(err, service.ErrPasswordFail):
		return http.StatusUnauthorized, ErrorResponse{Code: "PASSWORD_FAIL", Message: err.Error()}
	case errors.Is(err, service.ErrAuthFailed):
		return http.StatusUnauthorized, ErrorResponse{Code: "AUTH_FAILED", Message: err.Error()}
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, ErrorResponse{Code: "NOT_AUTHENTICATED", Message: err.Error()}
	case errors.As(err, &fieldErr):
		return http.StatusForbidden, ErrorResponse{
			Code:    "FIELD_DENIED",
			Message: err.Error(),
			Field:   fieldErr.Field,
			Reason:  string(fieldErr.Reason),
		}
	case errors.As(err, &permErr):
		return http.StatusForbidden, ErrorResponse{
			Code:    "PERMISSION_DENIED",
			Message: err.Error(),
			Reason:  string(permErr.Reason),
		}
	case errors.As(err, &conflictErr):
		return http.StatusConflict, ErrorResponse{
			Code:    "CONFLICT",
			Message: err.Error(),
			Field:   conflictErr.Field,
		}
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrAvatarNotFound):
		return http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL_ERROR", Message: "internal server error"}
}
