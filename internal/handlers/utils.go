package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrasebook-app/apiserver/internal/apperr"
	"github.com/phrasebook-app/apiserver/internal/logging"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the error payload of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// OKResponse is returned by mutations that report success as a bool.
type OKResponse struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeFailure maps err onto a status code. Errors outside the apperr
// taxonomy are logged and hidden from the client.
func writeFailure(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, statusOf(appErr.Code), ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeNotAuthorized:
		return http.StatusForbidden
	case apperr.CodeValidationFailed, apperr.CodeInvalidCursor:
		return http.StatusBadRequest
	case apperr.CodeAlreadyExists:
		return http.StatusConflict
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseID(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + param)
	}
	return id, nil
}

// parseLimit returns 0 when the parameter is absent so resolvers apply
// their own defaults.
func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}
