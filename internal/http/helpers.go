package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"subtracker/internal/core"
	applog "subtracker/internal/log"
	"subtracker/internal/services"
	"subtracker/internal/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// userID pulls the authenticated user from the X-User-ID header. Requests
// without one get a 401 and ok=false.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := sanitizeInput(r.Header.Get("X-User-ID"))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return "", false
	}
	return id, true
}

// errorStatus maps service and domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrCategoryInUse):
		return http.StatusConflict
	case errors.Is(err, services.ErrSubscriptionLimit):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrScaleNotAllowed),
		errors.Is(err, services.ErrExportNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, core.ErrInvalidBillingCycle),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrMissingPayDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// serviceError writes the error with its mapped status, logging server faults.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err.Error(),
			applog.FieldPath, r.URL.Path)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// payloadError reports a 422 for a request body whose fields could not be
// converted to domain values.
func payloadError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrInvalidAmount) {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	writeError(w, http.StatusUnprocessableEntity, "invalid nextPaymentDate")
}

// parsePaymentDate accepts a plain date or a full RFC 3339 timestamp.
func parsePaymentDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
