package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/gestionqr/gestionqr/internal/attachments"
	"github.com/gestionqr/gestionqr/internal/auth"
	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/queue"
	"github.com/gestionqr/gestionqr/internal/records"
	"github.com/gestionqr/gestionqr/internal/repository"
	"github.com/gestionqr/gestionqr/internal/spreadsheet"
	"github.com/gestionqr/gestionqr/internal/storage"
)

// Error codes in the response body.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeNotFound     = "NOT_FOUND"
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeConflict     = "CONFLICT"
	codeTooLarge     = "TOO_LARGE"
	codeUnavailable  = "UNAVAILABLE"
	codeInternal     = "INTERNAL_ERROR"
)

var errQueueDisabled = errors.New("label queue is not configured")

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps service errors onto HTTP statuses in one place.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, records.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, attachments.ErrNoAttachment),
		errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, repository.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, attachments.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrExists),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, records.ErrInvalidTipo),
		errors.Is(err, ingest.ErrInvalidTipo),
		errors.Is(err, ingest.ErrInvalidLayout),
		errors.Is(err, spreadsheet.ErrNoRows),
		errors.Is(err, spreadsheet.ErrUnsupportedFile),
		errors.Is(err, spreadsheet.ErrUnreadable),
		errors.Is(err, repository.ErrDuplicateInBatch),
		errors.Is(err, attachments.ErrInvalidName),
		errors.Is(err, attachments.ErrInvalidPDF),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errQueueDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeValidation
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusConflict:
		return codeConflict
	case http.StatusRequestEntityTooLarge:
		return codeTooLarge
	case http.StatusServiceUnavailable:
		return codeUnavailable
	default:
		return codeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeStatusError(w, status, err)
}

// writeStatusError writes the JSON error body with an explicit status.
func writeStatusError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorBody{Error: errorDetail{Code: codeFor(status), Message: err.Error()}})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("encode response")
	}
}
