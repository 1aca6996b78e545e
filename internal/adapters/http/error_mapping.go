package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// statusClientClosedRequest is recorded when the caller went away before the
// handler finished. Nothing is sent to the client.
const statusClientClosedRequest = 499

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSessionBusy):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return "invalid_input"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "busy"
	case http.StatusServiceUnavailable:
		return "temporary"
	default:
		return "internal"
	}
}

func fallbackMessage(status int) string {
	switch status {
	case http.StatusNotFound:
		return "Session not found."
	case http.StatusConflict:
		return "An extraction is already in progress for this session."
	case http.StatusServiceUnavailable:
		return domain.MessageNetworkError
	case http.StatusRequestEntityTooLarge:
		return "The request body is too large."
	case http.StatusBadRequest:
		return "Invalid request."
	default:
		return "Internal server error."
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFromContext(r.Context())
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		slog.Info("http_client_disconnected",
			"request_id", requestID,
			"path", r.URL.Path,
		)
		w.WriteHeader(statusClientClosedRequest)
		return
	}

	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestID,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}

	message := fallbackMessage(status)
	if status != http.StatusInternalServerError {
		message = domain.UserMessage(err, message)
	}
	writeJSON(w, status, errorResponse{
		Error:     message,
		Kind:      errorKind(status),
		RequestID: requestID,
	})
}
