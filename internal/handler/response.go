package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "validation_error", "message": "search query is required"}
//
// The client shows `message` to the user as-is, so it is always a short
// human-readable sentence and never an internal error string.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/tubeclone/internal/apperror"
)

// maxBodyBytes bounds JSON bodies. Post and profile edits carry base64 images,
// so this is well above objectstore.MaxImageBytes.
const maxBodyBytes = 64 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "token_expired")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body; once Encode writes, later
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// MessageResponse is the body of write endpoints that have nothing else to
// return.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation, ErrNotFound, ErrConflict → 400 (caller-fixable)
//	ErrUnauthenticated                      → 401 ("token_expired" or "unauthorized")
//	ErrForbidden                            → 403
//	ErrUpstream, anything else              → 500
//
// A missing local record is reported as 400, not 404: every id in this API
// comes from the client, so an unknown one is a bad request.
//
// errors.Is walks the whole chain, so a service may wrap freely:
//
//	fmt.Errorf("catalog: fetching video: %w", apperror.NotFound(...))
//	errors.Is walks: outer error → AppError → ErrNotFound ✓ match!
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	message := "An internal error occurred"
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	switch {
	case errors.Is(err, apperror.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "token_expired", Message: message})
	case errors.Is(err, apperror.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: message})
	case errors.Is(err, apperror.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: message})
	case errors.Is(err, apperror.ErrNotFound):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "not_found", Message: message})
	case errors.Is(err, apperror.ErrConflict):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "conflict", Message: message})
	case errors.Is(err, apperror.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: message})
	case errors.Is(err, apperror.ErrUpstream):
		// The upstream body may carry quota or key details; log it, never send it.
		logger.Error("upstream request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "upstream_error", Message: message})
	default:
		// NEVER expose internal error details to the client: the raw message
		// might contain SQL, file paths or other sensitive info.
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// zero-valued. Malformed JSON is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must be %d bytes or less", tooLarge.Limit))
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
