// Package handler contains the HTTP handlers of the Secret Santa API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path params, JSON or multipart body)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, JSON body)
//
// Handlers hold no business rules. Every "may this happen?" question is
// answered by a service and comes back as an apperror, which writeError
// turns into a status code.
package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "No assignment found"}
//
// Some errors carry extra data for the client, e.g. a locked reveal:
//   {"error": "reveal_locked", "message": "...", "details": {"revealDate": "..."}}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/secret-santa/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string         `json:"error"`             // Machine-readable error type (e.g., "not_found")
	Message string         `json:"message"`           // Human-readable description
	Field   string         `json:"field,omitempty"`   // Offending input field, for validation errors
	Details map[string]any `json:"details,omitempty"` // Extra data, e.g. revealDate
}

// MessageResponse is the body of endpoints that only report success.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once
// Encode writes, the headers are sent and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorMapping is one row of the domain error → HTTP table.
type errorMapping struct {
	target error
	status int
	kind   string
}

// errorTable is checked top to bottom, so specific domain errors come
// before the category they wrap.
//
// ErrRevealLocked is a state conflict in the domain, but to the participant
// it is "not allowed yet", so it maps to 403 rather than 409.
var errorTable = []errorMapping{
	{apperror.ErrRevealLocked, http.StatusForbidden, "reveal_locked"},
	{apperror.ErrDeadlinePassed, http.StatusForbidden, "deadline_passed"},
	{apperror.ErrCorruptPairingState, http.StatusInternalServerError, "corrupt_pairing_state"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// The service layer never knows about status codes; this is the one place
// apperror categories become HTTP. errors.Is walks the whole chain, so a
// service returning fmt.Errorf("...: %w", appErr) still maps correctly.
//
// A corrupt pairing state is a 500 whose message IS shown: the admin must
// see it and must not retry. Every other unknown error becomes a generic
// 500 so SQL or file paths never reach the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, m := range errorTable {
			if errors.Is(err, m.target) {
				writeJSON(w, m.status, ErrorResponse{
					Error:   m.kind,
					Message: appErr.Message,
					Field:   appErr.Field,
					Details: appErr.Details,
				})
				return
			}
		}
	}

	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst, answering 400 itself on
// failure. It reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return false
	}
	return true
}
