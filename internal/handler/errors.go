package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// envelope is the shape of every JSON response body.
type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the typed reason and human-readable message of a failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf maps each failure reason to its HTTP status.
var statusOf = map[domain.Reason]int{
	domain.ReasonNotFound:          http.StatusNotFound,
	domain.ReasonForbidden:         http.StatusForbidden,
	domain.ReasonInsufficientSeats: http.StatusConflict,
	domain.ReasonSelfBooking:       http.StatusUnprocessableEntity,
	domain.ReasonAlreadyCancelled:  http.StatusConflict,
	domain.ReasonInvalidInput:      http.StatusUnprocessableEntity,
	domain.ReasonInvalidState:      http.StatusConflict,
	domain.ReasonInternal:          http.StatusInternalServerError,
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError classifies a service error and writes the matching failure.
// Internal failures are logged with their full chain and reported without it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reason := domain.ReasonOf(err)
	if reason == domain.ReasonInternal {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeFailure(w, http.StatusInternalServerError, string(reason), "internal server error")
		return
	}
	writeFailure(w, statusOf[reason], string(reason), publicMessage(err))
}

// requestError writes a 422 for input rejected before reaching a service
// (malformed body or parameter).
func requestError(w http.ResponseWriter, message string) {
	writeFailure(w, http.StatusUnprocessableEntity, string(domain.ReasonInvalidInput), message)
}

// decodeBody decodes a JSON request body into dst. Oversized bodies get a
// 413; anything else malformed gets a 422. It reports whether decoding
// succeeded; on failure the response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		requestError(w, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// publicMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.BookingService.Confirm: seat count must be at least 1, got 0: validation error"
// becomes "seat count must be at least 1, got 0".
func publicMessage(err error) string {
	msg := err.Error()
	for {
		head, rest, ok := strings.Cut(msg, ": ")
		if !ok || !(strings.HasPrefix(head, "service.") || strings.HasPrefix(head, "repo.")) {
			break
		}
		msg = rest
	}
	for _, sentinel := range []error{
		domain.ErrNotFound, domain.ErrValidation, domain.ErrForbidden, domain.ErrInsufficientSeats,
		domain.ErrSelfBooking, domain.ErrAlreadyCancelled, domain.ErrInvalidState,
	} {
		if msg == sentinel.Error() {
			return msg
		}
		if trimmed, ok := strings.CutSuffix(msg, ": "+sentinel.Error()); ok {
			return trimmed
		}
	}
	return msg
}
