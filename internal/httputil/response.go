package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/redmonkez12/users-auth-api/internal/logging"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse is a plain informational response
type MessageResponse struct {
	Message string `json:"message"`
}

// HTTPError is an error that carries the status code and the client facing message
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// NewError creates an HTTPError. An empty message falls back to the status text.
func NewError(status int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Message: message}
}

// WrapError creates an HTTPError keeping the underlying cause for logs
func WrapError(status int, message string, err error) *HTTPError {
	e := NewError(status, message)
	e.Err = err
	return e
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// HandlerFunc is an http handler that reports failures by returning an error
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Wrap adapts a HandlerFunc to http.HandlerFunc. HTTPErrors are written with
// their status and message, any other error becomes a 500.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		logger := logging.GetLoggerFromContext(r.Context())

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status < http.StatusInternalServerError {
			logger.Warn("request failed", "status", httpErr.Status, "error", err.Error())
			RespondError(w, httpErr.Message, httpErr.Status)
			return
		}

		logger.Error("request failed: internal error", "error", err.Error())
		if httpErr != nil {
			RespondError(w, httpErr.Message, httpErr.Status)
			return
		}
		RespondError(w, "Server error", http.StatusInternalServerError)
	}
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.NewLogger(false).Error("failed to encode JSON response", "error", err)
	}
}

// RespondError sends a JSON error response with the given message and status code.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, ErrorResponse{Message: message}, statusCode)
}
