package messaging

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMessage is returned before any request is sent when the
// messages or recipients of a call break the API limits
var ErrInvalidMessage = errors.New("invalid message")

// ErrorDetail is one entry of the "details" array in an API error body
type ErrorDetail struct {
	Message  string `json:"message"`
	Property string `json:"property"`
}

// APIError is a non-2xx response from the Messaging API
type APIError struct {
	StatusCode int           `json:"-"`
	Message    string        `json:"message"`
	Details    []ErrorDetail `json:"details,omitempty"`
	RequestID  string        `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "line api error (status %d): %s", e.StatusCode, e.Message)
	for _, d := range e.Details {
		fmt.Fprintf(&b, "; %s: %s", d.Property, d.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request id %s)", e.RequestID)
	}
	return b.String()
}

// IsStatus reports whether err is an *APIError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
