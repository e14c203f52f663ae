package webhook

import (
	"errors"
	"net/http"
)

// Status is the overall outcome of one delivery
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Messages returned to the remote caller. Details stay in the log.
const (
	MessageInvalidSignature = "invalid signature"
	MessageInvalidPayload   = "invalid payload"
)

// WebhookResponse summarizes one delivery. Field names are part of the wire
// contract with callers.
type WebhookResponse struct {
	Status          Status `json:"status"`
	Message         string `json:"message,omitempty"`
	ProcessedEvents int    `json:"processed_events"`
}

// OK reports whether the delivery was accepted
func (r WebhookResponse) OK() bool {
	return r.Status == StatusOK
}

func okResponse(processed int) WebhookResponse {
	return WebhookResponse{Status: StatusOK, ProcessedEvents: processed}
}

func errorResponse(message string) WebhookResponse {
	return WebhookResponse{Status: StatusError, Message: message}
}

// HTTPStatus maps the error returned by Dispatcher.Process to a status code:
// signature failures are 401, payload failures 400, and an accepted delivery
// is 200 even when handlers failed.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrSignature) {
		return http.StatusUnauthorized
	}
	var perr *PayloadValidationError
	if errors.As(err, &perr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
