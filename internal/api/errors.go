package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Messages shared by every operation.
const (
	MsgNoResponse       = "No response from server. Check your connection."
	MsgUnexpected       = "An unexpected error occurred."
	MsgValidationFailed = "Validation failed"
	MsgCancelled        = "Request cancelled"
)

// ErrorKind classifies a failed call.
type ErrorKind int

const (
	KindServer     ErrorKind = iota // The backend answered with a non-success status
	KindNetwork                     // No response (transport failure or open circuit)
	KindUnexpected                  // Anything else: bad request construction, undecodable body
	KindCancelled                   // The caller's context ended first
)

func (k ErrorKind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindCancelled:
		return "cancelled"
	default:
		return "unexpected"
	}
}

// Error is the single failure shape returned by every Client method.
// Message is always safe to show to the user.
type Error struct {
	Kind             ErrorKind
	Status           int
	Message          string
	ValidationErrors []ValidationError
	Err              error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Message returns the user-facing message for any error returned by the client.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsError(err); ok {
		return apiErr.Message
	}
	return MsgUnexpected
}

// IsUnauthorized reports whether the backend rejected the bearer token.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindServer && apiErr.Status == http.StatusUnauthorized
}

// IsCancelled reports whether the call was abandoned because its context ended.
func IsCancelled(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindCancelled
}

// serverError builds the error for a non-success response. The message comes
// from the body's "detail", then "message", then the per-operation fallback.
func serverError(status int, body []byte, fallback string) *Error {
	e := &Error{Kind: KindServer, Status: status, Message: fallback}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return e
	}

	if raw, ok := envelope["detail"]; ok {
		var detail string
		if err := json.Unmarshal(raw, &detail); err == nil && detail != "" {
			e.Message = detail
			return e
		}
		var details []ValidationError
		if status == http.StatusUnprocessableEntity && json.Unmarshal(raw, &details) == nil {
			e.Message = MsgValidationFailed
			e.ValidationErrors = details
			return e
		}
	}

	if raw, ok := envelope["message"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			e.Message = msg
		}
	}

	return e
}
