package api

import (
	"errors"
	"fmt"
)

var (
	// ErrCanceled is returned when the caller's context is canceled mid-request.
	ErrCanceled = errors.New("canceled")

	// ErrUnauthorized is returned when the backend answers with the
	// Unauthorized envelope status. The stored token has been cleared.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthRequired is returned when a 401 survives the token refresh, or
	// the refresh itself fails. The user has to sign in again.
	ErrAuthRequired = errors.New("authentication required")
)

// Status is the status field of the response envelope.
type Status string

const (
	StatusSuccess      Status = "Success"
	StatusFail         Status = "Fail"
	StatusError        Status = "Error"
	StatusWarning      Status = "Warning"
	StatusUnauthorized Status = "Unauthorized"
)

// Error is a failure reported by the backend.
type Error struct {
	Status     Status
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != "" {
		return fmt.Sprintf("request failed with status %s", e.Status)
	}
	return fmt.Sprintf("request failed with HTTP %d", e.HTTPStatus)
}

// IsCanceled reports whether err comes from a user-initiated cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsAuthRequired reports whether the user has to sign in again.
func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrUnauthorized)
}

// FallbackMessage is shown when a failure carries nothing fit for the user.
const FallbackMessage = "Something went wrong, please try again later."

// UserMessage returns the text to display in place of a failed reply.
func UserMessage(err error) string {
	var apiErr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case IsAuthRequired(err):
		return "Your session has expired, please sign in again."
	default:
		return FallbackMessage
	}
}
