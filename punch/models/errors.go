package models

import (
	"errors"
	"fmt"
)

type Resource string

const (
	ResourceLocation Resource = "location"
	ResourceCamera   Resource = "camera"
)

// UserMessager is implemented by errors that carry text meant for the
// worker rather than for logs.
type UserMessager interface {
	UserMessage() string
}

const DefaultUserMessage = "Something went wrong!"

// UserMessage picks the message shown to the worker for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return DefaultUserMessage
}

type PermissionDeniedError struct {
	Resource Resource
	// set when the permission request itself failed
	Err error
}

func (e *PermissionDeniedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s permission denied: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("%s permission denied", e.Resource)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

func (e *PermissionDeniedError) UserMessage() string {
	switch e.Resource {
	case ResourceLocation:
		return "Location permission is required to punch in."
	case ResourceCamera:
		return "Camera access is required to take a selfie."
	}
	return fmt.Sprintf("Permission to use the %s was denied.", e.Resource)
}

type CaptureCancelledError struct {
	Detail string
	Err    error
}

func (e *CaptureCancelledError) Error() string {
	if e.Detail != "" {
		return "capture cancelled: " + e.Detail
	}
	return "capture cancelled"
}

func (e *CaptureCancelledError) Unwrap() error { return e.Err }

func (e *CaptureCancelledError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "Photo capture was cancelled."
}

type LocationUnavailableError struct {
	Err error
}

func (e *LocationUnavailableError) Error() string {
	if e.Err != nil {
		return "location unavailable: " + e.Err.Error()
	}
	return "location unavailable"
}

func (e *LocationUnavailableError) Unwrap() error { return e.Err }

func (e *LocationUnavailableError) UserMessage() string {
	return "Unable to determine your current location."
}

// SubmissionError is a request the server understood and refused.
type SubmissionError struct {
	Direction Direction
	Message   string
}

func (e *SubmissionError) Error() string {
	if e.Direction == "" {
		return "request rejected: " + e.Message
	}
	return fmt.Sprintf("punch %s rejected: %s", e.Direction, e.Message)
}

func (e *SubmissionError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Direction != "" {
		return fmt.Sprintf("Failed to punch %s.", e.Direction)
	}
	return DefaultUserMessage
}

// TransportError is a request that never produced a usable answer: no
// response, an unreadable body, or an error status without a message.
type TransportError struct {
	Direction Direction
	Status    int
	Err       error
}

func (e *TransportError) Error() string {
	prefix := "request failed"
	if e.Direction != "" {
		prefix = fmt.Sprintf("punch %s failed", e.Direction)
	}
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", prefix, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", prefix, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) UserMessage() string {
	if e.Direction != "" {
		return fmt.Sprintf("Failed to punch %s.", e.Direction)
	}
	return DefaultUserMessage
}
