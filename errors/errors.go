package errors

import (
	stderrors "errors"
	"fmt"
)

// Admission
var (
	ErrSessionExpired  = fmt.Errorf("session expired")
	ErrInvalidToken    = fmt.Errorf("invalid token")
	ErrUnknownUser     = fmt.Errorf("user not found")
	ErrResolverTimeout = fmt.Errorf("identity resolution timed out")
)

// Chat
var (
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")
	ErrInvalidParticipant = fmt.Errorf("invalid participant")
	ErrTransportFailure   = fmt.Errorf("transport failure")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrUnknownEvent       = fmt.Errorf("unknown event")
)

// Accounts
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")

// Is and As forward to the standard library so callers only import this package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// IsRejection reports whether err must end an admission attempt with a logout signal.
func IsRejection(err error) bool {
	return Is(err, ErrSessionExpired) || Is(err, ErrInvalidToken) || Is(err, ErrUnknownUser)
}

// RejectionMessage is the text shipped to a client whose connection is refused.
func RejectionMessage(err error) string {
	switch {
	case Is(err, ErrSessionExpired):
		return "Session out"
	case Is(err, ErrInvalidToken):
		return "Invalid token"
	case Is(err, ErrUnknownUser):
		return "User not found"
	default:
		return "Service unavailable, try again later"
	}
}
