package service

import (
	"coachshare/backend/internal/repository"
	"errors"
	"fmt"
)

// Kind classifies service errors. The HTTP layer maps each kind to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified service error. Sentinel values below are *Error so
// callers can match them with errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by identity first, then by kind and message so that a
// sentinel wrapped with extra context still matches.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.Kind == t.Kind && e.Message == t.Message)
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// InvalidInput returns a KindInvalidInput error with a formatted message.
func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err as a KindInternal error.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf classifies any error. Repository not-found maps to KindNotFound,
// duplicate keys to KindConflict, everything unknown to KindInternal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return KindConflict
	}
	return KindInternal
}

// --- Error Definitions ---
var (
	// Accounts
	ErrUserAlreadyExists    = newError(KindConflict, "user with this email already exists")
	ErrAuthenticationFailed = newError(KindInvalidInput, "authentication failed: invalid email or password")
	ErrHashingFailed        = newError(KindInternal, "failed to hash password")
	ErrTokenGeneration      = newError(KindInternal, "failed to generate authentication token")
	ErrInvalidRole          = newError(KindInvalidInput, "role must be coach or athlete")
	ErrPasswordTooShort     = newError(KindInvalidInput, "password must be at least 8 characters")
	ErrInvalidToken         = newError(KindInvalidInput, "token is invalid or has expired")
	ErrUserNotFound         = newError(KindNotFound, "user not found")
	ErrUserAccessDenied     = newError(KindForbidden, "access denied to this user")
	ErrMailFailed           = newError(KindInternal, "failed to send email, please retry")

	// Relationships
	ErrAthleteNotFound  = newError(KindNotFound, "athlete not found")
	ErrCoachNotFound    = newError(KindNotFound, "coach not found")
	ErrNotLinked        = newError(KindNotFound, "athlete is not linked to this coach")
	ErrNotAthlete       = newError(KindInvalidInput, "user exists but is not an athlete")
	ErrRelationshipSave = newError(KindInternal, "failed to update relationship")

	// Regimens
	ErrRegimenNotFound     = newError(KindNotFound, "regimen not found")
	ErrRegimenAccessDenied = newError(KindForbidden, "only the owning coach may modify this regimen")
	ErrRegimenNameRequired = newError(KindInvalidInput, "regimen name is required")

	// Workout logs
	ErrWorkoutLogNotFound     = newError(KindNotFound, "workout log not found")
	ErrWorkoutLogAccessDenied = newError(KindForbidden, "access denied to this workout log")
	ErrRegimenNotAssigned     = newError(KindForbidden, "regimen is not assigned to this athlete")
	ErrUnknownDay             = newError(KindInvalidInput, "dayId does not match any day of the regimen")
	ErrInvalidEffort          = newError(KindInvalidInput, "effort must be between 1 and 10")

	// Notifications
	ErrNotificationNotFound = newError(KindNotFound, "notification not found")

	// Pace
	ErrInvalidTargetTime = newError(KindInvalidInput, "target time must be seconds or MM:SS.ms")
	ErrInvalidDistance   = newError(KindInvalidInput, "total distance must be greater than 0 and at most 50000")
	ErrInvalidEffortPct  = newError(KindInvalidInput, "effort percentage must be in (0, 100]")
	ErrInvalidPace       = newError(KindInvalidInput, "computed training pace is not a positive finite number")
)
