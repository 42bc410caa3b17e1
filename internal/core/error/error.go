package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// ValidationMessage is returned when a turn request is missing required fields.
	ValidationMessage = "invalid turn request"
	// SessionNotFoundMessage is returned when a session has never been created.
	SessionNotFoundMessage = "session not found"
	// InvalidTransitionMessage is returned when a closed session receives another turn.
	InvalidTransitionMessage = "session is closed, start a new session"
	// MissingPreconditionMessage is returned when a phase cannot be left yet.
	MissingPreconditionMessage = "session is missing a required field for this transition"
	// UpstreamMessage describes failures of optional context sources.
	UpstreamMessage = "upstream dependency unavailable"
)

// Sentinel errors for the journaling core. Match them with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrMissingPrecondition = errors.New("missing precondition")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

func Validation(detail error) *AppError {
	return New(fmt.Errorf("%w: %w", ErrValidation, detail), http.StatusBadRequest, ValidationMessage)
}

func SessionNotFound(key string) *AppError {
	return New(fmt.Errorf("%w: %s", ErrSessionNotFound, key), http.StatusNotFound, SessionNotFoundMessage)
}

func InvalidTransition(detail string) *AppError {
	return New(fmt.Errorf("%w: %s", ErrInvalidTransition, detail), http.StatusConflict, InvalidTransitionMessage)
}

func MissingPrecondition(detail string) *AppError {
	return New(fmt.Errorf("%w: %s", ErrMissingPrecondition, detail), http.StatusUnprocessableEntity, MissingPreconditionMessage)
}

// Upstream marks err as a failure of an optional dependency. Callers are
// expected to degrade rather than fail the turn.
func Upstream(err error) *AppError {
	return New(fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err), http.StatusServiceUnavailable, UpstreamMessage)
}

// StatusOf returns the HTTP status carried by err, or 500 when err is not an AppError.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message carried by err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}
