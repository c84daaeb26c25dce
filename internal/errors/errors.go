package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the admin server
var (
	// Credential errors
	ErrCredentialAbsent = errors.New("no refresh token available")
	ErrRefreshRejected  = errors.New("refresh rejected by backend")
	ErrInvalidToken     = errors.New("invalid token")

	// OAuth sign-in errors
	ErrInvalidState = errors.New("invalid oauth state")
	ErrInvalidNonce = errors.New("invalid nonce")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrValidation     = errors.New("validation failed")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Storage errors
	ErrUnknownDriver = errors.New("unknown storage driver")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// StatusError is returned for a backend response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// StatusCode returns the backend status carried by err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsAuthFailure reports whether err means the session no longer holds usable credentials.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrCredentialAbsent) || errors.Is(err, ErrRefreshRejected) || StatusCode(err) == http.StatusUnauthorized
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}
