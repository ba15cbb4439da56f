package bank

import (
	"errors"
	"fmt"
)

// AuthCode is a stable, matchable reason code for authentication failures.
type AuthCode string

// Authentication failure codes.
const (
	CodeAuthFailed         AuthCode = "authentication-failed"
	CodeChallengeExpired   AuthCode = "challenge-expired"
	CodeChallengeRejected  AuthCode = "challenge-rejected"
	CodeSessionExpired     AuthCode = "session-expired"
	CodeInvalidCredentials AuthCode = "invalid-credentials"
	CodeNetworkError       AuthCode = "network-error"
	CodeInvalidResponse    AuthCode = "invalid-response"
)

// AuthError is a bank authentication failure carrying a stable reason code
// alongside the free-text message.
type AuthError struct {
	Code       AuthCode
	Message    string
	HTTPStatus int
}

func (e *AuthError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes AuthError comparable against another AuthError by code.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewAuthError creates an AuthError with the given code.
func NewAuthError(code AuthCode, format string, args ...any) *AuthError {
	return &AuthError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsAuthCode reports whether err is an AuthError carrying the given code.
func IsAuthCode(err error, code AuthCode) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Code == code
}

// StateError reports an operation attempted in the wrong session state.
type StateError struct {
	Expected State
	Actual   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid session state: expected %s, got %s", e.Expected, e.Actual)
}
