// Package sync orchestrates a synchronization run from bank authentication
// through review to the final ledger import.
package sync

import (
	"errors"
	"fmt"
)

// Code is a stable, matchable reason code for sync failures.
type Code string

// Sync failure codes.
const (
	CodeSessionNotFound      Code = "session-not-found"
	CodeSessionActive        Code = "session-already-active"
	CodeBankAuthFailed       Code = "bank-auth-failed"
	CodeConfirmationTimeout  Code = "confirmation-timeout"
	CodeFetchFailed          Code = "transaction-fetch-failed"
	CodeRuleCompileFailed    Code = "rule-compile-failed"
	CodeLedgerImportFailed   Code = "ledger-import-failed"
	CodeInvalidSessionState  Code = "invalid-session-state"
	CodeTransactionNotFound  Code = "transaction-not-found"
	CodeInvalidSplit         Code = "invalid-split"
	CodeCredentialsMissing   Code = "credentials-missing"
)

// Error is a sync orchestration failure carrying a stable reason code plus a
// free-text message. Stack traces are never surfaced to the review surface.
type Error struct {
	Err      error
	Code     Code
	Message  string
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	if e.Code == CodeInvalidSessionState {
		return fmt.Sprintf("%s: expected %s, got %s", e.Code, e.Expected, e.Actual)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes Error comparable against another Error by code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func stateError(expected, actual string) *Error {
	return &Error{Code: CodeInvalidSessionState, Expected: expected, Actual: actual}
}
