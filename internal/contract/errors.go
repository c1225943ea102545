package contract

import (
	"errors"
	"fmt"
)

// Code classifies an operation failure. Every precondition failure maps to
// exactly one code so callers can display or branch on it.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeAlreadyExists      Code = "already_exists"
	CodeUnauthorized       Code = "unauthorized"
	CodeWrongState         Code = "wrong_state"
	CodeInvalidAmount      Code = "invalid_amount"
	CodeInsufficientEscrow Code = "insufficient_escrow"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func alreadyExistsf(format string, args ...any) *Error {
	return newError(CodeAlreadyExists, format, args...)
}

func unauthorizedf(format string, args ...any) *Error {
	return newError(CodeUnauthorized, format, args...)
}

// wrongStatef always reports both the required and the actual state.
func wrongStatef(what string, expected []string, actual string) *Error {
	return newError(CodeWrongState, "%s: wrong state: expected %v, actual %q", what, expected, actual)
}

func invalidAmountf(format string, args ...any) *Error {
	return newError(CodeInvalidAmount, format, args...)
}

// insufficientEscrowf signals a ledger invariant breach. Callers treat it as
// fatal/alerting, not as a routine precondition failure.
func insufficientEscrowf(format string, args ...any) *Error {
	return newError(CodeInsufficientEscrow, format, args...)
}

// CodeOf extracts the failure code, or "" for non-domain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
