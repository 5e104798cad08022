package vault

import (
	"errors"
	"fmt"
)

// Error is the typed failure returned by every vault operation.
//
// Callers distinguish "try a different role" (Unauthorized) from "wait
// longer" (NotExpired) from "amount too large" (ExceedsApproved) by Code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op is the rejected operation.
	Op Operation

	// Vault is the address the operation targeted, if known.
	Vault Address

	// Caller is the identity that invoked the operation.
	Caller Identity
}

// ErrorCode categorizes vault errors.
type ErrorCode string

const (
	ErrCodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeExceedsApproved    ErrorCode = "EXCEEDS_APPROVED"
	ErrCodeNotExpired         ErrorCode = "NOT_EXPIRED"
	ErrCodeStillActive        ErrorCode = "STILL_ACTIVE"
	ErrCodeArithmeticOverflow ErrorCode = "ARITHMETIC_OVERFLOW"
	ErrCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrCodeInsufficientFunds  ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidArgument    ErrorCode = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrAlreadyExists      = &Error{Code: ErrCodeAlreadyExists}
	ErrNotFound           = &Error{Code: ErrCodeNotFound}
	ErrUnauthorized       = &Error{Code: ErrCodeUnauthorized}
	ErrInvalidState       = &Error{Code: ErrCodeInvalidState}
	ErrExceedsApproved    = &Error{Code: ErrCodeExceedsApproved}
	ErrNotExpired         = &Error{Code: ErrCodeNotExpired}
	ErrStillActive        = &Error{Code: ErrCodeStillActive}
	ErrArithmeticOverflow = &Error{Code: ErrCodeArithmeticOverflow}
	ErrSessionExpired     = &Error{Code: ErrCodeSessionExpired}
	ErrInsufficientFunds  = &Error{Code: ErrCodeInsufficientFunds}
	ErrInvalidArgument    = &Error{Code: ErrCodeInvalidArgument}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Vault != "" {
		return fmt.Sprintf("%s: %s (op=%s, vault=%s)", e.Code, msg, e.Op, e.Vault)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a vault error.
func CodeOf(err error) ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsUnauthorized reports whether err is a wrong-caller rejection.
func IsUnauthorized(err error) bool {
	return CodeOf(err) == ErrCodeUnauthorized
}

// IsRetryLater reports whether err will clear on its own once enough time
// has passed without activity.
func IsRetryLater(err error) bool {
	return CodeOf(err) == ErrCodeNotExpired
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
