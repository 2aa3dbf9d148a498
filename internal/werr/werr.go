// Package werr defines the normalized wallet error shape that every backend
// error is mapped to before it reaches a caller.
package werr

import (
	"context"
	"errors"
	"fmt"
)

// Code is a machine-readable wallet error code.
type Code string

// Error codes. There is deliberately no timeout code: connect and sign wait
// for the user and are only ever cancelled by the caller.
const (
	LocalValidation    Code = "LOCAL_VALIDATION"
	NotConnected       Code = "NOT_CONNECTED"
	UserRejected       Code = "USER_REJECTED"
	NoWalletFound      Code = "NO_WALLET_FOUND"
	UnexpectedResponse Code = "UNEXPECTED_RESPONSE"
	DerivationFailed   Code = "DERIVATION_FAILED"
)

// WalletError is the single error type surfaced by connection providers and
// the setup state machine.
type WalletError struct {
	Code    Code   // Machine-readable code
	Title   string // Short human-readable summary
	Message string // Optional detail
	Cause   error  // Underlying backend error
}

func (e *WalletError) Error() string {
	msg := e.Title
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

// Is matches any WalletError carrying the same code.
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors, one per code. Compare with errors.Is.
var (
	ErrLocalValidation = &WalletError{
		Code:  LocalValidation,
		Title: "invalid signing payload",
	}

	ErrNotConnected = &WalletError{
		Code:  NotConnected,
		Title: "wallet not connected",
	}

	ErrUserRejected = &WalletError{
		Code:  UserRejected,
		Title: "request rejected by user",
	}

	ErrNoWalletFound = &WalletError{
		Code:  NoWalletFound,
		Title: "wallet not found",
	}

	ErrUnexpectedResponse = &WalletError{
		Code:  UnexpectedResponse,
		Title: "unexpected wallet response",
	}

	ErrDerivationFailed = &WalletError{
		Code:  DerivationFailed,
		Title: "key derivation failed",
	}
)

var titles = map[Code]string{
	LocalValidation:    ErrLocalValidation.Title,
	NotConnected:       ErrNotConnected.Title,
	UserRejected:       ErrUserRejected.Title,
	NoWalletFound:      ErrNoWalletFound.Title,
	UnexpectedResponse: ErrUnexpectedResponse.Title,
	DerivationFailed:   ErrDerivationFailed.Title,
}

// Known reports whether c is one of the defined codes.
func (c Code) Known() bool {
	_, ok := titles[c]
	return ok
}

// New creates a WalletError with the default title for code.
func New(code Code, message string) *WalletError {
	return &WalletError{
		Code:    code,
		Title:   titles[code],
		Message: message,
	}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) *WalletError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches cause to a new WalletError with the given code.
func Wrap(code Code, cause error) *WalletError {
	return &WalletError{
		Code:  code,
		Title: titles[code],
		Cause: cause,
	}
}

// From normalizes any error into a WalletError. Errors that are already
// WalletErrors keep their code; anything else becomes UNEXPECTED_RESPONSE.
func From(err error) *WalletError {
	if err == nil {
		return nil
	}
	var we *WalletError
	if errors.As(err, &we) {
		return we
	}
	return Wrap(UnexpectedResponse, err)
}

// CodeOf returns the code of err, or "" when err is nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}

// IsCanceled reports whether err came from context cancellation rather than
// from the wallet.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
