package services

import (
	"errors"
	"fmt"
	"net/http"
)

// TxError codes. Validation codes are terminal; CONCURRENCY_CONFLICT and
// STORE_UNAVAILABLE are transient and retried by the coordinator before
// being surfaced.
const (
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeAmountOutOfRange    = "AMOUNT_OUT_OF_RANGE"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInvalidRecipient    = "INVALID_RECIPIENT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeLedgerDivergence    = "LEDGER_DIVERGENCE"
)

// TxError is the caller-facing failure of a wallet operation.
type TxError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *TxError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TxError) Unwrap() error { return e.cause }

// Retryable reports whether the failure is transient.
func (e *TxError) Retryable() bool {
	return e.Code == CodeConcurrencyConflict || e.Code == CodeStoreUnavailable
}

// HTTPStatus maps the error code to a response status.
func (e *TxError) HTTPStatus() int {
	switch e.Code {
	case CodeAccountNotFound:
		return http.StatusNotFound
	case CodeAmountOutOfRange, CodeInvalidRecipient:
		return http.StatusBadRequest
	case CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func txErr(code, format string, args ...any) *TxError {
	return &TxError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func txErrWrap(code, message string, cause error) *TxError {
	return &TxError{Code: code, Message: message, cause: cause}
}

// AsTxError extracts a *TxError from an error chain.
func AsTxError(err error) (*TxError, bool) {
	var te *TxError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
