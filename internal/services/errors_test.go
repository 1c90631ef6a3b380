package services

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTxError_Retryable(t *testing.T) {
	retryable := []string{CodeConcurrencyConflict, CodeStoreUnavailable}
	for _, code := range retryable {
		assert.True(t, txErr(code, "transient").Retryable(), code)
	}

	terminal := []string{
		CodeAccountNotFound, CodeAmountOutOfRange, CodeInsufficientBalance,
		CodeInvalidRecipient, CodeUnauthorized, CodeLedgerDivergence,
	}
	for _, code := range terminal {
		assert.False(t, txErr(code, "terminal").Retryable(), code)
	}
}

func TestTxError_HTTPStatus(t *testing.T) {
	cases := map[string]int{
		CodeAccountNotFound:     http.StatusNotFound,
		CodeAmountOutOfRange:    http.StatusBadRequest,
		CodeInvalidRecipient:    http.StatusBadRequest,
		CodeInsufficientBalance: http.StatusPaymentRequired,
		CodeUnauthorized:        http.StatusForbidden,
		CodeConcurrencyConflict: http.StatusConflict,
		CodeStoreUnavailable:    http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		assert.Equal(t, status, txErr(code, "x").HTTPStatus(), code)
	}
}

func TestAsTxError(t *testing.T) {
	t.Run("direct and wrapped", func(t *testing.T) {
		base := txErrWrap(CodeStoreUnavailable, "query failed", sql.ErrConnDone)

		te, ok := AsTxError(base)
		assert.True(t, ok)
		assert.Equal(t, CodeStoreUnavailable, te.Code)
		assert.ErrorIs(t, base, sql.ErrConnDone)

		wrapped := fmt.Errorf("outer: %w", base)
		te, ok = AsTxError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, CodeStoreUnavailable, te.Code)
	})

	t.Run("plain error", func(t *testing.T) {
		_, ok := AsTxError(sql.ErrNoRows)
		assert.False(t, ok)
	})
}
