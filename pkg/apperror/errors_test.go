package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("PAY_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestAppError_IsMatchesCode(t *testing.T) {
	wrapped := fmt.Errorf("execute: %w", ErrInsufficientOfflineAllowance())

	assert.True(t, errors.Is(wrapped, ErrInsufficientOfflineAllowance()))
	assert.False(t, errors.Is(wrapped, ErrInsufficientFunds()))
	assert.Equal(t, CodeInsufficientOfflineAllowance, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeInsufficientOfflineAllowance))
	assert.Empty(t, CodeOf(errors.New("plain")))
}

func TestHandshakeErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"BadSignature", ErrBadSignature(), "HS_001", 422},
		{"MalformedPayload", ErrMalformedPayload(nil), "HS_002", 400},
		{"Expired", ErrExpired(), "HS_003", 410},
		{"NonceReplayed", ErrNonceReplayed(), "HS_004", 409},
		{"ReceiptNotForTerminal", ErrReceiptNotForTerminal(), "HS_005", 422},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestPaymentErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"InsufficientOfflineAllowance", ErrInsufficientOfflineAllowance(), "PAY_003", 402},
		{"NotFound", ErrNotFound("Journal entry"), "PAY_004", 404},
		{"OfflineWalletNotLoaded", ErrOfflineWalletNotLoaded(), "PAY_005", 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestJournalAndKeyErrors(t *testing.T) {
	inner := fmt.Errorf("disk full")

	jw := ErrJournalWriteFailure(inner)
	assert.Equal(t, "JNL_001", jw.Code)
	assert.True(t, errors.Is(jw, inner))

	it := ErrIllegalJournalTransition("committed", "pending")
	assert.Equal(t, "JNL_002", it.Code)
	assert.Contains(t, it.Message, "committed -> pending")

	ru := ErrRecoveryUnresolved(inner)
	assert.Equal(t, "JNL_003", ru.Code)

	ku := ErrKeyUnavailable(inner)
	assert.Equal(t, "KEY_001", ku.Code)
	assert.Equal(t, 503, ku.HTTPStatus)
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	leaseErr := ErrLeaseTimeout(inner)
	assert.Equal(t, "SYS_002", leaseErr.Code)
	assert.Equal(t, 503, leaseErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestAuthError(t *testing.T) {
	err := ErrInvalidToken()
	assert.Equal(t, "AUTH_003", err.Code)
	assert.Equal(t, 401, err.HTTPStatus)
}
