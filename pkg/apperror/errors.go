package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so callers can compare against the constructors below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Error codes.
const (
	CodeBadSignature          = "HS_001"
	CodeMalformedPayload      = "HS_002"
	CodeExpired               = "HS_003"
	CodeNonceReplayed         = "HS_004"
	CodeReceiptNotForTerminal = "HS_005"

	CodeInsufficientFunds            = "PAY_001"
	CodeInvalidAmount                = "PAY_002"
	CodeInsufficientOfflineAllowance = "PAY_003"
	CodeNotFound                     = "PAY_004"
	CodeOfflineWalletNotLoaded       = "PAY_005"

	CodeKeyUnavailable = "KEY_001"

	CodeJournalWriteFailure      = "JNL_001"
	CodeIllegalJournalTransition = "JNL_002"
	CodeRecoveryUnresolved       = "JNL_003"
	CodeInvalidToken             = "AUTH_003"
	CodeRateLimitExceeded        = "RATE_001"
	CodeInternal                 = "SYS_001"
	CodeLeaseTimeout             = "SYS_002"
)

// ---- Handshake verification (HS) ----

func ErrBadSignature() *AppError {
	return New(CodeBadSignature, "Signature verification failed", http.StatusUnprocessableEntity)
}

func ErrMalformedPayload(err error) *AppError {
	return Wrap(CodeMalformedPayload, "Malformed handshake payload", http.StatusBadRequest, err)
}

func ErrExpired() *AppError {
	return New(CodeExpired, "Payment request expired", http.StatusGone)
}

func ErrNonceReplayed() *AppError {
	return New(CodeNonceReplayed, "Nonce has already been used", http.StatusConflict)
}

func ErrReceiptNotForTerminal() *AppError {
	return New(CodeReceiptNotForTerminal, "Receipt was not issued against this terminal", http.StatusUnprocessableEntity)
}

// ---- Payment Business Logic (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrInsufficientOfflineAllowance() *AppError {
	return New(CodeInsufficientOfflineAllowance, "Insufficient offline allowance", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrOfflineWalletNotLoaded() *AppError {
	return New(CodeOfflineWalletNotLoaded, "Offline wallet is not loaded", http.StatusConflict)
}

// ---- Keys (KEY) ----

func ErrKeyUnavailable(err error) *AppError {
	return Wrap(CodeKeyUnavailable, "Signing key unavailable", http.StatusServiceUnavailable, err)
}

// ---- Journal (JNL) ----

func ErrJournalWriteFailure(err error) *AppError {
	return Wrap(CodeJournalWriteFailure, "Journal write failed", http.StatusInternalServerError, err)
}

func ErrIllegalJournalTransition(from, to string) *AppError {
	return New(CodeIllegalJournalTransition, fmt.Sprintf("Illegal journal transition %s -> %s", from, to), http.StatusInternalServerError)
}

func ErrRecoveryUnresolved(err error) *AppError {
	return Wrap(CodeRecoveryUnresolved, "Transaction left unresolved, manual review required", http.StatusInternalServerError, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrLeaseTimeout(err error) *AppError {
	return Wrap(CodeLeaseTimeout, "Lease acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}
