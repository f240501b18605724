package apperror

import (
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

// ---- Ledger Business Logic (LED) ----

// ErrInsufficientBalance reports a debit or purchase exceeding the available
// balance. Available and required are rendered exactly as the ledger computed them.
func ErrInsufficientBalance(available, required string) *AppError {
	return New("LED_001",
		fmt.Sprintf("Insufficient balance. Available: %s, Required: %s", available, required),
		http.StatusUnprocessableEntity)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", "Amount must be positive", http.StatusBadRequest)
}

func ErrSameAccount() *AppError {
	return New("LED_003", "Source and destination accounts must differ", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrInvalidStateTransition reports an attempt to move a transaction out of a
// terminal state, e.g. failing a COMPLETED transaction.
func ErrInvalidStateTransition(from, to string) *AppError {
	return New("LED_005",
		fmt.Sprintf("Invalid transaction state transition: %s -> %s", from, to),
		http.StatusConflict)
}

func ErrProductInactive() *AppError {
	return New("LED_006", "Product is not available for purchase", http.StatusConflict)
}

// ErrBalanceCoversPrice rejects a payment-link request when the balance already
// covers the product price; the direct-balance purchase path must be used instead.
func ErrBalanceCoversPrice() *AppError {
	return New("LED_007", "Balance covers the product price, use direct balance purchase", http.StatusBadRequest)
}

// Validation returns a generic request-validation error.
func Validation(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}

// ---- Payment Provider (PRV) ----

func ErrMalformedProviderEvent(err error) *AppError {
	return Wrap("PRV_001", "Malformed provider event", http.StatusBadRequest, err)
}

// ---- Reconciliation (AUD) ----

// ErrAuditFailure reports a cached balance drifting from the recomputed history
// balance beyond tolerance. Internal-only: callers log and alert, ledger internals
// are never exposed to the request that tripped the audit.
func ErrAuditFailure(accountID string, difference string) *AppError {
	return Wrap("AUD_001", "Balance reconciliation failed", http.StatusInternalServerError,
		fmt.Errorf("account %s drifted by %s", accountID, difference))
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrRetryExhausted annotates the last error after the bounded retry loop gave up.
// The original error remains reachable through Unwrap.
func ErrRetryExhausted(attempts int, err error) *AppError {
	return Wrap("SYS_002",
		fmt.Sprintf("Operation failed after %d attempts", attempts),
		http.StatusServiceUnavailable, err)
}
