package apperror

import (
	"errors"
	"fmt"
)

// AppError is a structured error carrying a stable code for operators.
type AppError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
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
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain is an AppError with the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

const (
	CodeAlreadyClaimed    = "CLM_001"
	CodePayoutMissing     = "CLM_002"
	CodeInvalidAmount     = "DATA_001"
	CodeUnsupportedWallet = "DATA_002"
	CodeDispatchFailed    = "CHAIN_001"
	CodeHeightUnavailable = "CHAIN_002"
	CodeDatabase          = "SYS_001"
	CodePublish           = "SYS_002"
	CodeInternal          = "SYS_003"
)

// ---- Claim (CLM) ----

func ErrAlreadyClaimed() *AppError {
	return New(CodeAlreadyClaimed, "Payout already claimed")
}

func ErrPayoutMissing(id string) *AppError {
	return New(CodePayoutMissing, fmt.Sprintf("payout %s not found", id))
}

// ---- Data anomalies (DATA) ----

func ErrInvalidAmount(value string) *AppError {
	return New(CodeInvalidAmount, fmt.Sprintf("invalid amount %q", value))
}

func ErrUnsupportedWallet(wallet string) *AppError {
	return New(CodeUnsupportedWallet, fmt.Sprintf("unsupported wallet address %q", wallet))
}

// ---- Chain (CHAIN) ----

func ErrDispatchFailed(err error) *AppError {
	return Wrap(CodeDispatchFailed, "Chain dispatch failed", err)
}

func ErrHeightUnavailable(err error) *AppError {
	return Wrap(CodeHeightUnavailable, "Chain height unavailable", err)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeDatabase, "Internal database error", err)
}

func ErrPublishFailure(err error) *AppError {
	return Wrap(CodePublish, "Event publish failure", err)
}

func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal error", err)
}
