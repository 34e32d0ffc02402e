package repositories

import "fmt"

// DiscountErrorCode enumerates failure reasons for discount ledger operations.
type DiscountErrorCode string

const (
	// DiscountErrorUnknown represents an unspecified failure.
	DiscountErrorUnknown DiscountErrorCode = "discount_unknown"
	// DiscountErrorInvalidInput indicates the caller supplied invalid arguments.
	DiscountErrorInvalidInput DiscountErrorCode = "discount_invalid_input"
	// DiscountErrorUsageExhausted indicates the usage limit would be exceeded
	// by recording another redemption.
	DiscountErrorUsageExhausted DiscountErrorCode = "discount_usage_exhausted"
)

// DiscountError wraps ledger-specific failures with machine readable codes.
type DiscountError struct {
	Op      string
	Code    DiscountErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DiscountError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *DiscountError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewDiscountError constructs a typed discount error.
func NewDiscountError(code DiscountErrorCode, message string, err error) *DiscountError {
	if message == "" {
		message = string(code)
	}
	return &DiscountError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
