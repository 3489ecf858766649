package errors

import perrors "github.com/pingcap/errors"

// Error codes for the trigger taxonomy. Transport failures are the only
// retryable class; out-of-order cursor advances are always fatal.
const (
	ErrCodePanic           uint16 = 1000
	ErrCodeNotInitialized  uint16 = 2000
	ErrCodeTransport       uint16 = 3000
	ErrCodeUnauthorized    uint16 = 3100
	ErrCodeDecode          uint16 = 4000
	ErrCodeHandler         uint16 = 5000
	ErrCodeOutOfOrder      uint16 = 6000
	ErrCodePositionExpired uint16 = 7000
)

type TriggerError struct {
	Code uint16
	error
}

func NewTriggerError(code uint16, err error) error {
	return &TriggerError{
		Code:  code,
		error: err,
	}
}

func NewTriggerErrorMessage(code uint16, message string) error {
	return &TriggerError{
		Code:  code,
		error: perrors.New(message),
	}
}

// ErrorCode walks the cause chain and returns the first trigger error code,
// or zero when the chain carries none.
func ErrorCode(err error) uint16 {
	for err != nil {
		if te, ok := err.(*TriggerError); ok {
			return te.Code
		}
		cause := perrors.Unwrap(err)
		if cause == nil {
			cause = perrors.Cause(err)
			if cause == err {
				return 0
			}
		}
		err = cause
	}
	return 0
}

func HasCode(err error, code uint16) bool {
	return ErrorCode(err) == code
}

// IsRetryable reports whether the error is a transient transport failure
// that the poll loop may retry after backoff.
func IsRetryable(err error) bool {
	return HasCode(err, ErrCodeTransport)
}

var (
	ErrNotInitialized = NewTriggerErrorMessage(ErrCodeNotInitialized, "trigger not initialized, call Init first")
	ErrUnauthorized   = NewTriggerErrorMessage(ErrCodeUnauthorized, "not authorized to read the replication log")
)
