package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on code so wrapped copies of a predefined error compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrProviderNotConfigured = &AppError{Code: "LLM_001", Message: "no LLM provider configured"}
	ErrProviderUnavailable   = &AppError{Code: "LLM_002", Message: "LLM provider unavailable"}
	ErrRateLimited           = &AppError{Code: "LLM_003", Message: "rate limit exceeded"}

	ErrActionParse       = &AppError{Code: "ACTION_PARSE", Message: "malformed action marker"}
	ErrActionValidation  = &AppError{Code: "ACTION_VALIDATION", Message: "action parameters failed validation"}
	ErrActionGuardrail   = &AppError{Code: "ACTION_GUARDRAIL", Message: "action denied by guardrail"}
	ErrUnknownCapability = &AppError{Code: "ACTION_UNKNOWN_CAPABILITY", Message: "unknown capability"}
	ErrMissingBinding    = &AppError{Code: "ACTION_MISSING_BINDING", Message: "capability has no executor binding"}
	ErrActionExecution   = &AppError{Code: "ACTION_EXECUTION", Message: "action execution failed"}
	ErrDuplicateRequest  = &AppError{Code: "ACTION_DUPLICATE", Message: "duplicate request id"}

	ErrUnknownConfirmation   = &AppError{Code: "CONFIRM_UNKNOWN", Message: "no pending confirmation with that id"}
	ErrDuplicateConfirmation = &AppError{Code: "CONFIRM_DUPLICATE", Message: "confirmation already pending for that id"}

	ErrStoreFailure = &AppError{Code: "STORE_FAILURE", Message: "data store failure"}

	ErrConversationNotFound = &AppError{Code: "CONV_001", Message: "conversation not found"}

	ErrInputRejected = &AppError{Code: "INPUT_001", Message: "input rejected"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WithCause returns a copy of a predefined error carrying cause.
func WithCause(base *AppError, cause error) *AppError {
	return &AppError{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}
