package evaluator

import "fmt"

// ErrorCode classifies evaluation failures for callers that fall back to
// their default value.
type ErrorCode string

const (
	// ErrCodeSettingKeyMissing means the requested key is not in the config.
	ErrCodeSettingKeyMissing ErrorCode = "SETTING_KEY_MISSING"
	// ErrCodeTypeMismatch means the caller-supplied default value's type
	// does not match the setting's declared type.
	ErrCodeTypeMismatch ErrorCode = "SETTING_VALUE_TYPE_MISMATCH"
	// ErrCodeCircularDependency means prerequisite-flag evaluation revisited
	// a key already on the current recursion path.
	ErrCodeCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
	// ErrCodeInvalidConfigModel covers config-document invariant violations
	// surfaced during evaluation: percentage weights summing below 100,
	// prerequisite type mismatches, invalid segment references, malformed
	// value slots.
	ErrCodeInvalidConfigModel ErrorCode = "INVALID_CONFIG_MODEL"
	// ErrCodeConfigNotAvailable means no config document has been fetched
	// or loaded yet.
	ErrCodeConfigNotAvailable ErrorCode = "CONFIG_NOT_AVAILABLE"
)

// EvaluationError is a fatal, non-retriable failure of a single evaluate
// call. The caller falls back to its default value and surfaces the code.
type EvaluationError struct {
	Code    ErrorCode
	Message string
}

func (e *EvaluationError) Error() string {
	return e.Message
}

func invalidConfigModel(format string, args ...any) *EvaluationError {
	return &EvaluationError{Code: ErrCodeInvalidConfigModel, Message: fmt.Sprintf(format, args...)}
}
