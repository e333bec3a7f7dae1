package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeIOFailure indicates the underlying channel or file failed
	ErrorTypeIOFailure ErrorType = "IO_FAILURE"
	// ErrorTypeUnsupportedVersion indicates a log entry version this build cannot read
	ErrorTypeUnsupportedVersion ErrorType = "UNSUPPORTED_VERSION"
	// ErrorTypeUnknownEntryType indicates an entry type byte with no known meaning
	ErrorTypeUnknownEntryType ErrorType = "UNKNOWN_ENTRY_TYPE"
	// ErrorTypeCommandDecode indicates a storage command payload could not be decoded
	ErrorTypeCommandDecode ErrorType = "COMMAND_DECODE"
	// ErrorTypeCorruption indicates structurally invalid log contents
	ErrorTypeCorruption ErrorType = "CORRUPTION"
	// ErrorTypeInvalidInput indicates invalid input parameters
	ErrorTypeInvalidInput ErrorType = "INVALID_INPUT"
	// ErrorTypeNotFound indicates the requested resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// LogError represents a transaction log error with additional context
type LogError struct {
	Type    ErrorType
	Message string
	Err     error
	Stack   string
}

// Error implements the error interface
func (e *LogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *LogError) Unwrap() error {
	return e.Err
}

// New creates a new LogError
func New(errType ErrorType, message string, err error) *LogError {
	_, file, line, _ := runtime.Caller(1)
	stack := fmt.Sprintf("%s:%d", file, line)

	return &LogError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

// Newf creates a new LogError with a formatted message and no cause
func Newf(errType ErrorType, format string, args ...interface{}) *LogError {
	_, file, line, _ := runtime.Caller(1)

	return &LogError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   fmt.Sprintf("%s:%d", file, line),
	}
}

// WithMessage returns a copy of err with suffix appended to its message.
// Errors that are not a *LogError are wrapped as internal errors.
func WithMessage(err error, suffix string) error {
	var logErr *LogError
	if stderrors.As(err, &logErr) {
		return &LogError{
			Type:    logErr.Type,
			Message: logErr.Message + suffix,
			Err:     logErr.Err,
			Stack:   logErr.Stack,
		}
	}
	return New(ErrorTypeInternal, suffix, err)
}

// TypeOf returns the ErrorType of the first LogError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var logErr *LogError
	if stderrors.As(err, &logErr) {
		return logErr.Type
	}
	return ""
}

func is(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsIOFailure checks if the error is an IO failure
func IsIOFailure(err error) bool {
	return is(err, ErrorTypeIOFailure)
}

// IsUnsupportedVersion checks if the error is an unsupported version error
func IsUnsupportedVersion(err error) bool {
	return is(err, ErrorTypeUnsupportedVersion)
}

// IsUnknownEntryType checks if the error is an unknown entry type error
func IsUnknownEntryType(err error) bool {
	return is(err, ErrorTypeUnknownEntryType)
}

// IsCommandDecode checks if the error is a command decode failure
func IsCommandDecode(err error) bool {
	return is(err, ErrorTypeCommandDecode)
}

// IsCorruption checks if the error is a corruption error
func IsCorruption(err error) bool {
	return is(err, ErrorTypeCorruption)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return is(err, ErrorTypeInvalidInput)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return is(err, ErrorTypeNotFound)
}

// RecoverError recovers from a panic and converts it to a LogError
func RecoverError(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("%s", v)
	default:
		err = fmt.Errorf("%v", v)
	}

	return New(ErrorTypeInternal, "recovered from panic", err)
}
