package host

import (
	"errors"
	"time"
)

// ErrorType categorizes host-level failures.
type ErrorType string

const (
	ErrorTypeEngineBuild     ErrorType = "engine_build"
	ErrorTypeEngineDisposed  ErrorType = "engine_disposed"
	ErrorTypeContextDisposed ErrorType = "context_disposed"
	ErrorTypeThreadAffinity  ErrorType = "thread_affinity"
	ErrorTypeGuestExecution  ErrorType = "guest_execution"
	ErrorTypePluginInstall   ErrorType = "plugin_install"
)

// Error represents host framework errors with context.
type Error struct {
	Type      ErrorType
	EngineID  string
	ContextID string
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a host Error with the given parameters.
func NewError(errorType ErrorType, engineID, contextID, message string, cause error) *Error {
	return &Error{
		Type:      errorType,
		EngineID:  engineID,
		ContextID: contextID,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// IsErrorType reports whether err is a host Error of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var hostErr *Error
	if errors.As(err, &hostErr) {
		return hostErr.Type == errorType
	}
	return false
}
