package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants. All packages MUST use these constants
// instead of hardcoded strings.
const (
	// Configuration
	ErrCodeConfigMissingManifest ErrorCode = "config_manifest_missing"
	ErrCodeConfigInvalidManifest ErrorCode = "config_manifest_invalid"
	ErrCodeConfigInvalidSettings ErrorCode = "config_settings_invalid"

	// Remote control plane
	ErrCodeRemoteNotDeployed ErrorCode = "remote_function_not_found"
	ErrCodeRemoteFetch       ErrorCode = "remote_fetch_failed"

	// Local store
	ErrCodeStorageNotADirectory ErrorCode = "storage_not_a_directory"
	ErrCodeStorageIO            ErrorCode = "storage_io_error"

	// Addressing / data model
	ErrCodeInvalidNameComponent ErrorCode = "address_invalid_component"
	ErrCodeInvalidEnvKey        ErrorCode = "envmap_invalid_key"
)

// Systemic reports whether an error code describes a misconfiguration that
// affects every capture target, as opposed to a single function's pipeline.
// A storage path that collides with a plain file can never hold any
// function's env file, so the whole capture must abort.
func (c ErrorCode) Systemic() bool {
	return c == ErrCodeStorageNotADirectory
}

// AppError is the standard application error type used throughout the tool.
// All domain errors should be expressed as AppError to enable consistent
// formatting, per-target vs. systemic classification, and error chain support.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
