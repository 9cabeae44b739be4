package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error codes shared by the composition, transcode and publish paths.
const (
	CodeNotPostable      = "not_postable"
	CodeProcessing       = "processing"
	CodeSessionDiscarded = "session_discarded"
	CodeMediaInUse       = "media_in_use"
	CodeUploadFailed     = "upload_failed"
	CodePersistFailed    = "persist_failed"
	CodeNoVideoTrack     = "no_video_track"
	CodeFileTooLarge     = "file_too_large"
	CodeExportFailed     = "export_failed"
	CodeCancelled        = "cancelled"
)

// Error represents a custom error type
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new error with a message
func New(message string) error {
	return &Error{
		Message: message,
	}
}

// NewWithCode creates a coded error that wraps nothing.
func NewWithCode(code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapWithCode wraps an error with a code and message
func WrapWithCode(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode returns the error code if it exists
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether the outermost coded error in err's chain carries code.
func HasCode(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

// GetMessage returns the human-readable message meant for the user.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsNotFound returns true if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether the caller may re-attempt the same operation
// without changing its input (upload and persistence failures).
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeUploadFailed, CodePersistFailed:
		return true
	}
	return false
}
