package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an Arbor error code.
type ErrorCode string

const (
	ErrParseFailed      ErrorCode = "PARSE_FAILED"      // 422
	ErrNoDocument       ErrorCode = "NO_DOCUMENT"       // 422
	ErrWrongRoot        ErrorCode = "WRONG_ROOT"        // 422
	ErrMalformedNumeric ErrorCode = "MALFORMED_NUMERIC" // 422
	ErrMaterializeMiss  ErrorCode = "MATERIALIZE_MISS"  // 404
	ErrLoadFailed       ErrorCode = "LOAD_FAILED"       // 422
	ErrSaveFailed       ErrorCode = "SAVE_FAILED"       // 500
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// ArborError represents a structured error with code, status, and details.
type ArborError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *ArborError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ArborError) Unwrap() error {
	return e.cause
}

// NewParseFailed creates an error for markup that could not be parsed even after
// the encoding and sanitize retries.
func NewParseFailed(err error) *ArborError {
	msg := "xml parse fail"
	if err != nil {
		msg = fmt.Sprintf("xml parse fail: %v", err)
	}
	return &ArborError{
		Code:    ErrParseFailed,
		Status:  422,
		Message: msg,
		cause:   err,
	}
}

// NewNoDocument creates an error for input that parsed but holds no root element.
func NewNoDocument() *ArborError {
	return &ArborError{
		Code:    ErrNoDocument,
		Status:  422,
		Message: "document is null",
	}
}

// NewWrongRoot creates an error for a document whose root tag is not the expected one.
func NewWrongRoot(want, got string) *ArborError {
	return &ArborError{
		Code:    ErrWrongRoot,
		Status:  422,
		Message: fmt.Sprintf("document contains the wrong node root: %q (want %q)", got, want),
		Details: map[string]any{"want": want, "got": got},
	}
}

// NewMalformedNumeric creates an error for an integer attribute that does not parse.
func NewMalformedNumeric(element, attr, value string) *ArborError {
	return &ArborError{
		Code:    ErrMalformedNumeric,
		Status:  422,
		Message: fmt.Sprintf("%s: attribute %s=%q is not an integer", element, attr, value),
		Details: map[string]any{"element": element, "attribute": attr, "value": value},
	}
}

// NewMaterializeMiss creates an error for a delayed buffer that is unknown or already consumed.
func NewMaterializeMiss(nodeID int64) *ArborError {
	return &ArborError{
		Code:    ErrMaterializeMiss,
		Status:  404,
		Message: fmt.Sprintf("cannot find xml buffer for node_id %d", nodeID),
		Details: map[string]any{"node_id": nodeID},
	}
}

// NewLoadFailed wraps any failure raised while loading a document.
func NewLoadFailed(err error) *ArborError {
	return &ArborError{
		Code:    ErrLoadFailed,
		Status:  422,
		Message: fmt.Sprintf("xml storage got exception: %s", describe(err)),
		cause:   err,
	}
}

// NewSaveFailed wraps any failure raised while saving a document.
func NewSaveFailed(err error) *ArborError {
	return &ArborError{
		Code:    ErrSaveFailed,
		Status:  500,
		Message: describe(err),
		cause:   err,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ArborError {
	return &ArborError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a node or record that cannot be found.
func NewNotFound(identifier string) *ArborError {
	return &ArborError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file.
func NewFileNotFound(path string) *ArborError {
	return &ArborError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(operation string) *ArborError {
	return &ArborError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ArborError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ArborError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err, or any error it wraps, is an ArborError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *ArborError
	if stderrors.As(err, &aErr) {
		if aErr.Code == code {
			return true
		}
		return Is(aErr.cause, code)
	}
	return false
}

// describe renders err for a user-facing message, preferring the bare message
// of an ArborError over its code prefix.
func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	var aErr *ArborError
	if stderrors.As(err, &aErr) {
		return aErr.Message
	}
	return err.Error()
}
