package errors

import "fmt"

// ErrorCode represents a Weft error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrUpstream       ErrorCode = "UPSTREAM_ERROR"  // 502
)

// WeftError represents a structured error with code, status, and details.
type WeftError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *WeftError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *WeftError {
	return &WeftError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewTurnNotFound creates a 404 error for a turn that is absent or evicted.
func NewTurnNotFound(id uint64) *WeftError {
	return &WeftError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("turn not found: %d", id),
		Details: map[string]any{"turn_id": id},
	}
}

// NewBranchNotFound creates a 404 error for an unknown branch.
func NewBranchNotFound(id uint64) *WeftError {
	return &WeftError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("branch not found: %d", id),
		Details: map[string]any{"branch_id": id},
	}
}

// NewSessionNotFound creates a 404 error for an unknown session.
func NewSessionNotFound(id string) *WeftError {
	return &WeftError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("session not found: %s", id),
		Details: map[string]any{"session_id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing file path.
func NewFileNotFound(path string) *WeftError {
	return &WeftError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates a 499 error for a context-cancelled operation.
func NewCancelled(operation string) *WeftError {
	return &WeftError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("operation cancelled: %s", operation),
	}
}

// NewUpstream creates a 502 error for a failed generation API call.
func NewUpstream(status int, msg string) *WeftError {
	return &WeftError{
		Code:    ErrUpstream,
		Status:  502,
		Message: fmt.Sprintf("upstream API error: %s", msg),
		Details: map[string]any{"upstream_status": status},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *WeftError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &WeftError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a WeftError with the given code.
func Is(err error, code ErrorCode) bool {
	if wErr, ok := err.(*WeftError); ok {
		return wErr.Code == code
	}
	return false
}
