package errors

import "fmt"

// ErrorCode represents a pyforge error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrBuildInProgress   ErrorCode = "BUILD_IN_PROGRESS"   // 409
	ErrEnvCreateFailed   ErrorCode = "ENV_CREATE_FAILED"   // 502
	ErrDepInstallFailed  ErrorCode = "DEP_INSTALL_FAILED"  // 502
	ErrRetryExhausted    ErrorCode = "RETRY_EXHAUSTED"     // 422
	ErrCancelled         ErrorCode = "CANCELLED"           // 499
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// ForgeError represents a structured error with code, status, and details.
type ForgeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ForgeError {
	return &ForgeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a project cannot be found.
func NewNotFound(identifier string) *ForgeError {
	return &ForgeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("project not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewNameAlreadyExists creates a 409 error for name collisions.
func NewNameAlreadyExists(name string) *ForgeError {
	return &ForgeError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("project %q already exists", name),
		Details: map[string]any{"name": name},
	}
}

// NewBuildInProgress creates a 409 error when a build is already running
// for the project. At most one correction loop per project may be in flight.
func NewBuildInProgress(name string) *ForgeError {
	return &ForgeError{
		Code:    ErrBuildInProgress,
		Status:  409,
		Message: fmt.Sprintf("a build is already in progress for project %q", name),
		Details: map[string]any{"name": name},
	}
}

// NewEnvCreateFailed creates a 502 error carrying the resolver's diagnostic text.
// Environment failures abort the loop; they are never retried automatically.
func NewEnvCreateFailed(name, log string) *ForgeError {
	return &ForgeError{
		Code:    ErrEnvCreateFailed,
		Status:  502,
		Message: fmt.Sprintf("failed to create environment for project %q", name),
		Details: map[string]any{"name": name, "log": log},
	}
}

// NewDepInstallFailed creates a 502 error carrying the installer's diagnostic text.
func NewDepInstallFailed(packages []string, log string) *ForgeError {
	return &ForgeError{
		Code:    ErrDepInstallFailed,
		Status:  502,
		Message: fmt.Sprintf("failed to install packages: %v", packages),
		Details: map[string]any{"packages": packages, "log": log},
	}
}

// NewRetryExhausted creates a 422 error when the correction loop runs out of
// attempts. The last attempted revision stays in history, unaccepted.
func NewRetryExhausted(name string, attempts int, lastError string) *ForgeError {
	return &ForgeError{
		Code:    ErrRetryExhausted,
		Status:  422,
		Message: fmt.Sprintf("build of %q still failing after %d attempts", name, attempts),
		Details: map[string]any{"name": name, "attempts": attempts, "last_error": lastError},
	}
}

// NewCancelled creates a 499 marker for a user-directed abort.
// Cancellation is terminal but not a failure; callers must not log it as one.
func NewCancelled(name string) *ForgeError {
	return &ForgeError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("build of %q cancelled", name),
		Details: map[string]any{"name": name},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ForgeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ForgeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a ForgeError with the given code.
func Is(err error, code ErrorCode) bool {
	if fErr, ok := err.(*ForgeError); ok {
		return fErr.Code == code
	}
	return false
}
