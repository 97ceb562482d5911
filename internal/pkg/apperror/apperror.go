package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// DefaultMessage is used when an error carries no message of its own.
const DefaultMessage = "Internal Server Error"

// AppError is a custom error type that includes an HTTP status code and whether the
// failure is operational (expected, safe to show) or a programming/infrastructure fault.
type AppError struct {
	StatusCode  int    // HTTP Status Code (e.g., 400, 404)
	Message     string // User-facing error message
	Operational bool   // true for anticipated conditions (validation, auth, not-found)
	Stack       string // Captured where the error was created or first normalized
	Err         error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an operational AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		StatusCode:  code,
		Message:     message,
		Operational: true,
		Stack:       captureStack(3),
	}
}

// Wrap creates an operational AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		StatusCode:  code,
		Message:     message,
		Operational: true,
		Stack:       captureStack(3),
		Err:         err,
	}
}

// Internal creates a non-operational AppError. Its message is only shown to
// clients in development.
func Internal(err error, message string) *AppError {
	if message == "" {
		message = DefaultMessage
	}
	return &AppError{
		StatusCode:  http.StatusInternalServerError,
		Message:     message,
		Operational: false,
		Stack:       captureStack(3),
		Err:         err,
	}
}

func BadRequest(message string) *AppError   { return newSkip(http.StatusBadRequest, message) }
func Unauthorized(message string) *AppError { return newSkip(http.StatusUnauthorized, message) }
func Forbidden(message string) *AppError    { return newSkip(http.StatusForbidden, message) }
func NotFound(message string) *AppError     { return newSkip(http.StatusNotFound, message) }
func Conflict(message string) *AppError     { return newSkip(http.StatusConflict, message) }

func PayloadTooLarge(message string) *AppError {
	return newSkip(http.StatusRequestEntityTooLarge, message)
}

func TooManyRequests(message string) *AppError {
	return newSkip(http.StatusTooManyRequests, message)
}

func newSkip(code int, message string) *AppError {
	return &AppError{
		StatusCode:  code,
		Message:     message,
		Operational: true,
		Stack:       captureStack(4),
	}
}

// statusCoder is implemented by errors that know their HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Normalize converts any error into an *AppError.
//
// An *AppError anywhere in the chain is returned unchanged. Anything else becomes a
// non-operational error keeping the status reported by a StatusCode() method
// (default 500) and its own message (default DefaultMessage).
func Normalize(err error) *AppError {
	if err == nil {
		return Internal(nil, "")
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	code := http.StatusInternalServerError
	var sc statusCoder
	if errors.As(err, &sc) {
		if c := sc.StatusCode(); c >= 400 && c <= 599 {
			code = c
		}
	}

	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = DefaultMessage
	}

	return &AppError{
		StatusCode:  code,
		Message:     message,
		Operational: false,
		Stack:       stackOf(err),
		Err:         err,
	}
}

// FromPanic turns a recovered panic value into a non-operational AppError.
func FromPanic(v any) *AppError {
	var err error
	switch x := v.(type) {
	case error:
		err = x
	default:
		err = fmt.Errorf("%v", x)
	}
	return &AppError{
		StatusCode:  http.StatusInternalServerError,
		Message:     "panic: " + err.Error(),
		Operational: false,
		Stack:       captureStack(4),
		Err:         err,
	}
}

// stackOf prefers a stack already captured by the wrapped error.
func stackOf(err error) string {
	type stacker interface{ StackTrace() string }
	var s stacker
	if errors.As(err, &s) {
		if st := s.StackTrace(); st != "" {
			return st
		}
	}
	return captureStack(4)
}

func captureStack(skip int) string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		fr, more := frames.Next()
		// panics unwind through runtime frames; they carry nothing useful
		if !strings.HasPrefix(fr.Function, "runtime.") {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
