package actor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory tells callers whether a failed call is worth repeating.
type ErrorCategory int

const (
	// Recoverable failures: 5xx, 408, 429 and network errors.
	Recoverable ErrorCategory = iota
	// Irrecoverable failures: every other 4xx.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// RemoteError is returned when the actor rejects a call or cannot be reached.
type RemoteError struct {
	Method     string
	StatusCode int // 0 for network errors
	Message    string
	Category   ErrorCategory
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		if e.Message != "" {
			return fmt.Sprintf("%s: HTTP %d: %s", e.Method, e.StatusCode, e.Message)
		}
		return fmt.Sprintf("%s: HTTP %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func categoryFor(status int) ErrorCategory {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return Recoverable
	case status >= 400 && status < 500:
		return Irrecoverable
	default:
		return Recoverable
	}
}

func newHTTPError(method string, status int, body []byte) *RemoteError {
	e := &RemoteError{Method: method, StatusCode: status, Category: categoryFor(status)}
	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.Error
		}
	}
	return e
}

func newNetworkError(method string, err error) *RemoteError {
	return &RemoteError{Method: method, Category: Recoverable, Err: err}
}

func statusOf(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the actor refused the call for the caller's role.
func IsUnauthorized(err error) bool {
	s := statusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsNotFound reports whether the actor answered 404.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsIrrecoverable reports whether err should not be retried.
func IsIrrecoverable(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Category == Irrecoverable
}

// IsInvalid reports whether the actor rejected the call's arguments.
func IsInvalid(err error) bool { return statusOf(err) == http.StatusBadRequest }
