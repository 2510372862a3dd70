package errorhandler

import (
	"errors"
	"fmt"
)

type ErrorCategory int

const (
	AuthenticationError ErrorCategory = iota
	PermissionError
	TransientError
	ResponseError
	PollError
	SubprocessError
	ConfigError
	UnknownError
)

func (c ErrorCategory) String() string {
	switch c {
	case AuthenticationError:
		return "authentication"
	case PermissionError:
		return "permission"
	case TransientError:
		return "transient"
	case ResponseError:
		return "response"
	case PollError:
		return "poll"
	case SubprocessError:
		return "subprocess"
	case ConfigError:
		return "config"
	default:
		return "unknown"
	}
}

// CustomError tags an underlying error with a category and whether the
// failure is permanent for the account it occurred on. Permanent failures
// are never retried; counted failures feed the store's eviction threshold.
type CustomError struct {
	Category    ErrorCategory
	OriginalErr error
	Context     string
	Permanent   bool
}

func (e *CustomError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %v", e.Context, e.OriginalErr)
	}
	return e.OriginalErr.Error()
}

func (e *CustomError) Unwrap() error {
	return e.OriginalErr
}

func NewError(category ErrorCategory, err error, context string, permanent bool) *CustomError {
	return &CustomError{
		Category:    category,
		OriginalErr: err,
		Context:     context,
		Permanent:   permanent,
	}
}

func NewAuthenticationError(err error, context string) *CustomError {
	return NewError(AuthenticationError, err, context, true)
}

func NewPermissionError(err error, context string) *CustomError {
	return NewError(PermissionError, err, context, false)
}

func NewTransientError(err error, context string) *CustomError {
	return NewError(TransientError, err, context, false)
}

func NewResponseError(err error, context string) *CustomError {
	return NewError(ResponseError, err, context, false)
}

func NewPollError(err error, context string) *CustomError {
	return NewError(PollError, err, context, true)
}

func NewSubprocessError(err error, context string) *CustomError {
	return NewError(SubprocessError, err, context, false)
}

func NewConfigError(err error, context string) *CustomError {
	return NewError(ConfigError, err, context, true)
}

// CategoryOf returns the category of err, or UnknownError for plain errors.
func CategoryOf(err error) ErrorCategory {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return UnknownError
}

// IsPermanent reports whether err should end processing for its account
// rather than be retried.
func IsPermanent(err error) bool {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Permanent
	}
	return false
}

// CountsTowardEviction reports whether err increments the account's
// consecutive-failure counter. Authentication and permission failures have
// their own handling paths and do not count.
func CountsTowardEviction(err error) bool {
	switch CategoryOf(err) {
	case TransientError, PollError, SubprocessError, UnknownError:
		return true
	default:
		return false
	}
}
