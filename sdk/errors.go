package sdk

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors reported by the SDK. Errors delivered through EventError can be
// matched against these with errors.Is.
//
// Example:
//
//	client.On(func(ev sdk.Event) {
//	    if ev.Type != sdk.EventError {
//	        return
//	    }
//	    if errors.Is(ev.Err, sdk.ErrInvalidData) {
//	        // The server rejected the request payload
//	    }
//	})
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRateLimited is reported when the server asked the client to slow down
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError is reported for err_internal_server_error responses
	ErrServerError = errors.New("server error")

	// ErrUnauthorized is reported when the session token was rejected
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidData is reported when the server rejected the request payload
	ErrInvalidData = errors.New("invalid data")

	// ErrInvalidAdType is reported when ShowAd is called with a type that was not requested at Init
	ErrInvalidAdType = errors.New("invalid ad type")

	// ErrInvalidResponse is reported when a successful response cannot be decoded
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrRenderer is reported when the renderer fails to present a creative
	ErrRenderer = errors.New("renderer failure")

)

// ErrorCode is the error identifier carried in the server's error envelope.
type ErrorCode string

const (
	CodeRateLimited         ErrorCode = "err_rate_limited"
	CodeUnauthorized        ErrorCode = "err_unauthorized"
	CodeInvalidData         ErrorCode = "err_invalid_data"
	CodeInternalServerError ErrorCode = "err_internal_server_error"
)

// ErrorType represents the type of error for categorization and handling.
// Network, rate limit and server errors are retried internally and never
// reach listeners.
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown or unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork represents transport failures (connection refused, DNS, bad status)
	ErrorTypeNetwork
	// ErrorTypeRateLimit represents err_rate_limited responses
	ErrorTypeRateLimit
	// ErrorTypeServer represents err_internal_server_error responses
	ErrorTypeServer
	// ErrorTypeUnauthorized represents err_unauthorized responses
	ErrorTypeUnauthorized
	// ErrorTypeValidation represents rejected input (err_invalid_data, bad ad type, bad Init arguments)
	ErrorTypeValidation
	// ErrorTypeRenderer represents failures of the injected renderer
	ErrorTypeRenderer
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeServer:
		return "server"
	case ErrorTypeUnauthorized:
		return "unauthorized"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeRenderer:
		return "renderer"
	default:
		return "unknown"
	}
}

// Error represents an SDK error with classification and request context.
//
// Example:
//
//	var sdkErr *sdk.Error
//	if errors.As(ev.Err, &sdkErr) {
//	    log.Printf("type=%s code=%s path=%s", sdkErr.Type, sdkErr.Code, sdkErr.Path)
//	}
type Error struct {
	// Type categorizes the error for handling decisions
	Type ErrorType `json:"type"`
	// Code is the server error code, if the error came from an error envelope
	Code ErrorCode `json:"code,omitempty"`
	// Message is a human-readable error description
	Message string `json:"message"`
	// Wait is the server-requested delay for rate limit errors
	Wait time.Duration `json:"wait,omitempty"`
	// Path is the endpoint path of the failed request
	Path string `json:"path,omitempty"`
	// Timestamp is when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// Retryable indicates if the request is retried internally
	Retryable bool `json:"retryable"`
	// wrapped is the underlying error, if any
	wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s (path: %s)", e.Type, e.Message, e.Path)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is implements errors.Is
func (e *Error) Is(target error) bool {
	switch e.Type {
	case ErrorTypeRateLimit:
		return target == ErrRateLimited
	case ErrorTypeServer:
		return target == ErrServerError
	case ErrorTypeUnauthorized:
		return target == ErrUnauthorized
	case ErrorTypeValidation:
		return target == ErrInvalidData && e.Code == CodeInvalidData
	case ErrorTypeRenderer:
		return target == ErrRenderer
	}
	return false
}

// IsRetryable returns true if the error is retryable
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new SDK error
func NewError(errType ErrorType, message string, wrapped error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: isRetryableType(errType),
		wrapped:   wrapped,
	}
}

// isRetryableType determines if an error type is retryable
func isRetryableType(errType ErrorType) bool {
	switch errType {
	case ErrorTypeNetwork, ErrorTypeServer, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// errorEnvelope is the body the ad server returns instead of a result.
type errorEnvelope struct {
	Error ErrorCode `json:"error"`
	// Wait is in seconds and only set for err_rate_limited.
	Wait *float64 `json:"wait,omitempty"`
}

// toError classifies an error envelope received from path.
func (env *errorEnvelope) toError(path string) *Error {
	var err *Error
	switch env.Error {
	case CodeRateLimited:
		err = NewError(ErrorTypeRateLimit, "rate limited by server", nil)
		if env.Wait != nil && *env.Wait > 0 {
			err.Wait = time.Duration(*env.Wait * float64(time.Second))
		}
	case CodeInternalServerError:
		err = NewError(ErrorTypeServer, "internal server error", nil)
	case CodeUnauthorized:
		err = NewError(ErrorTypeUnauthorized, "session token rejected", nil)
	case CodeInvalidData:
		err = NewError(ErrorTypeValidation, "server rejected request data", nil)
	default:
		err = NewError(ErrorTypeUnknown, fmt.Sprintf("unexpected error code %q", env.Error), nil)
	}
	err.Code = env.Error
	err.Path = path
	return err
}

// NetworkError represents a transport-level failure: the request never got a
// usable answer from the server.
//
// Example:
//
//	var netErr *sdk.NetworkError
//	if errors.As(err, &netErr) {
//	    log.Printf("Network error during %s: %v", netErr.Op, netErr.Err)
//	}
type NetworkError struct {
	// Op is the operation that failed (e.g., "POST /v1/content", "reading response")
	Op string
	// StatusCode is the HTTP status, when a response without an error envelope arrived
	StatusCode int
	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error during %s: unexpected status %d %s",
			e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ToError converts NetworkError to the SDK Error type
func (e *NetworkError) ToError() *Error {
	return NewError(ErrorTypeNetwork, e.Error(), e)
}

// IsRetryable reports whether err is handled by the internal retry loop:
// transport failures, rate limiting and server errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var sdkErr *Error
	if errors.As(err, &sdkErr) {
		return sdkErr.IsRetryable()
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsUnauthorized reports whether err is an err_unauthorized rejection.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRateLimited reports whether err is an err_rate_limited rejection.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// validationError builds a non-retryable validation error for local input checks.
func validationError(wrapped error, format string, args ...interface{}) *Error {
	return NewError(ErrorTypeValidation, fmt.Sprintf(format, args...), wrapped)
}
