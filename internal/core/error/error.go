package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "Lo siento, ha ocurrido un error en el sistema. Por favor, inténtalo de nuevo."
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing key in Redis.
	RedisNotFoundMessage = "redis key not found"
	// ServiceUnavailableMessage is returned when the circuit breaker refuses a call.
	ServiceUnavailableMessage = "Servicio temporalmente no disponible. Por favor, inténtalo de nuevo más tarde."
	// TimeoutMessage is returned when a remote call exceeds its wait budget.
	TimeoutMessage = "La operación tardó demasiado tiempo. Por favor, inténtalo de nuevo."
	// RateLimitMessage is returned when the remote service throttles us.
	RateLimitMessage = "El sistema está ocupado en este momento. Por favor, espera un minuto e inténtalo de nuevo."
)

// Error wraps an underlying error with an HTTP status, a safe user-facing
// message and a classification Kind that callers can branch on instead of
// matching message substrings.
type Error struct {
	Err     error
	Status  int
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindGeneral,
	}
}

// NewKind creates a classified Error.
func NewKind(err error, kind Kind, message string) *Error {
	return &Error{
		Err:     err,
		Status:  kind.status(),
		Message: message,
		Kind:    kind,
	}
}

// KindOf extracts the classification of err, defaulting to KindGeneral.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneral
}

// UserMessage extracts the safe user-facing message of err, falling back to
// the generic system message for unclassified errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return SystemErrorMessage
}

// IsNotFound reports whether err is a classified not-found failure.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

func (k Kind) status() int {
	switch k {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindToolError:
		return http.StatusBadGateway
	case KindTerminal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
