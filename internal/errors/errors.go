package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Exit codes for ink-ctl
const (
	ExitSuccess            = 0
	ExitGeneralError       = 1
	ExitInstanceNotFound   = 2
	ExitCapacity           = 3
	ExitPortDiscovery      = 4
	ExitRuntimeUnavailable = 5
	ExitConfigError        = 6
	ExitProxyError         = 7
	ExitUnauthenticated    = 8
)

// Kind classifies an InkError.
type Kind string

const (
	KindGeneral              Kind = "general"
	KindConfiguration        Kind = "configuration"
	KindCapacity             Kind = "capacity"
	KindRuntimeUnavailable   Kind = "runtime_unavailable"
	KindPortDiscoveryTimeout Kind = "port_discovery_timeout"
	KindProxyUpstream        Kind = "proxy_upstream"
	KindHandshake            Kind = "handshake"
	KindDialTimeout          Kind = "dial_timeout"
	KindNotFound             Kind = "not_found"
	KindUnauthenticated      Kind = "unauthenticated"
)

// InkError is the base error type for ink
type InkError struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error
}

func (e *InkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InkError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *InkError) ExitCode() int {
	return e.Code
}

// HTTPStatus maps the error kind to the status reported to HTTP callers.
// Capacity rejections are client-visible; everything else is a server fault.
func (e *InkError) HTTPStatus() int {
	switch e.Kind {
	case KindCapacity:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new InkError
func New(kind Kind, code int, message string) *InkError {
	return &InkError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an InkError
func Wrap(kind Kind, code int, message string, cause error) *InkError {
	return &InkError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ConfigurationError reports a deployment problem such as a missing or
// ambiguous backing image. It is never retried.
func ConfigurationError(message string, cause error) *InkError {
	return Wrap(KindConfiguration, ExitConfigError, message, cause)
}

// CapacityError reports an ownership or platform capacity rejection.
func CapacityError(message string) *InkError {
	return New(KindCapacity, ExitCapacity, message)
}

// RuntimeUnavailable reports that the container runtime could not be reached
// or failed an operation.
func RuntimeUnavailable(op string, cause error) *InkError {
	return Wrap(KindRuntimeUnavailable, ExitRuntimeUnavailable, fmt.Sprintf("runtime %s failed", op), cause)
}

// PortDiscoveryTimeout reports that a started container never published its
// service port within the retry budget.
func PortDiscoveryTimeout(container string, attempts int) *InkError {
	return New(KindPortDiscoveryTimeout, ExitPortDiscovery,
		fmt.Sprintf("failed to get port of container %s after %d tries", container, attempts))
}

// ProxyUpstreamError reports a forwarding failure to an instance backend.
func ProxyUpstreamError(cause error) *InkError {
	return Wrap(KindProxyUpstream, ExitProxyError, "error proxying http request", cause)
}

// HandshakeError reports a failed WebSocket upgrade on either side.
func HandshakeError(message string, cause error) *InkError {
	return Wrap(KindHandshake, ExitProxyError, message, cause)
}

// DialTimeout reports that the backend dial did not complete in time.
func DialTimeout(target string, cause error) *InkError {
	return Wrap(KindDialTimeout, ExitProxyError, fmt.Sprintf("dial %s timed out", target), cause)
}

// InstanceNotFound returns an error for a missing instance
func InstanceNotFound(name string) *InkError {
	return New(KindNotFound, ExitInstanceNotFound, fmt.Sprintf("instance not found: %s", name))
}

// Unauthenticated is returned when an operation requires an identity.
func Unauthenticated() *InkError {
	return New(KindUnauthenticated, ExitUnauthenticated, "not logged in")
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *InkError {
	return New(KindGeneral, ExitGeneralError, message)
}

// KindOf returns the kind of the first InkError in err's chain, or
// KindGeneral when there is none.
func KindOf(err error) Kind {
	var inkErr *InkError
	if errors.As(err, &inkErr) {
		return inkErr.Kind
	}
	return KindGeneral
}

// IsKind reports whether err carries an InkError of the given kind.
func IsKind(err error, kind Kind) bool {
	var inkErr *InkError
	if errors.As(err, &inkErr) {
		return inkErr.Kind == kind
	}
	return false
}

// HTTPStatus extracts the HTTP status for an error; unknown errors are 500.
func HTTPStatus(err error) int {
	var inkErr *InkError
	if errors.As(err, &inkErr) {
		return inkErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var inkErr *InkError
	if errors.As(err, &inkErr) {
		return inkErr.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
