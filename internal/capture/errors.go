package capture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the classification of a failed capture request.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission-denied"
	KindDeviceNotFound   ErrorKind = "device-not-found"
	KindOverConstrained  ErrorKind = "over-constrained"
	KindUnknown          ErrorKind = "unknown"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrDeviceNotFound   = errors.New("no camera found")
	ErrOverConstrained  = errors.New("camera constraints not satisfiable")
	ErrUnknown          = errors.New("camera error")
)

// PlatformError carries the platform's error name, e.g. "NotAllowedError".
type PlatformError struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *PlatformError) Error() string {
	msg := e.Name
	if e.Constraint != "" {
		msg += " (" + e.Constraint + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is maps platform names, including legacy aliases, onto the sentinels.
func (e *PlatformError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return kindForName(e.Name) == KindPermissionDenied
	case ErrDeviceNotFound:
		return kindForName(e.Name) == KindDeviceNotFound
	case ErrOverConstrained:
		return kindForName(e.Name) == KindOverConstrained
	case ErrUnknown:
		return kindForName(e.Name) == KindUnknown
	}
	return false
}

func kindForName(name string) ErrorKind {
	switch strings.TrimSpace(name) {
	case "NotAllowedError", "PermissionDeniedError", "SecurityError":
		return KindPermissionDenied
	case "NotFoundError", "DevicesNotFoundError":
		return KindDeviceNotFound
	case "OverconstrainedError", "ConstraintNotSatisfiedError":
		return KindOverConstrained
	default:
		return KindUnknown
	}
}

// Classify maps an error onto the capture error taxonomy.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrDeviceNotFound):
		return KindDeviceNotFound
	case errors.Is(err, ErrOverConstrained):
		return KindOverConstrained
	default:
		return KindUnknown
	}
}

// Remediation is the user-facing response to a failed negotiation. Every
// kind shows the manual retry control; only the log text differs.
type Remediation struct {
	ShowRetry bool
	Message   string
}

// RemediationFor returns the remediation for kind.
func RemediationFor(kind ErrorKind) Remediation {
	switch kind {
	case KindPermissionDenied:
		return Remediation{ShowRetry: true, Message: "camera permission denied; grant access and retry"}
	case KindDeviceNotFound:
		return Remediation{ShowRetry: true, Message: "no camera found on this device"}
	case KindOverConstrained:
		return Remediation{ShowRetry: true, Message: "camera does not support the requested settings"}
	default:
		return Remediation{ShowRetry: true, Message: "camera could not be started"}
	}
}

// NegotiationError is returned when every attempt failed.
type NegotiationError struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("camera negotiation failed after %d attempt(s) (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
