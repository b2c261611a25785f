package bridge

import (
	"errors"
	"fmt"

	"github.com/glimte/skillbridge/contracts"
)

var (
	// ErrResponseUnparseable is returned when the backend answered with a status that
	// is passed through but the body is not JSON. The message is reported verbatim.
	ErrResponseUnparseable = errors.New("Could not serialize a response")

	// ErrInvalidConfiguration is returned by NewBridge for unusable settings
	ErrInvalidConfiguration = errors.New("bridge: invalid configuration")
)

// Error kinds reported to the invoking runtime
const (
	KindMalformedRequest    = "MalformedRequest"
	KindMissingCredential   = "MissingCredential"
	KindTransportFailure    = "TransportFailure"
	KindResponseUnparseable = "ResponseUnparseable"
	KindInvocationFailure   = "InvocationFailure"
)

// TransportError reports a failure to reach the backend at all
type TransportError struct {
	Op  string // "build request", "send" or "read body"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bridge transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnparseableResponseError carries the status of a pass-through response whose body
// could not be decoded
type UnparseableResponseError struct {
	StatusCode int
	Err        error
}

func (e *UnparseableResponseError) Error() string {
	return fmt.Sprintf("%s: backend status %d: %v", ErrResponseUnparseable, e.StatusCode, e.Err)
}

func (e *UnparseableResponseError) Unwrap() []error {
	return []error{ErrResponseUnparseable, e.Err}
}

// ErrorKind names the failure category of an invocation error so every runtime
// reports it the same way
func ErrorKind(err error) string {
	var transportErr *TransportError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, contracts.ErrMalformedRequest):
		return KindMalformedRequest
	case errors.Is(err, contracts.ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, ErrResponseUnparseable):
		return KindResponseUnparseable
	case errors.As(err, &transportErr):
		return KindTransportFailure
	default:
		return KindInvocationFailure
	}
}
