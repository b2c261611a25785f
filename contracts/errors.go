package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRequest wraps every failure to parse an inbound directive
	ErrMalformedRequest = errors.New("contracts: malformed directive")

	// ErrMissingCredential is returned when none of the credential slots is populated.
	// The message is reported verbatim to the invoking runtime.
	ErrMissingCredential = errors.New("No authorization token present")
)

// FieldError reports a required field that is missing, null or of the wrong shape
type FieldError struct {
	Path string // dotted JSON path, e.g. "directive.header.messageId"
	Err  error  // underlying decode error, nil when the field is missing
}

func (e *FieldError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("contracts: missing required field %s", e.Path)
	}
	return fmt.Sprintf("contracts: invalid field %s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedRequest}
	}
	return []error{ErrMalformedRequest, e.Err}
}

// LiteralError reports a discriminator field that does not carry its only allowed value
type LiteralError struct {
	Field string
	Want  string
	Got   string
}

func (e *LiteralError) Error() string {
	return fmt.Sprintf("contracts: %s must be %q, got %q", e.Field, e.Want, e.Got)
}

func (e *LiteralError) Unwrap() error {
	return ErrMalformedRequest
}
