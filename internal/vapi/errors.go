package vapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind discriminates provider/transport failures. The classification is
// part of the contract: callers display these distinctly and must never see
// them merged into one generic failure.
type ErrorKind string

const (
	// KindTimeout: no response within the timeout budget.
	KindTimeout ErrorKind = "timeout"
	// KindConnection: transport-level failure (DNS, refused, TLS).
	KindConnection ErrorKind = "connection_error"
	// KindHTTP: remote answered with a non-2xx status.
	KindHTTP ErrorKind = "http_error"
	// KindEncoding: local payload serialization failure; retryable after fix,
	// not a remote fault.
	KindEncoding ErrorKind = "encoding_error"
	// KindValidation: bad input caught before any network activity.
	KindValidation ErrorKind = "validation_error"
	// KindUnexpected: anything uncategorized. Still surfaced, never swallowed.
	KindUnexpected ErrorKind = "unexpected"
)

// Error is a classified provider error. HTTPStatus is set only for KindHTTP.
type Error struct {
	Kind       ErrorKind
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("vapi: %s (%d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("vapi: %s: %s", e.Kind, e.Message)
}

// AsError unwraps err into a classified *Error if it carries one.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// classifyTransport maps an http.Client error onto the taxonomy. Timeout is
// checked before connection failures: url.Error wraps both and a deadline hit
// should never read as an unreachable host.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timeout: the API took too long to respond"}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timeout: the API took too long to respond"}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &Error{Kind: KindConnection, Message: fmt.Sprintf("connection error: unable to reach the API: %v", ue.Err)}
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return &Error{Kind: KindConnection, Message: fmt.Sprintf("connection error: unable to reach the API: %v", oe)}
	}
	return &Error{Kind: KindUnexpected, Message: fmt.Sprintf("unexpected error: %v", err)}
}
