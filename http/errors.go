package http

import (
	"errors"
	"strings"
)

var (
	ErrInvalidRequest   = errors.New("http: invalid request")
	ErrInvalidVersion   = errors.New("http: invalid protocol version")
	ErrLengthRequired   = errors.New("http: transfer-encoding is not supported")
	ErrTooLarge         = errors.New("http: request body too large")
	ErrHeaderTooLarge   = errors.New("http: request header block too large")
	ErrConnectionClosed = errors.New("http: connection closed by peer")

	ErrNotFound = errors.New("http: no rule matches path")

	ErrServerClosed  = errors.New("http: server closed")
	ErrServerStarted = errors.New("http: server already started")
)

// IOError wraps a transport failure. It is fatal to the connection and no
// response is attempted.
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return "http: i/o error: " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// MethodNotAllowedError is returned by the router when a rule matched the
// path but none of the matching rules accept the method.
type MethodNotAllowedError struct {
	// Allowed is the deduplicated union of methods offered by every rule
	// whose path matched, lowercased. Order is not significant.
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return "http: method not allowed, allowed: " + strings.Join(e.Allowed, ",")
}
