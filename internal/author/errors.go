package author

import (
	"errors"
	"fmt"
	"net/http"
)

// ConnectionError means the transport could not reach the author service.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("call author service %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ResponseError means the author service answered with a non-200 status.
// It carries the status code, reason phrase and response headers.
type ResponseError struct {
	StatusCode int
	Reason     string
	Header     http.Header
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("author service responded %d: %s", e.StatusCode, e.Reason)
}

// IsNotFound reports whether err is the recognized absence signal: the
// author resource does not exist for the requested book id.
func IsNotFound(err error) bool {
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// Diagnostic extracts a short label for logging from a failed call. It
// prefers the error's structured message and falls back to the error's
// type name when no message is available. It never fails itself.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Reason != "" {
		return respErr.Reason
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) && connErr.Err != nil {
		return connErr.Err.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("%T", err)
}
