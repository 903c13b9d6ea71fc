package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Sentinel errors for Request Client operations.
var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidResponse = errors.New("invalid response from server")
	ErrRequestFailed   = errors.New("request failed")
	ErrConnectionLost  = errors.New("connection to server lost")
	ErrTimeout         = errors.New("request timed out")
)

// RequestError is returned when the server answers with a non-success status.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap lets callers match RequestError with errors.Is(err, ErrRequestFailed).
func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

// classifyTransport maps an error from http.Client.Do onto the taxonomy.
func classifyTransport(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if isUnreachable(err) {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return fmt.Errorf("send request: %w", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Any other failure to dial means nothing is listening at the address.
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
