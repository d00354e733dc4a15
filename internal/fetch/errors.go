package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Transport error codes. They mirror the errno names peers usually report so
// that retry decisions can be made on a stable string.
const (
	CodeConnReset   = "ECONNRESET"
	CodeTimeout     = "ETIMEDOUT"
	CodeConnRefused = "ECONNREFUSED"
	CodeHTTPStatus  = "EHTTPSTATUS"
	CodeUnknown     = "EFETCH"
)

// TransportError is returned by a Fetcher when the playlist text could not be retrieved.
type TransportError struct {
	Code string
	URL  string
	// StatusCode is set for CodeHTTPStatus only.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Code == CodeHTTPStatus {
		return fmt.Sprintf("fetch %s: %s: status %d", e.URL, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Code returns the transport code carried anywhere in err's chain, or "" if none.
func Code(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// classify maps a low-level client error to a transport code.
func classify(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.EPIPE):
		return CodeConnReset
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return CodeTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	return CodeUnknown
}
