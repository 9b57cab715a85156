package storage

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"
)

// IsNetworkTransient reports connection-level failures that any backend may
// retry: a broken pooled connection, a network timeout, or a refused or
// reset connection.
func IsNetworkTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED),
			errors.Is(opErr.Err, syscall.ECONNRESET),
			errors.Is(opErr.Err, syscall.EPIPE):
			return true
		}
	}
	return false
}
