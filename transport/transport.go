package transport

import (
	"fmt"
	"time"
)

// Transport is a byte oriented connection to an instrument. Implementations
// are not safe for concurrent use, a single device owns its transport and
// serialises all command exchanges through it.
type Transport interface {
	// Write sends the full buffer, returning the number of bytes written.
	Write(p []byte) (int, error)
	// ReadUntil reads until term is seen, maxLen bytes arrive, or timeout
	// expires. The returned slice includes the terminator when present.
	ReadUntil(term byte, maxLen int, timeout time.Duration) ([]byte, error)
	// Flush discards any buffered input and output.
	Flush() error
	Close() error
}

// TimeoutError indicates the device did not respond within the allowed
// window. The command may be retried by a caller that knows it is safe.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: %s timed out after %s", e.Op, e.Timeout)
}

// IOError wraps a hard failure of the underlying port or socket.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("transport: %s: %s", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
