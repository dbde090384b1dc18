package transport

import (
	"bufio"
	"net"
	"os"
	"time"
)

// TCP is a Transport over a network connection, for instruments exposed via
// a serial-to-ethernet bridge.
type TCP struct {
	conn net.Conn
	r    *bufio.Reader
}

func DialTCP(address string, timeout time.Duration) (*TCP, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, &IOError{Op: "dial", Err: err}
	}

	return &TCP{conn: conn, r: bufio.NewReader(conn)}, nil
}

func (t *TCP) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	if err != nil {
		return n, &IOError{Op: "write", Err: err}
	}

	return n, nil
}

func (t *TCP) ReadUntil(term byte, maxLen int, timeout time.Duration) ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, &IOError{Op: "read", Err: err}
	}

	buf := make([]byte, 0, maxLen)

	for len(buf) < maxLen {
		b, err := t.r.ReadByte()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return buf, &TimeoutError{Op: "read", Timeout: timeout}
			}
			if os.IsTimeout(err) {
				return buf, &TimeoutError{Op: "read", Timeout: timeout}
			}

			return buf, &IOError{Op: "read", Err: err}
		}

		buf = append(buf, b)
		if b == term {
			return buf, nil
		}
	}

	return buf, nil
}

// Flush drains input that has already arrived. There is no output buffer to
// discard on a stream socket.
func (t *TCP) Flush() error {
	if err := t.conn.SetReadDeadline(time.Now()); err != nil {
		return &IOError{Op: "flush", Err: err}
	}

	scratch := make([]byte, 256)
	for {
		if _, err := t.conn.Read(scratch); err != nil {
			break
		}
	}

	t.r.Reset(t.conn)

	return nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}

var _ Transport = (*TCP)(nil)
