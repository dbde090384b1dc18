package transport

import (
	"time"

	"go.bug.st/serial"
)

// Serial is a Transport over a local serial port.
type Serial struct {
	port serial.Port
}

// OpenSerial opens the named port at the given baud rate, 8N1.
func OpenSerial(device string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, &IOError{Op: "open", Err: err}
	}

	return &Serial{port: port}, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, &IOError{Op: "write", Err: err}
	}

	return n, nil
}

func (s *Serial) ReadUntil(term byte, maxLen int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, maxLen)
	one := make([]byte, 1)

	for len(buf) < maxLen {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf, &TimeoutError{Op: "read", Timeout: timeout}
		}

		if err := s.port.SetReadTimeout(remaining); err != nil {
			return buf, &IOError{Op: "read", Err: err}
		}

		n, err := s.port.Read(one)
		if err != nil {
			return buf, &IOError{Op: "read", Err: err}
		}

		// A zero length read signals the port timeout elapsed.
		if n == 0 {
			return buf, &TimeoutError{Op: "read", Timeout: timeout}
		}

		buf = append(buf, one[0])
		if one[0] == term {
			return buf, nil
		}
	}

	return buf, nil
}

func (s *Serial) Flush() error {
	if err := s.port.ResetInputBuffer(); err != nil {
		return &IOError{Op: "flush", Err: err}
	}

	if err := s.port.ResetOutputBuffer(); err != nil {
		return &IOError{Op: "flush", Err: err}
	}

	return nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}

var _ Transport = (*Serial)(nil)
