package transport

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) ReadUntil(term byte, maxLen int, timeout time.Duration) ([]byte, error) {
	args := m.Called(term, maxLen, timeout)

	var buf []byte
	if v := args.Get(0); v != nil {
		buf = v.([]byte)
	}

	return buf, args.Error(1)
}

func (m *MockTransport) Flush() error {
	return m.Called().Error(0)
}

func (m *MockTransport) Close() error {
	return m.Called().Error(0)
}

var _ Transport = (*MockTransport)(nil)

// Script is a scripted Transport for driver tests, replaying a canned
// conversation. Each written command is recorded, and responses are served
// in order. Reads beyond the script time out, mimicking a silent device.
type Script struct {
	Responses []Response
	Writes    []string

	pos int
}

type Response struct {
	Data string
	Err  error
}

func (s *Script) Write(p []byte) (int, error) {
	s.Writes = append(s.Writes, string(p))
	return len(p), nil
}

func (s *Script) ReadUntil(term byte, maxLen int, timeout time.Duration) ([]byte, error) {
	if s.pos >= len(s.Responses) {
		return nil, &TimeoutError{Op: "read", Timeout: timeout}
	}

	r := s.Responses[s.pos]
	s.pos++

	if r.Err != nil {
		return nil, r.Err
	}

	return []byte(r.Data), nil
}

func (s *Script) Flush() error { return nil }
func (s *Script) Close() error { return nil }

// Exhausted reports whether every scripted response was consumed.
func (s *Script) Exhausted() bool {
	return s.pos >= len(s.Responses)
}

var _ Transport = (*Script)(nil)
