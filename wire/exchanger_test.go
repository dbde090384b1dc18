package wire

import (
	"context"
	"testing"
	"time"

	"github.com/openastro/ada/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExchange(t *testing.T) {
	t.Run("a command round trip writes the frame and returns the terminated response", func(t *testing.T) {
		script := &transport.Script{
			Responses: []transport.Response{{Data: "161028161028#"}},
		}

		ex := &Exchanger{Transport: script, Term: '#', Timeout: time.Second}

		res, err := ex.Exchange(context.Background(), ColonHash("FW1"))
		require.NoError(t, err)

		assert.Equal(t, []byte("161028161028#"), res)
		assert.Equal(t, []string{":FW1#"}, script.Writes)
	})

	t.Run("a cancelled context stops the exchange before anything is written", func(t *testing.T) {
		script := &transport.Script{}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ex := &Exchanger{Transport: script, Term: '#', Timeout: time.Second}

		_, err := ex.Exchange(ctx, ColonHash("FW1"))
		assert.Error(t, err)
		assert.Empty(t, script.Writes)
	})
}

func TestExchangeN(t *testing.T) {
	t.Run("fixed width responses are read without a terminator", func(t *testing.T) {
		script := &transport.Script{
			Responses: []transport.Response{{Data: "0045"}},
		}

		ex := &Exchanger{Transport: script, Term: '#', Timeout: time.Second}

		res, err := ex.ExchangeN(context.Background(), ColonHash("MountInfo"), 4)
		require.NoError(t, err)
		assert.Equal(t, []byte("0045"), res)
	})
}

func TestMismatchRecovery(t *testing.T) {
	t.Run("a noted mismatch flushes the transport before the next command", func(t *testing.T) {
		mt := &transport.MockTransport{}
		defer mt.AssertExpectations(t)

		mt.On("Flush").Return(nil).Once()
		mt.On("Write", mock.Anything).Return(5, nil).Once()
		mt.On("ReadUntil", byte('#'), DefaultResponseLimit, time.Second).Return([]byte("1#"), nil).Once()

		ex := &Exchanger{Transport: mt, Term: '#', Timeout: time.Second}

		err := ex.NoteMismatch(&MismatchError{Command: ":GLS#", Raw: []byte("junk")})
		assert.Error(t, err)

		_, err = ex.Exchange(context.Background(), ColonHash("GLS"))
		require.NoError(t, err)
	})

	t.Run("errors other than mismatches do not trigger a flush", func(t *testing.T) {
		mt := &transport.MockTransport{}
		defer mt.AssertExpectations(t)

		mt.On("Write", mock.Anything).Return(5, nil).Once()
		mt.On("ReadUntil", byte('#'), DefaultResponseLimit, time.Second).Return([]byte("1#"), nil).Once()

		ex := &Exchanger{Transport: mt, Term: '#', Timeout: time.Second}

		ex.NoteMismatch(&ParseError{Expected: "x", Raw: []byte("y")})

		_, err := ex.Exchange(context.Background(), ColonHash("GLS"))
		require.NoError(t, err)
	})
}
