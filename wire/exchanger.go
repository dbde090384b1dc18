package wire

import (
	"context"
	"errors"
	"time"

	"github.com/openastro/ada/transport"
	"github.com/shimmeringbee/logwrap"
)

const DefaultResponseLimit = 64

// Exchanger performs one command/response round trip at a time over an
// exclusively owned transport. After a MismatchError the input buffer is
// flushed so the next command starts from a clean link.
type Exchanger struct {
	Transport transport.Transport
	Term      byte
	MaxLen    int
	Timeout   time.Duration
	Logger    *logwrap.Logger

	pendingFlush bool
}

// Exchange writes cmd and reads the terminated response. A nil response
// expectation is expressed by calling Send instead.
func (e *Exchanger) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}

	e.log(ctx, "CMD", cmd)

	if _, err := e.Transport.Write(cmd); err != nil {
		return nil, err
	}

	maxLen := e.MaxLen
	if maxLen == 0 {
		maxLen = DefaultResponseLimit
	}

	res, err := e.Transport.ReadUntil(e.Term, maxLen, e.Timeout)
	if err != nil {
		return nil, err
	}

	e.log(ctx, "RES", res)

	return res, nil
}

// ExchangeN writes cmd and reads a fixed width response that carries no
// terminator, such as the single byte acknowledgements of iOptron mounts.
func (e *Exchanger) ExchangeN(ctx context.Context, cmd []byte, n int) ([]byte, error) {
	if err := e.prepare(ctx); err != nil {
		return nil, err
	}

	e.log(ctx, "CMD", cmd)

	if _, err := e.Transport.Write(cmd); err != nil {
		return nil, err
	}

	res, err := e.Transport.ReadUntil(e.Term, n, e.Timeout)
	if err != nil {
		return nil, err
	}

	e.log(ctx, "RES", res)

	return res, nil
}

// Send writes a command that produces no response.
func (e *Exchanger) Send(ctx context.Context, cmd []byte) error {
	if err := e.prepare(ctx); err != nil {
		return err
	}

	e.log(ctx, "CMD", cmd)

	_, err := e.Transport.Write(cmd)
	return err
}

// NoteMismatch marks the link desynchronised. The flush is deferred to the
// start of the next exchange.
func (e *Exchanger) NoteMismatch(err error) error {
	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		e.pendingFlush = true
	}

	return err
}

func (e *Exchanger) prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.pendingFlush {
		e.pendingFlush = false
		if err := e.Transport.Flush(); err != nil {
			return err
		}

		if e.Logger != nil {
			e.Logger.LogDebug(ctx, "Flushed transport after protocol mismatch.")
		}
	}

	return nil
}

func (e *Exchanger) log(ctx context.Context, dir string, b []byte) {
	if e.Logger != nil {
		e.Logger.LogTrace(ctx, "Wire exchange.", logwrap.Datum(dir, string(b)))
	}
}
