package ada

import (
	"errors"
	"fmt"
)

// ErrPropertyBusy is returned when a reconciliation is requested against a
// property that already has one in flight.
var ErrPropertyBusy = errors.New("property reconciliation already in flight")

// ErrUnknownProperty is returned when no attached module claims the
// property named by the request.
var ErrUnknownProperty = errors.New("property not handled by any module")

// ErrCapabilityUnsupported is returned when a requested operation is not
// available on the connected device or firmware. The request is rejected
// before any command reaches the hardware.
var ErrCapabilityUnsupported = errors.New("capability not supported by this device")

// HandshakeError aborts connection setup. The device never reports ready.
type HandshakeError struct {
	Module string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed in %s: %s", e.Module, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}
