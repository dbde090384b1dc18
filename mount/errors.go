package mount

import "fmt"

// InvalidStateError rejects an operation that is not legal in the current
// session state, before any command reaches the instrument. Motion while
// parked is the canonical case.
type InvalidStateError struct {
	Op    string
	State SessionState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}
