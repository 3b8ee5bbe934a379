package sim

import (
	"errors"
	"fmt"
)

// ErrCanceled is returned when a tick is canceled before its commit began.
// No state has been mutated; the engine is back in the idle state.
var ErrCanceled = errors.New("tick canceled before commit")

// CommitError reports a tick-level failure during the commit phase. The
// engine has rolled back: the committed snapshots are the pre-tick ones.
type CommitError struct {
	Tick   int32
	Reason string
	Err    error
}

func (e *CommitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("commit failed at tick %d: %s: %v", e.Tick, e.Reason, e.Err)
	}
	return fmt.Sprintf("commit failed at tick %d: %s", e.Tick, e.Reason)
}

func (e *CommitError) Unwrap() error { return e.Err }
