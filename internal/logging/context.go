package logging

import (
	"context"
	"time"
)

// DetachContextWithTimeout creates a context that won't be cancelled when
// parent is, with its own timeout so the detached work still has a deadline.
//
// State write-backs use this: the click-flag clear must still complete
// even when the poll tick that observed the click has hit its deadline.
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(parent)
	return context.WithTimeout(detached, timeout)
}
