package connstate

import "sync"

// Latch is a reusable manual-reset event: Wait blocks until Raise is
// called, and remains unblocked for all current and future Waits until the
// next Reset. It differs from a one-shot completion (pkg/ledger.Completion)
// precisely because it is reused across reconnects — every new connection
// attempt Resets it, and every attempt's completion (success or failure)
// Raises it so that waiters can observe the outcome rather than hang.
type Latch struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewLatch returns a Latch in the lowered (not-yet-ready) state.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Raise unblocks all current and future Waits, until the next Reset.
func (l *Latch) Raise() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
		// already raised
	default:
		close(l.ch)
	}
}

// Reset lowers the latch so that subsequent Waits block again.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
		l.ch = make(chan struct{})
	default:
		// already lowered
	}
}

// C returns the underlying channel, closed when the latch is raised. It is
// exposed so Wait can be combined with other select cases (eg, a context's
// Done channel).
func (l *Latch) C() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

// Wait blocks until the latch is raised.
func (l *Latch) Wait() { <-l.C() }
