// Package ledger implements the in-flight ledger (C3): an ordered map from
// connection offset to a pending append completion, used by the segment
// output stream to track which appends the server has not yet acknowledged.
package ledger

import (
	"context"
	"sync"

	"github.com/naveenkothamasu/pravega/pkg/wire"
)

// Result is the outcome of one append: either durable (Err is nil) or
// failed with Err.
type Result struct {
	Err error
}

// Completion is a single-shot, settable-once promise associated with one
// append. It is safe to call Done, Wait, and Settle concurrently; only the
// first Settle has effect.
type Completion struct {
	done chan struct{}
	once sync.Once
	res  Result
}

// NewCompletion returns an unsettled Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Settle resolves the Completion. Only the first call has effect.
func (c *Completion) Settle(err error) {
	c.once.Do(func() {
		c.res = Result{Err: err}
		close(c.done)
	})
}

// Done returns a channel closed once the Completion is settled.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Wait blocks until the Completion is settled and returns its error.
func (c *Completion) Wait() error {
	<-c.done
	return c.res.Err
}

// entry is one ledger row: the payload, kept alive until acked so it can be
// retransmitted, and the completion to settle on ack or failure.
type entry struct {
	offset     wire.Offset
	payload    []byte
	completion *Completion
}

// Entry is a read-only snapshot of one ledger row, safe to inspect and
// retransmit after the ledger's lock has been released.
type Entry struct {
	Offset  wire.Offset
	Payload []byte
}

// Ledger is the ordered, thread-safe in-flight map described by spec §4.3.
// Keys (connection offsets) never decrease; they repeat only when a
// zero-length payload shares the offset of the entry before it (see
// Enqueue). ack_up_to drains only the head prefix at or
// below the given level, per the invariant that the server's acks are
// monotonically non-decreasing.
type Ledger struct {
	mu          sync.Mutex
	writeOffset wire.Offset
	entries     []entry // ascending by offset
	emptyCh     chan struct{}
}

// New returns an empty Ledger whose empty-signal starts raised (there is
// nothing outstanding).
func New() *Ledger {
	var l = &Ledger{emptyCh: make(chan struct{})}
	close(l.emptyCh)
	return l
}

// Enqueue advances the write offset by len(payload), inserts a new ledger
// row keyed by the resulting offset, and clears the empty-signal. It
// returns the assigned offset and a Completion the caller (or a later ack)
// settles.
//
// Per spec I1, write offset is the cumulative sum of enqueued payload
// lengths and only increases; a zero-length payload is legal and does not
// advance the offset, but still creates a ledger row that must be acked.
func (l *Ledger) Enqueue(payload []byte) (wire.Offset, *Completion) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writeOffset += wire.Offset(len(payload))
	var offset = l.writeOffset
	var c = NewCompletion()
	// Copy so the ledger owns the bytes it may later retransmit, even if the
	// caller reuses its buffer.
	payload = append([]byte(nil), payload...)
	l.entries = append(l.entries, entry{offset: offset, payload: payload, completion: c})

	if len(l.entries) == 1 {
		l.emptyCh = make(chan struct{}) // reset: no longer empty
	}
	return offset, c
}

// AckUpTo removes every entry with offset <= level and resolves its
// completion with ok (nil error). If the ledger becomes empty, the
// empty-signal is raised. AckUpTo never resurrects an acked offset: entries
// below |level| are gone for good, and a lower or repeated level is a no-op
// over whatever prefix remains.
func (l *Ledger) AckUpTo(level wire.Offset) {
	l.mu.Lock()
	var i int
	for i = 0; i < len(l.entries) && l.entries[i].offset <= level; i++ {
	}
	var acked = l.entries[:i]
	l.entries = l.entries[i:]
	var nowEmpty = len(l.entries) == 0
	if nowEmpty {
		select {
		case <-l.emptyCh:
			// already raised
		default:
			close(l.emptyCh)
		}
	}
	l.mu.Unlock()

	for _, e := range acked {
		e.completion.Settle(nil)
	}
}

// Snapshot returns a consistent, ascending copy of the current ledger for
// retransmit. Payloads remain owned by the Ledger (and thus valid) until
// their offset is acked or FailAll is called.
func (l *Ledger) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out = make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = Entry{Offset: e.offset, Payload: e.payload}
	}
	return out
}

// AwaitEmpty blocks until the empty-signal is raised (sticky until the next
// Enqueue resets it), or until ctx is done.
func (l *Ledger) AwaitEmpty(ctx context.Context) error {
	l.mu.Lock()
	var ch = l.emptyCh
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailAll completes every outstanding entry with |err| and empties the
// ledger. Used on terminal close-with-error (sealed segment, invalid
// argument, retries exhausted).
func (l *Ledger) FailAll(err error) {
	l.mu.Lock()
	var entries = l.entries
	l.entries = nil
	select {
	case <-l.emptyCh:
	default:
		close(l.emptyCh)
	}
	l.mu.Unlock()

	for _, e := range entries {
		e.completion.Settle(err)
	}
}

// Len reports the number of outstanding (un-acked) entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// WriteOffset reports the cumulative byte count of payloads enqueued so
// far (spec I1).
func (l *Ledger) WriteOffset() wire.Offset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeOffset
}
