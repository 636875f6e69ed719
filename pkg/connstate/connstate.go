// Package connstate implements the connection state component (C4): the
// current connection handle, its readiness latch, and the last observed
// failure. It serializes connect/reconnect transitions and exposes
// await-ready with failure propagation to any number of concurrent callers.
package connstate

import (
	"sync"

	"github.com/naveenkothamasu/pravega/pkg/transport"
)

// State holds the current connection handle for one segment output stream.
// Replacing the handle always goes through Fail (capture old, clear
// current) followed by InstallNew; the captured handle is dropped outside
// any lock, per the deadlock-avoidance discipline in spec §5.
type State struct {
	mu       sync.Mutex
	conn     transport.Connection
	err      error
	terminal error
	latch    *Latch
}

// New returns a State with no installed connection and a lowered latch.
func New() *State {
	return &State{latch: NewLatch()}
}

// InstallNew resets the ready-latch, clears the last error, and stores
// |conn| as the current connection. Call this immediately after a
// successful transport.Adapter.Establish, before the handshake reply that
// will eventually call MarkReady or Fail.
func (s *State) InstallNew(conn transport.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.err = nil
	s.latch.Reset()
}

// MarkReady raises the ready-latch, unblocking AwaitReady with the
// currently installed connection.
func (s *State) MarkReady() {
	s.latch.Raise()
}

// Fail records |err| as the last failure (if none is already recorded),
// captures and clears the current connection, and raises the ready-latch so
// that waiters observe the failure rather than hang. The captured
// connection, if any, is returned so the caller can Drop it outside of any
// lock this State holds.
func (s *State) Fail(err error) (dropped transport.Connection) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	dropped, s.conn = s.conn, nil
	s.mu.Unlock()

	s.latch.Raise()
	return dropped
}

// AwaitReady blocks on the ready-latch and then returns either the
// currently installed connection, or the last recorded failure if the
// connection was cleared by Fail.
func (s *State) AwaitReady() (transport.Connection, error) {
	s.latch.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	return nil, s.err
}

// Ready reports, without blocking, whether a connection is currently
// installed and the latch raised.
func (s *State) Ready() bool {
	select {
	case <-s.latch.C():
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.conn != nil
	default:
		return false
	}
}

// LastError returns the most recently recorded failure, if any.
func (s *State) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Installed reports whether a connection handle is currently held,
// regardless of whether the ready-latch has been raised yet (ie, true
// during Handshaking as well as Ready).
func (s *State) Installed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Current returns the currently installed connection, or nil.
func (s *State) Current() transport.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// IsCurrent reports whether |conn| is the connection presently installed.
// Reply callbacks use this to discard stale replies and breakage signals
// from a connection that has since been superseded.
func (s *State) IsCurrent(conn transport.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn
}

// MarkTerminal records a sticky, non-retryable failure (Sealed or
// InvalidArgument) that persists across reconnect attempts, unlike the
// per-attempt failure recorded by Fail. Once set it is never cleared: the
// stream that owns this State is expected to stop attempting to reconnect.
func (s *State) MarkTerminal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal == nil {
		s.terminal = err
	}
}

// Terminal returns the sticky terminal failure, if any, recorded by
// MarkTerminal.
func (s *State) Terminal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}
