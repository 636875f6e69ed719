// Package transport defines the contract the segment output stream requires
// of a connection to a single server endpoint (C1 of the design). Concrete
// transport implementations — byte framing, TLS, TCP — are external
// collaborators; this package defines the adapter boundary plus one default
// implementation (gRPC-backed) that exercises it.
package transport

import (
	"context"

	"github.com/pkg/errors"
	"github.com/naveenkothamasu/pravega/pkg/wire"
)

// Error is returned by Adapter.Establish and Connection.Send when the
// connection is broken or could not be opened. Stream-level code treats any
// Error as recoverable by reconnect.
type Error struct {
	Endpoint wire.Endpoint
	cause    error
}

func (e *Error) Error() string {
	return errors.Wrapf(e.cause, "transport error (endpoint %s)", e.Endpoint).Error()
}

func (e *Error) Unwrap() error { return e.cause }

// NewError wraps |cause| as a transport Error against |endpoint|.
func NewError(endpoint wire.Endpoint, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Endpoint: endpoint, cause: cause}
}

// ReplySink receives decoded replies from a Connection, on a goroutine owned
// by the transport. Reply delivery order on a single Connection matches
// server send order; delivery stops once the Connection is dropped.
type ReplySink interface {
	OnReply(wire.Reply)
	// OnBroken is invoked at most once, when the transport determines the
	// connection can no longer deliver replies (read error, peer close).
	OnBroken(error)
}

// Connection is a single logical connection to one server endpoint.
type Connection interface {
	// Send non-blockingly enqueues a single command for transmission.
	// Backpressure, if any, is handled internally by the implementation;
	// Send itself must not block for an unbounded time.
	Send(wire.Command) error
	// Drop idempotently releases the connection. Further Sends fail with
	// an Error; no further replies are delivered to the sink.
	Drop()
}

// Adapter opens logical connections to server endpoints.
type Adapter interface {
	Establish(ctx context.Context, endpoint wire.Endpoint, sink ReplySink) (Connection, error)
}
