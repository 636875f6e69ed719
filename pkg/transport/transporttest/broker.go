// Package transporttest provides an in-memory fake of a segment store
// server, used by this module's own tests in place of a live gRPC server.
// It is grounded on go.gazette.dev/core/broker/teststub's channel-based
// broker double: tests push fixtures onto response channels and assert on
// requests read from request channels.
package transporttest

import (
	"context"
	"sync"

	"github.com/naveenkothamasu/pravega/pkg/transport"
	"github.com/naveenkothamasu/pravega/pkg/wire"
)

// Broker is a fake segment store. Each Establish call opens one
// *Connection; tests drive replies and observe sent commands through its
// channels.
type Broker struct {
	mu            sync.Mutex
	conns         []*Connection
	failEstablish bool

	// EstablishErr, if set, is returned by the next Establish call instead
	// of opening a connection (simulates a transport-level connect
	// failure). It is consumed (reset to nil) after use.
	EstablishErr error

	// ConnCh receives every Connection as soon as Establish opens it, so a
	// test driving a background reconnect can synchronize on the new
	// connection appearing without polling Connections().
	ConnCh chan *Connection
}

// NewBroker returns a ready Broker.
func NewBroker() *Broker {
	return &Broker{ConnCh: make(chan *Connection, 16)}
}

// SetFailEstablish causes every subsequent Establish call to fail with err
// until cleared with SetFailEstablish(nil). Unlike EstablishErr, this is
// sticky -- it models a server that is down for an extended run of retries.
func (b *Broker) SetFailEstablish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failEstablish = err != nil
	b.EstablishErr = err
}

// Establish implements transport.Adapter.
func (b *Broker) Establish(_ context.Context, endpoint wire.Endpoint, sink transport.ReplySink) (transport.Connection, error) {
	b.mu.Lock()
	var sticky = b.failEstablish
	var err = b.EstablishErr
	if !sticky {
		b.EstablishErr = nil
	}
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var conn = &Connection{
		endpoint: endpoint,
		sink:     sink,
		sentCh:   make(chan wire.Command, 64),
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()

	select {
	case b.ConnCh <- conn:
	default:
	}
	return conn, nil
}

// Connections returns every Connection opened by Establish so far, in order.
func (b *Broker) Connections() []*Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out = make([]*Connection, len(b.conns))
	copy(out, b.conns)
	return out
}

// LastConnection returns the most recently opened, non-dropped connection,
// or nil.
func (b *Broker) LastConnection() *Connection {
	var conns = b.Connections()
	for i := len(conns) - 1; i >= 0; i-- {
		if !conns[i].Dropped() {
			return conns[i]
		}
	}
	return nil
}

// Connection is a fake single logical connection opened against a Broker.
type Connection struct {
	endpoint wire.Endpoint
	sink     transport.ReplySink
	sentCh   chan wire.Command

	mu      sync.Mutex
	dropped bool
	sendErr error
}

// Sent returns the channel of commands sent on this connection via Send.
func (c *Connection) Sent() <-chan wire.Command { return c.sentCh }

// SetSendErr causes the next Send call to fail with |err| instead of
// enqueueing the command. It is consumed (reset to nil) after use.
func (c *Connection) SetSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Send implements transport.Connection.
func (c *Connection) Send(cmd wire.Command) error {
	c.mu.Lock()
	var dropped, err = c.dropped, c.sendErr
	c.sendErr = nil
	c.mu.Unlock()

	if dropped {
		return transport.NewError(c.endpoint, errConnectionDropped)
	}
	if err != nil {
		return transport.NewError(c.endpoint, err)
	}
	c.sentCh <- cmd
	return nil
}

// Drop implements transport.Connection.
func (c *Connection) Drop() {
	c.mu.Lock()
	if c.dropped {
		c.mu.Unlock()
		return
	}
	c.dropped = true
	c.mu.Unlock()
}

// Dropped reports whether Drop has been called.
func (c *Connection) Dropped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Reply delivers |r| to the sink registered by Establish, as if the server
// had sent it. It is the test's means of driving AppendSetup, DataAppended,
// SegmentIsSealed, and failure replies.
func (c *Connection) Reply(r wire.Reply) { c.sink.OnReply(r) }

// Break delivers a transport-level failure to the sink, as if the
// connection had dropped out from under the client.
func (c *Connection) Break(err error) {
	c.sink.OnBroken(transport.NewError(c.endpoint, err))
}

var errConnectionDropped = connDroppedErr{}

type connDroppedErr struct{}

func (connDroppedErr) Error() string { return "connection dropped" }
