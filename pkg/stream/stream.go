// Package stream implements the segment output stream (C5): the core
// append protocol, stitching the transport adapter, reply demultiplexer,
// in-flight ledger, and connection state into a long-lived, single-segment
// append channel with at-most-once delivery and durable ordering across
// reconnects.
package stream

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/naveenkothamasu/pravega/pkg/connstate"
	"github.com/naveenkothamasu/pravega/pkg/ledger"
	"github.com/naveenkothamasu/pravega/pkg/transport"
	"github.com/naveenkothamasu/pravega/pkg/wire"
)

// Retry schedule for ensureReady, per spec §4.5: up to 5 connect attempts,
// with the delay growing by 10x after each failure (1, 10, 100, 1000, 10000
// ms). Exposed as package vars, in the teacher's style of overridable
// tuning knobs (cf. appendBufferCutoff), so tests can shrink them.
var (
	initialRetryDelay  = time.Millisecond
	retryDelayFactor   = int64(10)
	maxConnectAttempts = 5
)

// OutputStream is a long-lived append channel to a single segment, owned by
// exactly one writer. See package doc and spec §4.5 for the full state
// machine (Fresh -> Connecting -> Handshaking -> Ready <-> Reconnecting ->
// Closed | Sealed).
type OutputStream struct {
	ctx      context.Context
	endpoint wire.Endpoint
	segment  wire.SegmentName
	writerID wire.WriterID
	adapter  transport.Adapter

	connState *connstate.State
	ledger    *ledger.Ledger

	// mu is the stream-wide monitor serializing all public operations
	// (Write, Flush, Close, Seal). It is held across retry sleeps and
	// transport sends, but never across a ledger or connection-state
	// call that itself blocks or calls out to the transport while
	// holding one of those narrower locks (spec §5 deadlock avoidance).
	mu     sync.Mutex
	closed bool
}

// New constructs an OutputStream for Segment on Endpoint, with a freshly
// minted WriterID. The stream is Fresh: no connection is attempted until
// Activate or the first Write.
func New(ctx context.Context, adapter transport.Adapter, endpoint wire.Endpoint, segment wire.SegmentName) *OutputStream {
	return &OutputStream{
		ctx:       ctx,
		endpoint:  endpoint,
		segment:   segment,
		writerID:  wire.NewWriterID(),
		adapter:   adapter,
		connState: connstate.New(),
		ledger:    ledger.New(),
	}
}

// WriterID returns the UUID identifying this stream's append session to the
// server.
func (s *OutputStream) WriterID() wire.WriterID { return s.writerID }

// Segment returns the segment name this stream appends to.
func (s *OutputStream) Segment() wire.SegmentName { return s.segment }

// Activate performs the initial connect attempt. Per spec §4.6, a failure
// here is suppressed: it is recorded on the connection state and deferred
// to the first Write or Flush, which will retry from there. Facades call
// this once, immediately after New.
func (s *OutputStream) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connect(); err != nil {
		s.failAndDrop(err)
	}
}

// Write enqueues payload for append and returns a Completion that resolves
// once the server has durably acknowledged it, or fails with ErrSealed. It
// enqueues into the ledger before sending, so that a send failure leaves
// the payload in the ledger for automatic retransmit on reconnect (spec
// §4.5). Write returns once the payload has been enqueued and sent at
// least once; it does not block for the append to become durable.
func (s *OutputStream) Write(payload []byte) (*ledger.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.preflight(); err != nil {
		return nil, err
	}

	conn, err := s.ensureReady()
	if err != nil {
		return nil, err
	}

	var offset, completion = s.ledger.Enqueue(payload)
	var cmd = wire.AppendData{Writer: s.writerID, Offset: offset, Payload: payload}

	if sendErr := conn.Send(cmd); sendErr != nil {
		log.WithFields(log.Fields{
			"segment": s.segment, "writer": s.writerID, "offset": offset, "err": sendErr,
		}).Warn("append send failed; reconnecting to retransmit")
		s.failAndDrop(transport.NewError(s.endpoint, sendErr))

		// Do not re-enqueue: the ledger already holds this payload, and
		// AppendSetup handling on the new connection will retransmit
		// the entire ledger, this entry included.
		if _, err := s.ensureReady(); err != nil {
			// Reconnect could not recover (sealed, invalid argument, or
			// retries exhausted): nothing will ever retransmit this
			// entry, so fail it (and every other outstanding entry)
			// now rather than leave its Completion unresolved forever.
			s.ledger.FailAll(err)
			return completion, err
		}
	}
	return completion, nil
}

// Flush sends a KeepAlive (to prompt the server to emit any pending acks)
// and blocks until every write enqueued strictly before this call has been
// durably acknowledged. A transport error while flushing is absorbed
// internally (retransmit will recover); Flush returns nil and the caller
// may flush again.
func (s *OutputStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.preflight(); err != nil {
		return err
	}
	return s.drainLocked()
}

// Close marks the stream closed (no further Writes are accepted), drains
// outstanding appends, and releases the connection. Close is idempotent:
// once closed, further calls return nil. A failure during drain propagates
// as ErrSealed (if the segment was sealed) or ErrIllegalState otherwise; in
// both cases the connection is still dropped.
func (s *OutputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// Only attempt to drain if there is anything outstanding to drain.
	// This matters when the stream is already terminal (eg, sealed): its
	// ledger has already been emptied by fail_all, and there is nothing
	// left to lose by skipping reconnect -- Close succeeds and simply
	// releases the connection, rather than surfacing the stale terminal
	// failure for a drain it didn't need to attempt.
	var drainErr error
	if s.ledger.Len() > 0 {
		drainErr = s.drainLocked()
	}

	if conn := s.connState.Current(); conn != nil {
		conn.Drop()
	}

	switch {
	case drainErr == nil:
		return nil
	case drainErr == ErrSealed:
		return ErrSealed
	default:
		return ErrIllegalState
	}
}

// Seal is not implemented in this version; spec's intended contract
// (flush, send SealSegment, await server length) is documented but
// unimplemented (spec §9 Open Questions).
func (s *OutputStream) Seal(context.Context) error { return ErrUnsupported }

// drainLocked sends KeepAlive and awaits ledger emptiness. Callers must
// hold s.mu. It does not check s.closed, so Close can reuse it after
// setting that flag.
func (s *OutputStream) drainLocked() error {
	if err := s.connState.Terminal(); err != nil {
		return err
	}

	conn, err := s.ensureReady()
	if err != nil {
		return err
	}
	if sendErr := conn.Send(wire.KeepAlive{Writer: s.writerID}); sendErr != nil {
		s.failAndDrop(transport.NewError(s.endpoint, sendErr))
		return nil
	}
	if err := s.ledger.AwaitEmpty(s.ctx); err != nil {
		return ErrInterrupted
	}
	return nil
}

// preflight rejects an operation up front if the stream is closed or has
// observed a sticky terminal failure (sealed, invalid argument).
func (s *OutputStream) preflight() error {
	if s.closed {
		return ErrIllegalState
	}
	if err := s.connState.Terminal(); err != nil {
		return err
	}
	return nil
}

// failAndDrop records err on the connection state and drops whatever
// connection Fail captured as the prior current one, outside of any lock
// connState holds. Every call site that observes a failure and does not
// already have a local handle on the connection to drop goes through this,
// per spec §4.4's fail() contract and §5's drop-outside-any-lock discipline.
func (s *OutputStream) failAndDrop(err error) {
	if dropped := s.connState.Fail(err); dropped != nil {
		dropped.Drop()
	}
}

// connect implements spec §4.5's connect(): if a connection is already
// installed (handshaking or ready), it is a no-op; otherwise a new
// connection is established and SetupAppend is sent. The ready-latch stays
// lowered until AppendSetup arrives on onReply. Callers must hold s.mu.
func (s *OutputStream) connect() error {
	if s.closed {
		return ErrIllegalState
	}
	if s.connState.Installed() {
		return nil
	}

	var sink = newConnSink(s)
	conn, err := s.adapter.Establish(s.ctx, s.endpoint, sink)
	if err != nil {
		return transport.NewError(s.endpoint, err)
	}
	sink.attach(conn)
	s.connState.InstallNew(conn)

	if err := conn.Send(wire.SetupAppend{Writer: s.writerID, Segment: s.segment}); err != nil {
		var wrapped = transport.NewError(s.endpoint, err)
		s.connState.Fail(wrapped)
		conn.Drop()
		return wrapped
	}
	return nil
}

// ensureReady implements spec §4.5's ensure-ready-with-bounded-retry.
// Callers must hold s.mu.
func (s *OutputStream) ensureReady() (transport.Connection, error) {
	if err := s.connState.Terminal(); err != nil {
		return nil, err
	}

	var delay = initialRetryDelay
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if err := s.connect(); err != nil {
			s.failAndDrop(err)
		}

		conn, err := s.connState.AwaitReady()
		if err == nil {
			return conn, nil
		}
		if terminal := s.connState.Terminal(); terminal != nil {
			return nil, terminal
		}

		log.WithFields(log.Fields{
			"segment": s.segment, "attempt": attempt + 1, "err": err, "delayMs": delay.Milliseconds(),
		}).Debug("connect attempt failed; retrying")

		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return nil, ErrInterrupted
		}
		delay = time.Duration(int64(delay) * retryDelayFactor)
	}
	return nil, ErrUnavailable
}

// onReply dispatches a reply received on conn, per spec §4.5's reply
// handling table. It runs on the transport's own goroutine, concurrently
// with any public caller; it touches only the ledger and connection state,
// never s.mu (see package doc and spec §5).
func (s *OutputStream) onReply(conn transport.Connection, reply wire.Reply) {
	if !s.connState.IsCurrent(conn) {
		return // stale reply from a superseded connection.
	}

	var h = wire.FailingReplyHandler()

	h.AppendSetup = func(r wire.AppendSetup) error {
		s.ledger.AckUpTo(r.AckLevel)
		for _, e := range s.ledger.Snapshot() {
			var cmd = wire.AppendData{Writer: s.writerID, Offset: e.Offset, Payload: e.Payload}
			if err := conn.Send(cmd); err != nil {
				s.failAndDrop(transport.NewError(s.endpoint, err))
				return nil
			}
		}
		s.connState.MarkReady()
		return nil
	}
	h.DataAppended = func(r wire.DataAppended) error {
		s.ledger.AckUpTo(r.AckLevel)
		return nil
	}
	h.SegmentIsSealed = func(wire.SegmentIsSealed) error {
		log.WithFields(log.Fields{"segment": s.segment, "writer": s.writerID}).Info("segment sealed")
		s.connState.MarkTerminal(ErrSealed)
		s.failAndDrop(ErrSealed)
		s.ledger.FailAll(ErrSealed)
		return nil
	}
	h.NoSuchSegment = func(wire.NoSuchSegment) error {
		s.connState.MarkTerminal(ErrInvalidArgument)
		s.failAndDrop(ErrInvalidArgument)
		s.ledger.FailAll(ErrInvalidArgument)
		return nil
	}
	h.NoSuchBatch = func(wire.NoSuchBatch) error {
		s.connState.MarkTerminal(ErrInvalidArgument)
		s.failAndDrop(ErrInvalidArgument)
		s.ledger.FailAll(ErrInvalidArgument)
		return nil
	}
	h.WrongHost = func(r wire.WrongHost) error {
		// This version does not parse or follow the redirect target; a
		// WrongHost reply is treated as a fatal reconnect failure for
		// the current connection (spec §1 Non-goals, §4.5).
		s.failAndDrop(transport.NewError(s.endpoint, ErrTransport))
		return nil
	}

	if err := wire.Dispatch(h, reply); err != nil {
		log.WithFields(log.Fields{"segment": s.segment, "reply": reply}).Error("protocol violation")
		s.failAndDrop(err)
	}
}

// onBroken handles a transport-level breakage signal for conn.
func (s *OutputStream) onBroken(conn transport.Connection, err error) {
	if !s.connState.IsCurrent(conn) {
		return
	}
	log.WithFields(log.Fields{"segment": s.segment, "writer": s.writerID, "err": err}).
		Warn("append connection broken")
	s.failAndDrop(err)
}

// connSink adapts OutputStream to transport.ReplySink. It blocks delivery
// of the first reply/breakage until attach has recorded which Connection
// this sink belongs to, which closes the race between a transport starting
// its delivery goroutine and the caller learning the Connection it just
// established.
type connSink struct {
	s     *OutputStream
	conn  transport.Connection
	ready chan struct{}
}

func newConnSink(s *OutputStream) *connSink {
	return &connSink{s: s, ready: make(chan struct{})}
}

func (cs *connSink) attach(conn transport.Connection) {
	cs.conn = conn
	close(cs.ready)
}

func (cs *connSink) OnReply(r wire.Reply) {
	<-cs.ready
	cs.s.onReply(cs.conn, r)
}

func (cs *connSink) OnBroken(err error) {
	<-cs.ready
	cs.s.onBroken(cs.conn, err)
}
