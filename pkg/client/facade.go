// Package client implements the thin client facade (C6): segment creation
// and a factory for output and input streams.
package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/naveenkothamasu/pravega/pkg/stream"
	"github.com/naveenkothamasu/pravega/pkg/transport"
	"github.com/naveenkothamasu/pravega/pkg/wire"
)

// Facade is the client-side entry point for a single server endpoint.
type Facade struct {
	adapter  transport.Adapter
	endpoint wire.Endpoint
}

// New returns a Facade dialing endpoint through adapter.
func New(adapter transport.Adapter, endpoint wire.Endpoint) *Facade {
	return &Facade{adapter: adapter, endpoint: endpoint}
}

// CreateSegment establishes a one-shot connection, sends CreateSegment, and
// awaits a single reply. It returns true if the segment was newly created
// by this call, false if it already existed; any other reply or transport
// failure is returned as an error.
func (f *Facade) CreateSegment(ctx context.Context, name wire.SegmentName) (bool, error) {
	var resultCh = make(chan createResult, 1)
	var sink = &createSink{resultCh: resultCh}

	var conn, err = f.adapter.Establish(ctx, f.endpoint, sink)
	if err != nil {
		return false, transport.NewError(f.endpoint, err)
	}
	defer conn.Drop()

	if err := conn.Send(wire.CreateSegment{Name: name}); err != nil {
		return false, transport.NewError(f.endpoint, err)
	}

	select {
	case res := <-resultCh:
		return res.created, res.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// OpenForAppend constructs an output stream for a fresh writer id against
// name and performs the initial connect attempt. Per spec §4.6, a failure
// of that initial attempt is suppressed and deferred to the stream's first
// Write or Flush.
func (f *Facade) OpenForAppend(ctx context.Context, name wire.SegmentName) *stream.OutputStream {
	var s = stream.New(ctx, f.adapter, f.endpoint, name)
	s.Activate()
	return s
}

// OpenForRead constructs the (out-of-core-scope) sequential input stream
// for name.
func (f *Facade) OpenForRead(ctx context.Context, name wire.SegmentName) *stream.InputStream {
	return stream.NewInputStream(ctx, name)
}

// OpenTransactionForAppend is unimplemented: transaction/batch append is a
// placeholder in the system this module is grounded on, and remains out of
// scope here (spec §1 Non-goals).
func (f *Facade) OpenTransactionForAppend(context.Context, wire.SegmentName, string) (*stream.OutputStream, error) {
	return nil, stream.ErrUnsupported
}

type createResult struct {
	created bool
	err     error
}

// createSink adapts the one-shot CreateSegment RPC to transport.ReplySink.
type createSink struct {
	resultCh chan createResult
}

func (c *createSink) OnReply(r wire.Reply) {
	switch r.(type) {
	case wire.SegmentCreated:
		c.resultCh <- createResult{created: true}
	case wire.SegmentAlreadyExists:
		c.resultCh <- createResult{created: false}
	default:
		c.resultCh <- createResult{err: errors.Errorf("unexpected reply to CreateSegment: %s", r)}
	}
}

func (c *createSink) OnBroken(err error) {
	select {
	case c.resultCh <- createResult{err: err}:
	default:
	}
}
