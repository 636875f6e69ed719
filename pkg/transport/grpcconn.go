package transport

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/naveenkothamasu/pravega/pkg/wire"
)

// appendStreamDesc describes the single, hand-invoked bidirectional RPC this
// package drives against a segment store server. No .proto is compiled for
// this module; envelopes are gob-encoded, the same trick gazette's generated
// stubs hide behind protobuf codecs but applied manually here.
var appendStreamDesc = &grpc.StreamDesc{
	StreamName:    "Append",
	ServerStreams: true,
	ClientStreams: true,
}

const appendMethod = "/pravega.SegmentStore/Append"

func init() {
	gob.Register(wire.CreateSegment{})
	gob.Register(wire.SetupAppend{})
	gob.Register(wire.AppendData{})
	gob.Register(wire.KeepAlive{})
	gob.Register(wire.SegmentCreated{})
	gob.Register(wire.SegmentAlreadyExists{})
	gob.Register(wire.AppendSetup{})
	gob.Register(wire.DataAppended{})
	gob.Register(wire.SegmentIsSealed{})
	gob.Register(wire.NoSuchSegment{})
	gob.Register(wire.NoSuchBatch{})
	gob.Register(wire.WrongHost{})
}

// envelope carries a single Command or Reply value across the wire via gob's
// interface encoding, which requires a concrete, addressable container.
type envelope struct {
	Command wire.Command
	Reply   wire.Reply
}

// GRPCAdapter is the default Adapter implementation: one grpc.ClientConn per
// endpoint, reused across Establish calls against the same endpoint.
type GRPCAdapter struct {
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[wire.Endpoint]*grpc.ClientConn
}

// NewGRPCAdapter returns an Adapter that dials endpoints with |opts|.
// Callers typically pass grpc.WithTransportCredentials(...) and, in tests,
// grpc.WithInsecure()-equivalent local credentials.
func NewGRPCAdapter(opts ...grpc.DialOption) *GRPCAdapter {
	return &GRPCAdapter{dialOpts: opts, conns: make(map[wire.Endpoint]*grpc.ClientConn)}
}

func (a *GRPCAdapter) clientConn(endpoint wire.Endpoint) (*grpc.ClientConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cc, ok := a.conns[endpoint]; ok {
		return cc, nil
	}
	var cc, err = grpc.Dial(string(endpoint), a.dialOpts...)
	if err != nil {
		return nil, err
	}
	a.conns[endpoint] = cc
	return cc, nil
}

// Establish implements Adapter.
func (a *GRPCAdapter) Establish(ctx context.Context, endpoint wire.Endpoint, sink ReplySink) (Connection, error) {
	var cc, err = a.clientConn(endpoint)
	if err != nil {
		return nil, NewError(endpoint, err)
	}

	var streamCtx, cancel = context.WithCancel(ctx)
	stream, err := cc.NewStream(streamCtx, appendStreamDesc, appendMethod)
	if err != nil {
		cancel()
		return nil, NewError(endpoint, err)
	}

	var conn = &grpcConnection{
		endpoint: endpoint,
		stream:   stream,
		cancel:   cancel,
		sink:     sink,
	}
	go conn.recvLoop()
	return conn, nil
}

type grpcConnection struct {
	endpoint wire.Endpoint
	stream   grpc.ClientStream
	cancel   context.CancelFunc
	sink     ReplySink

	mu      sync.Mutex
	dropped bool
}

// Send implements Connection.
func (c *grpcConnection) Send(cmd wire.Command) error {
	c.mu.Lock()
	var dropped = c.dropped
	c.mu.Unlock()
	if dropped {
		return NewError(c.endpoint, io.ErrClosedPipe)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&envelope{Command: cmd}); err != nil {
		return NewError(c.endpoint, err)
	}
	if err := c.stream.SendMsg(buf.Bytes()); err != nil {
		return NewError(c.endpoint, mapGRPCErr(err))
	}
	return nil
}

// Drop implements Connection.
func (c *grpcConnection) Drop() {
	c.mu.Lock()
	if c.dropped {
		c.mu.Unlock()
		return
	}
	c.dropped = true
	c.mu.Unlock()

	c.cancel()
	_ = c.stream.CloseSend()
}

func (c *grpcConnection) recvLoop() {
	for {
		var buf []byte
		if err := c.stream.RecvMsg(&buf); err != nil {
			c.mu.Lock()
			var dropped = c.dropped
			c.mu.Unlock()
			if !dropped {
				log.WithFields(log.Fields{"endpoint": c.endpoint, "err": err}).
					Debug("append stream recv failed")
				c.sink.OnBroken(NewError(c.endpoint, mapGRPCErr(err)))
			}
			return
		}

		var env envelope
		if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&env); err != nil {
			c.sink.OnBroken(NewError(c.endpoint, errors.Wrap(err, "decoding reply envelope")))
			return
		}
		if env.Reply != nil {
			c.sink.OnReply(env.Reply)
		}
	}
}

// mapGRPCErr unwraps context errors surfaced as gRPC statuses back to their
// plain context.Canceled / context.DeadlineExceeded form, mirroring
// broker/client/reader.go's mapGRPCCtxErr.
func mapGRPCErr(err error) error {
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return err
	}
}
