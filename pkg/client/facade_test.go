package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenkothamasu/pravega/pkg/transport/transporttest"
	"github.com/naveenkothamasu/pravega/pkg/wire"
)

func TestCreateSegmentReturnsTrueWhenNewlyCreated(t *testing.T) {
	var broker = transporttest.NewBroker()
	var f = New(broker, "host:1")

	var resultCh = make(chan struct {
		created bool
		err     error
	}, 1)
	go func() {
		created, err := f.CreateSegment(context.Background(), "seg-a")
		resultCh <- struct {
			created bool
			err     error
		}{created, err}
	}()

	var conn = waitForConn(t, broker)
	assert.Equal(t, wire.CreateSegment{Name: "seg-a"}, mustSent(t, conn))
	conn.Reply(wire.SegmentCreated{Name: "seg-a"})

	select {
	case res := <-resultCh:
		require.NoError(t, res.err)
		assert.True(t, res.created)
	case <-time.After(time.Second):
		t.Fatal("CreateSegment did not return")
	}
}

func TestCreateSegmentReturnsFalseWhenAlreadyExists(t *testing.T) {
	var broker = transporttest.NewBroker()
	var f = New(broker, "host:1")

	var resultCh = make(chan error, 1)
	var createdCh = make(chan bool, 1)
	go func() {
		created, err := f.CreateSegment(context.Background(), "seg-a")
		createdCh <- created
		resultCh <- err
	}()

	var conn = waitForConn(t, broker)
	mustSent(t, conn)
	conn.Reply(wire.SegmentAlreadyExists{Name: "seg-a"})

	require.NoError(t, <-resultCh)
	assert.False(t, <-createdCh)
}

func TestCreateSegmentSurfacesUnexpectedReplyAsError(t *testing.T) {
	var broker = transporttest.NewBroker()
	var f = New(broker, "host:1")

	var errCh = make(chan error, 1)
	go func() {
		_, err := f.CreateSegment(context.Background(), "seg-a")
		errCh <- err
	}()

	var conn = waitForConn(t, broker)
	mustSent(t, conn)
	conn.Reply(wire.NoSuchSegment{Name: "seg-a"})

	require.Error(t, <-errCh)
}

func TestOpenForAppendActivatesAndIsUsableAfterHandshake(t *testing.T) {
	var broker = transporttest.NewBroker()
	var f = New(broker, "host:1")

	var out = f.OpenForAppend(context.Background(), "seg-b")
	var conn = waitForConn(t, broker)
	assert.Equal(t, wire.SetupAppend{Writer: out.WriterID(), Segment: "seg-b"}, mustSent(t, conn))
	conn.Reply(wire.AppendSetup{Writer: out.WriterID(), AckLevel: 0})

	_, err := out.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, wire.AppendData{Writer: out.WriterID(), Offset: 5, Payload: []byte("hello")}, mustSent(t, conn))
}

func waitForConn(t *testing.T, broker *transporttest.Broker) *transporttest.Connection {
	t.Helper()
	select {
	case conn := <-broker.ConnCh:
		return conn
	case <-time.After(time.Second):
		t.Fatal("no connection established")
		return nil
	}
}

func mustSent(t *testing.T, conn *transporttest.Connection) wire.Command {
	t.Helper()
	select {
	case cmd := <-conn.Sent():
		return cmd
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a sent command")
		return nil
	}
}
