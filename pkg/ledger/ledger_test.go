package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenkothamasu/pravega/pkg/wire"
)

func TestEnqueueAdvancesOffsetByPayloadLength(t *testing.T) {
	var l = New()

	var off1, _ = l.Enqueue([]byte("abc"))
	var off2, _ = l.Enqueue([]byte("hello"))
	var off3, _ = l.Enqueue([]byte("!!"))

	assert.Equal(t, wire.Offset(3), off1)
	assert.Equal(t, wire.Offset(8), off2)
	assert.Equal(t, wire.Offset(10), off3)
	assert.Equal(t, wire.Offset(10), l.WriteOffset())
}

// TestZeroLengthPayloadDoesNotAdvanceOffset covers the boundary case in
// spec §8: a zero-length payload still creates a ledger row (and must
// still be acked) but does not advance the write offset.
func TestZeroLengthPayloadDoesNotAdvanceOffset(t *testing.T) {
	var l = New()

	var off1, _ = l.Enqueue([]byte("abc"))
	var off2, c2 = l.Enqueue(nil)
	var off3, _ = l.Enqueue([]byte("d"))

	assert.Equal(t, wire.Offset(3), off1)
	assert.Equal(t, off1, off2, "zero-length payload does not advance the offset")
	assert.Equal(t, wire.Offset(4), off3)
	assert.Equal(t, 3, l.Len())

	l.AckUpTo(off2)
	select {
	case <-c2.Done():
		assert.NoError(t, c2.Wait())
	default:
		t.Fatal("zero-length entry should be acked as a no-op alongside its offset")
	}
}

func TestAckUpToDrainsHeadPrefixOnly(t *testing.T) {
	var l = New()
	var off1, c1 = l.Enqueue([]byte("123"))  // offset 3
	var off2, c2 = l.Enqueue([]byte("12345")) // offset 8
	var _, c3 = l.Enqueue([]byte("67"))       // offset 10

	l.AckUpTo(off1)
	assertResolvedOK(t, c1)
	assertPending(t, c2)
	assertPending(t, c3)
	assert.Equal(t, 2, l.Len())

	l.AckUpTo(off2)
	assertResolvedOK(t, c2)
	assertPending(t, c3)
	assert.Equal(t, 1, l.Len())
}

// TestAckNeverResurrectsAckedOffset covers property P6.
func TestAckNeverResurrectsAckedOffset(t *testing.T) {
	var l = New()
	var off1, c1 = l.Enqueue([]byte("abc"))
	l.AckUpTo(off1)
	assertResolvedOK(t, c1)

	// A repeated or lower ack level is a no-op over whatever remains.
	l.AckUpTo(off1)
	l.AckUpTo(off1 - 1)
	assert.Equal(t, 0, l.Len())
}

func TestSnapshotIsAscendingAndConsistent(t *testing.T) {
	var l = New()
	l.Enqueue([]byte("a"))
	l.Enqueue([]byte("bb"))
	l.Enqueue([]byte("ccc"))

	var snap = l.Snapshot()
	require.Len(t, snap, 3)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, int64(snap[i-1].Offset), int64(snap[i].Offset))
	}
	assert.Equal(t, []byte("a"), snap[0].Payload)
	assert.Equal(t, []byte("ccc"), snap[2].Payload)
}

func TestAwaitEmptyIsStickyUntilNextEnqueue(t *testing.T) {
	var l = New()
	require.NoError(t, l.AwaitEmpty(context.Background()), "a fresh ledger is empty")

	var off, _ = l.Enqueue([]byte("x"))

	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.AwaitEmpty(ctx), "must not resolve while an entry is outstanding")

	l.AckUpTo(off)
	require.NoError(t, l.AwaitEmpty(context.Background()))
}

func TestFailAllResolvesEveryOutstandingEntryAndEmpties(t *testing.T) {
	var l = New()
	var _, c1 = l.Enqueue([]byte("a"))
	var _, c2 = l.Enqueue([]byte("b"))

	var boom = assertErr("boom")
	l.FailAll(boom)

	assert.Equal(t, boom, c1.Wait())
	assert.Equal(t, boom, c2.Wait())
	assert.Equal(t, 0, l.Len())
	require.NoError(t, l.AwaitEmpty(context.Background()))
}

func assertResolvedOK(t *testing.T, c *Completion) {
	t.Helper()
	select {
	case <-c.Done():
		assert.NoError(t, c.Wait())
	case <-time.After(time.Second):
		t.Fatal("completion did not resolve")
	}
}

func assertPending(t *testing.T, c *Completion) {
	t.Helper()
	select {
	case <-c.Done():
		t.Fatal("completion resolved prematurely")
	default:
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(s string) error { return simpleErr(s) }
