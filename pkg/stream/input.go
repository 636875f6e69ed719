package stream

import (
	"context"
	"io"

	"github.com/naveenkothamasu/pravega/pkg/wire"
)

// InputStream reads a segment sequentially from a starting offset. Per
// spec §1, the read path is architecturally simpler than OutputStream and
// is out of core scope for this module; this is a minimal placeholder with
// the shape Facade.OpenForRead's callers expect, in the spirit of
// broker/client/reader.go's Reader (request/response/offset bookkeeping)
// without its fragment-direct-read and offset-jump handling.
type InputStream struct {
	ctx     context.Context
	segment wire.SegmentName
	offset  wire.Offset
}

// NewInputStream returns an InputStream over segment, starting at offset 0.
func NewInputStream(ctx context.Context, segment wire.SegmentName) *InputStream {
	return &InputStream{ctx: ctx, segment: segment}
}

// Segment returns the segment name this stream reads from.
func (r *InputStream) Segment() wire.SegmentName { return r.segment }

// Offset returns the next segment offset this stream will read from.
func (r *InputStream) Offset() wire.Offset { return r.offset }

// Read is unimplemented in this version: the read RPC, its framing, and
// direct fragment reads are out of scope (spec §1).
func (r *InputStream) Read([]byte) (int, error) { return 0, io.EOF }
