// Package wire defines the data model and request/reply variants of the
// segment store's append protocol, and the reply demultiplexer that the
// segment output stream consumes. It does not implement a wire codec or a
// transport; those are external collaborators (see pkg/transport).
package wire

import (
	"fmt"

	"github.com/google/uuid"
)

// Endpoint stably identifies the server hosting a segment.
type Endpoint string

// SegmentName identifies a named, append-only, sealable byte log.
type SegmentName string

// WriterID is a universally-unique identifier minted by the client when an
// output stream is constructed. It is the server's dedup key.
type WriterID uuid.UUID

// NewWriterID mints a fresh, random WriterID.
func NewWriterID() WriterID { return WriterID(uuid.New()) }

// String renders the WriterID in canonical UUID form.
func (w WriterID) String() string { return uuid.UUID(w).String() }

// Offset is a connection offset: the cumulative byte count of a writer's
// payload stream, assigned at enqueue time and never decreasing (a
// zero-length payload does not advance it). It is
// the server's per-writer sequence key, not a segment offset.
type Offset int64

// Command is a request variant sent to the server. It is a marker interface;
// concrete types below are the complete request vocabulary this module
// consumes.
type Command interface {
	isCommand()
}

// CreateSegment requests creation of a new named segment.
type CreateSegment struct {
	Name SegmentName
}

// SetupAppend begins (or resumes) an append session for a writer against a
// segment. The server replies with AppendSetup once ready.
type SetupAppend struct {
	Writer  WriterID
	Segment SegmentName
}

// AppendData appends payload at the given connection offset on behalf of
// Writer. Retransmits reuse the same (Writer, Offset, Payload) tuple so that
// server-side dedup by (writer, offset) makes retransmission safe.
type AppendData struct {
	Writer  WriterID
	Offset  Offset
	Payload []byte
}

// KeepAlive asks the server to flush any pending acks without carrying new
// payload; it exists to force DataAppended replies so flush() can resolve
// promptly.
type KeepAlive struct {
	Writer WriterID
}

func (CreateSegment) isCommand() {}
func (SetupAppend) isCommand()   {}
func (AppendData) isCommand()    {}
func (KeepAlive) isCommand()     {}

// Reply is a response variant received from the server. It is a marker
// interface; concrete types below are the complete reply vocabulary this
// module consumes.
type Reply interface {
	isReply()
	fmt.Stringer
}

// SegmentCreated is returned by CreateSegment when the segment did not
// already exist and was created.
type SegmentCreated struct{ Name SegmentName }

// SegmentAlreadyExists is returned by CreateSegment when the segment was
// already present.
type SegmentAlreadyExists struct{ Name SegmentName }

// AppendSetup completes a SetupAppend handshake and reports the server's
// current ack level (the largest connection offset durably committed for
// this writer).
type AppendSetup struct {
	Writer   WriterID
	AckLevel Offset
}

// DataAppended reports a new ack level for Writer following one or more
// AppendData commands.
type DataAppended struct {
	Writer   WriterID
	AckLevel Offset
}

// SegmentIsSealed reports that the segment is read-only; terminal for any
// stream appending to it.
type SegmentIsSealed struct{ Name SegmentName }

// NoSuchSegment reports that the named segment does not exist.
type NoSuchSegment struct{ Name SegmentName }

// NoSuchBatch reports that a referenced transactional batch does not exist.
// Transaction append is unimplemented in this version (see pkg/client); this
// reply is part of the consumed wire set but is not expected in practice.
type NoSuchBatch struct{ BatchID string }

// WrongHost reports that the contacted server is not authoritative for the
// segment. This version does not parse or follow the redirect; it is treated
// as a fatal reconnect failure (see pkg/stream).
type WrongHost struct {
	Name        SegmentName
	CorrectHost Endpoint
}

func (r SegmentCreated) isReply()       {}
func (r SegmentAlreadyExists) isReply() {}
func (r AppendSetup) isReply()          {}
func (r DataAppended) isReply()         {}
func (r SegmentIsSealed) isReply()      {}
func (r NoSuchSegment) isReply()        {}
func (r NoSuchBatch) isReply()          {}
func (r WrongHost) isReply()            {}

func (r SegmentCreated) String() string { return fmt.Sprintf("SegmentCreated(%s)", r.Name) }
func (r SegmentAlreadyExists) String() string {
	return fmt.Sprintf("SegmentAlreadyExists(%s)", r.Name)
}
func (r AppendSetup) String() string {
	return fmt.Sprintf("AppendSetup(writer=%s, ack=%d)", r.Writer, r.AckLevel)
}
func (r DataAppended) String() string {
	return fmt.Sprintf("DataAppended(writer=%s, ack=%d)", r.Writer, r.AckLevel)
}
func (r SegmentIsSealed) String() string { return fmt.Sprintf("SegmentIsSealed(%s)", r.Name) }
func (r NoSuchSegment) String() string   { return fmt.Sprintf("NoSuchSegment(%s)", r.Name) }
func (r NoSuchBatch) String() string     { return fmt.Sprintf("NoSuchBatch(%s)", r.BatchID) }
func (r WrongHost) String() string {
	return fmt.Sprintf("WrongHost(%s -> %s)", r.Name, r.CorrectHost)
}
