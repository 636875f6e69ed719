package stream

import "github.com/pkg/errors"

// Error taxonomy for the segment output stream (spec §7). Sentinels are
// compared with errors.Is by callers.
var (
	// ErrSealed reports that the segment has been sealed server-side.
	// Terminal for the stream: every subsequent public operation fails
	// with ErrSealed and no further sends occur (spec invariant I6).
	ErrSealed = errors.New("segment is sealed")

	// ErrInvalidArgument reports that the server rejected the segment
	// name or a referenced batch id. Terminal for the stream.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransport is the cause recorded when a WrongHost reply ends the
	// current connection; broken or failed-to-establish connections are
	// recorded as *transport.Error instead. Either drives reconnect
	// internally and is not returned to Write callers; when retries are
	// exhausted they receive ErrUnavailable.
	ErrTransport = errors.New("transport error")

	// ErrUnavailable reports that bounded reconnect retries were
	// exhausted.
	ErrUnavailable = errors.New("reconnect retries exhausted")

	// ErrInterrupted reports that a blocked wait was interrupted (ctx
	// cancellation). Callers should treat this as "state unknown --
	// reconnect or close".
	ErrInterrupted = errors.New("interrupted")

	// ErrIllegalState reports an operation attempted on a closed stream.
	ErrIllegalState = errors.New("illegal state: stream is closed")

	// ErrUnsupported reports Seal or OpenTransactionForAppend, neither of
	// which this version implements. A WrongHost reply does not produce
	// it: the redirect is not followed and the connection is failed as a
	// transport error instead.
	ErrUnsupported = errors.New("unsupported operation")
)
