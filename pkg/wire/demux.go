package wire

import "github.com/pkg/errors"

// ErrProtocolViolation is raised by the failing base handler when a reply
// variant arrives that the caller did not expect on this channel.
var ErrProtocolViolation = errors.New("protocol violation: unexpected reply")

// ReplyHandler is a polymorphic sink with one handler per reply variant. The
// source this module is grounded on models this as inheritance over a
// "failing" base class; Go has no such hierarchy, so ReplyHandler is instead
// a struct of function fields. FailingReplyHandler constructs one that fails
// every variant; callers overwrite only the fields they expect, which is the
// direct analogue of overriding only the handled methods in the source.
type ReplyHandler struct {
	WrongHost             func(WrongHost) error
	SegmentIsSealed       func(SegmentIsSealed) error
	NoSuchSegment         func(NoSuchSegment) error
	NoSuchBatch           func(NoSuchBatch) error
	SegmentAlreadyExists  func(SegmentAlreadyExists) error
	SegmentCreated        func(SegmentCreated) error
	AppendSetup           func(AppendSetup) error
	DataAppended          func(DataAppended) error
}

// FailingReplyHandler returns a ReplyHandler whose every field raises
// ErrProtocolViolation. Use it as a base and overwrite only the variants a
// particular channel expects.
func FailingReplyHandler() ReplyHandler {
	var fail = func(r Reply) error { return errors.Wrapf(ErrProtocolViolation, "got %s", r) }
	return ReplyHandler{
		WrongHost:            func(r WrongHost) error { return fail(r) },
		SegmentIsSealed:      func(r SegmentIsSealed) error { return fail(r) },
		NoSuchSegment:        func(r NoSuchSegment) error { return fail(r) },
		NoSuchBatch:          func(r NoSuchBatch) error { return fail(r) },
		SegmentAlreadyExists: func(r SegmentAlreadyExists) error { return fail(r) },
		SegmentCreated:       func(r SegmentCreated) error { return fail(r) },
		AppendSetup:          func(r AppendSetup) error { return fail(r) },
		DataAppended:         func(r DataAppended) error { return fail(r) },
	}
}

// Dispatch routes |reply| to the matching field of |h|, or returns
// ErrProtocolViolation if the concrete type is not one of the variants this
// module consumes (which should never happen given a conformant server).
func Dispatch(h ReplyHandler, reply Reply) error {
	switch r := reply.(type) {
	case WrongHost:
		return h.WrongHost(r)
	case SegmentIsSealed:
		return h.SegmentIsSealed(r)
	case NoSuchSegment:
		return h.NoSuchSegment(r)
	case NoSuchBatch:
		return h.NoSuchBatch(r)
	case SegmentAlreadyExists:
		return h.SegmentAlreadyExists(r)
	case SegmentCreated:
		return h.SegmentCreated(r)
	case AppendSetup:
		return h.AppendSetup(r)
	case DataAppended:
		return h.DataAppended(r)
	default:
		return errors.Wrapf(ErrProtocolViolation, "got %s", reply)
	}
}
