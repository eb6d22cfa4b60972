package stream

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/rerrors"
)

// RequesterResponse is the requester-side automaton for REQUEST_RESPONSE
// (spec.md §4.2): it carries exactly one terminal event, either a single
// PAYLOAD(NEXT|COMPLETE) or an ERROR, and has no flow-control state of its
// own since a response is a single value.
type RequesterResponse struct {
	id  frame.StreamID
	out Outbound
	sub Subscriber

	closed bool
}

// NewRequesterResponse writes the REQUEST_RESPONSE frame and returns the
// automaton to register under id. sub receives OnSubscribe immediately;
// its Subscription.Request is a no-op (a response has nothing to request)
// and Cancel sends CANCEL.
func NewRequesterResponse(id frame.StreamID, out Outbound, request frame.Payload, sub Subscriber) *RequesterResponse {
	r := &RequesterResponse{id: id, out: out, sub: sub}
	out.SendFrame(&frame.Frame{
		Kind:     frame.KindRequestResponse,
		StreamID: id,
		Payload:  request,
	})
	sub.OnSubscribe(requesterResponseSubscription{r})
	return r
}

type requesterResponseSubscription struct{ r *RequesterResponse }

func (s requesterResponseSubscription) Request(int64) {}
func (s requesterResponseSubscription) Cancel() {
	r := s.r
	if r.closed {
		return
	}
	r.closed = true
	r.out.SendFrame(&frame.Frame{Kind: frame.KindCancel, StreamID: r.id})
	r.out.Terminate(r.id, SignalCancel, "")
}

func (r *RequesterResponse) StreamID() frame.StreamID { return r.id }

func (r *RequesterResponse) HandleRequestN(uint32) error {
	return rerrors.New(rerrors.KindInvalidFrame, "REQUEST_N is not valid on a REQUEST_RESPONSE stream")
}

func (r *RequesterResponse) HandleCancel() {
	// A requester never receives CANCEL for its own request; ignore.
}

func (r *RequesterResponse) HandlePayload(p frame.Payload, next, complete bool) error {
	if r.closed {
		return nil
	}
	if next {
		r.sub.OnNext(p)
	}
	if complete {
		r.closed = true
		r.sub.OnComplete()
		r.out.Terminate(r.id, SignalComplete, "")
	}
	return nil
}

func (r *RequesterResponse) HandleError(message string) {
	if r.closed {
		return
	}
	r.closed = true
	r.sub.OnError(rerrors.New(rerrors.KindStreamApplicationError, message))
	r.out.Terminate(r.id, SignalApplicationError, message)
}

func (r *RequesterResponse) EndStream(signal Signal) {
	if r.closed {
		return
	}
	r.closed = true
	if err := terminalError(signal); err != nil {
		r.sub.OnError(err)
	} else {
		r.sub.OnComplete()
	}
}

// terminalError converts a connection-driven termination signal into the
// error delivered to a local Subscriber that never saw a stream-level
// ERROR or COMPLETE frame (spec.md §4.2's end-stream protocol). A nil
// return means the termination was a normal completion.
func terminalError(signal Signal) error {
	switch signal {
	case SignalComplete:
		return nil
	case SignalConnectionEnd, SignalConnectionError, SignalSocketClosed:
		return rerrors.New(rerrors.KindTransportClosed, "connection closed under stream "+signal.String())
	default:
		return rerrors.New(rerrors.KindStreamApplicationError, "stream terminated: "+signal.String())
	}
}
