package stream

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/rerrors"
)

// ResponderStream is the responder-side automaton for REQUEST_STREAM and
// REQUEST_CHANNEL. Both share a producer half (a RequestHandler-supplied
// Publisher emits PAYLOAD(NEXT) gated by REQUEST_N credit from the
// requester); REQUEST_CHANNEL adds a consumer half that turns inbound
// PAYLOAD frames into calls on a local Subscriber. channel selects which
// half is active.
type ResponderStream struct {
	id      frame.StreamID
	out     Outbound
	channel bool

	credit creditCounter
	source Subscription // set once the handler's Publisher subscribes
	closed bool

	// consumer half, only used when channel is true.
	in Subscriber
}

// NewResponderStream registers the automaton for a REQUEST_STREAM or
// REQUEST_CHANNEL responder. initialN is the credit carried by the
// initiating frame. in is the local Subscriber fed by inbound PAYLOAD
// frames when channel is true; it is ignored otherwise.
func NewResponderStream(id frame.StreamID, out Outbound, channel bool, initialN uint32, in Subscriber) *ResponderStream {
	r := &ResponderStream{id: id, out: out, channel: channel, in: in}
	_ = r.credit.Add(initialN)
	return r
}

// Bind subscribes the handler's outbound Publisher, or delivers an
// immediate ERROR if the handler itself failed to produce one.
func (r *ResponderStream) Bind(pub Publisher, err error) {
	if err != nil {
		r.failNoPublisher(err)
		return
	}
	pub.Subscribe(&responderStreamProducer{r: r})
}

func (r *ResponderStream) failNoPublisher(err error) {
	if r.closed {
		return
	}
	r.closed = true
	r.out.SendFrame(&frame.Frame{
		Kind:         frame.KindError,
		StreamID:     r.id,
		ErrorCode:    frame.ErrorCodeApplicationError,
		ErrorMessage: err.Error(),
	})
	r.out.Terminate(r.id, SignalApplicationError, err.Error())
}

type responderStreamProducer struct{ r *ResponderStream }

func (p *responderStreamProducer) OnSubscribe(s Subscription) {
	p.r.source = s
	if n := p.r.credit.Available(); n > 0 {
		s.Request(n)
	}
}

func (p *responderStreamProducer) OnNext(payload frame.Payload) {
	r := p.r
	if r.closed || !r.credit.Take(1) {
		return
	}
	r.out.SendFrame(&frame.Frame{
		Kind:     frame.KindPayload,
		StreamID: r.id,
		Flags:    frame.FlagNext,
		Payload:  payload,
	})
}

func (p *responderStreamProducer) OnComplete() {
	r := p.r
	if r.closed {
		return
	}
	r.closed = true
	r.out.SendFrame(&frame.Frame{Kind: frame.KindPayload, StreamID: r.id, Flags: frame.FlagComplete})
	r.out.Terminate(r.id, SignalComplete, "")
}

func (p *responderStreamProducer) OnError(err error) {
	r := p.r
	if r.closed {
		return
	}
	r.closed = true
	r.out.SendFrame(&frame.Frame{
		Kind:         frame.KindError,
		StreamID:     r.id,
		ErrorCode:    frame.ErrorCodeApplicationError,
		ErrorMessage: err.Error(),
	})
	r.out.Terminate(r.id, SignalApplicationError, err.Error())
}

func (r *ResponderStream) StreamID() frame.StreamID { return r.id }

func (r *ResponderStream) HandleRequestN(n uint32) error {
	if err := r.credit.Add(n); err != nil {
		return err
	}
	if r.source != nil {
		r.source.Request(int64(n))
	}
	return nil
}

func (r *ResponderStream) HandleCancel() {
	if r.closed {
		return
	}
	r.closed = true
	if r.source != nil {
		r.source.Cancel()
	}
	r.out.Terminate(r.id, SignalCancel, "")
}

func (r *ResponderStream) HandlePayload(p frame.Payload, next, complete bool) error {
	if !r.channel {
		return rerrors.New(rerrors.KindInvalidFrame, "unexpected PAYLOAD on a REQUEST_STREAM responder")
	}
	if r.closed || r.in == nil {
		return nil
	}
	if next {
		r.in.OnNext(p)
	}
	if complete {
		r.in.OnComplete()
	}
	return nil
}

func (r *ResponderStream) HandleError(message string) {
	if r.closed {
		return
	}
	r.closed = true
	if r.channel && r.in != nil {
		r.in.OnError(rerrors.New(rerrors.KindStreamApplicationError, message))
	}
	if r.source != nil {
		r.source.Cancel()
	}
}

func (r *ResponderStream) EndStream(signal Signal) {
	if r.closed {
		return
	}
	r.closed = true
	if r.channel && r.in != nil {
		if err := terminalError(signal); err != nil {
			r.in.OnError(err)
		} else {
			r.in.OnComplete()
		}
	}
	if r.source != nil {
		r.source.Cancel()
	}
}
