package stream

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/rerrors"
)

// RequesterStream is the requester-side automaton for REQUEST_STREAM and
// REQUEST_CHANNEL (spec.md §4.2). Both interactions share a consumer half
// (receive PAYLOAD(NEXT), issue REQUEST_N as the local Subscriber asks for
// more); REQUEST_CHANNEL adds a producer half that turns a locally-supplied
// Publisher into outbound PAYLOAD(NEXT) frames gated by credit the peer
// grants via REQUEST_N. channel selects which half is active, matching
// spec.md's directive to model these as one family rather than a deep
// hierarchy.
type RequesterStream struct {
	id      frame.StreamID
	out     Outbound
	channel bool

	sub    Subscriber // consumes inbound NEXT frames
	closed bool

	// producer half, only used when channel is true.
	producerCredit creditCounter
	producerDone   bool
	producer       *requesterChannelProducer // set once localOut subscribes
}

// NewRequesterStream writes the initial REQUEST_STREAM or REQUEST_CHANNEL
// frame. When channel is true, localOut is subscribed immediately so its
// emissions can be gated by credit as soon as the peer grants any; localOut
// may be nil for REQUEST_STREAM.
func NewRequesterStream(id frame.StreamID, out Outbound, channel bool, initialN uint32, request frame.Payload, sub Subscriber, localOut Publisher) *RequesterStream {
	r := &RequesterStream{id: id, out: out, channel: channel, sub: sub}
	kind := frame.KindRequestStream
	if channel {
		kind = frame.KindRequestChannel
	}
	out.SendFrame(&frame.Frame{
		Kind:            kind,
		StreamID:        id,
		Payload:         request,
		InitialRequestN: initialN,
	})
	sub.OnSubscribe(requesterStreamSubscription{r})
	if channel && localOut != nil {
		p := &requesterChannelProducer{r: r}
		r.producer = p
		localOut.Subscribe(p)
	}
	return r
}

type requesterStreamSubscription struct{ r *RequesterStream }

func (s requesterStreamSubscription) Request(n int64) {
	r := s.r
	if r.closed || n <= 0 {
		return
	}
	r.out.SendFrame(&frame.Frame{Kind: frame.KindRequestN, StreamID: r.id, RequestN: uint32(n)})
}

func (s requesterStreamSubscription) Cancel() {
	r := s.r
	if r.closed {
		return
	}
	r.closed = true
	r.out.SendFrame(&frame.Frame{Kind: frame.KindCancel, StreamID: r.id})
	r.out.Terminate(r.id, SignalCancel, "")
}

// requesterChannelProducer adapts the connection's REQUEST_N credit grants
// into the reactive-streams Subscriber the caller's local Publisher drives.
type requesterChannelProducer struct {
	r        *RequesterStream
	upstream Subscription
}

func (p *requesterChannelProducer) OnSubscribe(s Subscription) {
	p.upstream = s
	if p.r.producerCredit.Available() > 0 {
		s.Request(p.r.producerCredit.Available())
	}
}

func (p *requesterChannelProducer) OnNext(payload frame.Payload) {
	r := p.r
	if r.producerDone || !r.producerCredit.Take(1) {
		return
	}
	r.out.SendFrame(&frame.Frame{
		Kind:     frame.KindPayload,
		StreamID: r.id,
		Flags:    frame.FlagNext,
		Payload:  payload,
	})
}

func (p *requesterChannelProducer) OnComplete() {
	r := p.r
	if r.producerDone {
		return
	}
	r.producerDone = true
	r.out.SendFrame(&frame.Frame{Kind: frame.KindPayload, StreamID: r.id, Flags: frame.FlagComplete})
}

func (p *requesterChannelProducer) OnError(error) {
	r := p.r
	if r.producerDone {
		return
	}
	r.producerDone = true
	r.out.SendFrame(&frame.Frame{Kind: frame.KindCancel, StreamID: r.id})
}

func (r *RequesterStream) StreamID() frame.StreamID { return r.id }

// HandleRequestN is only meaningful when this automaton also owns a
// producer half (REQUEST_CHANNEL); on a plain REQUEST_STREAM it is a
// protocol violation since the requester never produces payloads.
func (r *RequesterStream) HandleRequestN(n uint32) error {
	if !r.channel {
		return rerrors.New(rerrors.KindInvalidFrame, "REQUEST_N is not valid on a REQUEST_STREAM requester")
	}
	if err := r.producerCredit.Add(n); err != nil {
		return err
	}
	if r.producer != nil && r.producer.upstream != nil {
		r.producer.upstream.Request(int64(n))
	}
	return nil
}

func (r *RequesterStream) HandleCancel() {
	// A requester does not receive CANCEL for its own request.
}

func (r *RequesterStream) HandlePayload(p frame.Payload, next, complete bool) error {
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

func (r *RequesterStream) HandleError(message string) {
	if r.closed {
		return
	}
	r.closed = true
	r.sub.OnError(rerrors.New(rerrors.KindStreamApplicationError, message))
	r.out.Terminate(r.id, SignalApplicationError, message)
}

func (r *RequesterStream) EndStream(signal Signal) {
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
