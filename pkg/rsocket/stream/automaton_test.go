package stream

import (
	"testing"

	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
)

// recordingOutbound is a test double for Outbound that records every frame
// sent and every terminate call.
type recordingOutbound struct {
	frames      []*frame.Frame
	terminated  bool
	termSignal  Signal
	termMessage string
}

func (o *recordingOutbound) SendFrame(f *frame.Frame) { o.frames = append(o.frames, f) }
func (o *recordingOutbound) Terminate(id frame.StreamID, signal Signal, message string) {
	o.terminated = true
	o.termSignal = signal
	o.termMessage = message
}

type recordingSubscriber struct {
	sub        Subscription
	next       []frame.Payload
	completed  bool
	err        error
}

func (s *recordingSubscriber) OnSubscribe(sub Subscription) { s.sub = sub }
func (s *recordingSubscriber) OnNext(p frame.Payload)        { s.next = append(s.next, p) }
func (s *recordingSubscriber) OnComplete()                   { s.completed = true }
func (s *recordingSubscriber) OnError(err error)              { s.err = err }

func TestCreditCounterRejectsZero(t *testing.T) {
	var c creditCounter
	if err := c.Add(0); err == nil {
		t.Fatal("expected REQUEST_N(0) to be a protocol error")
	}
}

func TestCreditCounterSaturates(t *testing.T) {
	var c creditCounter
	if err := c.Add(uint32(maxCredit)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Add(1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Available() != maxCredit {
		t.Fatalf("Available() = %d, want saturated %d", c.Available(), maxCredit)
	}
}

func TestCreditCounterTakeRespectsBalance(t *testing.T) {
	var c creditCounter
	_ = c.Add(2)
	if !c.Take(2) {
		t.Fatal("expected to take within balance")
	}
	if c.Take(1) {
		t.Fatal("expected Take to fail once balance is exhausted")
	}
}

func TestRequesterResponseSendsInitialFrameAndCompletes(t *testing.T) {
	out := &recordingOutbound{}
	sub := &recordingSubscriber{}
	r := NewRequesterResponse(1, out, frame.Payload{Data: []byte("ping")}, sub)

	if len(out.frames) != 1 || out.frames[0].Kind != frame.KindRequestResponse {
		t.Fatalf("expected a single REQUEST_RESPONSE frame, got %+v", out.frames)
	}
	if sub.sub == nil {
		t.Fatal("expected OnSubscribe to have been called")
	}

	if err := r.HandlePayload(frame.Payload{Data: []byte("pong")}, true, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sub.next) != 1 || !sub.completed {
		t.Fatal("expected exactly one OnNext followed by OnComplete")
	}
	if !out.terminated || out.termSignal != SignalComplete {
		t.Fatalf("expected Terminate(SignalComplete), got terminated=%v signal=%v", out.terminated, out.termSignal)
	}

	// A second terminal delivery must be a no-op.
	r.HandleError("late error")
	if sub.err != nil {
		t.Fatal("expected no further delivery after completion")
	}
}

func TestRequesterResponseCancelSendsCancelFrame(t *testing.T) {
	out := &recordingOutbound{}
	sub := &recordingSubscriber{}
	NewRequesterResponse(7, out, frame.Payload{}, sub)
	sub.sub.Cancel()

	if len(out.frames) != 2 || out.frames[1].Kind != frame.KindCancel {
		t.Fatalf("expected REQUEST_RESPONSE then CANCEL, got %+v", out.frames)
	}
	if !out.terminated || out.termSignal != SignalCancel {
		t.Fatal("expected Terminate(SignalCancel)")
	}
}

func TestResponderStreamAppliesInitialCreditAndGates(t *testing.T) {
	out := &recordingOutbound{}
	r := NewResponderStream(2, out, false, 1, nil)

	prod := &fakePublisher{}
	r.Bind(prod, nil)
	if prod.sub == nil {
		t.Fatal("expected Bind to subscribe the handler's publisher")
	}
	if prod.requested != 1 {
		t.Fatalf("expected initial credit of 1 to be forwarded, got %d", prod.requested)
	}

	prod.sub.(*responderStreamProducer).OnNext(frame.Payload{Data: []byte("a")})
	if len(out.frames) != 1 {
		t.Fatalf("expected exactly one PAYLOAD frame within credit, got %d", len(out.frames))
	}
	prod.sub.(*responderStreamProducer).OnNext(frame.Payload{Data: []byte("b")})
	if len(out.frames) != 1 {
		t.Fatalf("expected the second NEXT to be withheld once credit is exhausted, got %d frames", len(out.frames))
	}

	if err := r.HandleRequestN(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prod.sub.(*responderStreamProducer).OnNext(frame.Payload{Data: []byte("b")})
	if len(out.frames) != 2 {
		t.Fatalf("expected the second NEXT to be sent after REQUEST_N, got %d frames", len(out.frames))
	}
}

func TestResponderStreamRejectsPayloadWhenNotChannel(t *testing.T) {
	out := &recordingOutbound{}
	r := NewResponderStream(2, out, false, 1, nil)
	if err := r.HandlePayload(frame.Payload{}, true, false); err == nil {
		t.Fatal("expected PAYLOAD on a non-channel responder to be a protocol error")
	}
}

type fakePublisher struct {
	sub       Subscriber
	requested int64
}

func (p *fakePublisher) Subscribe(s Subscriber) {
	p.sub = s
	s.OnSubscribe(fakeSubscription{p})
}

type fakeSubscription struct{ p *fakePublisher }

func (s fakeSubscription) Request(n int64) { s.p.requested += n }
func (s fakeSubscription) Cancel()         {}
