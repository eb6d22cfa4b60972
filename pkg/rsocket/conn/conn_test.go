package conn

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dymk/rsocket-go/pkg/rsocket/config"
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/rerrors"
	"github.com/dymk/rsocket-go/pkg/rsocket/rlog"
	"github.com/dymk/rsocket-go/pkg/rsocket/stream"
	"github.com/dymk/rsocket-go/pkg/rsocket/transport"
)

// drain blocks until every task already posted to c's local queue at the
// time of the call has run, giving tests a happens-before edge onto its
// internal state without a sleep. The executor serves its local queue
// first, so transport-fed tasks queued earlier may still be pending.
func drain(c *Connection) {
	done := make(chan struct{})
	c.exec.postLocal(func() { close(done) })
	<-done
}

// recordingSubscriber is the test double used across scenarios: it buffers
// every OnNext payload and signals done exactly once, on OnComplete or
// OnError.
type recordingSubscriber struct {
	mu       sync.Mutex
	payloads []string
	err      error
	done     chan struct{}
	sub      stream.Subscription
}

func newRecordingSubscriber() *recordingSubscriber {
	return &recordingSubscriber{done: make(chan struct{})}
}

func (s *recordingSubscriber) OnSubscribe(sub stream.Subscription) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}
func (s *recordingSubscriber) OnNext(p frame.Payload) {
	s.mu.Lock()
	s.payloads = append(s.payloads, string(p.Data))
	s.mu.Unlock()
}
func (s *recordingSubscriber) OnComplete() { close(s.done) }
func (s *recordingSubscriber) OnError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *recordingSubscriber) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal signal")
	}
}

func (s *recordingSubscriber) snapshot() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...), s.err
}

// sequencePublisher emits fmt.Sprintf(format, 1..total) then completes,
// gated by the responder automaton's own credit accounting (it only calls
// Request(n) for however much credit it currently holds).
type sequencePublisher struct {
	format string
	total  int
	next   int
}

func (p *sequencePublisher) Subscribe(s stream.Subscriber) {
	s.OnSubscribe(&sequenceSubscription{p: p, s: s})
}

type sequenceSubscription struct {
	p *sequencePublisher
	s stream.Subscriber
}

func (c *sequenceSubscription) Request(n int64) {
	for ; n > 0 && c.p.next < c.p.total; n-- {
		c.p.next++
		c.s.OnNext(frame.Payload{Data: []byte(fmt.Sprintf(c.p.format, c.p.next))})
	}
	if c.p.next >= c.p.total {
		c.s.OnComplete()
	}
}

func (c *sequenceSubscription) Cancel() { c.p.next = c.p.total }

// stubHandler implements stream.RequestHandler with overridable hooks;
// every hook defaults to failing the request so a test only wires what it
// needs.
type stubHandler struct {
	onRequestResponse func(id frame.StreamID, request frame.Payload) (frame.Payload, error)
	onRequestStream   func(id frame.StreamID, request frame.Payload) (stream.Publisher, error)
}

func (h *stubHandler) HandleRequestResponse(id frame.StreamID, request frame.Payload) (frame.Payload, error) {
	if h.onRequestResponse != nil {
		return h.onRequestResponse(id, request)
	}
	return frame.Payload{}, rerrors.New(rerrors.KindStreamApplicationError, "unhandled")
}

func (h *stubHandler) HandleRequestStream(id frame.StreamID, request frame.Payload) (stream.Publisher, error) {
	if h.onRequestStream != nil {
		return h.onRequestStream(id, request)
	}
	return nil, rerrors.New(rerrors.KindStreamApplicationError, "unhandled")
}

func (h *stubHandler) HandleRequestChannel(id frame.StreamID, request frame.Payload, in stream.Publisher) (stream.Publisher, error) {
	return nil, rerrors.New(rerrors.KindStreamApplicationError, "unhandled")
}

func (h *stubHandler) HandleFireAndForget(frame.StreamID, frame.Payload) error { return nil }
func (h *stubHandler) HandleMetadataPush([]byte) error                        { return nil }

func testConfig(mode config.Mode, opts ...config.Option) *config.Config {
	opts = append([]config.Option{config.WithLogger(rlog.Nop{})}, opts...)
	return config.New(mode, opts...)
}

// bindPipe wires a client Connection directly to a server Connection over a
// fresh in-memory pipe, bypassing the SETUP handshake — used by scenarios
// that only care about post-setup dispatch behavior.
func bindPipe(client, server *Connection) (clientTr, serverTr *transport.PipeTransport) {
	clientTr, serverTr = transport.NewPipe()
	// The client binds first: its SETUP goes out while serverTr has no sink
	// yet, so the pipe drops it instead of delivering it to the server core.
	client.Bind(clientTr, frame.V1Serializer{})
	server.Bind(serverTr, frame.V1Serializer{})
	return clientTr, serverTr
}

// Scenario 1 (spec.md §8.1): request-response happy path.
func TestRequestResponseHappyPath(t *testing.T) {
	handler := &stubHandler{
		onRequestResponse: func(id frame.StreamID, request frame.Payload) (frame.Payload, error) {
			if string(request.Data) != "ping" {
				t.Errorf("request = %q, want ping", request.Data)
			}
			return frame.Payload{Data: []byte("pong")}, nil
		},
	}
	client := New(testConfig(config.ModeClient), nil)
	server := New(testConfig(config.ModeServer), handler)
	bindPipe(client, server)

	sub := newRecordingSubscriber()
	client.RequestResponse(frame.Payload{Data: []byte("ping")}, sub)
	sub.waitDone(t)

	payloads, err := sub.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 1 || payloads[0] != "pong" {
		t.Fatalf("payloads = %v, want [pong]", payloads)
	}

	drain(client)
	drain(server)
	if len(client.streams) != 0 {
		t.Errorf("client streams = %d, want 0", len(client.streams))
	}
	if len(server.streams) != 0 {
		t.Errorf("server streams = %d, want 0", len(server.streams))
	}
}

// Scenario 2 (spec.md §8.2): a stream with backpressure. The server offers
// 10 payloads under an initial credit of 3; the client must ask for more
// before it sees the rest.
func TestRequestStreamBackpressure(t *testing.T) {
	handler := &stubHandler{
		onRequestStream: func(id frame.StreamID, request frame.Payload) (stream.Publisher, error) {
			return &sequencePublisher{format: "Hello Bob %d", total: 10}, nil
		},
	}
	client := New(testConfig(config.ModeClient), nil)
	server := New(testConfig(config.ModeServer), handler)
	bindPipe(client, server)

	sub := newRecordingSubscriber()
	client.RequestStream(frame.Payload{Data: []byte("Bob")}, 3, sub)

	// Give the first 3 NEXT frames time to arrive, then confirm no more
	// show up until REQUEST_N is sent.
	time.Sleep(50 * time.Millisecond)
	payloads, _ := sub.snapshot()
	if len(payloads) != 3 {
		t.Fatalf("payloads after initial credit = %v, want 3 items", payloads)
	}
	if payloads[0] != "Hello Bob 1" || payloads[2] != "Hello Bob 3" {
		t.Fatalf("unexpected payload order: %v", payloads)
	}

	sub.mu.Lock()
	requestMore := sub.sub
	sub.mu.Unlock()
	client.exec.postLocal(func() { requestMore.Request(7) })
	sub.waitDone(t)

	payloads, err := sub.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 10 {
		t.Fatalf("payloads = %v, want 10 items", payloads)
	}
	if payloads[9] != "Hello Bob 10" {
		t.Fatalf("last payload = %q, want Hello Bob 10", payloads[9])
	}
}

// Scenario 3 (spec.md §8.3): warm resumption. The client disconnects after
// receiving some payloads, reconnects with RESUME, and the subscriber's
// final count matches the uninterrupted total.
func TestWarmResumption(t *testing.T) {
	handler := &stubHandler{
		onRequestStream: func(id frame.StreamID, request frame.Payload) (stream.Publisher, error) {
			return &sequencePublisher{format: "item-%d", total: 5}, nil
		},
	}
	token := []byte("resume-token-1")
	clientCfg := testConfig(config.ModeClient, config.WithResume(token))
	baseServerCfg := testConfig(config.ModeServer)

	client := New(clientCfg, nil)
	srv := NewServer(handler)
	clientTr, serverTr := transport.NewPipe()
	srv.Accept(serverTr, baseServerCfg)
	client.Bind(clientTr, frame.V1Serializer{})

	sub := newRecordingSubscriber()
	client.RequestStream(frame.Payload{Data: []byte("go")}, 2, sub)
	time.Sleep(50 * time.Millisecond)

	payloads, _ := sub.snapshot()
	if len(payloads) != 2 {
		t.Fatalf("payloads before disconnect = %v, want 2 items", payloads)
	}

	serverConn, ok := srv.tokens.Get(string(token))
	if !ok {
		t.Fatal("server did not register the resume token")
	}

	client.Disconnect(nil)
	time.Sleep(20 * time.Millisecond)
	drain(serverConn)
	if serverConn.state != StateDisconnected {
		t.Fatalf("server state = %v, want StateDisconnected", serverConn.state)
	}

	clientTr2, serverTr2 := transport.NewPipe()
	srv.Accept(serverTr2, baseServerCfg)
	resumeDone := make(chan error, 1)
	client.Resume(clientTr2, frame.V1Serializer{}, func(err error) { resumeDone <- err })

	select {
	case err := <-resumeDone:
		if err != nil {
			t.Fatalf("resume failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for RESUME_OK")
	}

	sub.mu.Lock()
	requestMore := sub.sub
	sub.mu.Unlock()
	client.exec.postLocal(func() { requestMore.Request(3) })
	sub.waitDone(t)

	payloads, err := sub.snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 5 {
		t.Fatalf("payloads after resume = %v, want 5 items total", payloads)
	}
}

// Scenario 4 (spec.md §8.4): failed resumption. The token is unknown to the
// server accepting the reconnect; the client's resume callback observes
// ResumeRejected and its existing subscriber sees a stream-error terminal.
func TestFailedResumption(t *testing.T) {
	handler := &stubHandler{
		onRequestStream: func(id frame.StreamID, request frame.Payload) (stream.Publisher, error) {
			return &sequencePublisher{format: "item-%d", total: 5}, nil
		},
	}
	token := []byte("resume-token-2")
	clientCfg := testConfig(config.ModeClient, config.WithResume(token))
	baseServerCfg := testConfig(config.ModeServer)

	client := New(clientCfg, nil)
	srv := NewServer(handler)
	clientTr, serverTr := transport.NewPipe()
	srv.Accept(serverTr, baseServerCfg)
	client.Bind(clientTr, frame.V1Serializer{})

	sub := newRecordingSubscriber()
	client.RequestStream(frame.Payload{Data: []byte("go")}, 1, sub)
	time.Sleep(50 * time.Millisecond)

	client.Disconnect(nil)
	time.Sleep(20 * time.Millisecond)

	// A fresh Server has no record of the token: the reconnect must be
	// rejected as if the original server had evicted it.
	strangerSrv := NewServer(handler)
	clientTr2, serverTr2 := transport.NewPipe()
	strangerSrv.Accept(serverTr2, baseServerCfg)

	resumeDone := make(chan error, 1)
	client.Resume(clientTr2, frame.V1Serializer{}, func(err error) { resumeDone <- err })

	select {
	case err := <-resumeDone:
		rerr, ok := err.(*rerrors.Error)
		if !ok || rerr.Kind != rerrors.KindResumeRejected {
			t.Fatalf("resume error = %v, want KindResumeRejected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resume rejection")
	}

	sub.waitDone(t)
	if _, err := sub.snapshot(); err == nil {
		t.Fatal("expected the existing subscriber to observe a stream error")
	}
}

// Scenario 5 (spec.md §8.5): protocol violation. A PAYLOAD frame for an
// unopened stream id closes the connection with a CONNECTION_ERROR.
func TestProtocolViolationUnknownStream(t *testing.T) {
	client := New(testConfig(config.ModeClient), nil)
	server := New(testConfig(config.ModeServer), &stubHandler{})
	bindPipe(client, server)

	closed := make(chan error, 1)
	server.OnClosed(func(reason error) { closed <- reason })
	drain(server)

	server.exec.postLocal(func() {
		server.dispatch(mustSerialize(t, &frame.Frame{
			Kind:     frame.KindPayload,
			StreamID: 99,
			Flags:    frame.FlagNext,
			Payload:  frame.Payload{Data: []byte("unexpected")},
		}))
	})

	select {
	case reason := <-closed:
		rerr, ok := reason.(*rerrors.Error)
		if !ok || rerr.Kind != rerrors.KindUnexpectedFrame {
			t.Fatalf("close reason = %v, want KindUnexpectedFrame", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server to close")
	}
}

func mustSerialize(t *testing.T, f *frame.Frame) []byte {
	t.Helper()
	b, err := (frame.V1Serializer{}).SerializeOut(f, false)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return b
}

// Scenario 6 (spec.md §8.6): keepalive timeout. A client that never hears
// back closes with KeepaliveTimeout once its max lifetime elapses.
func TestKeepaliveTimeout(t *testing.T) {
	cfg := testConfig(config.ModeClient, config.WithKeepalive(15*time.Millisecond, 60*time.Millisecond))
	client := New(cfg, nil)

	closed := make(chan error, 1)
	client.OnClosed(func(reason error) { closed <- reason })

	clientTr, _ := transport.NewPipe() // peer side left unbound: nothing ever answers
	client.Bind(clientTr, frame.V1Serializer{})

	select {
	case reason := <-closed:
		rerr, ok := reason.(*rerrors.Error)
		if !ok || rerr.Kind != rerrors.KindKeepaliveTimeout {
			t.Fatalf("close reason = %v, want KindKeepaliveTimeout", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the keepalive timeout to fire")
	}
}
