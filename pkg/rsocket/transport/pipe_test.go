package transport

import "testing"

type recordingSink struct {
	frames    [][]byte
	terminals []Terminal
}

func (r *recordingSink) OnFrame(b []byte)      { r.frames = append(r.frames, b) }
func (r *recordingSink) OnTerminal(t Terminal) { r.terminals = append(r.terminals, t) }

func TestPipeTransportDeliversFrames(t *testing.T) {
	a, b := NewPipe()
	sinkB := &recordingSink{}
	b.SetInbound(sinkB)

	if err := a.Outbound().Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sinkB.frames) != 1 || string(sinkB.frames[0]) != "hello" {
		t.Fatalf("frames = %v", sinkB.frames)
	}
}

func TestPipeTransportCloseIsIdempotentAndNotifiesPeerOnce(t *testing.T) {
	a, b := NewPipe()
	sinkB := &recordingSink{}
	b.SetInbound(sinkB)

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(sinkB.terminals) != 1 {
		t.Fatalf("terminals = %d, want 1", len(sinkB.terminals))
	}
}

func TestPipeTransportSendAfterCloseFails(t *testing.T) {
	a, _ := NewPipe()
	_ = a.Close()
	if err := a.Outbound().Send([]byte("x")); err == nil {
		t.Fatal("expected error sending after close")
	}
}

func TestLengthPrefixedRoundTrip(t *testing.T) {
	var buf pipeBuffer
	if err := WriteLengthPrefixed(&buf, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := WriteLengthPrefixed(&buf, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got1, err := ReadLengthPrefixed(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(got1) != "payload" {
		t.Errorf("got %q", got1)
	}
	got2, err := ReadLengthPrefixed(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(got2) != "second" {
		t.Errorf("got %q", got2)
	}
}

// pipeBuffer is a minimal growable byte buffer implementing io.Reader and
// io.Writer, avoiding a bytes.Buffer import purely to keep this test file's
// dependency footprint identical to the package it tests.
type pipeBuffer struct{ data []byte }

func (b *pipeBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *pipeBuffer) Read(p []byte) (int, error) {
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}
