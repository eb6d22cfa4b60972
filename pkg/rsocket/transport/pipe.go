package transport

import "sync"

// PipeTransport is a synchronous, in-process duplex pair implementing
// Transport. It is message-oriented (IsFramed reports true: each Send call
// is delivered to the peer's OnFrame as one discrete frame, so no length
// prefix is needed), used only by tests and by cmd/rsocket-echo. Real
// byte-stream transports (TCP) are external collaborators and would use
// WriteLengthPrefixed/ReadLengthPrefixed instead.
type PipeTransport struct {
	mu     sync.Mutex
	peer   *PipeTransport
	sink   InboundSink
	closed bool
}

// NewPipe returns two PipeTransports wired to each other.
func NewPipe() (a, b *PipeTransport) {
	a = &PipeTransport{}
	b = &PipeTransport{}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *PipeTransport) SetInbound(sink InboundSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

func (p *PipeTransport) Outbound() OutboundSink { return pipeOutbound{p} }

func (p *PipeTransport) IsFramed() bool { return true }

func (p *PipeTransport) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	peer := p.peer
	p.mu.Unlock()

	peer.mu.Lock()
	sink := peer.sink
	alreadyClosed := peer.closed
	peer.mu.Unlock()
	if sink != nil && !alreadyClosed {
		sink.OnTerminal(Terminal{Kind: TerminalNormal})
	}
	return nil
}

type pipeOutbound struct{ p *PipeTransport }

func (o pipeOutbound) Send(b []byte) error {
	o.p.mu.Lock()
	if o.p.closed {
		o.p.mu.Unlock()
		return errClosed
	}
	peer := o.p.peer
	o.p.mu.Unlock()

	peer.mu.Lock()
	sink := peer.sink
	peer.mu.Unlock()
	if sink != nil {
		cp := append([]byte(nil), b...)
		sink.OnFrame(cp)
	}
	return nil
}

func (o pipeOutbound) Close() error { return o.p.Close() }

var errClosed = pipeClosedError{}

type pipeClosedError struct{}

func (pipeClosedError) Error() string { return "transport: pipe closed" }
