// Package transport defines the duplex-connection contract the core binds
// to (spec.md §6). Concrete transports (TCP, WebSocket) are external
// collaborators; this package only ships the contract plus an in-memory
// reference implementation used for tests and the example in cmd/.
package transport

// TerminalKind classifies why a transport ended.
type TerminalKind int

const (
	TerminalNormal TerminalKind = iota
	TerminalError
)

// Terminal is delivered to the inbound sink exactly once when a transport
// can no longer deliver frames.
type Terminal struct {
	Kind TerminalKind
	Err  error
}

// InboundSink receives frame bytes in arrival order, then exactly one
// Terminal.
type InboundSink interface {
	OnFrame(b []byte)
	OnTerminal(t Terminal)
}

// OutboundSink accepts serialized frames to send. Close signals
// end-of-output; the transport is free to flush and tear down afterward.
type OutboundSink interface {
	Send(b []byte) error
	Close() error
}

// Transport is the contract a duplex byte pipe binds to the core with.
type Transport interface {
	// SetInbound registers the sink that receives frames and the terminal
	// signal. A later call replaces the earlier sink; conn.Server relies on
	// this to hand a transport from its first-frame triage to a Connection.
	SetInbound(sink InboundSink)
	// Outbound returns the sink frames are written to.
	Outbound() OutboundSink
	// IsFramed reports whether the underlying medium already delimits
	// frames (e.g. WebSocket messages). When false, the wire format
	// prepends a 24-bit big-endian length prefix per frame and the
	// transport is responsible for applying/stripping it.
	IsFramed() bool
	// Close tears down the transport from the core's side.
	Close() error
}
