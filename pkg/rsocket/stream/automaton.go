package stream

import "github.com/dymk/rsocket-go/pkg/rsocket/frame"

// Signal is the terminal reason delivered to end_stream (spec.md §4.2).
type Signal int

const (
	SignalComplete Signal = iota
	SignalCancel
	SignalApplicationError
	SignalError
	SignalConnectionEnd
	SignalConnectionError
	SignalSocketClosed
)

// IsConnectionWide reports whether signal originates from the connection
// rather than a stream-level event; connection-wide signals must not
// produce a stream frame (spec.md §4.2 end-stream protocol).
func (s Signal) IsConnectionWide() bool {
	switch s {
	case SignalConnectionEnd, SignalConnectionError, SignalSocketClosed:
		return true
	default:
		return false
	}
}

func (s Signal) String() string {
	switch s {
	case SignalComplete:
		return "COMPLETE"
	case SignalCancel:
		return "CANCEL"
	case SignalApplicationError:
		return "APPLICATION_ERROR"
	case SignalError:
		return "ERROR"
	case SignalConnectionEnd:
		return "CONNECTION_END"
	case SignalConnectionError:
		return "CONNECTION_ERROR"
	case SignalSocketClosed:
		return "SOCKET_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Automaton is the common capability set every stream state machine
// implements, driven by remote frames arriving at its stream id (spec.md
// §4.2).
type Automaton interface {
	StreamID() frame.StreamID
	HandleRequestN(n uint32) error
	HandleCancel()
	HandlePayload(p frame.Payload, next, complete bool) error
	HandleError(message string)
	// EndStream is called exactly once by the connection's end-stream
	// protocol; automatons must treat a second call as a no-op.
	EndStream(signal Signal)
}

// Outbound is the callback surface an automaton uses to act on the
// connection: emit a frame, or ask the connection to run the end-stream
// protocol (remove the entry, notify the resume manager) on its behalf.
// Terminate writes no frame; an automaton sends its own close frame with
// SendFrame before calling it. Implemented by
// conn.Connection; declared here so stream has no import-time dependency
// on conn. Terminate is distinct from Automaton.EndStream: Terminate is the
// automaton telling the connection "I am done"; EndStream is the
// connection telling the automaton "you are now terminated" once it has
// finished the removal (spec.md §4.2's end-stream protocol).
type Outbound interface {
	SendFrame(f *frame.Frame)
	Terminate(id frame.StreamID, signal Signal, message string)
}
