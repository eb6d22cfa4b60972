package conn

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/stream"
	"github.com/dymk/rsocket-go/pkg/rsocket/transport"
)

// outputOrEnqueue is spec.md §4.1's outbound path: serialize and send when
// connected and not resuming, otherwise buffer in the pending-output queue
// for the next successful (re)connect.
func (c *Connection) outputOrEnqueue(f *frame.Frame) {
	if c.state != StateConnected {
		b, err := c.serialize(f)
		if err != nil {
			c.log.Errorf("rsocket: dropping frame that failed to serialize while disconnected: %v", err)
			return
		}
		c.pending = append(c.pending, pendingFrame{kind: f.Kind, streamID: f.StreamID, bytes: b})
		return
	}
	c.sendNow(f)
}

// pendingFrame is a frame already serialized while DISCONNECTED/RESUMING,
// waiting to be written and only then counted against the resume manager's
// sent position (spec.md §4.1: sent position advances when a frame is
// "actually sent", not when it is merely enqueued).
type pendingFrame struct {
	kind     frame.Kind
	streamID frame.StreamID
	bytes    []byte
}

func (c *Connection) serialize(f *frame.Frame) ([]byte, error) {
	resumable := c.cfg.Resumable
	return c.serializer.SerializeOut(f, resumable)
}

func (c *Connection) sendNow(f *frame.Frame) {
	b, err := c.serialize(f)
	if err != nil {
		c.log.Errorf("rsocket: failed to serialize outbound frame: %v", err)
		return
	}
	c.writeBytes(b)
	if c.resumeMgr != nil {
		c.resumeMgr.TrackSentFrame(b, f.Kind, f.StreamID)
	}
}

func (c *Connection) writeBytes(b []byte) {
	if c.out == nil {
		return
	}
	if !c.isFramed {
		if err := transport.WriteLengthPrefixed(lengthPrefixWriter{c.out}, b); err != nil {
			c.log.Errorf("rsocket: transport write failed: %v", err)
		}
		return
	}
	if err := c.out.Send(b); err != nil {
		c.log.Errorf("rsocket: transport write failed: %v", err)
	}
}

// lengthPrefixWriter adapts an OutboundSink (message-Send oriented) to the
// io.Writer transport.WriteLengthPrefixed expects, by treating each Write
// call as one message.
type lengthPrefixWriter struct{ sink transport.OutboundSink }

func (w lengthPrefixWriter) Write(p []byte) (int, error) {
	if err := w.sink.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// flushPending drains the pending-output queue in call order once the
// connection becomes connected (spec.md §5 ordering guarantee).
func (c *Connection) flushPending() {
	if len(c.pending) == 0 {
		return
	}
	batch := c.pending
	c.pending = nil
	for _, pf := range batch {
		c.writeBytes(pf.bytes)
		if c.resumeMgr != nil {
			c.resumeMgr.TrackSentFrame(pf.bytes, pf.kind, pf.streamID)
		}
	}
}

// SendFrame implements stream.Outbound. Automaton methods reach this from
// dispatch (already on the executor) as well as from a Subscription's
// Request/Cancel, which the application may call from any goroutine; see
// executor.runOrPostLocal.
func (c *Connection) SendFrame(f *frame.Frame) {
	c.exec.runOrPostLocal(func() { c.outputOrEnqueue(f) })
}

// Terminate implements stream.Outbound: the end-stream protocol from
// spec.md §4.2. It removes the entry, then notifies the resume manager;
// EndStream on the automaton is not called here since the automaton is the
// one asking to terminate and has already updated its own local state.
func (c *Connection) Terminate(id frame.StreamID, signal stream.Signal, message string) {
	c.exec.runOrPostLocal(func() {
		if _, ok := c.streams[id]; ok {
			delete(c.streams, id)
		}
		if c.resumeMgr != nil {
			c.resumeMgr.OnStreamClosed(id)
		}
		_ = message
	})
}
