package conn

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/config"
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/rerrors"
	"github.com/dymk/rsocket-go/pkg/rsocket/resume"
	"github.com/dymk/rsocket-go/pkg/rsocket/stream"
)

// dispatch implements spec.md §4.1's inbound dispatch, steps 1-6. Always
// runs on the executor (called only from connSink.OnFrame's posted task).
func (c *Connection) dispatch(b []byte) {
	if c.state == StateClosed {
		return
	}

	// Step 1: autodetect on first frame, server only.
	if c.serializer == nil {
		if c.cfg.Mode != config.ModeServer {
			c.closeWithConnectionError("client has no serializer bound")
			return
		}
		s, ok := frame.Autodetect(b)
		if !ok {
			c.closeWithConnectionError("cannot detect protocol version")
			return
		}
		c.serializer = s
	}

	// Step 2: peek kind and stream id.
	kind, err := c.serializer.PeekKind(b)
	if err != nil {
		c.closeWithConnectionError("undecodable frame kind")
		return
	}
	streamID, ok := c.serializer.PeekStreamID(b)
	if !ok {
		c.closeWithConnectionError("undecodable stream id")
		return
	}

	// Step 3: advance the received-side resume tracker.
	if c.resumeMgr != nil {
		c.resumeMgr.TrackReceivedFrame(b, kind, streamID)
	}

	// Step 4/5: route by stream id.
	if streamID.IsConnection() {
		c.dispatchConnectionFrame(kind, b)
		return
	}
	if c.state == StateResuming {
		c.closeWithConnectionError("stream frame while resuming")
		return
	}

	if a, ok := c.streams[streamID]; ok {
		c.dispatchToStream(a, kind, b)
		return
	}

	if isRequestKind(kind) {
		if !c.allocator.RegisterPeer(streamID) {
			c.closeWithConnectionError("peer-initiated stream id failed parity/monotonicity check")
			return
		}
		c.acceptPeerStream(kind, streamID, b)
		return
	}

	// Step 6: frame kinds this engine does not know are ignored away from
	// stream 0.
	if !kind.Known() {
		c.log.Warnf("rsocket: ignoring unknown %v frame on stream %d", kind, streamID)
		return
	}

	// Step 5 (continued): an unknown stream id on a non-REQUEST_* frame has
	// no automaton to create or deliver to, and is a connection error, not
	// forward-compat noise (spec.md §8 scenario 5: PAYLOAD on an unopened
	// stream id closes the connection).
	c.closeWithConnectionError("unexpected " + kind.String() + " for unopened stream")
}

// closeWithConnectionError sends ERROR(stream 0, CONNECTION_ERROR, message)
// on the wire and then closes, per spec.md §8 scenario 5's literal wire
// behavior for connection-level protocol violations detected by dispatch
// itself.
func (c *Connection) closeWithConnectionError(message string) {
	c.sendErrorFrame(frame.ConnectionStreamID, frame.ErrorCodeConnectionError, message)
	c.close(errProtocol(message), stream.SignalConnectionError)
}

// failStream writes ERROR to the peer and runs the end-stream protocol for
// a stream-level protocol violation detected by the connection itself
// (rather than signaled by the automaton), e.g. REQUEST_N(0).
func (c *Connection) failStream(a stream.Automaton, cause error) {
	id := a.StreamID()
	c.sendErrorFrame(id, frame.ErrorCodeInvalid, cause.Error())
	c.Terminate(id, stream.SignalError, cause.Error())
	a.EndStream(stream.SignalError)
}

func isRequestKind(k frame.Kind) bool {
	switch k {
	case frame.KindRequestResponse, frame.KindRequestFNF, frame.KindRequestStream, frame.KindRequestChannel:
		return true
	default:
		return false
	}
}

func (c *Connection) dispatchToStream(a stream.Automaton, kind frame.Kind, b []byte) {
	f, err := c.serializer.Deserialize(kind, b)
	if err != nil {
		c.log.Warnf("rsocket: dropping undecodable %v frame on stream %d: %v", kind, a.StreamID(), err)
		return
	}
	switch kind {
	case frame.KindRequestN:
		if err := a.HandleRequestN(f.RequestN); err != nil {
			c.failStream(a, err)
		}
	case frame.KindCancel:
		a.HandleCancel()
	case frame.KindPayload:
		if err := a.HandlePayload(f.Payload, f.IsNext(), f.IsComplete()); err != nil {
			c.failStream(a, err)
		}
	case frame.KindError:
		a.HandleError(f.ErrorMessage)
	default:
		c.log.Warnf("rsocket: unexpected %v frame on stream %d ignored", kind, a.StreamID())
	}
}

// acceptPeerStream instantiates the responder-side automaton for a
// peer-initiated REQUEST_* frame and dispatches it to the RequestHandler.
func (c *Connection) acceptPeerStream(kind frame.Kind, id frame.StreamID, b []byte) {
	f, err := c.serializer.Deserialize(kind, b)
	if err != nil {
		c.closeWithConnectionError("undecodable request frame")
		return
	}
	if c.handler == nil {
		c.sendErrorFrame(id, frame.ErrorCodeApplicationError, "no request handler configured")
		return
	}
	switch kind {
	case frame.KindRequestFNF:
		if err := c.handler.HandleFireAndForget(id, f.Payload); err != nil {
			c.log.Warnf("rsocket: fire-and-forget handler for stream %d returned an error: %v", id, err)
		}
	case frame.KindRequestResponse:
		resp := stream.NewResponderResponse(id, c)
		c.streams[id] = resp
		p, err := c.handler.HandleRequestResponse(id, f.Payload)
		resp.Respond(p, err)
	case frame.KindRequestStream:
		resp := stream.NewResponderStream(id, c, false, f.InitialRequestN, nil)
		c.streams[id] = resp
		pub, err := c.handler.HandleRequestStream(id, f.Payload)
		resp.Bind(pub, err)
	case frame.KindRequestChannel:
		bridge := newChannelBridge(c, id)
		resp := stream.NewResponderStream(id, c, true, f.InitialRequestN, bridge)
		c.streams[id] = resp
		pub, err := c.handler.HandleRequestChannel(id, f.Payload, bridge)
		resp.Bind(pub, err)
	}
}

func (c *Connection) sendErrorFrame(id frame.StreamID, code frame.ErrorCode, message string) {
	c.outputOrEnqueue(&frame.Frame{
		Kind:         frame.KindError,
		StreamID:     id,
		ErrorCode:    code,
		ErrorMessage: message,
	})
}

// dispatchConnectionFrame is spec.md §4.1's connection frame handler
// (stream id 0).
func (c *Connection) dispatchConnectionFrame(kind frame.Kind, b []byte) {
	f, err := c.serializer.Deserialize(kind, b)
	if err != nil {
		c.closeWithConnectionError("undecodable connection frame")
		return
	}
	switch kind {
	case frame.KindKeepalive:
		c.handleKeepalive(f)
	case frame.KindMetadataPush:
		if c.handler != nil {
			if err := c.handler.HandleMetadataPush(f.Payload.Metadata); err != nil {
				c.log.Warnf("rsocket: metadata push handler returned an error: %v", err)
			}
		}
	case frame.KindSetup:
		// The acceptance layer (external, spec.md §6) must consume SETUP
		// before frames reach the core; seeing one here is a protocol error.
		c.closeWithConnectionError("SETUP reached the core after acceptance")
	case frame.KindResume:
		c.handleResume(f)
	case frame.KindResumeOK:
		c.handleResumeOK(f)
	case frame.KindError:
		c.handleConnectionError(f)
	default:
		c.closeWithConnectionError("unexpected frame kind at stream 0")
	}
}

func (c *Connection) handleKeepalive(f *frame.Frame) {
	if c.cfg.Mode == config.ModeServer {
		pos := uint64(0)
		if c.resumeMgr != nil {
			c.resumeMgr.ResetUpTo(resume.Position(f.Position))
			pos = uint64(c.resumeMgr.ImpliedPosition())
		}
		c.keepalive.resetLifetime()
		c.outputOrEnqueue(&frame.Frame{
			Kind:     frame.KindKeepalive,
			StreamID: frame.ConnectionStreamID,
			Position: pos,
		})
		return
	}
	if f.IsRespond() {
		c.closeWithConnectionError("client received KEEPALIVE with RESPOND set")
		return
	}
	c.keepalive.resetLifetime()
}

// handleResume covers a RESUME frame arriving mid-lifetime on an already
// dispatching Connection. In this module's architecture RESUME is always
// triaged by Server before a Connection's own executor takes over the
// transport (see server.go's resumeRebind), so reaching this path is
// itself the protocol violation.
func (c *Connection) handleResume(*frame.Frame) {
	c.closeWithConnectionError("RESUME received outside the accept-time triage window")
}

func (c *Connection) handleResumeOK(f *frame.Frame) {
	if c.state != StateResuming {
		c.closeWithConnectionError("RESUME_OK received outside StateResuming")
		return
	}
	pos := resume.Position(f.ResumePosition)
	if c.resumeMgr == nil || !c.resumeMgr.IsPositionAvailable(pos) {
		err := errProtocol("RESUME_OK position no longer available")
		if c.resumeCb != nil {
			cb := c.resumeCb
			c.resumeCb = nil
			cb(err)
		}
		c.close(err, stream.SignalConnectionError)
		return
	}
	c.state = StateConnected
	c.keepalive.start()
	c.flushPending()
	if c.resumeCb != nil {
		cb := c.resumeCb
		c.resumeCb = nil
		cb(nil)
	}
}

func (c *Connection) handleConnectionError(f *frame.Frame) {
	if !f.ErrorCode.IsConnectionLevel() {
		return
	}
	var err error
	if f.ErrorCode == frame.ErrorCodeRejectedResume {
		err = rerrors.New(rerrors.KindResumeRejected, f.ErrorMessage)
	} else {
		err = errProtocol(f.ErrorMessage)
	}
	if c.state == StateResuming && c.resumeCb != nil {
		cb := c.resumeCb
		c.resumeCb = nil
		cb(err)
	}
	c.close(err, stream.SignalConnectionError)
}
