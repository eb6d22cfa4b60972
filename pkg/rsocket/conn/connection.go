package conn

import (
	"code.hybscloud.com/atomix"

	"github.com/dymk/rsocket-go/pkg/rsocket/config"
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/resume"
	"github.com/dymk/rsocket-go/pkg/rsocket/rlog"
	"github.com/dymk/rsocket-go/pkg/rsocket/stream"
	"github.com/dymk/rsocket-go/pkg/rsocket/transport"
)

// Connection is the per-connection state machine (spec.md §4.1). It
// multiplexes stream automatons over one transport, drives the resumption
// subsystem, and serializes every mutation through its executor.
//
// Field layout mirrors the teacher's serverConn/clientConn in
// pkg/http/h2/streams.go: a streams map, a stream-id allocator, and the
// window/credit-style bookkeeping needed to talk the wire protocol,
// generalized from HTTP/2's flow control to RSocket's reactive-streams
// credit model.
type Connection struct {
	cfg    *config.Config
	log    rlog.Logger
	role   stream.Role
	exec   *executor
	closed atomix.Uint32

	state      State
	serializer frame.Serializer

	tr       transport.Transport
	out      transport.OutboundSink
	isFramed bool

	streams   map[frame.StreamID]stream.Automaton
	allocator *stream.Allocator

	resumeMgr *resume.Manager
	resumeCb  func(error) // pending client-side callback awaiting RESUME_OK

	pending []pendingFrame // pending-output queue while DISCONNECTED/RESUMING

	keepalive *keepaliveTimer
	handler   stream.RequestHandler

	onClosedOnce bool
	onClosed     func(reason error)
}

// New constructs a Connection in StateDisconnected. handler serves
// peer-initiated requests; it may be nil for a pure requester.
func New(cfg *config.Config, handler stream.RequestHandler) *Connection {
	role := stream.RoleClient
	if cfg.Mode == config.ModeServer {
		role = stream.RoleServer
	}
	// Peer ids are always checked for monotonicity: a zero
	// cfg.ProtocolVersion means the 1.0 default, not a forced 0.0, and
	// frame.Autodetect accepts no major version other than 1.
	c := &Connection{
		cfg:       cfg,
		log:       cfg.Logger,
		role:      role,
		exec:      newExecutor(),
		state:     StateDisconnected,
		streams:   make(map[frame.StreamID]stream.Automaton),
		allocator: stream.NewAllocator(role, false),
		handler:   handler,
	}
	if cfg.Resumable {
		size := cfg.ResumeCacheSize
		if size <= 0 {
			size = config.DefaultResumeCacheSize
		}
		c.resumeMgr = resume.NewManager(size)
	}
	c.keepalive = newKeepaliveTimer(cfg.KeepaliveInterval, cfg.MaxLifetime, cfg.Mode == config.ModeClient,
		c.onKeepaliveTick, c.onKeepaliveTimeout)
	go c.exec.run()
	return c
}

// OnClosed registers the callback fired exactly once when the connection
// reaches StateClosed.
func (c *Connection) OnClosed(fn func(reason error)) {
	c.exec.postLocal(func() { c.onClosed = fn })
}

// Bind attaches tr as the active transport and, from StateDisconnected,
// moves to StateConnected; a client also sends SETUP. serializer is nil to
// autodetect on the server; the client must supply one since it has no
// bytes to sniff.
func (c *Connection) Bind(tr transport.Transport, serializer frame.Serializer) {
	done := make(chan struct{})
	c.exec.postLocal(func() {
		defer close(done)
		c.tr = tr
		c.isFramed = tr.IsFramed()
		c.out = tr.Outbound()
		c.serializer = serializer
		tr.SetInbound(connSink{c})
		if c.state == StateDisconnected {
			c.state = StateConnected
			if c.cfg.Mode == config.ModeClient {
				c.sendSetup()
			}
			c.keepalive.start()
			c.flushPending()
		}
	})
	<-done
}

func (c *Connection) sendSetup() {
	f := &frame.Frame{
		Kind:                 frame.KindSetup,
		StreamID:             frame.ConnectionStreamID,
		SetupMajor:           config.DefaultVersion.Major,
		SetupMinor:           config.DefaultVersion.Minor,
		SetupKeepaliveMillis: uint32(c.cfg.KeepaliveInterval.Milliseconds()),
		SetupMaxLifetimeMs:   uint32(c.cfg.MaxLifetime.Milliseconds()),
		SetupMetadataMime:    c.cfg.MetadataMimeType,
		SetupDataMime:        c.cfg.DataMimeType,
	}
	if c.cfg.ProtocolVersion != (config.Version{}) {
		f.SetupMajor, f.SetupMinor = c.cfg.ProtocolVersion.Major, c.cfg.ProtocolVersion.Minor
	}
	if c.cfg.Resumable {
		f.Flags = frame.FlagResumeEnable
		f.ResumeToken = c.cfg.ResumeToken
	}
	c.outputOrEnqueue(f)
}

// Resume reconnects tr as a resumed transport, sending RESUME with the
// last-observed positions. cb is invoked exactly once with nil on
// RESUME_OK, or an error if the server rejects or the connection errors
// first (spec.md §4.1 RESUME_OK handling).
func (c *Connection) Resume(tr transport.Transport, serializer frame.Serializer, cb func(error)) {
	c.exec.postLocal(func() {
		if !c.cfg.Resumable || c.resumeMgr == nil {
			cb(errNotResumable())
			return
		}
		c.tr = tr
		c.isFramed = tr.IsFramed()
		c.out = tr.Outbound()
		c.serializer = serializer
		c.resumeCb = cb
		c.state = StateResuming
		tr.SetInbound(connSink{c})
		// RESUME is the trigger frame that elicits RESUME_OK; it must reach
		// the wire immediately rather than sit in c.pending behind the
		// StateResuming gate outputOrEnqueue applies to everything else.
		c.sendNow(&frame.Frame{
			Kind:                       frame.KindResume,
			StreamID:                   frame.ConnectionStreamID,
			SetupMajor:                 config.DefaultVersion.Major,
			SetupMinor:                 config.DefaultVersion.Minor,
			ResumeToken:                c.cfg.ResumeToken,
			ResumeLastReceivedServer:   uint64(c.resumeMgr.ImpliedPosition()),
			ResumeFirstAvailableClient: uint64(c.resumeMgr.FirstSentPosition()),
		})
	})
}

// Disconnect implements spec.md §4.1's resumable disconnect: closes the
// transport only, keeping streams and the resume cache intact.
func (c *Connection) Disconnect(reason error) {
	c.exec.postLocal(func() { c.disconnect(reason) })
}

func (c *Connection) disconnect(reason error) {
	if c.state == StateClosed {
		return
	}
	c.keepalive.stop()
	if c.tr != nil {
		_ = c.tr.Close()
	}
	if !c.cfg.Resumable {
		c.close(reason, stream.SignalConnectionEnd)
		return
	}
	// A transport dying while a Resume attempt is outstanding (state
	// StateResuming, resumeCb set) must still deliver exactly one outcome
	// to that callback (spec.md §7/§8) rather than leave the caller
	// hanging until a resume that will never arrive on this transport.
	if c.resumeCb != nil {
		cb := c.resumeCb
		c.resumeCb = nil
		cb(errConnectionClosed(reason))
	}
	c.state = StateDisconnected
}

// Close implements spec.md §4.1's termination discipline; idempotent.
func (c *Connection) Close(reason error) {
	c.exec.postLocal(func() { c.close(reason, stream.SignalConnectionEnd) })
}

func (c *Connection) close(reason error, signal stream.Signal) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	c.closed.Add(1) // flips IsClosed() for callers on other goroutines
	c.keepalive.stop()
	if c.resumeCb != nil {
		cb := c.resumeCb
		c.resumeCb = nil
		cb(errConnectionClosed(reason))
	}
	for id, a := range c.streams {
		delete(c.streams, id)
		a.EndStream(signal)
	}
	if c.tr != nil {
		_ = c.tr.Close()
	}
	if c.onClosed != nil && !c.onClosedOnce {
		c.onClosedOnce = true
		c.onClosed(reason)
	}
	c.exec.shutdown()
}

// IsClosed is safe to call from any goroutine.
func (c *Connection) IsClosed() bool { return c.closed.Add(0) != 0 }

func (c *Connection) onKeepaliveTick() {
	c.exec.postLocal(func() {
		if c.state != StateConnected || c.cfg.Mode != config.ModeClient {
			return
		}
		pos := uint64(0)
		if c.resumeMgr != nil {
			pos = uint64(c.resumeMgr.ImpliedPosition())
		}
		c.outputOrEnqueue(&frame.Frame{
			Kind:     frame.KindKeepalive,
			StreamID: frame.ConnectionStreamID,
			Flags:    frame.FlagRespond,
			Position: pos,
		})
	})
}

func (c *Connection) onKeepaliveTimeout() {
	c.exec.postLocal(func() {
		c.close(errKeepaliveTimeout(), stream.SignalConnectionError)
	})
}

// connSink adapts transport.InboundSink onto the executor, per spec.md
// §5's "terminal signals from transport are also re-enqueued."
type connSink struct{ c *Connection }

func (s connSink) OnFrame(b []byte) {
	cp := append([]byte(nil), b...)
	s.c.exec.postTransport(func() { s.c.dispatch(cp) })
}

func (s connSink) OnTerminal(t transport.Terminal) {
	s.c.exec.postTransport(func() { s.c.onTransportTerminal(t) })
}

func (c *Connection) onTransportTerminal(t transport.Terminal) {
	if t.Kind == transport.TerminalNormal {
		if c.cfg.Resumable && c.state != StateClosed {
			c.disconnect(nil)
			return
		}
		c.close(nil, stream.SignalSocketClosed)
		return
	}
	c.close(t.Err, stream.SignalSocketClosed)
}
