package conn

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/config"
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/resume"
	"github.com/dymk/rsocket-go/pkg/rsocket/stream"
	"github.com/dymk/rsocket-go/pkg/rsocket/transport"
)

// Server accepts transports, triaging each one's first frame into either a
// fresh Connection (SETUP) or a resumed rebind onto a previously accepted
// Connection (RESUME), per spec.md §4.1's RESUME handler: "look up token;
// if found and positions available, send RESUME_OK ... else send
// ERROR(REJECTED_RESUME) and close." The token table is shared across
// connection executors, so it is guarded the way the teacher's
// pkg/auth/session.go SessionManager guards its token table: a
// resume.TokenStore backed by sync.Map plus a mutex for the compound
// look-up-then-swap.
type Server struct {
	handler stream.RequestHandler
	tokens  *resume.TokenStore[*Connection]
}

func NewServer(handler stream.RequestHandler) *Server {
	return &Server{handler: handler, tokens: resume.NewTokenStore[*Connection]()}
}

// Accept binds tr, waiting for its first frame to decide whether this is a
// new SETUP or a RESUME of a previously accepted, now-disconnected
// Connection. baseCfg supplies keepalive/resume-cache defaults for a new
// Connection; Resumable/ResumeToken on it are overwritten from the peer's
// SETUP when that SETUP carries RESUME_ENABLE.
func (srv *Server) Accept(tr transport.Transport, baseCfg *config.Config) {
	sink := &firstFrameSink{srv: srv, tr: tr, baseCfg: baseCfg}
	tr.SetInbound(sink)
}

// firstFrameSink intercepts exactly the first inbound frame on a newly
// accepted transport to decide SETUP vs RESUME, then gets out of the way.
type firstFrameSink struct {
	srv     *Server
	tr      transport.Transport
	baseCfg *config.Config
	done    bool
}

func (s *firstFrameSink) OnFrame(b []byte) {
	if s.done {
		return
	}
	s.done = true

	serializer, ok := frame.Autodetect(b)
	if !ok {
		// Autodetect recognizes only SETUP; a RESUME first frame is decoded
		// with the one wire version this engine speaks.
		if k, err := frame.PeekKind(b); err == nil && k == frame.KindResume {
			serializer, ok = frame.V1Serializer{}, true
		}
	}
	if !ok {
		_ = s.tr.Close()
		return
	}
	kind, err := serializer.PeekKind(b)
	if err != nil {
		_ = s.tr.Close()
		return
	}
	switch kind {
	case frame.KindSetup:
		f, err := serializer.Deserialize(kind, b)
		if err != nil {
			_ = s.tr.Close()
			return
		}
		s.srv.acceptSetup(s.tr, serializer, f, s.baseCfg)
	case frame.KindResume:
		f, err := serializer.Deserialize(kind, b)
		if err != nil {
			_ = s.tr.Close()
			return
		}
		s.srv.acceptResume(s.tr, serializer, f)
	default:
		_ = s.tr.Close()
	}
}

func (s *firstFrameSink) OnTerminal(transport.Terminal) {}

func (srv *Server) acceptSetup(tr transport.Transport, serializer frame.Serializer, f *frame.Frame, baseCfg *config.Config) {
	cfg := *baseCfg
	cfg.Mode = config.ModeServer
	cfg.MetadataMimeType = f.SetupMetadataMime
	cfg.DataMimeType = f.SetupDataMime
	if f.IsResumeEnable() {
		cfg.Resumable = true
		cfg.ResumeToken = f.ResumeToken
	}
	c := New(&cfg, srv.handler)
	c.serializer = serializer
	c.tr = tr
	c.isFramed = tr.IsFramed()
	c.out = tr.Outbound()
	c.state = StateConnected
	tr.SetInbound(connSink{c})
	c.keepalive.start()
	if cfg.Resumable {
		token := string(cfg.ResumeToken)
		srv.tokens.Put(token, c)
		c.OnClosed(func(error) { srv.tokens.Delete(token) })
	}
}

func (srv *Server) acceptResume(tr transport.Transport, serializer frame.Serializer, f *frame.Frame) {
	existing, ok := srv.tokens.Get(string(f.ResumeToken))
	if !ok {
		rejectResume(tr, serializer)
		return
	}
	done := make(chan struct{})
	existing.exec.postLocal(func() {
		defer close(done)
		existing.resumeRebind(tr, serializer, f)
	})
	<-done
}

func rejectResume(tr transport.Transport, serializer frame.Serializer) {
	b, err := serializer.SerializeOut(&frame.Frame{
		Kind:         frame.KindError,
		StreamID:     frame.ConnectionStreamID,
		ErrorCode:    frame.ErrorCodeRejectedResume,
		ErrorMessage: "resume token unknown or position unavailable",
	}, false)
	if err == nil {
		_ = tr.Outbound().Send(b)
	}
	_ = tr.Close()
}

// resumeRebind is spec.md §4.1's server-side RESUME handler, run on the
// existing (disconnected) Connection's own executor so its streams map and
// resume cache are touched only from their owning executor.
func (c *Connection) resumeRebind(tr transport.Transport, serializer frame.Serializer, f *frame.Frame) {
	peerPos := resume.Position(f.ResumeLastReceivedServer)
	if c.resumeMgr == nil || !c.resumeMgr.IsPositionAvailable(peerPos) {
		rejectResume(tr, serializer)
		return
	}
	c.tr = tr
	c.serializer = serializer
	c.isFramed = tr.IsFramed()
	c.out = tr.Outbound()
	c.state = StateConnected
	tr.SetInbound(connSink{c})

	implied := c.resumeMgr.ImpliedPosition()
	c.sendNow(&frame.Frame{Kind: frame.KindResumeOK, StreamID: frame.ConnectionStreamID, ResumePosition: uint64(implied)})

	// Streams with frames evicted from the cache in (peerPos, sent] cannot
	// be resumed correctly: the peer is missing bytes we can no longer
	// replay. Tear those down; clean streams simply continue once the
	// cache replay below catches the peer up.
	for id, a := range c.streams {
		if !c.resumeMgr.IsPositionAvailableForStream(peerPos, id) {
			delete(c.streams, id)
			a.EndStream(stream.SignalError)
		}
	}
	if err := c.resumeMgr.SendFramesFrom(peerPos, connOutboundSinkAdapter{c}); err != nil {
		c.close(err, stream.SignalConnectionError)
		return
	}
	c.keepalive.start()
	c.flushPending()
}

// connOutboundSinkAdapter adapts Connection's raw byte writer to
// resume.Sink for cache replay.
type connOutboundSinkAdapter struct{ c *Connection }

func (a connOutboundSinkAdapter) Send(b []byte) error {
	a.c.writeBytes(b)
	return nil
}
