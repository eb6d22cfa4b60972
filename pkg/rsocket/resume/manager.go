package resume

import "github.com/dymk/rsocket-go/pkg/rsocket/frame"

// Manager is the resume manager described in spec.md §4.3: it owns the
// sent-position counter, the outbound ring cache, and the received-side
// tracker for one connection. Confined to the connection's executor.
type Manager struct {
	sent    Position
	cache   *Cache
	tracker Tracker
}

func NewManager(cacheCapacity int) *Manager {
	return &Manager{cache: NewCache(cacheCapacity)}
}

// TrackSentFrame, for resumable kinds, advances the sent position by
// len(bytes) and appends the frame to the ring cache; other kinds are
// ignored.
func (m *Manager) TrackSentFrame(bytes []byte, kind frame.Kind, streamID frame.StreamID) {
	if !kind.Resumable() {
		return
	}
	m.sent += Position(len(bytes))
	m.cache.Append(m.sent, streamID, bytes, kind)
}

func (m *Manager) TrackReceivedFrame(bytes []byte, kind frame.Kind, streamID frame.StreamID) {
	m.tracker.TrackReceivedFrame(bytes, kind, streamID)
}

func (m *Manager) SentPosition() Position     { return m.sent }
func (m *Manager) ImpliedPosition() Position  { return m.tracker.ImpliedPosition() }
func (m *Manager) FirstSentPosition() Position { return m.cache.FirstPosition() }

func (m *Manager) ResetUpTo(position Position) { m.cache.ResetUpTo(position) }

func (m *Manager) IsPositionAvailable(position Position) bool {
	return m.cache.IsAvailable(position)
}

func (m *Manager) IsPositionAvailableForStream(position Position, streamID frame.StreamID) bool {
	return m.cache.IsAvailableForStream(position, streamID)
}

func (m *Manager) SendFramesFrom(position Position, sink Sink) error {
	return m.cache.SendFramesFrom(position, sink)
}

func (m *Manager) OnStreamClosed(streamID frame.StreamID) {
	m.cache.OnStreamClosed(streamID)
}

// CacheLen exposes the current ring depth for tests and diagnostics.
func (m *Manager) CacheLen() int { return m.cache.Len() }
