package resume

import "github.com/dymk/rsocket-go/pkg/rsocket/frame"

// Tracker is the received-side counterpart to Cache: it advances an implied
// position for each resumable inbound frame. Owned by the connection's
// executor; never accessed concurrently, so it needs no synchronization.
type Tracker struct {
	implied Position
}

// TrackReceivedFrame advances the implied position by len(bytes) if kind is
// resumable.
func (t *Tracker) TrackReceivedFrame(bytes []byte, kind frame.Kind, _ frame.StreamID) {
	if kind.Resumable() {
		t.implied += Position(len(bytes))
	}
}

func (t *Tracker) ImpliedPosition() Position { return t.implied }
