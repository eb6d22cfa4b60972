package resume

import "github.com/dymk/rsocket-go/pkg/rsocket/frame"

// entry is one cached outbound frame, keyed by the sent-position at which
// it ends.
type entry struct {
	endPosition Position
	streamID    frame.StreamID
	bytes       []byte
	kind        frame.Kind
}

// Sink is the minimal capability the cache needs to replay frames: any
// transport outbound sink satisfies this without the resume package
// depending on the transport package.
type Sink interface {
	Send(b []byte) error
}

// Cache is the ring of outbound resumable frames, indexed by wire position.
// Capacity is bounded; once full, the oldest entries are evicted, tainting
// (marking dirty) any stream whose frame was dropped.
type Cache struct {
	capacity    int
	entries     []entry
	evicted     map[frame.StreamID]Position // last end-position evicted per stream
	everEvicted bool                        // true once any frame has ever been dropped
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{capacity: capacity, evicted: make(map[frame.StreamID]Position)}
}

// Append records a frame that ended at endPosition. If the cache is at
// capacity, the oldest entry is evicted first.
func (c *Cache) Append(endPosition Position, streamID frame.StreamID, bytes []byte, kind frame.Kind) {
	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries = append(c.entries, entry{endPosition: endPosition, streamID: streamID, bytes: bytes, kind: kind})
}

func (c *Cache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}
	e := c.entries[0]
	c.entries = c.entries[1:]
	c.everEvicted = true
	if e.streamID != frame.ConnectionStreamID {
		if prev, ok := c.evicted[e.streamID]; !ok || e.endPosition > prev {
			c.evicted[e.streamID] = e.endPosition
		}
	}
}

// FirstPosition returns the end-position of the oldest cached frame, or
// Unspecified if the cache is empty.
func (c *Cache) FirstPosition() Position {
	if len(c.entries) == 0 {
		return Unspecified
	}
	return c.entries[0].endPosition
}

// LastPosition returns the end-position of the newest cached frame, or
// Unspecified if the cache is empty.
func (c *Cache) LastPosition() Position {
	if len(c.entries) == 0 {
		return Unspecified
	}
	return c.entries[len(c.entries)-1].endPosition
}

// ResetUpTo drops cached frames whose end-position is <= position. It is
// monotonic: calling it with a smaller position than a previous call is a
// no-op for already-dropped entries.
func (c *Cache) ResetUpTo(position Position) {
	for len(c.entries) > 0 && c.entries[0].endPosition <= position {
		c.evictOldest()
	}
}

// IsAvailable reports whether position falls within the cached range
// [first, last]. Position 0 (a peer that has received nothing yet) and the
// Unspecified sentinel carry no lower bound of their own: they are
// resumable exactly when this connection has never evicted a frame, i.e.
// still holds a contiguous history back to the very start.
func (c *Cache) IsAvailable(position Position) bool {
	if position == 0 || !position.IsSpecified() {
		return !c.everEvicted
	}
	first, last := c.FirstPosition(), c.LastPosition()
	if !first.IsSpecified() || !last.IsSpecified() {
		return false
	}
	return first <= position && position <= last
}

// IsAvailableForStream additionally requires that no frame belonging to
// streamID with an end-position greater than position has been evicted
// (spec.md §4.3's clean/dirty classification).
func (c *Cache) IsAvailableForStream(position Position, streamID frame.StreamID) bool {
	if !c.IsAvailable(position) {
		return false
	}
	evictedUpTo, ok := c.evicted[streamID]
	return !ok || evictedUpTo <= position
}

// SendFramesFrom replays, in original order, every cached frame with an
// end-position greater than position.
func (c *Cache) SendFramesFrom(position Position, sink Sink) error {
	for _, e := range c.entries {
		if e.endPosition <= position {
			continue
		}
		if err := sink.Send(e.bytes); err != nil {
			return err
		}
	}
	return nil
}

// OnStreamClosed drops per-stream dirty bookkeeping. Cached bytes remain
// until ResetUpTo advances past them.
func (c *Cache) OnStreamClosed(streamID frame.StreamID) {
	delete(c.evicted, streamID)
}

// Len reports the number of cached frames, for tests and diagnostics.
func (c *Cache) Len() int { return len(c.entries) }
