package frame

// StreamID is an unsigned 31-bit stream identifier. Zero is reserved for
// connection-level frames. Client-initiated ids are odd starting at 1;
// server-initiated ids are even starting at 2.
type StreamID uint32

// ConnectionStreamID is the reserved id for frames directed at the
// connection itself (SETUP, KEEPALIVE, RESUME, RESUME_OK, ERROR at stream 0,
// METADATA_PUSH, LEASE).
const ConnectionStreamID StreamID = 0

// MaxStreamID is the largest representable 31-bit stream id.
const MaxStreamID StreamID = 0x7fffffff

func (id StreamID) IsConnection() bool { return id == ConnectionStreamID }

// IsOdd reports client parity; IsEven reports server parity.
func (id StreamID) IsOdd() bool  { return id%2 == 1 }
func (id StreamID) IsEven() bool { return id != 0 && id%2 == 0 }
