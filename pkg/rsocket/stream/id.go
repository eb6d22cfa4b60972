// Package stream implements the per-stream state machines (spec.md §4.2)
// and the stream id allocator (spec.md §4.4).
package stream

import (
	"code.hybscloud.com/atomix"

	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
)

// Role selects the parity a connection allocates local stream ids with.
type Role int

const (
	RoleClient Role = iota // odd ids, starting at 1
	RoleServer              // even ids, starting at 2
)

// Allocator hands out locally-initiated stream ids and validates
// peer-initiated ones (spec.md §4.4). Confined to the connection's
// executor: the counter is an atomix.Uint32 not because Allocator is
// shared across goroutines (it is not) but because it is the pack's own
// idiom for a monotonically-increasing serial counter incremented by a
// fixed step (compare hayabusa-cloud-sess's serial.go, whose nextSerial is
// exactly this shape: counter.Add(step)).
type Allocator struct {
	role Role

	local   atomix.Uint32
	lastPeer frame.StreamID
	sawPeer  bool

	// legacyNoMonotonicity disables the peer monotonicity check, per
	// spec.md §4.4's "Protocol version 0.0 disables monotonicity check for
	// legacy compatibility."
	legacyNoMonotonicity bool
}

func NewAllocator(role Role, legacyNoMonotonicity bool) *Allocator {
	return &Allocator{role: role, legacyNoMonotonicity: legacyNoMonotonicity}
}

// Next allocates the next locally-initiated stream id: 1, 3, 5, ... for a
// client, 2, 4, 6, ... for a server. Add(2) on a counter starting at zero
// yields 2, 4, 6, ...; the client sequence is that same run shifted down
// by one.
func (a *Allocator) Next() frame.StreamID {
	v := a.local.Add(2)
	if a.role == RoleClient {
		v--
	}
	return frame.StreamID(v)
}

// RegisterPeer accepts id as a peer-initiated stream id if it has the
// peer's parity and (unless legacy) strictly exceeds the last accepted peer
// id. On success it updates the high-water mark.
func (a *Allocator) RegisterPeer(id frame.StreamID) bool {
	if id.IsConnection() {
		return false
	}
	wantOdd := a.role == RoleServer // server's peer is the client: odd ids
	if wantOdd && !id.IsOdd() {
		return false
	}
	if !wantOdd && !id.IsEven() {
		return false
	}
	if !a.legacyNoMonotonicity && a.sawPeer && id <= a.lastPeer {
		return false
	}
	a.lastPeer = id
	a.sawPeer = true
	return true
}
