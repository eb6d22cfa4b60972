// Package resume implements the resumption subsystem: monotonic position
// counters, a ring cache of outbound frames indexed by position, and the
// server-side token store (spec.md §3, §4.3).
package resume

// Position is an unsigned 64-bit byte count of resumable frames sent or
// received on a connection.
type Position uint64

// Unspecified denotes "no constraint" per spec.md §3.
const Unspecified Position = 1<<64 - 1

func (p Position) IsSpecified() bool { return p != Unspecified }
