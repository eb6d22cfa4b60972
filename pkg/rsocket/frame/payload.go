package frame

// Payload is the application-visible unit carried by PAYLOAD, REQUEST_*, and
// METADATA_PUSH frames: optional metadata bytes plus optional data bytes.
type Payload struct {
	Metadata []byte
	Data     []byte
}

// HasMetadata reports whether Metadata is present (as opposed to absent,
// which is distinct from present-but-empty at the wire level via
// FlagMetadata).
func (p Payload) HasMetadata() bool { return p.Metadata != nil }
