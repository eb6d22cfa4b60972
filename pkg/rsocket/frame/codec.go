package frame

// Serializer is the abstract wire codec the core consumes. It is an
// external collaborator per spec.md §6: the core never hard-codes a wire
// format beyond what it needs to route frames (PeekKind/PeekStreamID).
type Serializer interface {
	PeekKind(b []byte) (Kind, error)
	PeekStreamID(b []byte) (StreamID, bool)
	SerializeOut(f *Frame, resumable bool) ([]byte, error)
	Deserialize(kind Kind, b []byte) (*Frame, error)
	ProtocolVersion() (major, minor uint16)
}
