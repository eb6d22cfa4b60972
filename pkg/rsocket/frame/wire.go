package frame

import (
	"encoding/binary"
	"fmt"
)

// header is the 6-byte common frame header: a 32-bit stream id (top bit
// reserved and always zero on the wire) followed by a 16-bit field packing
// the 6-bit frame type and 10-bit flags.
const headerLen = 6

func readHeader(b []byte) (StreamID, Kind, Flags, error) {
	if len(b) < headerLen {
		return 0, 0, 0, fmt.Errorf("frame: header truncated: got %d bytes, want %d", len(b), headerLen)
	}
	streamID := StreamID(binary.BigEndian.Uint32(b[0:4]) & uint32(MaxStreamID))
	typeAndFlags := binary.BigEndian.Uint16(b[4:6])
	kind := Kind(typeAndFlags >> 10)
	flags := Flags(typeAndFlags & 0x03ff)
	return streamID, kind, flags, nil
}

func writeHeader(streamID StreamID, kind Kind, flags Flags) []byte {
	b := make([]byte, headerLen)
	binary.BigEndian.PutUint32(b[0:4], uint32(streamID)&uint32(MaxStreamID))
	typeAndFlags := uint16(kind)<<10 | uint16(flags&0x03ff)
	binary.BigEndian.PutUint16(b[4:6], typeAndFlags)
	return b
}

// PeekKind reads the frame kind from a serialized frame without fully
// decoding it.
func PeekKind(b []byte) (Kind, error) {
	_, kind, _, err := readHeader(b)
	return kind, err
}

// PeekStreamID reads the stream id from a serialized frame without fully
// decoding it. ok is false if b is too short to contain a header.
func PeekStreamID(b []byte) (StreamID, bool) {
	if len(b) < headerLen {
		return 0, false
	}
	id := StreamID(binary.BigEndian.Uint32(b[0:4]) & uint32(MaxStreamID))
	return id, true
}

func putUint32(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }
func putUint64(dst []byte, v uint64) { binary.BigEndian.PutUint64(dst, v) }

// V1Serializer implements the Serializer contract for RSocket protocol
// version 1.0. It is the only Serializer this engine ships; additional
// versions are pluggable by implementing the same interface (spec.md §6).
type V1Serializer struct{}

var _ Serializer = V1Serializer{}

func (V1Serializer) ProtocolVersion() (major, minor uint16) { return 1, 0 }

func (V1Serializer) PeekKind(b []byte) (Kind, error) { return PeekKind(b) }

func (V1Serializer) PeekStreamID(b []byte) (StreamID, bool) { return PeekStreamID(b) }

// SerializeOut encodes f to its wire representation. resumable is currently
// unused by the v1 codec (resumability affects what the connection tracks,
// not the bytes on the wire) but is part of the Serializer contract so
// future codecs (or ones adding a resume-specific wire marker) can use it.
func (V1Serializer) SerializeOut(f *Frame, resumable bool) ([]byte, error) {
	_ = resumable
	switch f.Kind {
	case KindSetup:
		return serializeSetup(f), nil
	case KindLease:
		return serializeLease(f), nil
	case KindKeepalive:
		return serializeKeepalive(f), nil
	case KindRequestResponse, KindRequestFNF:
		return serializeRequestNoN(f), nil
	case KindRequestStream, KindRequestChannel:
		return serializeRequestWithN(f), nil
	case KindRequestN:
		return serializeRequestN(f), nil
	case KindCancel:
		return serializeNoBody(f), nil
	case KindPayload:
		return serializePayload(f), nil
	case KindError:
		return serializeError(f), nil
	case KindMetadataPush:
		return serializeMetadataPush(f), nil
	case KindResume:
		return serializeResume(f), nil
	case KindResumeOK:
		return serializeResumeOK(f), nil
	default:
		return nil, fmt.Errorf("frame: cannot serialize unknown kind %v", f.Kind)
	}
}

func (V1Serializer) Deserialize(kind Kind, b []byte) (*Frame, error) {
	streamID, decodedKind, flags, err := readHeader(b)
	if err != nil {
		return nil, err
	}
	if decodedKind != kind {
		return nil, fmt.Errorf("frame: kind mismatch: header says %v, caller expected %v", decodedKind, kind)
	}
	body := b[headerLen:]
	f := &Frame{Kind: kind, StreamID: streamID, Flags: flags}
	switch kind {
	case KindSetup:
		return f, deserializeSetup(f, body)
	case KindLease:
		return f, deserializeLease(f, body)
	case KindKeepalive:
		return f, deserializeKeepalive(f, body)
	case KindRequestResponse, KindRequestFNF:
		return f, deserializeRequestNoN(f, body)
	case KindRequestStream, KindRequestChannel:
		return f, deserializeRequestWithN(f, body)
	case KindRequestN:
		return f, deserializeRequestN(f, body)
	case KindCancel:
		return f, nil
	case KindPayload:
		return f, deserializePayload(f, body)
	case KindError:
		return f, deserializeError(f, body)
	case KindMetadataPush:
		return f, deserializeMetadataPush(f, body)
	case KindResume:
		return f, deserializeResume(f, body)
	case KindResumeOK:
		return f, deserializeResumeOK(f, body)
	default:
		return f, nil
	}
}

// readMetadataAndData reads the (optional length-prefixed metadata, remaining
// data) pair common to PAYLOAD/REQUEST_*/METADATA_PUSH bodies. Metadata is
// prefixed with a 24-bit big-endian length when FlagMetadata is set.
func readMetadataAndData(flags Flags, body []byte) (metadata, data []byte, err error) {
	if !flags.Has(FlagMetadata) {
		return nil, body, nil
	}
	if len(body) < 3 {
		return nil, nil, fmt.Errorf("frame: metadata length truncated")
	}
	mlen := int(body[0])<<16 | int(body[1])<<8 | int(body[2])
	body = body[3:]
	if len(body) < mlen {
		return nil, nil, fmt.Errorf("frame: metadata truncated: want %d bytes, have %d", mlen, len(body))
	}
	metadata = append([]byte(nil), body[:mlen]...)
	data = body[mlen:]
	return metadata, data, nil
}

func writeMetadataAndData(flags *Flags, metadata, data []byte) []byte {
	if metadata == nil {
		return append([]byte(nil), data...)
	}
	*flags |= FlagMetadata
	out := make([]byte, 3, 3+len(metadata)+len(data))
	mlen := len(metadata)
	out[0] = byte(mlen >> 16)
	out[1] = byte(mlen >> 8)
	out[2] = byte(mlen)
	out = append(out, metadata...)
	out = append(out, data...)
	return out
}

func serializeNoBody(f *Frame) []byte {
	return writeHeader(f.StreamID, f.Kind, f.Flags)
}

func serializeKeepalive(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := make([]byte, 8)
	putUint64(body, f.Position)
	body = append(body, f.Payload.Data...)
	return append(hdr, body...)
}

func deserializeKeepalive(f *Frame, body []byte) error {
	if len(body) < 8 {
		return fmt.Errorf("frame: KEEPALIVE truncated")
	}
	f.Position = binary.BigEndian.Uint64(body[0:8])
	f.Payload.Data = append([]byte(nil), body[8:]...)
	return nil
}

func serializeRequestNoN(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := writeMetadataAndData(&f.Flags, f.Payload.Metadata, f.Payload.Data)
	hdr = writeHeader(f.StreamID, f.Kind, f.Flags)
	return append(hdr, body...)
}

func deserializeRequestNoN(f *Frame, body []byte) error {
	metadata, data, err := readMetadataAndData(f.Flags, body)
	if err != nil {
		return err
	}
	f.Payload = Payload{Metadata: metadata, Data: data}
	return nil
}

func serializeRequestWithN(f *Frame) []byte {
	nbuf := make([]byte, 4)
	putUint32(nbuf, f.InitialRequestN)
	body := append(nbuf, writeMetadataAndData(&f.Flags, f.Payload.Metadata, f.Payload.Data)...)
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	return append(hdr, body...)
}

func deserializeRequestWithN(f *Frame, body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("frame: REQUEST_STREAM/CHANNEL truncated")
	}
	f.InitialRequestN = binary.BigEndian.Uint32(body[0:4])
	metadata, data, err := readMetadataAndData(f.Flags, body[4:])
	if err != nil {
		return err
	}
	f.Payload = Payload{Metadata: metadata, Data: data}
	return nil
}

func serializeRequestN(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := make([]byte, 4)
	putUint32(body, f.RequestN)
	return append(hdr, body...)
}

func deserializeRequestN(f *Frame, body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("frame: REQUEST_N truncated")
	}
	f.RequestN = binary.BigEndian.Uint32(body[0:4])
	return nil
}

func serializePayload(f *Frame) []byte {
	body := writeMetadataAndData(&f.Flags, f.Payload.Metadata, f.Payload.Data)
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	return append(hdr, body...)
}

func deserializePayload(f *Frame, body []byte) error {
	metadata, data, err := readMetadataAndData(f.Flags, body)
	if err != nil {
		return err
	}
	f.Payload = Payload{Metadata: metadata, Data: data}
	return nil
}

func serializeMetadataPush(f *Frame) []byte {
	f.Flags |= FlagMetadata
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	return append(hdr, f.Payload.Metadata...)
}

func deserializeMetadataPush(f *Frame, body []byte) error {
	f.Payload = Payload{Metadata: append([]byte(nil), body...)}
	return nil
}

func serializeError(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := make([]byte, 4, 4+len(f.ErrorMessage))
	putUint32(body, uint32(f.ErrorCode))
	body = append(body, []byte(f.ErrorMessage)...)
	return append(hdr, body...)
}

func deserializeError(f *Frame, body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("frame: ERROR truncated")
	}
	f.ErrorCode = ErrorCode(binary.BigEndian.Uint32(body[0:4]))
	f.ErrorMessage = string(body[4:])
	return nil
}

func serializeLease(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := make([]byte, 8)
	putUint32(body[0:4], f.InitialRequestN) // time-to-live reuses this field
	putUint32(body[4:8], f.RequestN)        // number-of-requests reuses this field
	return append(hdr, body...)
}

func deserializeLease(f *Frame, body []byte) error {
	if len(body) < 8 {
		return fmt.Errorf("frame: LEASE truncated")
	}
	f.InitialRequestN = binary.BigEndian.Uint32(body[0:4])
	f.RequestN = binary.BigEndian.Uint32(body[4:8])
	return nil
}

func serializeSetup(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := make([]byte, 0, 32)
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint16(tmp[0:2], f.SetupMajor)
	binary.BigEndian.PutUint16(tmp[2:4], f.SetupMinor)
	body = append(body, tmp...)
	tmp4 := make([]byte, 4)
	putUint32(tmp4, f.SetupKeepaliveMillis)
	body = append(body, tmp4...)
	putUint32(tmp4, f.SetupMaxLifetimeMs)
	body = append(body, tmp4...)
	if f.Flags.Has(FlagResumeEnable) {
		tmp2 := make([]byte, 2)
		binary.BigEndian.PutUint16(tmp2, uint16(len(f.ResumeToken)))
		body = append(body, tmp2...)
		body = append(body, f.ResumeToken...)
	}
	body = append(body, byte(len(f.SetupMetadataMime)))
	body = append(body, []byte(f.SetupMetadataMime)...)
	body = append(body, byte(len(f.SetupDataMime)))
	body = append(body, []byte(f.SetupDataMime)...)
	body = append(body, writeMetadataAndData(&f.Flags, f.Payload.Metadata, f.Payload.Data)...)
	hdr = writeHeader(f.StreamID, f.Kind, f.Flags)
	return append(hdr, body...)
}

func deserializeSetup(f *Frame, body []byte) error {
	if len(body) < 12 {
		return fmt.Errorf("frame: SETUP truncated")
	}
	f.SetupMajor = binary.BigEndian.Uint16(body[0:2])
	f.SetupMinor = binary.BigEndian.Uint16(body[2:4])
	f.SetupKeepaliveMillis = binary.BigEndian.Uint32(body[4:8])
	f.SetupMaxLifetimeMs = binary.BigEndian.Uint32(body[8:12])
	body = body[12:]
	if f.Flags.Has(FlagResumeEnable) {
		if len(body) < 2 {
			return fmt.Errorf("frame: SETUP resume token length truncated")
		}
		tlen := int(binary.BigEndian.Uint16(body[0:2]))
		body = body[2:]
		if len(body) < tlen {
			return fmt.Errorf("frame: SETUP resume token truncated")
		}
		f.ResumeToken = append([]byte(nil), body[:tlen]...)
		body = body[tlen:]
	}
	if len(body) < 1 {
		return fmt.Errorf("frame: SETUP metadata mime truncated")
	}
	mmlen := int(body[0])
	body = body[1:]
	if len(body) < mmlen {
		return fmt.Errorf("frame: SETUP metadata mime truncated")
	}
	f.SetupMetadataMime = string(body[:mmlen])
	body = body[mmlen:]
	if len(body) < 1 {
		return fmt.Errorf("frame: SETUP data mime truncated")
	}
	dmlen := int(body[0])
	body = body[1:]
	if len(body) < dmlen {
		return fmt.Errorf("frame: SETUP data mime truncated")
	}
	f.SetupDataMime = string(body[:dmlen])
	body = body[dmlen:]
	metadata, data, err := readMetadataAndData(f.Flags, body)
	if err != nil {
		return err
	}
	f.Payload = Payload{Metadata: metadata, Data: data}
	return nil
}

func serializeResume(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := make([]byte, 0, 24+len(f.ResumeToken))
	tmp2 := make([]byte, 2)
	binary.BigEndian.PutUint16(tmp2, uint16(len(f.ResumeToken)))
	body = append(body, tmp2...)
	body = append(body, f.ResumeToken...)
	tmp8 := make([]byte, 8)
	putUint64(tmp8, f.ResumeLastReceivedServer)
	body = append(body, tmp8...)
	putUint64(tmp8, f.ResumeFirstAvailableClient)
	body = append(body, tmp8...)
	return append(hdr, body...)
}

func deserializeResume(f *Frame, body []byte) error {
	if len(body) < 2 {
		return fmt.Errorf("frame: RESUME truncated")
	}
	tlen := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	if len(body) < tlen+16 {
		return fmt.Errorf("frame: RESUME truncated")
	}
	f.ResumeToken = append([]byte(nil), body[:tlen]...)
	body = body[tlen:]
	f.ResumeLastReceivedServer = binary.BigEndian.Uint64(body[0:8])
	f.ResumeFirstAvailableClient = binary.BigEndian.Uint64(body[8:16])
	return nil
}

func serializeResumeOK(f *Frame) []byte {
	hdr := writeHeader(f.StreamID, f.Kind, f.Flags)
	body := make([]byte, 8)
	putUint64(body, f.ResumePosition)
	return append(hdr, body...)
}

func deserializeResumeOK(f *Frame, body []byte) error {
	if len(body) < 8 {
		return fmt.Errorf("frame: RESUME_OK truncated")
	}
	f.ResumePosition = binary.BigEndian.Uint64(body[0:8])
	return nil
}

// Autodetect inspects the first frame's bytes and returns a Serializer able
// to decode this and subsequent frames, or false if the version cannot be
// determined (spec.md §4.1 step 1). The only version this engine ships is
// 1.0, so autodetection is a validity check: the first frame from a client
// must be SETUP carrying major=1.
func Autodetect(first []byte) (Serializer, bool) {
	streamID, kind, _, err := readHeader(first)
	if err != nil || streamID != ConnectionStreamID || kind != KindSetup {
		return nil, false
	}
	if len(first) < headerLen+2 {
		return nil, false
	}
	major := binary.BigEndian.Uint16(first[headerLen : headerLen+2])
	if major != 1 {
		return nil, false
	}
	return V1Serializer{}, true
}
