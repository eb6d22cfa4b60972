package transport

import (
	"fmt"
	"io"
)

// lengthPrefixLen is the size of the 24-bit big-endian frame length prefix
// unframed (byte-stream) transports must apply, per spec.md §6.
const lengthPrefixLen = 3

const maxFrameLen = 1<<24 - 1

// WriteLengthPrefixed writes b to w preceded by its 24-bit big-endian
// length, mirroring the teacher's WriteFrameHeader byte-packing style
// (pkg/http/h2/framing.go) generalized from a 9-byte HTTP/2 header to
// RSocket's 3-byte transport length prefix.
func WriteLengthPrefixed(w io.Writer, b []byte) error {
	if len(b) > maxFrameLen {
		return fmt.Errorf("transport: frame too large: %d bytes exceeds %d", len(b), maxFrameLen)
	}
	prefix := make([]byte, lengthPrefixLen)
	prefix[0] = byte(len(b) >> 16)
	prefix[1] = byte(len(b) >> 8)
	prefix[2] = byte(len(b))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadLengthPrefixed reads one length-prefixed frame from r.
func ReadLengthPrefixed(r io.Reader) ([]byte, error) {
	prefix := make([]byte, lengthPrefixLen)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	n := int(prefix[0])<<16 | int(prefix[1])<<8 | int(prefix[2])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
