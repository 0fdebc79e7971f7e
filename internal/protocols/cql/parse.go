package cql

import (
	"bytes"
	"encoding/binary"

	"firestige.xyz/argus/internal/protocols"
)

const (
	// frameHeaderLength is the fixed header size: version, flags, stream,
	// opcode, length.
	frameHeaderLength = 9

	// maxFrameLength is the native protocol's frame body cap (256 MB).
	// Anything larger is treated as a desynchronized stream.
	maxFrameLength = 256 << 20

	// Defined header flag bits (compression, tracing, custom payload,
	// warning). Used only as a resync plausibility filter.
	headerFlagsMask = 0x0f
)

// StreamParser implements the protocols.Parser contract for the Cassandra
// native protocol. It is stateless; one value can serve any number of
// connections.
type StreamParser struct{}

var _ protocols.Parser[Frame, Record, protocols.NoState] = StreamParser{}

// decodeHeader reads and validates the 9-byte header at the front of b
// against the expected direction. Returns ok=false when the bytes cannot
// begin a frame of that direction.
func decodeHeader(dir protocols.Direction, b []byte) (FrameHeader, bool) {
	hdr := FrameHeader{
		Version: Version(b[0]),
		Flags:   b[1],
		Stream:  int16(binary.BigEndian.Uint16(b[2:4])),
		Opcode:  Opcode(b[4]),
		Length:  int32(binary.BigEndian.Uint32(b[5:9])),
	}
	if hdr.Version.IsResponse() != (dir == protocols.DirectionResponse) {
		return FrameHeader{}, false
	}
	if n := hdr.Version.Number(); n < minProtocolVersion || n > maxProtocolVersion {
		return FrameHeader{}, false
	}
	if dir == protocols.DirectionRequest && !hdr.Opcode.IsRequest() {
		return FrameHeader{}, false
	}
	if dir == protocols.DirectionResponse && !hdr.Opcode.IsResponse() {
		return FrameHeader{}, false
	}
	if hdr.Length < 0 || hdr.Length > maxFrameLength {
		return FrameHeader{}, false
	}
	return hdr, true
}

// ParseFrame decodes exactly one frame from the front of *buf. On
// StateSuccess the frame's bytes are consumed from the buffer; the body is
// copied so the frame stays valid after the buffer is truncated or
// reallocated.
func (StreamParser) ParseFrame(dir protocols.Direction, buf *[]byte, frame *Frame) protocols.ParseState {
	b := *buf
	if len(b) < frameHeaderLength {
		return protocols.StateNeedsMoreData
	}
	hdr, ok := decodeHeader(dir, b)
	if !ok {
		return protocols.StateInvalid
	}
	total := frameHeaderLength + int(hdr.Length)
	if len(b) < total {
		return protocols.StateNeedsMoreData
	}
	frame.Hdr = hdr
	frame.Msg = bytes.Clone(b[frameHeaderLength:total])
	*buf = b[total:]
	return protocols.StateSuccess
}

// FindFrameBoundary scans buf forward from startPos for the next offset
// that plausibly begins a frame header of the given direction. The
// returned position is always strictly greater than startPos, guaranteeing
// forward progress during resynchronization.
func (StreamParser) FindFrameBoundary(dir protocols.Direction, buf []byte, startPos int) int {
	if startPos < 0 {
		startPos = -1
	}
	for i := startPos + 1; i+frameHeaderLength <= len(buf); i++ {
		if buf[i+1]&^byte(headerFlagsMask) != 0 {
			continue
		}
		if _, ok := decodeHeader(dir, buf[i:]); ok {
			return i
		}
	}
	return protocols.BoundaryNotFound
}
