package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/argus/internal/protocols"
)

const (
	requestV4  = Version(0x04)
	responseV4 = Version(0x84)
)

func TestParseFrameRequest(t *testing.T) {
	parser := StreamParser{}
	body := append(encodeLongString("SELECT * FROM system.peers"), encodeQueryParameters(QueryParameters{Consistency: 1})...)
	buf := encodeFrame(requestV4, 7, OpQuery, body)
	trailing := []byte{0x99, 0x98}
	buf = append(buf, trailing...)

	var frame Frame
	state := parser.ParseFrame(protocols.DirectionRequest, &buf, &frame)
	require.Equal(t, protocols.StateSuccess, state)
	assert.Equal(t, OpQuery, frame.Hdr.Opcode)
	assert.Equal(t, int16(7), frame.Hdr.Stream)
	assert.Equal(t, int32(len(body)), frame.Hdr.Length)
	assert.Equal(t, body, frame.Msg)
	// only the frame's bytes are consumed
	assert.Equal(t, trailing, buf)
}

func TestParseFrameNeedsMoreData(t *testing.T) {
	parser := StreamParser{}
	full := encodeFrame(responseV4, 7, OpResult, []byte("0123456789"))

	t.Run("partial header", func(t *testing.T) {
		buf := append([]byte(nil), full[:5]...)
		var frame Frame
		state := parser.ParseFrame(protocols.DirectionResponse, &buf, &frame)
		assert.Equal(t, protocols.StateNeedsMoreData, state)
		assert.Equal(t, full[:5], buf) // untouched
	})

	t.Run("partial body", func(t *testing.T) {
		buf := append([]byte(nil), full[:len(full)-3]...)
		var frame Frame
		state := parser.ParseFrame(protocols.DirectionResponse, &buf, &frame)
		assert.Equal(t, protocols.StateNeedsMoreData, state)
		assert.Equal(t, full[:len(full)-3], buf)
	})

	t.Run("retry succeeds once the rest arrives", func(t *testing.T) {
		buf := append([]byte(nil), full[:len(full)-3]...)
		var frame Frame
		require.Equal(t, protocols.StateNeedsMoreData,
			parser.ParseFrame(protocols.DirectionResponse, &buf, &frame))
		buf = append(buf, full[len(full)-3:]...)
		require.Equal(t, protocols.StateSuccess,
			parser.ParseFrame(protocols.DirectionResponse, &buf, &frame))
		assert.Empty(t, buf)
		assert.Equal(t, []byte("0123456789"), frame.Msg)
	})
}

func TestParseFrameInvalid(t *testing.T) {
	parser := StreamParser{}

	tests := []struct {
		name string
		dir  protocols.Direction
		buf  []byte
	}{
		{
			name: "response direction bit on a request stream",
			dir:  protocols.DirectionRequest,
			buf:  encodeFrame(responseV4, 1, OpResult, nil),
		},
		{
			name: "request opcode on the response stream",
			dir:  protocols.DirectionResponse,
			buf:  encodeFrame(responseV4, 1, OpQuery, nil),
		},
		{
			name: "unsupported protocol version",
			dir:  protocols.DirectionRequest,
			buf:  encodeFrame(Version(0x02), 1, OpQuery, nil),
		},
		{
			name: "unknown opcode",
			dir:  protocols.DirectionRequest,
			buf:  encodeFrame(requestV4, 1, Opcode(0x42), nil),
		},
		{
			name: "negative body length",
			dir:  protocols.DirectionRequest,
			buf:  []byte{0x04, 0x00, 0x00, 0x01, 0x07, 0xff, 0xff, 0xff, 0xff},
		},
		{
			name: "oversized body length",
			dir:  protocols.DirectionRequest,
			buf:  []byte{0x04, 0x00, 0x00, 0x01, 0x07, 0x7f, 0xff, 0xff, 0xff},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte(nil), tt.buf...)
			var frame Frame
			state := parser.ParseFrame(tt.dir, &buf, &frame)
			assert.Equal(t, protocols.StateInvalid, state)
		})
	}
}

func TestFindFrameBoundary(t *testing.T) {
	parser := StreamParser{}

	t.Run("header after garbage", func(t *testing.T) {
		garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00}
		buf := append(garbage, encodeFrame(requestV4, 3, OpExecute, []byte("body"))...)
		pos := parser.FindFrameBoundary(protocols.DirectionRequest, buf, 0)
		assert.Equal(t, len(garbage), pos)
	})

	t.Run("never returns a position at or before start", func(t *testing.T) {
		buf := encodeFrame(requestV4, 3, OpQuery, nil)
		pos := parser.FindFrameBoundary(protocols.DirectionRequest, buf, 0)
		assert.Equal(t, protocols.BoundaryNotFound, pos)
	})

	t.Run("no boundary in garbage", func(t *testing.T) {
		buf := []byte{0xde, 0xad, 0xbe, 0xef, 0xde, 0xad, 0xbe, 0xef, 0xde, 0xad, 0xbe, 0xef}
		pos := parser.FindFrameBoundary(protocols.DirectionResponse, buf, 0)
		assert.Equal(t, protocols.BoundaryNotFound, pos)
	})

	t.Run("direction mismatch is not a boundary", func(t *testing.T) {
		buf := append([]byte{0xff}, encodeFrame(responseV4, 3, OpResult, nil)...)
		pos := parser.FindFrameBoundary(protocols.DirectionRequest, buf, 0)
		assert.Equal(t, protocols.BoundaryNotFound, pos)
	})

	t.Run("implausible header flags are skipped", func(t *testing.T) {
		frame := encodeFrame(requestV4, 3, OpQuery, nil)
		frame[1] = 0xf0 // undefined flag bits
		buf := append([]byte{0xff}, frame...)
		pos := parser.FindFrameBoundary(protocols.DirectionRequest, buf, 0)
		assert.Equal(t, protocols.BoundaryNotFound, pos)
	})
}
