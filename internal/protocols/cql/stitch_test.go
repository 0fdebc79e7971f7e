package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/argus/internal/protocols"
)

func reqFrame(stream int16, op Opcode, ts int64) Frame {
	return Frame{
		Hdr:         FrameHeader{Version: requestV4, Stream: stream, Opcode: op},
		TimestampNs: ts,
	}
}

func respFrame(stream int16, op Opcode, ts int64) Frame {
	return Frame{
		Hdr:         FrameHeader{Version: responseV4, Stream: stream, Opcode: op},
		TimestampNs: ts,
	}
}

func TestStitchFramesByStreamID(t *testing.T) {
	parser := StreamParser{}
	var state protocols.NoState

	reqs := []Frame{
		reqFrame(1, OpQuery, 100),
		reqFrame(2, OpPrepare, 110),
		reqFrame(3, OpExecute, 120),
	}
	// responses arrive out of request order; stream ids still pair them
	resps := []Frame{
		respFrame(2, OpResult, 210),
		respFrame(1, OpResult, 220),
		respFrame(3, OpResult, 230),
	}

	result := parser.StitchFrames(&reqs, &resps, &state)
	require.Len(t, result.Records, 3)
	assert.Equal(t, 0, result.ErrorCount)

	assert.Equal(t, int16(2), result.Records[0].Req.Hdr.Stream)
	assert.Equal(t, OpPrepare, result.Records[0].Req.Hdr.Opcode)
	assert.Equal(t, int16(1), result.Records[1].Req.Hdr.Stream)
	assert.Equal(t, int16(3), result.Records[2].Req.Hdr.Stream)
	assert.Equal(t, int64(120), result.Records[1].LatencyNs())

	// matched entries are removed from both queues
	assert.Empty(t, reqs)
	assert.Empty(t, resps)
}

func TestStitchFramesUnmatchedResponse(t *testing.T) {
	parser := StreamParser{}
	var state protocols.NoState

	reqs := []Frame{reqFrame(1, OpQuery, 100)}
	resps := []Frame{
		respFrame(1, OpResult, 200),
		respFrame(9, OpResult, 210), // no request captured for stream 9
	}

	result := parser.StitchFrames(&reqs, &resps, &state)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Empty(t, resps) // unmatched responses are dropped, not retained
}

func TestStitchFramesLeftoverRequestsRetained(t *testing.T) {
	parser := StreamParser{}
	var state protocols.NoState

	reqs := []Frame{
		reqFrame(1, OpQuery, 100),
		reqFrame(2, OpQuery, 110),
	}
	resps := []Frame{respFrame(1, OpResult, 200)}

	result := parser.StitchFrames(&reqs, &resps, &state)
	require.Len(t, result.Records, 1)
	require.Len(t, reqs, 1)
	assert.Equal(t, int16(2), reqs[0].Hdr.Stream)

	// the late response pairs up on the next invocation
	resps = append(resps, respFrame(2, OpResult, 300))
	result = parser.StitchFrames(&reqs, &resps, &state)
	require.Len(t, result.Records, 1)
	assert.Equal(t, int16(2), result.Records[0].Req.Hdr.Stream)
	assert.Empty(t, reqs)
}

func TestStitchFramesEventIsResponseOnly(t *testing.T) {
	parser := StreamParser{}
	var state protocols.NoState

	reqs := []Frame{}
	resps := []Frame{respFrame(-1, OpEvent, 500)}

	result := parser.StitchFrames(&reqs, &resps, &state)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, OpEvent, result.Records[0].Resp.Hdr.Opcode)
	assert.Zero(t, result.Records[0].Req.Hdr.Opcode)
	assert.Zero(t, result.Records[0].LatencyNs())
}

func TestStitchFramesIdempotent(t *testing.T) {
	parser := StreamParser{}
	var state protocols.NoState

	reqs := []Frame{
		reqFrame(1, OpQuery, 100),
		reqFrame(2, OpQuery, 110), // stays unmatched
	}
	resps := []Frame{respFrame(1, OpResult, 200)}

	first := parser.StitchFrames(&reqs, &resps, &state)
	require.Len(t, first.Records, 1)
	require.Equal(t, 0, first.ErrorCount)

	// no new frames: a second invocation yields nothing new
	second := parser.StitchFrames(&reqs, &resps, &state)
	assert.Empty(t, second.Records)
	assert.Equal(t, 0, second.ErrorCount)
	assert.Len(t, reqs, 1)
}

func TestStitchFramesOldestRequestWins(t *testing.T) {
	parser := StreamParser{}
	var state protocols.NoState

	// Two captured requests on the same stream id (the first response was
	// lost). The response pairs with the oldest request.
	reqs := []Frame{
		reqFrame(5, OpQuery, 100),
		reqFrame(5, OpQuery, 200),
	}
	resps := []Frame{respFrame(5, OpResult, 300)}

	result := parser.StitchFrames(&reqs, &resps, &state)
	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(100), result.Records[0].Req.TimestampNs)
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(200), reqs[0].TimestampNs)
}
