// Package protocols defines the frame-pipeline contract that every wire
// protocol decoder must satisfy: frame-boundary discovery, single-frame
// parsing, and request/response stitching. A protocol-agnostic engine
// consumes implementations of this contract to turn raw captured byte
// streams into ordered transaction records despite partial captures,
// dropped events, and out-of-order arrival.
package protocols

// Direction distinguishes the two halves of a monitored connection.
type Direction int

const (
	DirectionRequest Direction = iota
	DirectionResponse
)

func (d Direction) String() string {
	switch d {
	case DirectionRequest:
		return "request"
	case DirectionResponse:
		return "response"
	default:
		return "unknown"
	}
}

// ParseState is the outcome of a single ParseFrame attempt. The three-way
// split is what keeps the pipeline robust under lossy capture: it separates
// "wait for more bytes" from "the stream is desynchronized".
type ParseState int

const (
	// StateSuccess means one frame was decoded and its bytes were consumed
	// from the front of the buffer.
	StateSuccess ParseState = iota
	// StateNeedsMoreData means the buffer holds an incomplete frame prefix.
	// The buffer is untouched; retry after more bytes arrive.
	StateNeedsMoreData
	// StateInvalid means the data at the front of the buffer is not a frame
	// and never will be. The caller must resynchronize via
	// FindFrameBoundary, accepting record loss.
	StateInvalid
)

func (s ParseState) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateNeedsMoreData:
		return "needs-more-data"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// BoundaryNotFound is the sentinel returned by FindFrameBoundary when no
// plausible frame start exists after the given position.
const BoundaryNotFound = -1

// RecordsWithErrorCount is the result of one stitch invocation. ErrorCount
// tallies responses that could not be matched to any request; a sustained
// non-zero rate is an operational signal, not a fatal condition.
type RecordsWithErrorCount[R any] struct {
	Records    []R
	ErrorCount int
}

// NoState is the cross-frame state placeholder for protocols that carry no
// state between frames. Stateless protocols instantiate the engine with
// NoState; the engine needs no special-casing.
type NoState struct{}

// Timestamper is implemented by frame types that record the capture
// timestamp of the bytes they were decoded from. The engine stamps frames
// through this interface right after a successful parse.
type Timestamper interface {
	SetTimestampNs(ts int64)
}

// Parser ties frame-boundary discovery, single-frame parsing and
// request/response stitching together for one protocol. F is the frame
// type, R the stitched record type, and S the cross-frame state type
// (NoState for protocols without one). Implementations must be plain
// computed functions over the memory they are given: no I/O, no blocking,
// no global mutable state, so that independent connections can be decoded
// concurrently without locks.
type Parser[F, R, S any] interface {
	// FindFrameBoundary scans buf forward for an offset that plausibly
	// begins a valid frame header, used to resynchronize after data loss.
	// Returns a position strictly greater than startPos, or
	// BoundaryNotFound.
	FindFrameBoundary(dir Direction, buf []byte, startPos int) int

	// ParseFrame attempts to decode exactly one frame from the front of
	// *buf. On StateSuccess all bytes belonging to the frame are removed
	// from *buf and *frame is populated. On StateNeedsMoreData *buf is left
	// untouched so a later call with more appended bytes can retry.
	ParseFrame(dir Direction, buf *[]byte, frame *F) ParseState

	// StitchFrames walks the response queue in arrival order and matches
	// each response with its request. Matched entries are removed from both
	// queues; unmatched responses are dropped and counted; unmatched
	// requests remain queued for a later invocation. Repeated invocation
	// with no new frames produces no additional records.
	StitchFrames(reqs *[]F, resps *[]F, state *S) RecordsWithErrorCount[R]
}
