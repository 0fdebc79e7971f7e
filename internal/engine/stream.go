// Package engine drives a protocols.Parser over per-connection byte
// streams: it owns the raw buffers and frame queues for both directions,
// resynchronizes after unparseable data, enforces the eviction policy the
// parser contract leaves external, and invokes the stitcher on demand.
//
// A Stream is exclusively owned by one monitored connection and is not
// safe for concurrent use; thread safety comes from giving every
// connection its own Stream.
package engine

import (
	"firestige.xyz/argus/internal/protocols"
)

// Options bound the resources a single stream may hold. Zero values mean
// unlimited.
type Options struct {
	// MaxBufferedBytes caps the raw bytes retained per direction while
	// waiting for a frame to complete. A buffer stuck beyond the cap is
	// discarded wholesale.
	MaxBufferedBytes int

	// MaxPendingFrames caps parsed-but-unstitched frames per direction.
	// The oldest frame is evicted once the cap is exceeded.
	MaxPendingFrames int
}

// Stats counts decode outcomes for one stream.
type Stats struct {
	FramesParsed   uint64
	InvalidFrames  uint64
	BytesDiscarded uint64
	FramesEvicted  uint64
	StitchErrors   uint64
}

// Stream holds the decode and stitch state of one monitored connection.
type Stream[F, R, S any] struct {
	parser protocols.Parser[F, R, S]
	state  S
	opts   Options

	bufs   [2][]byte
	lastTs [2]int64
	frames [2][]F

	stats Stats
}

// New creates a stream for one connection driven by the given parser.
func New[F, R, S any](parser protocols.Parser[F, R, S], opts Options) *Stream[F, R, S] {
	return &Stream[F, R, S]{parser: parser, opts: opts}
}

// Append adds captured bytes for one direction and immediately parses as
// many complete frames as the buffer now holds. tsNs is the capture
// timestamp of the chunk; frames completed by this chunk are stamped with
// it.
func (s *Stream[F, R, S]) Append(dir protocols.Direction, data []byte, tsNs int64) {
	if len(data) == 0 {
		return
	}
	s.bufs[dir] = append(s.bufs[dir], data...)
	s.lastTs[dir] = tsNs
	s.process(dir)
}

func (s *Stream[F, R, S]) process(dir protocols.Direction) {
	buf := &s.bufs[dir]
	for len(*buf) > 0 {
		var frame F
		switch s.parser.ParseFrame(dir, buf, &frame) {
		case protocols.StateSuccess:
			if t, ok := any(&frame).(protocols.Timestamper); ok {
				t.SetTimestampNs(s.lastTs[dir])
			}
			s.frames[dir] = append(s.frames[dir], frame)
			s.stats.FramesParsed++
			s.evict(dir)

		case protocols.StateNeedsMoreData:
			// A frame prefix that can never complete within the budget is
			// treated as lost capture data.
			if s.opts.MaxBufferedBytes > 0 && len(*buf) > s.opts.MaxBufferedBytes {
				s.stats.BytesDiscarded += uint64(len(*buf))
				*buf = (*buf)[:0]
			}
			return

		case protocols.StateInvalid:
			s.stats.InvalidFrames++
			pos := s.parser.FindFrameBoundary(dir, *buf, 0)
			if pos == protocols.BoundaryNotFound {
				s.stats.BytesDiscarded += uint64(len(*buf))
				*buf = (*buf)[:0]
				return
			}
			s.stats.BytesDiscarded += uint64(pos)
			*buf = (*buf)[pos:]
		}
	}
}

func (s *Stream[F, R, S]) evict(dir protocols.Direction) {
	max := s.opts.MaxPendingFrames
	if max <= 0 {
		return
	}
	q := s.frames[dir]
	for len(q) > max {
		copy(q, q[1:])
		q = q[:len(q)-1]
		s.stats.FramesEvicted++
	}
	s.frames[dir] = q
}

// Stitch correlates the pending request and response frames into records.
// Safe to call repeatedly; with no new frames it produces nothing new.
func (s *Stream[F, R, S]) Stitch() protocols.RecordsWithErrorCount[R] {
	result := s.parser.StitchFrames(
		&s.frames[protocols.DirectionRequest],
		&s.frames[protocols.DirectionResponse],
		&s.state,
	)
	s.stats.StitchErrors += uint64(result.ErrorCount)
	return result
}

// Pending reports the number of parsed frames queued for one direction.
func (s *Stream[F, R, S]) Pending(dir protocols.Direction) int {
	return len(s.frames[dir])
}

// Buffered reports the raw bytes held for one direction.
func (s *Stream[F, R, S]) Buffered(dir protocols.Direction) int {
	return len(s.bufs[dir])
}

// Stats returns the stream's decode counters.
func (s *Stream[F, R, S]) Stats() Stats {
	return s.stats
}
