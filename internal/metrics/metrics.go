// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturePacketsTotal counts packets delivered by the capture handle.
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_capture_packets_total",
			Help: "Total number of packets captured",
		},
		[]string{"interface"},
	)

	// FramesParsedTotal counts successfully parsed protocol frames.
	FramesParsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_frames_parsed_total",
			Help: "Total number of protocol frames parsed",
		},
		[]string{"protocol"},
	)

	// InvalidFramesTotal counts parse attempts that hit unrecoverable data
	// and forced a resynchronization.
	InvalidFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_invalid_frames_total",
			Help: "Total number of unparseable frame positions requiring resync",
		},
		[]string{"protocol"},
	)

	// BytesDiscardedTotal counts raw bytes dropped during resynchronization
	// or buffer eviction.
	BytesDiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_bytes_discarded_total",
			Help: "Total number of captured bytes discarded without producing a frame",
		},
		[]string{"protocol"},
	)

	// FramesEvictedTotal counts parsed frames dropped by the pending-frame
	// cap before they could be stitched.
	FramesEvictedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_frames_evicted_total",
			Help: "Total number of parsed frames evicted before stitching",
		},
		[]string{"protocol"},
	)

	// RecordsStitchedTotal counts correlated request/response records.
	RecordsStitchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_records_stitched_total",
			Help: "Total number of stitched transaction records",
		},
		[]string{"protocol"},
	)

	// StitchErrorsTotal counts responses that matched no request.
	StitchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_stitch_errors_total",
			Help: "Total number of responses with no matching request",
		},
		[]string{"protocol"},
	)

	// ActiveConnections tracks connections currently being decoded.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_active_connections",
			Help: "Number of connections with live decode state",
		},
		[]string{"protocol"},
	)
)
