// Package capture runs the passive observation pipeline: AF_PACKET
// capture, TCP reassembly, per-connection frame decoding and periodic
// stitching of request/response records into the sink.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/tcpassembly"
	"github.com/sirupsen/logrus"

	"firestige.xyz/argus/internal/config"
	"firestige.xyz/argus/internal/engine"
	"firestige.xyz/argus/internal/log"
	"firestige.xyz/argus/internal/metrics"
	"firestige.xyz/argus/internal/protocols/cql"
	"firestige.xyz/argus/internal/sink"
)

const protocolCQL = "cql"

// cqlOptions are the decoder options of the cql protocol entry.
type cqlOptions struct {
	Ports []uint16 `mapstructure:"ports"`
}

// Agent owns the capture pipeline for one interface. All packet and
// stitch work runs on the single Run goroutine, so the connection table
// and assembler need no locking.
type Agent struct {
	cfg       *config.Config
	out       sink.Sink
	table     *connTable
	assembler *tcpassembly.Assembler
	ports     []uint16
	logger    *logrus.Entry
}

// NewAgent wires the pipeline from configuration. The sink stays owned
// by the caller and is not closed by the agent.
func NewAgent(cfg *config.Config, out sink.Sink) (*Agent, error) {
	var opts cqlOptions
	found := false
	for _, p := range cfg.Protocols {
		if p.Name != protocolCQL {
			return nil, fmt.Errorf("unsupported protocol %q", p.Name)
		}
		if err := p.DecodeOptions(&opts); err != nil {
			return nil, err
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("no protocol configured")
	}
	if len(opts.Ports) == 0 {
		opts.Ports = []uint16{9042}
	}

	table := newConnTable(opts.Ports, engine.Options{
		MaxBufferedBytes: cfg.Engine.MaxBufferedBytes,
		MaxPendingFrames: cfg.Engine.MaxPendingFrames,
	})
	pool := tcpassembly.NewStreamPool(&streamFactory{table: table})

	return &Agent{
		cfg:       cfg,
		out:       out,
		table:     table,
		assembler: tcpassembly.NewAssembler(pool),
		ports:     opts.Ports,
		logger:    log.GetLogger().WithField("component", "agent"),
	}, nil
}

// Run captures until ctx is cancelled, then flushes all reassembly
// state and stitches whatever remains.
func (a *Agent) Run(ctx context.Context) error {
	filter := a.cfg.Capture.BPFFilter
	if filter == "" {
		filter = portsFilter(a.ports)
	}

	source, err := NewSource(a.cfg.Capture, filter)
	if err != nil {
		return err
	}
	defer source.Close()

	a.logger.WithFields(logrus.Fields{
		"interface": a.cfg.Capture.Interface,
		"filter":    filter,
		"ports":     a.ports,
	}).Info("capture started")

	packetSource := gopacket.NewPacketSource(source, layers.LinkTypeEthernet)
	packetSource.NoCopy = true
	packets := packetSource.Packets()

	stitchInterval := time.Duration(a.cfg.Engine.StitchIntervalMs) * time.Millisecond
	idleTimeout := time.Duration(a.cfg.Engine.IdleTimeoutS) * time.Second
	ticker := time.NewTicker(stitchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.assembler.FlushAll()
			a.stitchAll()
			a.logger.Info("capture stopped")
			return nil

		case pkt, ok := <-packets:
			if !ok {
				a.assembler.FlushAll()
				a.stitchAll()
				return fmt.Errorf("capture source closed unexpectedly")
			}
			a.handlePacket(pkt)

		case <-ticker.C:
			// Push straggling reassembly buffers into the streams before
			// stitching so long-silent connections still produce records.
			a.assembler.FlushOlderThan(time.Now().Add(-2 * stitchInterval))
			a.stitchAll()
			a.evictIdle(idleTimeout)
		}
	}
}

func (a *Agent) handlePacket(pkt gopacket.Packet) {
	metrics.CapturePacketsTotal.WithLabelValues(a.cfg.Capture.Interface).Inc()

	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return
	}
	tcp := tcpLayer.(*layers.TCP)
	netLayer := pkt.NetworkLayer()
	if netLayer == nil {
		return
	}
	a.assembler.AssembleWithTimestamp(netLayer.NetworkFlow(), tcp, pkt.Metadata().Timestamp)
}

// stitchAll correlates pending frames on every live connection and
// reports the resulting records.
func (a *Agent) stitchAll() {
	for _, c := range a.table.conns {
		a.stitchConn(c)
	}
	metrics.ActiveConnections.WithLabelValues(protocolCQL).Set(float64(a.table.size()))
}

func (a *Agent) stitchConn(c *conn) {
	result := c.stream.Stitch()
	for _, rec := range result.Records {
		tx := sink.Transaction{
			Protocol:    protocolCQL,
			Client:      c.client,
			Server:      c.server,
			ResponseOp:  rec.Resp.Hdr.Opcode.String(),
			Stream:      int32(rec.Resp.Hdr.Stream),
			RequestLen:  len(rec.Req.Msg),
			ResponseLen: len(rec.Resp.Msg),
			LatencyNs:   rec.LatencyNs(),
			TimestampNs: rec.Resp.TimestampNs,
		}
		if rec.Req.TimestampNs != 0 {
			tx.RequestOp = rec.Req.Hdr.Opcode.String()
		}
		enrichTransaction(&tx, rec)
		if err := a.out.Report(tx); err != nil {
			a.logger.WithError(err).Warn("failed to report transaction")
		}
	}
	if len(result.Records) > 0 {
		metrics.RecordsStitchedTotal.WithLabelValues(protocolCQL).Add(float64(len(result.Records)))
	}
	if result.ErrorCount > 0 {
		metrics.StitchErrorsTotal.WithLabelValues(protocolCQL).Add(float64(result.ErrorCount))
	}
	a.flushStats(c)
}

// enrichTransaction decodes the message bodies that carry reportable
// content. Body decode is best effort: a body that fails to decode still
// produces a record, just without the enrichment.
func enrichTransaction(tx *sink.Transaction, rec cql.Record) {
	if rec.Req.TimestampNs != 0 {
		switch rec.Req.Hdr.Opcode {
		case cql.OpQuery:
			if qi, err := cql.ExtractQueryBody(rec.Req.Msg); err == nil {
				tx.Query = qi.Query
			}
		case cql.OpPrepare:
			if stmt, err := cql.ExtractPrepareBody(rec.Req.Msg); err == nil {
				tx.Query = stmt
			}
		}
	}
	switch rec.Resp.Hdr.Opcode {
	case cql.OpResult:
		if ri, err := cql.ExtractResultBody(rec.Resp.Msg); err == nil && ri.Kind == cql.ResultKindRows {
			tx.ResultColumns = ri.Metadata.ColumnsCount
		}
	case cql.OpError:
		if ei, err := cql.ExtractErrorBody(rec.Resp.Msg); err == nil {
			tx.ErrorMessage = ei.Message
		}
	}
}

// flushStats publishes the delta between the connection's current decode
// counters and the last snapshot.
func (a *Agent) flushStats(c *conn) {
	st := c.stream.Stats()
	last := c.lastStats
	if d := st.FramesParsed - last.FramesParsed; d > 0 {
		metrics.FramesParsedTotal.WithLabelValues(protocolCQL).Add(float64(d))
	}
	if d := st.InvalidFrames - last.InvalidFrames; d > 0 {
		metrics.InvalidFramesTotal.WithLabelValues(protocolCQL).Add(float64(d))
	}
	if d := st.BytesDiscarded - last.BytesDiscarded; d > 0 {
		metrics.BytesDiscardedTotal.WithLabelValues(protocolCQL).Add(float64(d))
	}
	if d := st.FramesEvicted - last.FramesEvicted; d > 0 {
		metrics.FramesEvictedTotal.WithLabelValues(protocolCQL).Add(float64(d))
	}
	c.lastStats = st
}

// evictIdle drops connections silent past the idle timeout after one
// final stitch of their pending frames.
func (a *Agent) evictIdle(idleTimeout time.Duration) {
	if idleTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-idleTimeout).UnixNano()
	evicted := a.table.evictIdle(cutoff)
	for _, c := range evicted {
		a.stitchConn(c)
	}
	if len(evicted) > 0 {
		a.logger.WithField("count", len(evicted)).Debug("evicted idle connections")
		metrics.ActiveConnections.WithLabelValues(protocolCQL).Set(float64(a.table.size()))
	}
}
