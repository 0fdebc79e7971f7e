// Package console implements the console debug sink. Transactions are
// written to stdout in a human-readable or JSON format.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"firestige.xyz/argus/internal/log"
	"firestige.xyz/argus/internal/sink"
)

// Sink writes transactions to a writer, stdout by default.
type Sink struct {
	format   string
	out      io.Writer
	reported atomic.Uint64
}

// New creates a console sink. format is "text" or "json".
func New(format string) (*Sink, error) {
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid console sink format %q, must be text or json", format)
	}
	return &Sink{format: format, out: os.Stdout}, nil
}

// Report implements sink.Sink.
func (s *Sink) Report(tx sink.Transaction) error {
	s.reported.Add(1)

	if s.format == "json" {
		data, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(s.out, string(data))
		return err
	}

	op := tx.ResponseOp
	if tx.RequestOp != "" {
		op = tx.RequestOp + "/" + tx.ResponseOp
	}
	line := fmt.Sprintf("[%s] %s %s -> %s stream=%d latency=%s req=%dB resp=%dB",
		tx.Protocol, op, tx.Client, tx.Server, tx.Stream,
		time.Duration(tx.LatencyNs), tx.RequestLen, tx.ResponseLen)
	if tx.Query != "" {
		line += fmt.Sprintf(" query=%q", tx.Query)
	}
	if tx.ErrorMessage != "" {
		line += fmt.Sprintf(" error=%q", tx.ErrorMessage)
	}
	_, err := fmt.Fprintln(s.out, line)
	return err
}

// Close implements sink.Sink.
func (s *Sink) Close() error {
	log.GetLogger().WithField("total_reported", s.reported.Load()).Info("console sink closed")
	return nil
}
