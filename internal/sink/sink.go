// Package sink delivers stitched transaction records to their destination.
package sink

// Transaction is the telemetry view of one stitched record, flattened for
// reporting.
type Transaction struct {
	Protocol    string `json:"protocol"`
	Client      string `json:"client"`
	Server      string `json:"server"`
	RequestOp   string `json:"request_op,omitempty"`
	ResponseOp  string `json:"response_op"`
	Stream      int32  `json:"stream"`
	// Query is the statement text of QUERY/PREPARE requests.
	Query string `json:"query,omitempty"`
	// ResultColumns is the column count of rows results.
	ResultColumns int32 `json:"result_columns,omitempty"`
	// ErrorMessage is set for ERROR responses.
	ErrorMessage string `json:"error,omitempty"`
	RequestLen  int    `json:"request_len"`
	ResponseLen int    `json:"response_len"`
	LatencyNs   int64  `json:"latency_ns"`
	TimestampNs int64  `json:"timestamp_ns"`
}

// Sink is the record reporter contract.
type Sink interface {
	Report(tx Transaction) error
	Close() error
}
