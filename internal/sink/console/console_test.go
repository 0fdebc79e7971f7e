package console

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/argus/internal/sink"
)

func sampleTx() sink.Transaction {
	return sink.Transaction{
		Protocol:    "cql",
		Client:      "10.0.0.1:54321",
		Server:      "10.0.0.2:9042",
		RequestOp:   "QUERY",
		ResponseOp:  "RESULT",
		Stream:      7,
		Query:       "SELECT peer FROM system.peers",
		RequestLen:  120,
		ResponseLen: 48,
		LatencyNs:   1500000,
		TimestampNs: 1581615543430001,
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("xml")
	assert.Error(t, err)
}

func TestReportText(t *testing.T) {
	s, err := New("text")
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	require.NoError(t, s.Report(sampleTx()))

	out := buf.String()
	assert.Contains(t, out, "[cql]")
	assert.Contains(t, out, "QUERY/RESULT")
	assert.Contains(t, out, "10.0.0.1:54321 -> 10.0.0.2:9042")
	assert.Contains(t, out, "stream=7")
	assert.Contains(t, out, "1.5ms")
	assert.Contains(t, out, `query="SELECT peer FROM system.peers"`)
}

func TestReportTextErrorResponse(t *testing.T) {
	s, err := New("text")
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	tx := sampleTx()
	tx.ResponseOp = "ERROR"
	tx.ErrorMessage = "Cannot achieve consistency level QUORUM"
	require.NoError(t, s.Report(tx))

	assert.Contains(t, buf.String(), `error="Cannot achieve consistency level QUORUM"`)
}

func TestReportTextResponseOnly(t *testing.T) {
	s, err := New("text")
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	tx := sampleTx()
	tx.RequestOp = ""
	tx.ResponseOp = "EVENT"
	require.NoError(t, s.Report(tx))

	assert.Contains(t, buf.String(), " EVENT ")
	assert.NotContains(t, buf.String(), "/EVENT")
}

func TestReportJSON(t *testing.T) {
	s, err := New("json")
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	require.NoError(t, s.Report(sampleTx()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "cql", decoded["protocol"])
	assert.Equal(t, "RESULT", decoded["response_op"])
	assert.Equal(t, float64(7), decoded["stream"])
}
