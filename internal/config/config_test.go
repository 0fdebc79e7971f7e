package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
argus:
  capture:
    interface: eth0
    snap_len: 4096
  protocols:
    - name: cql
      options:
        ports: [9042, 9142]
  engine:
    stitch_interval_ms: 250
  sink:
    type: console
    format: json
  metrics:
    enabled: true
    addr: ":9100"
  log:
    level: debug
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "eth0", cfg.Capture.Interface)
	assert.Equal(t, 4096, cfg.Capture.SnapLen)
	assert.Equal(t, 250, cfg.Engine.StitchIntervalMs)
	// defaults fill in what the file omits
	assert.Equal(t, 1024, cfg.Engine.MaxPendingFrames)
	assert.Equal(t, 8, cfg.Capture.BufferSizeMB)
	assert.Equal(t, "json", cfg.Sink.Format)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Protocols, 1)
	assert.Equal(t, "cql", cfg.Protocols[0].Name)

	var opts struct {
		Ports []uint16 `mapstructure:"ports"`
	}
	require.NoError(t, cfg.Protocols[0].DecodeOptions(&opts))
	assert.Equal(t, []uint16{9042, 9142}, opts.Ports)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing interface",
			mutate:  func(c *Config) { c.Capture.Interface = "" },
			wantErr: "capture.interface",
		},
		{
			name:    "no protocols",
			mutate:  func(c *Config) { c.Protocols = nil },
			wantErr: "at least one protocol",
		},
		{
			name:    "metrics enabled without addr",
			mutate:  func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" },
			wantErr: "metrics.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseYAML([]byte(sampleConfig))
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseYAMLRejectsGarbage(t *testing.T) {
	_, err := ParseYAML([]byte("argus: ["))
	assert.Error(t, err)
}
