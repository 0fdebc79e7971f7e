// Package config handles agent configuration loading using viper.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/argus/internal/log"
)

// Config is the top-level agent configuration. Maps to the `argus:` root
// key in YAML.
type Config struct {
	Capture   CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Engine    EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Protocols []ProtocolConfig `mapstructure:"protocols" yaml:"protocols"`
	Sink      SinkConfig       `mapstructure:"sink" yaml:"sink"`
	Metrics   MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Log       log.Config       `mapstructure:"log" yaml:"log"`
}

// CaptureConfig configures the AF_PACKET capture handle.
type CaptureConfig struct {
	Interface    string `mapstructure:"interface" yaml:"interface"`
	SnapLen      int    `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
	TimeoutMs    int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	// BPFFilter overrides the filter derived from the protocol port lists.
	BPFFilter string `mapstructure:"bpf_filter" yaml:"bpf_filter"`
}

// EngineConfig bounds the per-connection decode state and sets the stitch
// cadence. Eviction of stale state is the engine's job, not the decoders'.
type EngineConfig struct {
	StitchIntervalMs int `mapstructure:"stitch_interval_ms" yaml:"stitch_interval_ms"`
	MaxBufferedBytes int `mapstructure:"max_buffered_bytes" yaml:"max_buffered_bytes"`
	MaxPendingFrames int `mapstructure:"max_pending_frames" yaml:"max_pending_frames"`
	IdleTimeoutS     int `mapstructure:"idle_timeout_s" yaml:"idle_timeout_s"`
}

// ProtocolConfig selects one protocol decoder and carries its decoder
// specific options as an opaque map.
type ProtocolConfig struct {
	Name    string         `mapstructure:"name" yaml:"name"`
	Options map[string]any `mapstructure:"options" yaml:"options"`
}

// DecodeOptions decodes the opaque option map into a decoder-specific
// struct with mapstructure tags.
func (p ProtocolConfig) DecodeOptions(out any) error {
	if err := mapstructure.Decode(p.Options, out); err != nil {
		return fmt.Errorf("protocol %q options: %w", p.Name, err)
	}
	return nil
}

// SinkConfig selects the record reporter.
type SinkConfig struct {
	Type   string `mapstructure:"type" yaml:"type"`     // console
	Format string `mapstructure:"format" yaml:"format"` // text|json
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("argus.capture.snap_len", 65535)
	v.SetDefault("argus.capture.buffer_size_mb", 8)
	v.SetDefault("argus.capture.timeout_ms", 100)
	v.SetDefault("argus.engine.stitch_interval_ms", 500)
	v.SetDefault("argus.engine.max_buffered_bytes", 1<<20)
	v.SetDefault("argus.engine.max_pending_frames", 1024)
	v.SetDefault("argus.engine.idle_timeout_s", 300)
	v.SetDefault("argus.sink.type", "console")
	v.SetDefault("argus.sink.format", "text")
	v.SetDefault("argus.metrics.path", "/metrics")
	v.SetDefault("argus.log.level", "info")
	v.SetDefault("argus.log.format", "text")
}

// Load reads the YAML configuration file at path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.UnmarshalKey("argus", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseYAML parses raw YAML bytes without viper defaults. Used by the
// validate command to check a file exactly as written.
func ParseYAML(data []byte) (*Config, error) {
	var root struct {
		Argus Config `yaml:"argus"`
	}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := root.Argus.Validate(); err != nil {
		return nil, err
	}
	return &root.Argus, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Capture.Interface == "" {
		return fmt.Errorf("capture.interface is required")
	}
	if len(c.Protocols) == 0 {
		return fmt.Errorf("at least one protocol must be configured")
	}
	for _, p := range c.Protocols {
		if p.Name == "" {
			return fmt.Errorf("protocol entries require a name")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}
