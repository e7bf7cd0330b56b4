// Package config loads and validates the YAML configuration tree for a
// router-flood run, overlaying CLI flags and environment variables on
// top of file-provided defaults.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/PaulShpilsher/router-flood-sub002/pkg/protocol"
)

// Config is the root configuration tree for a run.
type Config struct {
	Framework  FrameworkConfig  `yaml:"framework"`
	Target     TargetConfig     `yaml:"target"`
	Attack     AttackConfig     `yaml:"attack"`
	Safety     SafetyConfig     `yaml:"safety"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Export     ExportConfig     `yaml:"export"`
}

// FrameworkConfig contains general process settings.
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// StopFile, if set, is watched by pkg/control as an additional
	// drain trigger alongside SIGINT/SIGTERM.
	StopFile string `yaml:"stop_file"`
}

// TargetConfig names the destination of the run.
type TargetConfig struct {
	IP    string `yaml:"ip"`
	Ports []int  `yaml:"ports"`
	// Interface selects the transmitting NIC by name. Empty means
	// auto-select the first up, non-loopback interface with an
	// assigned address.
	Interface string `yaml:"interface"`
}

// AttackConfig controls packet generation and pacing.
type AttackConfig struct {
	Threads         int              `yaml:"threads"`
	PacketRate      int              `yaml:"packet_rate"`
	Duration        int              `yaml:"duration_secs"` // 0 = unbounded
	ProtocolMix     ProtocolMixEntry `yaml:"protocol_mix"`
	PacketSizeRange [2]int           `yaml:"packet_size_range"`
	MaxBandwidth    string           `yaml:"max_bandwidth"` // bytes per second as a datasize byte size, e.g. "10MB"; bit-rate units such as "Mbps" are not accepted
	DryRun          bool             `yaml:"dry_run"`
}

// ProtocolMixEntry is the on-disk shape of a protocol mix: the six
// canonical weights named in protocol.Mix. This is deliberately a typed
// struct, not a map — an older integer-ratio shape
// (udp + tcp + icmp + ipv6 + arp counts) appears in some adjacent
// systems but is rejected here at parse time rather than accepted as an
// alternate encoding, since the two shapes aren't interchangeable
// without a normalization step this config layer doesn't perform.
type ProtocolMixEntry struct {
	UDP    float64 `yaml:"udp"`
	TCPSyn float64 `yaml:"tcp_syn"`
	TCPAck float64 `yaml:"tcp_ack"`
	ICMP   float64 `yaml:"icmp"`
	IPv6   float64 `yaml:"ipv6"`
	ARP    float64 `yaml:"arp"`
}

// Mix converts the config entry to a protocol.Mix.
func (e ProtocolMixEntry) Mix() protocol.Mix {
	return protocol.Mix{
		UDP:    e.UDP,
		TCPSyn: e.TCPSyn,
		TCPAck: e.TCPAck,
		ICMP:   e.ICMP,
		IPv6:   e.IPv6,
		ARP:    e.ARP,
	}
}

// MaxBandwidthBytesPerSec parses AttackConfig.MaxBandwidth into bytes/sec.
// An empty string means unlimited (returns 0, false).
func (a AttackConfig) MaxBandwidthBytesPerSec() (uint64, bool, error) {
	if a.MaxBandwidth == "" {
		return 0, false, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(a.MaxBandwidth)); err != nil {
		return 0, false, fmt.Errorf("attack.max_bandwidth: %w", err)
	}
	return size.Bytes(), true, nil
}

// SafetyConfig contains the bounds enforced by pkg/safety.
type SafetyConfig struct {
	MaxThreads          int  `yaml:"max_threads"`
	MaxPacketRate       int  `yaml:"max_packet_rate"`
	AllowPublicIPs      bool `yaml:"allow_public_ips"`
	RequireConfirmation bool `yaml:"require_confirmation"`
	AuditLog            bool `yaml:"audit_log"`
}

// MonitoringConfig controls stats export and the optional Prometheus
// exposition endpoint.
type MonitoringConfig struct {
	StatsIntervalMS int    `yaml:"stats_interval_ms"`
	PrometheusAddr  string `yaml:"prometheus_addr"` // empty disables the endpoint
}

// ExportConfig controls persisted run output.
type ExportConfig struct {
	OutputDir string   `yaml:"output_dir"`
	Formats   []string `yaml:"formats"` // "json", "csv"
	KeepLastN int      `yaml:"keep_last_n"`
}

// DefaultConfig returns conservative, safety-first defaults. Every
// numeric default sits well under the safety bounds. The target IP has
// no default, so a run still needs one supplied before it validates.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Target: TargetConfig{
			Ports: []int{80},
		},
		Attack: AttackConfig{
			Threads:    4,
			PacketRate: 100,
			Duration:   60,
			ProtocolMix: ProtocolMixEntry{
				UDP:    0.6,
				TCPSyn: 0.2,
				TCPAck: 0.05,
				ICMP:   0.05,
				IPv6:   0.05,
				ARP:    0.05,
			},
			PacketSizeRange: [2]int{64, 1400},
		},
		Safety: SafetyConfig{
			MaxThreads:          100,
			MaxPacketRate:       50000,
			AllowPublicIPs:      false,
			RequireConfirmation: true,
			AuditLog:            true,
		},
		Monitoring: MonitoringConfig{
			StatsIntervalMS: 1000,
		},
		Export: ExportConfig{
			OutputDir: "./reports",
			Formats:   []string{"json"},
			KeepLastN: 50,
		},
	}
}

// Load reads configuration from a YAML file, starting from defaults and
// overlaying what's found on disk. A missing file is not an error — the
// defaults are returned as-is, matching the teacher's "no config is a
// valid config" behavior.
//
// Before parsing, Load optionally loads a ".env" file from the current
// working directory (if present) into the process environment, then expands ${VAR}-style
// references in the YAML text against the environment. This lets a
// config file reference secrets or host-specific values without baking
// them into the committed YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "routerflood.yaml"
	}

	_ = godotenv.Load() // optional; absence is not an error

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("ROUTERFLOOD_TARGET_IP"); v != "" {
		cfg.Target.IP = v
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks internal consistency. Safety-bound enforcement against
// the running attack lives in pkg/safety; this only rejects structurally
// invalid configuration.
func (c *Config) Validate() error {
	if c.Attack.Threads < 1 {
		return fmt.Errorf("attack.threads must be at least 1")
	}
	if c.Attack.PacketRate < 1 {
		return fmt.Errorf("attack.packet_rate must be at least 1")
	}
	if err := c.Attack.ProtocolMix.Mix().Validate(); err != nil {
		return fmt.Errorf("attack.protocol_mix: %w", err)
	}
	if c.Attack.PacketSizeRange[0] < 20 || c.Attack.PacketSizeRange[1] < c.Attack.PacketSizeRange[0] || c.Attack.PacketSizeRange[1] > 1500 {
		return fmt.Errorf("attack.packet_size_range must satisfy 20 <= min <= max <= 1500")
	}
	if _, _, err := c.Attack.MaxBandwidthBytesPerSec(); err != nil {
		return err
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}
	return nil
}
