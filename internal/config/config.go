package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete camlink configuration
type Config struct {
	InstanceID string         `yaml:"instance_id"`
	Device     DeviceConfig   `yaml:"device"`
	Stream     StreamConfig   `yaml:"stream"`
	MQTT       MQTTConfig     `yaml:"mqtt"`
	Logging    LoggingConfig  `yaml:"logging"`

	// ShutdownTimeoutS bounds the wait for a detached session to unwind
	// during process shutdown (default: 5)
	ShutdownTimeoutS int `yaml:"shutdown_timeout_s"`
}

// DeviceConfig contains the configuration endpoint of the imaging device
type DeviceConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// TimeoutMS is how long one UDP exchange waits for a reply (default: 1200)
	TimeoutMS int `yaml:"timeout_ms"`
}

// StreamConfig contains live preview settings
type StreamConfig struct {
	// SourceURI is the video stream location (e.g. "rtsp://..." or "udp://...")
	SourceURI string `yaml:"source_uri"`
	// ConnectTimeoutMS bounds the initial source open (default: 5000)
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
	// ReadTimeoutMS bounds a single frame read (default: 3000)
	ReadTimeoutMS int `yaml:"read_timeout_ms"`
	// OnReadFailure selects the post-connect read failure policy:
	// "retry" (release, back off, reopen) or "eof" (terminal end-of-stream)
	OnReadFailure string `yaml:"on_read_failure"`
	// RetryBackoffMS is the sleep between release and reopen when
	// on_read_failure is "retry" (default: 500)
	RetryBackoffMS int `yaml:"retry_backoff_ms"`
}

// MQTTConfig contains telemetry broker settings. Telemetry is disabled
// when Broker is empty.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
	QoS    byte   `yaml:"qos"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no device
// endpoint set. Used by the CLI when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.InstanceID == "" {
		c.InstanceID = "camlink"
	}
	if c.Device.TimeoutMS == 0 {
		c.Device.TimeoutMS = 1200
	}
	if c.Stream.ConnectTimeoutMS == 0 {
		c.Stream.ConnectTimeoutMS = 5000
	}
	if c.Stream.ReadTimeoutMS == 0 {
		c.Stream.ReadTimeoutMS = 3000
	}
	if c.Stream.OnReadFailure == "" {
		c.Stream.OnReadFailure = "retry"
	}
	if c.Stream.RetryBackoffMS == 0 {
		c.Stream.RetryBackoffMS = 500
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.ShutdownTimeoutS == 0 {
		c.ShutdownTimeoutS = 5
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "camlink/telemetry"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Device.Host != "" {
		if c.Device.Port < 1 || c.Device.Port > 65535 {
			return fmt.Errorf("invalid device port: %d (must be between 1-65535)", c.Device.Port)
		}
	}

	if c.Device.TimeoutMS <= 0 {
		return fmt.Errorf("invalid device timeout_ms: %d (must be positive)", c.Device.TimeoutMS)
	}

	switch strings.ToLower(c.Stream.OnReadFailure) {
	case "retry", "eof":
	default:
		return fmt.Errorf("invalid on_read_failure: %q (must be \"retry\" or \"eof\")", c.Stream.OnReadFailure)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, level := range validLevels {
		if strings.ToLower(c.Logging.Level) == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.Logging.Level, validLevels)
	}

	return nil
}

// SlogLevel returns the slog.Level for the configured log level
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
