package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete rawplayer configuration
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Playback         PlaybackConfig `yaml:"playback"`
	Output           OutputConfig   `yaml:"output"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
}

// PlaybackConfig contains the source and the initial player settings
type PlaybackConfig struct {
	URLs      []string `yaml:"urls"`
	FPS       float64  `yaml:"fps"`        // 0 = unconstrained
	Width     int      `yaml:"width"`      // 0 = unconstrained
	Height    int      `yaml:"height"`     // 0 = unconstrained
	Volume    *float64 `yaml:"volume"`     // nil = engine default
	DurationS int      `yaml:"duration_s"` // stop after N seconds, 0 = until end of stream
}

// OutputConfig contains frame consumer settings
type OutputConfig struct {
	Dir          string `yaml:"dir"`           // save frames here when set
	Format       string `yaml:"format"`        // png, jpeg
	JPEGQuality  int    `yaml:"jpeg_quality"`  // 1-100
	MaxWidth     int    `yaml:"max_width"`     // thumbnail width, 0 = full size
	BufferFrames int    `yaml:"buffer_frames"` // per-consumer channel size
	MsgpackPath  string `yaml:"msgpack_path"`  // "-" for stdout, empty disables
}

// MQTTConfig contains MQTT broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string          `yaml:"broker"`
	ClientID string          `yaml:"client_id"`
	Topics   MQTTTopics      `yaml:"topics"`
	QoS      map[string]byte `yaml:"qos"`
	// StatusIntervalS publishes player stats every N seconds (default: 5)
	StatusIntervalS int `yaml:"status_interval_s"`
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Control string `yaml:"control"`
	Events  string `yaml:"events"`
	Status  string `yaml:"status"`
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{InstanceID: "rawplayer"}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: default configuration invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
