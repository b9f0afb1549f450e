package config

import (
	"fmt"
	"math"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills in defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		cfg.InstanceID = "rawplayer"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validatePlayback(&cfg.Playback); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	if err := validateOutput(&cfg.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	validateMQTT(&cfg.MQTT, cfg.InstanceID)

	return nil
}

func validatePlayback(p *PlaybackConfig) error {
	if p.FPS < 0 || math.IsNaN(p.FPS) {
		return fmt.Errorf("fps must be >= 0, got %v", p.FPS)
	}
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("width/height must be >= 0, got %dx%d", p.Width, p.Height)
	}
	if (p.Width == 0) != (p.Height == 0) {
		return fmt.Errorf("width and height must be set together, got %dx%d", p.Width, p.Height)
	}
	if p.Volume != nil && (*p.Volume < 0 || math.IsNaN(*p.Volume)) {
		return fmt.Errorf("volume must be >= 0, got %v", *p.Volume)
	}
	if p.DurationS < 0 {
		return fmt.Errorf("duration_s must be >= 0, got %d", p.DurationS)
	}
	for i, u := range p.URLs {
		if u == "" {
			return fmt.Errorf("urls[%d] is empty", i)
		}
	}
	return nil
}

func validateOutput(o *OutputConfig) error {
	if o.Format == "" {
		o.Format = "png"
	}
	if o.Format != "png" && o.Format != "jpeg" {
		return fmt.Errorf("format must be png or jpeg, got %q", o.Format)
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = 90
	}
	if o.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be 1-100, got %d", o.JPEGQuality)
	}
	if o.MaxWidth < 0 {
		return fmt.Errorf("max_width must be >= 0, got %d", o.MaxWidth)
	}
	if o.BufferFrames <= 0 {
		o.BufferFrames = 4
	}
	return nil
}

func validateMQTT(m *MQTTConfig, instanceID string) {
	if m.ClientID == "" {
		m.ClientID = fmt.Sprintf("mediaplayer-%s", instanceID)
	}
	if m.Topics.Control == "" {
		m.Topics.Control = fmt.Sprintf("mediaplayer/control/%s", instanceID)
	}
	if m.Topics.Events == "" {
		m.Topics.Events = fmt.Sprintf("mediaplayer/events/%s", instanceID)
	}
	if m.Topics.Status == "" {
		m.Topics.Status = fmt.Sprintf("mediaplayer/status/%s", instanceID)
	}
	if m.QoS == nil {
		m.QoS = map[string]byte{
			"control": 1,
			"events":  1,
			"status":  0,
		}
	}
	if m.StatusIntervalS <= 0 {
		m.StatusIntervalS = 5
	}
}
