// ABOUTME: Service configuration loading and validation
// ABOUTME: YAML file with environment fallback for credentials
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parley-ai/parley-go/internal/channel"
)

// Config represents the complete application configuration
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Report  ReportConfig  `yaml:"report"`
}

// AgentConfig contains the remote conversation agent settings
type AgentConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	Endpoint     string `yaml:"endpoint"`
	SystemPrompt string `yaml:"system_prompt"`
}

// AudioConfig contains audio pipeline parameters
type AudioConfig struct {
	CaptureRate   int `yaml:"capture_rate"`   // microphone sample rate
	TransportRate int `yaml:"transport_rate"` // rate sent to the agent
	PlaybackRate  int `yaml:"playback_rate"`  // rate of agent audio
	BlockSize     int `yaml:"block_size"`     // samples per capture block
}

// SessionConfig contains session lifecycle settings
type SessionConfig struct {
	DurationSeconds int `yaml:"duration_seconds"`
}

// ReportConfig contains the post-session feedback report settings
type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:    channel.DefaultModel,
			Endpoint: channel.DefaultEndpoint,
		},
		Audio: AudioConfig{
			CaptureRate:   48000,
			TransportRate: 16000,
			PlaybackRate:  24000,
			BlockSize:     2048,
		},
		Session: SessionConfig{
			DurationSeconds: 180,
		},
	}
}

// Load reads and parses the configuration file. Values the file leaves
// unset fall back to defaults; the API key falls back to the
// GEMINI_API_KEY environment variable.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// ApplyEnv fills credentials from the environment when the file (or
// defaults) left them empty
func (c *Config) ApplyEnv() {
	if c.Agent.APIKey == "" {
		c.Agent.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

// Validate checks all configuration sections
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	return nil
}

// Validate validates agent configuration
func (a *AgentConfig) Validate() error {
	if a.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set agent.api_key or GEMINI_API_KEY)")
	}
	if a.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if a.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.CaptureRate < 8000 {
		return fmt.Errorf("capture_rate must be at least 8000 Hz, got %d", a.CaptureRate)
	}
	if a.TransportRate < 8000 {
		return fmt.Errorf("transport_rate must be at least 8000 Hz, got %d", a.TransportRate)
	}
	if a.TransportRate > a.CaptureRate {
		return fmt.Errorf("transport_rate (%d) cannot exceed capture_rate (%d)", a.TransportRate, a.CaptureRate)
	}
	if a.PlaybackRate < 8000 {
		return fmt.Errorf("playback_rate must be at least 8000 Hz, got %d", a.PlaybackRate)
	}
	if a.BlockSize < 256 {
		return fmt.Errorf("block_size must be at least 256 samples, got %d", a.BlockSize)
	}
	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.DurationSeconds < 10 {
		return fmt.Errorf("duration_seconds must be at least 10, got %d", s.DurationSeconds)
	}
	return nil
}

// Duration returns the session length as a time.Duration
func (s *SessionConfig) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}
