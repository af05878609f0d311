// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Room       RoomConfig       `yaml:"room"`
	Observer   ObserverConfig   `yaml:"observer"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Connection ConnectionConfig `yaml:"connection"`
	Spotify    SpotifyConfig    `yaml:"spotify"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// RoomConfig represents room-level configuration.
type RoomConfig struct {
	Name string `yaml:"name" default:"Listening room"`
}

// ObserverConfig represents session observer configuration.
type ObserverConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms" default:"500" validate:"gte=100,lte=10000"`
	EndThresholdMs int `yaml:"end_threshold_ms" default:"1000" validate:"gte=0,lte=30000"`
}

// PollInterval returns the poll interval as a duration.
func (o ObserverConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalMs) * time.Millisecond
}

// EndThreshold returns the end-of-track threshold as a duration.
func (o ObserverConfig) EndThreshold() time.Duration {
	return time.Duration(o.EndThresholdMs) * time.Millisecond
}

// PlaybackConfig represents playback coordination configuration.
type PlaybackConfig struct {
	// The suppression window must outlast the observation channel's
	// propagation delay, which is around 2s in practice.
	SuppressionWindowMs int `yaml:"suppression_window_ms" default:"2500" validate:"gte=500,lte=30000"`
}

// SuppressionWindow returns the suppression window as a duration.
func (p PlaybackConfig) SuppressionWindow() time.Duration {
	return time.Duration(p.SuppressionWindowMs) * time.Millisecond
}

// ConnectionConfig represents session acquisition configuration.
type ConnectionConfig struct {
	Target           string `yaml:"target" default:"spotify" validate:"required"`
	RescanIntervalMs int    `yaml:"rescan_interval_ms" default:"5000" validate:"gte=1000,lte=60000"`
}

// RescanInterval returns the re-scan interval as a duration.
func (c ConnectionConfig) RescanInterval() time.Duration {
	return time.Duration(c.RescanIntervalMs) * time.Millisecond
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
