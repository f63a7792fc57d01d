// Package config loads the reel.toml daemon configuration and supplies
// validated defaults for everything the recording pipeline needs before
// the UI overrides it per session.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/pelletier/go-toml/v2"
)

// Commit is stamped at build time.
var Commit = `development`

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Record  RecordConfig  `toml:"record"`
	Encoder EncoderConfig `toml:"encoder"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// RecordConfig holds the capture defaults applied when a start request
// leaves a field unset.
type RecordConfig struct {
	DisplayIndex int     `toml:"display_index"`
	Width        int     `toml:"width"`
	Height       int     `toml:"height"`
	FPS          int     `toml:"fps"`
	VideoBitrate int     `toml:"video_bitrate"`
	AudioBitrate int     `toml:"audio_bitrate"`
	SystemVolume float64 `toml:"system_volume"`
	MicVolume    float64 `toml:"mic_volume"`
}

// EncoderConfig carries the configurable container fallback policy. The
// baseline container is always appended implicitly during negotiation.
type EncoderConfig struct {
	Preference      []string `toml:"preference"`
	ChunkIntervalMS int      `toml:"chunk_interval_ms"`
	QueuePolicy     string   `toml:"queue_policy"`
	QueueSize       int      `toml:"queue_size"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: `127.0.0.1:7350`},
		Log:    LogConfig{Level: `info`},
		Record: RecordConfig{
			Width:        1280,
			Height:       720,
			FPS:          30,
			VideoBitrate: 4_000_000,
			AudioBitrate: 128_000,
			SystemVolume: 1,
			MicVolume:    1,
		},
		Encoder: EncoderConfig{
			Preference:      []string{`mp4-h264`, `avi-mjpeg`},
			ChunkIntervalMS: 1000,
			QueuePolicy:     `drop-oldest`,
			QueueSize:       8,
		},
	}
}

// Load reads the config file when present, otherwise returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Record.Width <= 0 || c.Record.Height <= 0 {
		return fmt.Errorf("config: invalid output size %dx%d", c.Record.Width, c.Record.Height)
	}
	if c.Record.FPS <= 0 || c.Record.FPS > 120 {
		return fmt.Errorf("config: invalid fps %d", c.Record.FPS)
	}
	if c.Record.SystemVolume < 0 || c.Record.SystemVolume > 1 ||
		c.Record.MicVolume < 0 || c.Record.MicVolume > 1 {
		return errors.New(`config: volumes must be within [0, 1]`)
	}
	switch c.Encoder.QueuePolicy {
	case ``, `drop-oldest`, `block`:
	default:
		return fmt.Errorf("config: unknown queue policy %q", c.Encoder.QueuePolicy)
	}
	if c.Encoder.ChunkIntervalMS < 100 {
		c.Encoder.ChunkIntervalMS = 100
	}
	return nil
}

// DeviceID identifies this machine in status and health payloads.
func DeviceID() string {
	id, err := machineid.ProtectedID(`reel`)
	if err != nil {
		return `unknown`
	}
	return id
}
