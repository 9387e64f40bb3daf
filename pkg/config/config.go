// Package config loads the runtime configuration from an optional YAML file
// and environment variables, environment taking precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by the Backend option.
const (
	BackendSimulation = "simulation"
	BackendONNX       = "onnx"
)

// Config holds every recognized option. Zero tile width selects whole-frame
// tiling.
type Config struct {
	// Engine
	EnginePath string `yaml:"engine_path"`
	Backend    string `yaml:"backend"`
	DeviceID   int    `yaml:"device_id"`
	Verbosity  string `yaml:"verbosity"` // debug | info | warn | error

	// Geometry
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`
	TileWidth   int `yaml:"tile_w"`
	TileHeight  int `yaml:"tile_h"`
	Pad         int `yaml:"pad"`

	// Concurrency
	NumStreams int  `yaml:"num_streams"`
	UseGraph   bool `yaml:"use_graph"`
	Workers    int  `yaml:"workers"`

	// Serving
	ListenAddr string `yaml:"listen_addr"`

	// Simulation backend shape (ignored by other backends)
	SimChannels   int `yaml:"sim_channels"`
	SimWScale     int `yaml:"sim_w_scale"`
	SimHScale     int `yaml:"sim_h_scale"`
	SimSampleSize int `yaml:"sim_sample_size"`
}

func defaults() *Config {
	return &Config{
		Backend:       BackendSimulation,
		DeviceID:      0,
		Verbosity:     "warn",
		FrameWidth:    1280,
		FrameHeight:   720,
		NumStreams:    1,
		Workers:       4,
		ListenAddr:    ":8080",
		SimChannels:   3,
		SimWScale:     1,
		SimHScale:     1,
		SimSampleSize: 1,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// TILERUNNER_CONFIG (if any), then environment variables on top.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("TILERUNNER_CONFIG"); path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.EnginePath = envStr("ENGINE_PATH", c.EnginePath)
	c.Backend = envStr("BACKEND", c.Backend)
	c.DeviceID = envInt("DEVICE_ID", c.DeviceID)
	c.Verbosity = envStr("VERBOSITY", c.Verbosity)
	c.FrameWidth = envInt("FRAME_WIDTH", c.FrameWidth)
	c.FrameHeight = envInt("FRAME_HEIGHT", c.FrameHeight)
	c.TileWidth = envInt("TILE_W", c.TileWidth)
	c.TileHeight = envInt("TILE_H", c.TileHeight)
	c.Pad = envInt("PAD", c.Pad)
	c.NumStreams = envInt("NUM_STREAMS", c.NumStreams)
	c.UseGraph = envBool("USE_GRAPH", c.UseGraph)
	c.Workers = envInt("WORKERS", c.Workers)
	c.ListenAddr = envStr("LISTEN_ADDR", c.ListenAddr)
	c.SimChannels = envInt("SIM_CHANNELS", c.SimChannels)
	c.SimWScale = envInt("SIM_W_SCALE", c.SimWScale)
	c.SimHScale = envInt("SIM_H_SCALE", c.SimHScale)
	c.SimSampleSize = envInt("SIM_SAMPLE_SIZE", c.SimSampleSize)
}

// Validate checks every option that can be judged without the engine.
// deviceCount comes from the platform probe; pass <= 0 to skip the device
// index check (no enumeration available).
func (c *Config) Validate(deviceCount int) error {
	switch c.Backend {
	case BackendSimulation:
	case BackendONNX:
		if c.EnginePath == "" {
			return fmt.Errorf("config: engine_path is required for the %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Pad < 0 {
		return fmt.Errorf("config: pad %d must be non-negative", c.Pad)
	}
	if c.Pad > 0 && c.TileWidth == 0 {
		return fmt.Errorf("config: pad requires tile_w")
	}
	if c.NumStreams < 1 {
		return fmt.Errorf("config: num_streams %d must be >= 1", c.NumStreams)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers %d must be >= 1", c.Workers)
	}
	if c.DeviceID < 0 {
		return fmt.Errorf("config: invalid device ID (%d)", c.DeviceID)
	}
	if deviceCount > 0 && c.DeviceID >= deviceCount {
		return fmt.Errorf("config: invalid device ID (%d), %d device(s) available",
			c.DeviceID, deviceCount)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel maps the verbosity option to a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch c.Verbosity {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown verbosity %q", c.Verbosity)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
