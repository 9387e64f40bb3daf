package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Backend != BackendSimulation {
		t.Fatalf("default backend %q", c.Backend)
	}
	if c.NumStreams != 1 || c.Workers != 4 {
		t.Fatalf("default concurrency %d/%d", c.NumStreams, c.Workers)
	}
	if c.Pad != 0 || c.TileWidth != 0 {
		t.Fatalf("default geometry pad=%d tile_w=%d", c.Pad, c.TileWidth)
	}
	if err := c.Validate(1); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TILE_W", "64")
	t.Setenv("PAD", "8")
	t.Setenv("NUM_STREAMS", "3")
	t.Setenv("USE_GRAPH", "true")
	t.Setenv("VERBOSITY", "debug")

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.TileWidth != 64 || c.Pad != 8 || c.NumStreams != 3 || !c.UseGraph {
		t.Fatalf("env not applied: %+v", c)
	}
	lvl, err := c.LogLevel()
	if err != nil || lvl != slog.LevelDebug {
		t.Fatalf("LogLevel() = %v, %v", lvl, err)
	}
}

func TestYAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilerunner.yaml")
	data := []byte("tile_w: 128\nnum_streams: 2\nverbosity: info\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TILERUNNER_CONFIG", path)
	t.Setenv("NUM_STREAMS", "5") // env wins over file

	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.TileWidth != 128 {
		t.Fatalf("file tile_w not applied, got %d", c.TileWidth)
	}
	if c.NumStreams != 5 {
		t.Fatalf("env must override file, got num_streams=%d", c.NumStreams)
	}
	if c.Verbosity != "info" {
		t.Fatalf("file verbosity not applied, got %q", c.Verbosity)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("tile_w: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TILERUNNER_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		devices int
		wantErr bool
	}{
		{"valid", func(c *Config) {}, 1, false},
		{"negative pad", func(c *Config) { c.Pad = -1 }, 1, true},
		{"pad without tile", func(c *Config) { c.Pad = 4 }, 1, true},
		{"pad with tile", func(c *Config) { c.Pad = 4; c.TileWidth = 64 }, 1, false},
		{"zero streams", func(c *Config) { c.NumStreams = 0 }, 1, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, 1, true},
		{"negative device", func(c *Config) { c.DeviceID = -1 }, 1, true},
		{"device beyond count", func(c *Config) { c.DeviceID = 2 }, 2, true},
		{"device within count", func(c *Config) { c.DeviceID = 1 }, 2, false},
		{"unknown count skips check", func(c *Config) { c.DeviceID = 7 }, 0, false},
		{"unknown backend", func(c *Config) { c.Backend = "vulkan" }, 1, true},
		{"onnx needs engine path", func(c *Config) { c.Backend = BackendONNX }, 1, true},
		{"onnx with engine path", func(c *Config) { c.Backend = BackendONNX; c.EnginePath = "m.onnx" }, 1, false},
		{"bad verbosity", func(c *Config) { c.Verbosity = "chatty" }, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			if err := c.Validate(tt.devices); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
