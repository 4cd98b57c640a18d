package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Mesh defaults
	if cfg.Mesh.TileSize != 1000 {
		t.Errorf("expected tile size 1000, got %d", cfg.Mesh.TileSize)
	}
	if cfg.Mesh.Method != "delatin" {
		t.Errorf("expected method delatin, got %s", cfg.Mesh.Method)
	}
	if cfg.Mesh.Format != "ply" {
		t.Errorf("expected format ply, got %s", cfg.Mesh.Format)
	}

	// Render defaults
	if cfg.Render.Backend != "gl" {
		t.Errorf("expected backend gl, got %s", cfg.Render.Backend)
	}
	if cfg.Render.Background != [3]uint8{255, 255, 255} {
		t.Errorf("expected white background, got %v", cfg.Render.Background)
	}
	if !cfg.Render.XYZ {
		t.Error("expected xyz output on by default for synthetic cameras")
	}

	// Historical defaults
	if cfg.Historical.Padding != 5 {
		t.Errorf("expected padding 5, got %f", cfg.Historical.Padding)
	}
	if cfg.Historical.HistDist != 10 {
		t.Errorf("expected hist_dist 10, got %f", cfg.Historical.HistDist)
	}
	if !cfg.Historical.WithHist {
		t.Error("expected with_hist to be true by default")
	}
	if cfg.Historical.XYZ {
		t.Error("expected xyz output off by default for historical cameras")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
mesh:
  tile_size: 250
  format: stl

render:
  backend: cpu
  background: [0, 0, 0]
  workers: 4

historical:
  padding: 2.5
  hist_dist: 50
  with_hist: false
  width: 800

logging:
  level: debug
  log_file: /tmp/terracam.log
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Mesh.TileSize != 250 {
		t.Errorf("expected tile size 250, got %d", cfg.Mesh.TileSize)
	}
	if cfg.Mesh.Format != "stl" {
		t.Errorf("expected format stl, got %s", cfg.Mesh.Format)
	}
	if cfg.Render.Backend != "cpu" {
		t.Errorf("expected backend cpu, got %s", cfg.Render.Backend)
	}
	if cfg.Render.Background != [3]uint8{0, 0, 0} {
		t.Errorf("expected black background, got %v", cfg.Render.Background)
	}
	if cfg.Render.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Render.Workers)
	}
	if cfg.Historical.Padding != 2.5 {
		t.Errorf("expected padding 2.5, got %f", cfg.Historical.Padding)
	}
	if cfg.Historical.WithHist {
		t.Error("expected with_hist false")
	}
	if cfg.Historical.Width != 800 {
		t.Errorf("expected width 800, got %d", cfg.Historical.Width)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	// Values absent from the file keep their defaults.
	if cfg.Mesh.Method != "delatin" {
		t.Errorf("expected method to stay delatin, got %s", cfg.Mesh.Method)
	}
	if cfg.Export.Canvas != 500 {
		t.Errorf("expected canvas to stay 500, got %d", cfg.Export.Canvas)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := Default()
	cfg.Mesh.TileSize = 64
	cfg.Render.Backend = "cpu"
	cfg.Historical.Height = 480

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, configPath); err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}

	if loaded.Mesh.TileSize != 64 {
		t.Errorf("expected tile size 64, got %d", loaded.Mesh.TileSize)
	}
	if loaded.Render.Backend != "cpu" {
		t.Errorf("expected backend cpu, got %s", loaded.Render.Backend)
	}
	if loaded.Historical.Height != 480 {
		t.Errorf("expected height 480, got %d", loaded.Historical.Height)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterGlobalFlags(fs)
	RegisterMeshFlags(fs)
	RegisterOrthoFlags(fs)
	RegisterDepthFlag(fs, false)
	RegisterHistoricalFlags(fs)
	return fs
}

func resetFlags() {
	flagConfig = ""
	flagDebug = false
	flagLogFile = ""
	flagBackend = ""
	flagTileSize = 0
	flagMethod = ""
	flagFormat = ""
	flagOrthoRes = 0
	flagXYZ = false
	flagPadding = 0
	flagHistDist = 0
	flagWithHist = true
	flagWidth = 0
	flagHeight = 0
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			args: []string{"--debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected debug level, got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "mesh flags",
			args: []string{"--tile-size", "128", "--format", "stl"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Mesh.TileSize != 128 {
					t.Errorf("expected tile size 128, got %d", cfg.Mesh.TileSize)
				}
				if cfg.Mesh.Format != "stl" {
					t.Errorf("expected format stl, got %s", cfg.Mesh.Format)
				}
			},
		},
		{
			name: "historical flags",
			args: []string{"--padding", "0", "--w-hist=false", "--width", "640", "--xyz"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Historical.Padding != 0 {
					t.Errorf("expected explicit zero padding, got %f", cfg.Historical.Padding)
				}
				if cfg.Historical.WithHist {
					t.Error("expected with_hist false")
				}
				if cfg.Historical.Width != 640 {
					t.Errorf("expected width 640, got %d", cfg.Historical.Width)
				}
				if !cfg.Historical.XYZ {
					t.Error("expected xyz true")
				}
			},
		},
		{
			name: "unset flags keep defaults",
			args: nil,
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Mesh.TileSize != 1000 {
					t.Errorf("expected tile size 1000, got %d", cfg.Mesh.TileSize)
				}
				if cfg.Historical.Padding != 5 {
					t.Errorf("expected padding 5, got %f", cfg.Historical.Padding)
				}
				if !cfg.Historical.WithHist {
					t.Error("expected with_hist true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			defer resetFlags()

			fs := newFlagSet()
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}

			cfg := Default()
			applyFlags(cfg, fs)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	resetFlags()
	defer resetFlags()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
mesh:
  tile_size: 200
  method: delatin
render:
  backend: cpu
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	fs := newFlagSet()
	if err := fs.Parse([]string{"--config", configPath, "--tile-size", "300"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Flag beats file.
	if cfg.Mesh.TileSize != 300 {
		t.Errorf("expected tile size 300 (flag), got %d", cfg.Mesh.TileSize)
	}
	// File beats default.
	if cfg.Render.Backend != "cpu" {
		t.Errorf("expected backend cpu (file), got %s", cfg.Render.Backend)
	}
	// Default remains.
	if cfg.Historical.HistDist != 10 {
		t.Errorf("expected hist_dist 10 (default), got %f", cfg.Historical.HistDist)
	}
}

func TestLoadFromEnv(t *testing.T) {
	resetFlags()
	defer resetFlags()

	configPath := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(configPath, []byte("render:\n  backend: cpu\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(EnvConfig, configPath)

	cfg, err := Load(newFlagSet())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Render.Backend != "cpu" {
		t.Errorf("expected backend cpu (env file), got %s", cfg.Render.Backend)
	}
}

func TestLoadRejectsZeroTileSize(t *testing.T) {
	resetFlags()
	defer resetFlags()

	configPath := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(configPath, []byte("mesh:\n  tile_size: 0\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(EnvConfig, configPath)

	_, err := Load(newFlagSet())
	if err == nil || !strings.Contains(err.Error(), "mesh.tile_size") {
		t.Fatalf("expected tile size error, got %v", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Render.Background = [3]uint8{0, 0, 0}

	data, err := cfg.YAML()
	if err != nil {
		t.Fatalf("failed to encode config: %v", err)
	}
	if !strings.Contains(string(data), "hist_dist: 10") {
		t.Errorf("expected hist_dist in output, got:\n%s", data)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Render.Backend = "vulkan" }, "render.backend"},
		{"unknown format", func(c *Config) { c.Mesh.Format = "obj" }, "mesh.format"},
		{"zero tile size", func(c *Config) { c.Mesh.TileSize = 0 }, "mesh.tile_size"},
		{"negative tile size", func(c *Config) { c.Mesh.TileSize = -50 }, "mesh.tile_size"},
		{"zero resolution", func(c *Config) { c.Ortho.Resolution = 0 }, "ortho.resolution"},
		{"negative width", func(c *Config) { c.Historical.Width = -1 }, "historical"},
		{"zero thumb", func(c *Config) { c.Export.Thumb = 0 }, "export"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected no config file, got %s", path)
	}

	if err := os.WriteFile("terracam.yaml", []byte("mesh:\n  tile_size: 10\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if path := findConfigFile(); path != "./terracam.yaml" {
		t.Errorf("expected ./terracam.yaml, got %s", path)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if filepath.Base(dir) != "terracam" {
		t.Errorf("expected config dir to end in terracam, got %s", dir)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	if err := os.WriteFile(configPath, []byte("mesh: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
