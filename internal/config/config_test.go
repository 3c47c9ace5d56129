package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Video.Width != 320 || cfg.Video.Height != 200 {
		t.Errorf("Expected 320x200, got %dx%d", cfg.Video.Width, cfg.Video.Height)
	}
	if cfg.Fracture.Threshold != 0.2 {
		t.Errorf("Expected threshold 0.2, got %v", cfg.Fracture.Threshold)
	}
	if cfg.Fracture.MaxExplosionFrames != 30 {
		t.Errorf("Expected 30 explosion frames, got %d", cfg.Fracture.MaxExplosionFrames)
	}
	if cfg.Combat.Range != 1.9 || cfg.Combat.HalfAngle != 0.7 {
		t.Errorf("Unexpected combat defaults: %+v", cfg.Combat)
	}
	if cfg.Combat.BatchMin != 5 || cfg.Combat.BatchMax != 9 {
		t.Errorf("Expected batch 5..9, got %d..%d", cfg.Combat.BatchMin, cfg.Combat.BatchMax)
	}
	if cfg.Render.NearPlane != 0.05 {
		t.Errorf("Expected near plane 0.05, got %v", cfg.Render.NearPlane)
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg := Default()
	doc := `
video:
  width: 640
level:
  seed: 42
  maze_width: 20
combat:
  batch_max: 7
server:
  allowed_origins: ["https://crawler.example"]
`
	if err := Decode(strings.NewReader(doc), &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if cfg.Video.Width != 640 {
		t.Errorf("Expected width 640, got %d", cfg.Video.Width)
	}
	if cfg.Video.Height != 200 {
		t.Errorf("Height should keep its default, got %d", cfg.Video.Height)
	}
	if cfg.Level.Seed != 42 || cfg.Level.MazeWidth != 20 || cfg.Level.MazeHeight != 12 {
		t.Errorf("Unexpected level: %+v", cfg.Level)
	}
	if cfg.Combat.BatchMax != 7 || cfg.Combat.BatchMin != 5 {
		t.Errorf("Unexpected combat: %+v", cfg.Combat)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://crawler.example" {
		t.Errorf("Unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	cfg := Default()
	if err := Decode(strings.NewReader(""), &cfg); err != nil {
		t.Fatalf("empty document should decode, got %v", err)
	}
	if cfg.Video != DefaultVideo() {
		t.Errorf("empty document changed video: %+v", cfg.Video)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	if err := Decode(strings.NewReader("video:\n  widht: 10\n"), &cfg); err == nil {
		t.Error("Expected error for misspelled key")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawler.yaml")
	if err := os.WriteFile(path, []byte("video:\n  fps: 60\nlevel:\n  skeletons: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "8081")
	t.Setenv("SKELETONS", "4")
	t.Setenv("MUSIC_PATH", "assets/crawl.ogg")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Video.FPS != 60 {
		t.Errorf("Expected fps 60 from file, got %d", cfg.Video.FPS)
	}
	if cfg.Level.Skeletons != 4 {
		t.Errorf("Environment should override file, got %d skeletons", cfg.Level.Skeletons)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Server.Port)
	}
	if cfg.Audio.MusicPath != "assets/crawl.ogg" {
		t.Errorf("Expected music path from env, got %q", cfg.Audio.MusicPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Level.MazeWidth != 12 {
		t.Errorf("Expected default maze width, got %d", cfg.Level.MazeWidth)
	}
}

func TestEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("VIEW_WIDTH", "wide")
	t.Setenv("MUSIC_VOLUME", "loud")

	cfg := FromEnv(Default())
	if cfg.Video.Width != 320 {
		t.Errorf("Expected width to stay 320, got %d", cfg.Video.Width)
	}
	if cfg.Audio.Volume != 0.3 {
		t.Errorf("Expected volume to stay 0.3, got %v", cfg.Audio.Volume)
	}
}

func TestEnvLists(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://a,http://b")
	t.Setenv("MUSIC_ENABLED", "false")

	cfg := FromEnv(Default())
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b" {
		t.Errorf("Unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Audio.Enabled {
		t.Error("MUSIC_ENABLED=false should disable audio")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero width", func(c *AppConfig) { c.Video.Width = 0 }},
		{"zero fps", func(c *AppConfig) { c.Video.FPS = 0 }},
		{"empty maze", func(c *AppConfig) { c.Level.MazeHeight = 0 }},
		{"negative enemies", func(c *AppConfig) { c.Level.Skeletons = -1 }},
		{"flat fov", func(c *AppConfig) { c.Camera.FOVDegrees = 180 }},
		{"no reach", func(c *AppConfig) { c.Combat.Range = 0 }},
		{"wide cone", func(c *AppConfig) { c.Combat.HalfAngle = 4 }},
		{"inverted batch", func(c *AppConfig) { c.Combat.BatchMin = 10 }},
		{"zero threshold", func(c *AppConfig) { c.Fracture.Threshold = 0 }},
		{"growing bones", func(c *AppConfig) { c.Fracture.Shrink = 1.5 }},
		{"inverted speed", func(c *AppConfig) { c.Fracture.SpeedMin = 3 }},
		{"no near plane", func(c *AppConfig) { c.Render.NearPlane = 0 }},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if errors.Cause(err) != ErrInvalid {
				t.Errorf("Expected ErrInvalid cause, got %v", err)
			}
		})
	}
}

func TestDebugFromEnv(t *testing.T) {
	t.Setenv("DEBUG_ADDR", "0.0.0.0:7070")
	t.Setenv("ALLOW_DEBUG_EXTERNAL", "true")
	t.Setenv("DEBUG_USER", "ops")
	t.Setenv("DEBUG_PASS", "pw")

	cfg := DebugFromEnv(DefaultDebug())
	if cfg.ListenAddr != "0.0.0.0:7070" || !cfg.AllowExternal {
		t.Errorf("Unexpected listener settings: %+v", cfg)
	}
	if cfg.BasicAuthUser != "ops" || cfg.BasicAuthPass != "pw" {
		t.Errorf("Unexpected basic auth: %+v", cfg)
	}
	if DefaultDebug().AllowExternal {
		t.Error("External debug binding must be opt-in")
	}
}
