package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.InitialHeight != 20_000_000 {
		t.Errorf("expected default initial_height 2e7, got %v", cfg.InitialHeight)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "popglobe.yaml")

	original := Defaults()
	original.WorldURL = "file://world.json"
	original.Fetch.Timeout = 5 * time.Second
	original.Fetch.RPS = 0
	original.Log.Format = "json"
	original.Server.AllowAll = true

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.WorldURL != original.WorldURL {
		t.Errorf("world_url: got %q, want %q", loaded.WorldURL, original.WorldURL)
	}
	if loaded.Fetch.Timeout != 5*time.Second {
		t.Errorf("fetch.timeout: got %v", loaded.Fetch.Timeout)
	}
	if loaded.Fetch.RPS != 0 {
		t.Errorf("fetch.rps: got %v", loaded.Fetch.RPS)
	}
	if loaded.Log.Format != "json" || !loaded.Server.AllowAll {
		t.Errorf("log/server not round-tripped: %+v %+v", loaded.Log, loaded.Server)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.WorldURL != Defaults().WorldURL {
		t.Errorf("expected default world_url, got %q", cfg.WorldURL)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "popglobe.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Viewport.Width != 4096 {
		t.Errorf("viewport width lost: %v", cfg.Viewport.Width)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POPGLOBE_WORLD_URL", "https://example.com/world.json")
	t.Setenv("POPGLOBE_SERVER__PORT", "9090")
	t.Setenv("POPGLOBE_LOG__LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorldURL != "https://example.com/world.json" {
		t.Errorf("world_url: got %q", cfg.WorldURL)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port: got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level: got %q", cfg.Log.Level)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"POPGLOBE_DATA_DIR":        "data_dir",
		"POPGLOBE_FETCH__RPS":      "fetch.rps",
		"POPGLOBE_VIEWPORT__WIDTH": "viewport.width",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no world", func(c *Config) { c.WorldURL = "" }},
		{"zero height", func(c *Config) { c.InitialHeight = 0 }},
		{"negative rps", func(c *Config) { c.Fetch.RPS = -1 }},
		{"empty viewport", func(c *Config) { c.Viewport.Width = 0 }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
