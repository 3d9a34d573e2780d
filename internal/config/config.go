package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nested keys: POPGLOBE_SERVER__PORT sets server.port.
const EnvPrefix = "POPGLOBE_"

// Config is the top-level popglobe configuration, corresponding to popglobe.yaml.
type Config struct {
	// DataDir holds countries.yaml and friends. Empty uses the bundled dataset.
	DataDir string `yaml:"data_dir" koanf:"data_dir"`
	// TopologyRoot resolves relative topology paths.
	TopologyRoot string `yaml:"topology_root" koanf:"topology_root"`

	WorldURL      string  `yaml:"world_url" koanf:"world_url"`
	CitiesURL     string  `yaml:"cities_url" koanf:"cities_url"`
	InitialHeight float64 `yaml:"initial_height" koanf:"initial_height"`

	Fetch    FetchConfig    `yaml:"fetch" koanf:"fetch"`
	Viewport ViewportConfig `yaml:"viewport" koanf:"viewport"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
}

// FetchConfig controls remote topology downloads.
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
	// RPS limits remote requests per second; zero disables throttling.
	RPS float64 `yaml:"rps" koanf:"rps"`
}

// ViewportConfig is the pixel size of the pick viewport.
type ViewportConfig struct {
	Width  float64 `yaml:"width" koanf:"width"`
	Height float64 `yaml:"height" koanf:"height"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// Defaults returns the configuration used when no file or override is given.
func Defaults() *Config {
	return &Config{
		WorldURL:      "https://cdn.jsdelivr.net/npm/world-atlas@2/countries-110m.json",
		CitiesURL:     "https://d2ad6b4ur7yvpq.cloudfront.net/naturalearth-3.3.0/ne_10m_populated_places_simple.geojson",
		InitialHeight: 20_000_000,
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			RPS:     4,
		},
		Viewport: ViewportConfig{Width: 4096, Height: 2048},
		Log:      LogConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{Port: 3000},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (POPGLOBE_*). A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validLogFormats = map[string]bool{"text": true, "json": true}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.WorldURL == "" {
		return fmt.Errorf("world_url is required")
	}
	if c.InitialHeight <= 0 {
		return fmt.Errorf("initial_height must be positive")
	}
	if c.Fetch.RPS < 0 {
		return fmt.Errorf("fetch.rps must be non-negative")
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must have a positive size")
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}
