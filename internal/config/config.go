// Package config loads scout configuration from a TOML file with
// environment variable overrides. The file is optional; every field has a
// working default except the API keys, which stay empty and disable the
// stages that need them.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var SampleConfig string

type Config struct {
	Storage StorageConfig `toml:"storage"`
	OpenAI  OpenAIConfig  `toml:"openai"`
	Search  SearchConfig  `toml:"search"`
	Fetch   FetchConfig   `toml:"fetch"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

type SearchConfig struct {
	SerpAPIKey string `toml:"serpapi_key"`
}

type FetchConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type ServerConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Fetch: FetchConfig{
			RequestsPerSecond: 1,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:4600",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Path returns the config file location: $XDG_CONFIG_HOME/scout/config.toml,
// falling back to ~/.config/scout/config.toml.
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "scout", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scout-config.toml")
	}
	return filepath.Join(home, ".config", "scout", "config.toml")
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "scout")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "scout")
}

// Load reads configuration from Path(). A missing file is not an error;
// defaults plus environment overrides apply.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads configuration from an explicit path, then applies SCOUT_*
// environment variable overrides.
func LoadFile(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Storage.DataDir, "SCOUT_DATA_DIR")
	setString(&cfg.OpenAI.APIKey, "SCOUT_OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "SCOUT_OPENAI_BASE_URL")
	setString(&cfg.OpenAI.Model, "SCOUT_OPENAI_MODEL")
	setString(&cfg.Search.SerpAPIKey, "SCOUT_SERPAPI_KEY")
	setString(&cfg.Server.Addr, "SCOUT_SERVER_ADDR")
	setString(&cfg.Server.Token, "SCOUT_SERVER_TOKEN")
	setString(&cfg.Log.Level, "SCOUT_LOG_LEVEL")

	if v := os.Getenv("SCOUT_FETCH_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Fetch.RequestsPerSecond = f
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// WriteSample writes the annotated sample config to Path() unless a config
// file already exists there.
func WriteSample() (string, error) {
	path := Path()
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(SampleConfig), 0o600); err != nil {
		return path, fmt.Errorf("writing sample config: %w", err)
	}
	return path, nil
}
