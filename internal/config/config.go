// Package config provides configuration management for ClawScope.
//
// Values are resolved in layers: built-in defaults, then an optional YAML
// file, then environment variables with the CLAWSCOPE_ prefix. Command-line
// flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable holding the YAML config path.
const ConfigFileEnv = "CLAWSCOPE_CONFIG"

// Config holds all configuration settings for ClawScope.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Upstream UpstreamConfig `yaml:"upstream"`
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Live     LiveConfig     `yaml:"live"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port      int     `yaml:"port" envconfig:"CLAWSCOPE_PORT"`
	Host      string  `yaml:"host" envconfig:"CLAWSCOPE_HOST"`
	RateLimit float64 `yaml:"rate_limit" envconfig:"CLAWSCOPE_RATE_LIMIT"` // requests per second
	RateBurst int     `yaml:"rate_burst" envconfig:"CLAWSCOPE_RATE_BURST"`
}

// StorageConfig points at the files ClawScope reads and writes.
type StorageConfig struct {
	MemoryDBPath string `yaml:"memory_db" envconfig:"CLAWSCOPE_MEMORY_DB"`
	SettingsPath string `yaml:"settings_path" envconfig:"CLAWSCOPE_SETTINGS_PATH"`
}

// UpstreamConfig describes how to reach the agent platform.
type UpstreamConfig struct {
	CompanionURL     string        `yaml:"companion_url" envconfig:"CLAWSCOPE_COMPANION_URL"`
	CompanionTimeout time.Duration `yaml:"companion_timeout" envconfig:"CLAWSCOPE_COMPANION_TIMEOUT"`
	CLIBinary        string        `yaml:"cli_bin" envconfig:"CLAWSCOPE_CLI_BIN"`
	CLITimeout       time.Duration `yaml:"cli_timeout" envconfig:"CLAWSCOPE_CLI_TIMEOUT"`
	LogsTimeout      time.Duration `yaml:"logs_timeout" envconfig:"CLAWSCOPE_LOGS_TIMEOUT"`
	SessionCacheTTL  time.Duration `yaml:"session_cache_ttl" envconfig:"CLAWSCOPE_SESSION_CACHE_TTL"`
}

// LLMConfig configures the optional Ollama backend used for embeddings and
// fact extraction. An empty OllamaURL disables both.
type LLMConfig struct {
	OllamaURL    string `yaml:"ollama_url" envconfig:"CLAWSCOPE_OLLAMA_URL"`
	EmbedModel   string `yaml:"embed_model" envconfig:"CLAWSCOPE_EMBED_MODEL"`
	ExtractModel string `yaml:"extract_model" envconfig:"CLAWSCOPE_EXTRACT_MODEL"`
}

// SearchConfig tunes the memory search adapter.
type SearchConfig struct {
	SemanticWeight float64 `yaml:"semantic_weight" envconfig:"CLAWSCOPE_SEMANTIC_WEIGHT"`
	Limit          int     `yaml:"limit" envconfig:"CLAWSCOPE_SEARCH_LIMIT"`
	CandidateCount int     `yaml:"candidate_count" envconfig:"CLAWSCOPE_SEARCH_CANDIDATES"`
}

// LiveConfig controls the WebSocket timeline push.
type LiveConfig struct {
	PushInterval time.Duration `yaml:"push_interval" envconfig:"CLAWSCOPE_PUSH_INTERVAL"` // 0 disables
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"CLAWSCOPE_LOG_LEVEL"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	base := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			Port:      7420,
			Host:      "127.0.0.1",
			RateLimit: 20,
			RateBurst: 40,
		},
		Storage: StorageConfig{
			MemoryDBPath: filepath.Join(base, "memory.db"),
			SettingsPath: filepath.Join(base, "settings.json"),
		},
		Upstream: UpstreamConfig{
			CompanionURL:     "http://127.0.0.1:18789/clawscope",
			CompanionTimeout: 4 * time.Second,
			CLIBinary:        "openclaw",
			CLITimeout:       12 * time.Second,
			LogsTimeout:      15 * time.Second,
			SessionCacheTTL:  15 * time.Minute,
		},
		LLM: LLMConfig{
			EmbedModel:   "nomic-embed-text",
			ExtractModel: "qwen2.5:7b",
		},
		Search: SearchConfig{
			SemanticWeight: 0.7,
			Limit:          20,
			CandidateCount: 80,
		},
		Live: LiveConfig{PushInterval: 15 * time.Second},
		Log:  LogConfig{Level: "info"},
	}
}

// Load resolves the configuration. path may be empty, in which case the
// CLAWSCOPE_CONFIG environment variable is consulted; a missing file at an
// explicitly named path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// mergeEnv overlays CLAWSCOPE_* variables. Tags carry the full variable
// name and no defaults, so unset variables leave earlier layers untouched.
func (c *Config) mergeEnv() error {
	sections := []interface{}{&c.Server, &c.Storage, &c.Upstream, &c.LLM, &c.Search, &c.Live, &c.Log}
	for _, s := range sections {
		if err := envconfig.Process("", s); err != nil {
			return fmt.Errorf("config: environment: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for values that cannot work and clamps
// the semantic weight into [0, 1].
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Storage.MemoryDBPath == "" {
		return errors.New("config: memory database path is required")
	}
	if c.Storage.SettingsPath == "" {
		return errors.New("config: settings path is required")
	}
	if c.Upstream.CLIBinary == "" {
		return errors.New("config: cli binary is required")
	}
	if c.Search.SemanticWeight < 0 {
		c.Search.SemanticWeight = 0
	}
	if c.Search.SemanticWeight > 1 {
		c.Search.SemanticWeight = 1
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".clawscope"
	}
	return filepath.Join(home, ".clawscope")
}
