// Package config loads the hydra configuration: a YAML file overlaid with
// HYDRA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HYDRA_SERVER_LISTEN.
const EnvPrefix = "HYDRA"

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/hydra/config.yaml or ~/.config/hydra/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "hydra", "config.yaml")
}

// DefaultDataDir returns $XDG_DATA_HOME/hydra or ~/.local/share/hydra.
func DefaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "hydra")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, fallback)
}

// Config represents the top-level configuration.
type Config struct {
	Server          ServerConfig    `yaml:"server" split_words:"true"`
	SSH             SSHConfig       `yaml:"ssh" split_words:"true"`
	Capture         CaptureConfig   `yaml:"capture" split_words:"true"`
	History         HistoryConfig   `yaml:"history" split_words:"true"`
	Profiles        ProfilesConfig  `yaml:"profiles" split_words:"true"`
	Audit           AuditConfig     `yaml:"audit" split_words:"true"`
	Recording       RecordingConfig `yaml:"recording" split_words:"true"`
	Logging         LoggingConfig   `yaml:"logging" split_words:"true"`
	PromptDetection PromptConfig    `yaml:"prompt_detection" ignored:"true"`
}

// ServerConfig defines the HTTP/websocket listener.
type ServerConfig struct {
	Listen         string   `yaml:"listen" split_words:"true"`
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"` // websocket origin patterns
}

// SSHConfig defines outbound connection settings.
type SSHConfig struct {
	ReadyTimeout          time.Duration `yaml:"ready_timeout" split_words:"true"`
	KnownHostsPath        string        `yaml:"known_hosts_path" split_words:"true"`
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key" split_words:"true"`
	Term                  string        `yaml:"term" split_words:"true"`
	KeepaliveInterval     time.Duration `yaml:"keepalive_interval" split_words:"true"` // 0 disables
}

// CaptureConfig tunes command capture.
type CaptureConfig struct {
	QuietWindow time.Duration `yaml:"quiet_window" split_words:"true"`
}

// HistoryConfig defines the command history store.
type HistoryConfig struct {
	DatabasePath  string `yaml:"database_path" split_words:"true"`
	MaxPerDay     int    `yaml:"max_per_day" split_words:"true"`
	RetentionDays int    `yaml:"retention_days" split_words:"true"` // 0 keeps everything
	PruneSchedule string `yaml:"prune_schedule" split_words:"true"` // cron spec
}

// ProfilesConfig defines where saved connections live.
type ProfilesConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

// AuditConfig defines the text-completion provider used by the audit assistant.
type AuditConfig struct {
	Provider      string        `yaml:"provider" split_words:"true"` // "openai" or "gemini"
	APIURL        string        `yaml:"api_url" split_words:"true"`
	APIKeyEnv     string        `yaml:"api_key_env" split_words:"true"` // env var holding the key
	Model         string        `yaml:"model" split_words:"true"`
	SystemPrompt  string        `yaml:"system_prompt" split_words:"true"`
	ContextPrompt string        `yaml:"context_prompt" split_words:"true"`
	Temperature   float64       `yaml:"temperature" split_words:"true"`
	MaxTokens     int           `yaml:"max_tokens" split_words:"true"`
	Timeout       time.Duration `yaml:"timeout" split_words:"true"`
}

// APIKey resolves the provider key from the environment.
func (a AuditConfig) APIKey() string {
	if a.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.APIKeyEnv)
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true"`    // "debug", "info", "warn", "error"
	Format   string `yaml:"format" split_words:"true"`   // "json" or "text"
	Sanitize bool   `yaml:"sanitize" split_words:"true"` // mask credential-like attributes
}

// RecordingConfig defines session recording settings.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"` // record raw pty output per tab
	Path    string `yaml:"path" split_words:"true"`    // directory to store recordings
}

// PromptConfig defines extra credential prompt patterns.
type PromptConfig struct {
	CustomPatterns []PatternConfig `yaml:"custom_patterns"`
}

// PatternConfig defines a custom prompt pattern.
type PatternConfig struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
	Type  string `yaml:"type"` // "password", "passphrase", "otp"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	data := DefaultDataDir()
	return &Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:3000",
		},
		SSH: SSHConfig{
			ReadyTimeout:      10 * time.Second,
			Term:              "xterm-256color",
			KeepaliveInterval: 30 * time.Second,
		},
		Capture: CaptureConfig{
			QuietWindow: 200 * time.Millisecond,
		},
		History: HistoryConfig{
			DatabasePath:  filepath.Join(data, "history.db"),
			MaxPerDay:     200,
			PruneSchedule: "@daily",
		},
		Profiles: ProfilesConfig{
			Path: filepath.Join(data, "connections.yaml"),
		},
		Audit: AuditConfig{
			Provider:     "openai",
			APIURL:       "https://api.openai.com/v1/chat/completions",
			APIKeyEnv:    "HYDRA_AUDIT_API_KEY",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a security auditor reviewing shell sessions. Summarise what was done, flag risky commands and answer the stated objective.",
			Temperature:  0.2,
			MaxTokens:    2048,
			Timeout:      60 * time.Second,
		},
		Recording: RecordingConfig{
			Path: filepath.Join(data, "recordings"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file, then applies HYDRA_*
// environment overrides. A missing file yields the defaults.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		var data []byte
		var err error
		if len(fsys) > 0 && fsys[0] != nil {
			data, err = fsys[0].ReadFile(path)
		} else {
			data, err = os.ReadFile(path)
		}
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate rejects unusable values. Unset tunables fall back to defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.SSH.ReadyTimeout <= 0 {
		c.SSH.ReadyTimeout = def.SSH.ReadyTimeout
	}
	if c.SSH.Term == "" {
		c.SSH.Term = def.SSH.Term
	}
	if c.SSH.KeepaliveInterval < 0 {
		return fmt.Errorf("ssh.keepalive_interval must not be negative")
	}
	if c.Capture.QuietWindow <= 0 {
		c.Capture.QuietWindow = def.Capture.QuietWindow
	}
	if c.History.MaxPerDay <= 0 {
		c.History.MaxPerDay = def.History.MaxPerDay
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative")
	}
	if c.History.PruneSchedule == "" {
		c.History.PruneSchedule = def.History.PruneSchedule
	}
	if c.Audit.Timeout <= 0 {
		c.Audit.Timeout = def.Audit.Timeout
	}

	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}

	c.Logging.Format = strings.ToLower(c.Logging.Format)
	switch c.Logging.Format {
	case "":
		c.Logging.Format = def.Logging.Format
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}

	for _, p := range c.PromptDetection.CustomPatterns {
		if p.Regex == "" {
			return fmt.Errorf("prompt pattern %q has no regex", p.Name)
		}
	}
	return nil
}
