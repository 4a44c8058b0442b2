package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/acolita/hydra-sh/internal/testing/fakes/fakefs"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Listen != "127.0.0.1:3000" {
		t.Errorf("Server.Listen = %q", cfg.Server.Listen)
	}
	if cfg.SSH.ReadyTimeout != 10*time.Second {
		t.Errorf("SSH.ReadyTimeout = %v, want 10s", cfg.SSH.ReadyTimeout)
	}
	if cfg.Capture.QuietWindow != 200*time.Millisecond {
		t.Errorf("Capture.QuietWindow = %v, want 200ms", cfg.Capture.QuietWindow)
	}
	if cfg.History.MaxPerDay != 200 {
		t.Errorf("History.MaxPerDay = %d, want 200", cfg.History.MaxPerDay)
	}
	if cfg.History.RetentionDays != 0 {
		t.Errorf("History.RetentionDays = %d, want 0", cfg.History.RetentionDays)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.Sanitize {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Recording.Enabled {
		t.Error("Recording.Enabled = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.SSH.Term != "xterm-256color" {
		t.Errorf("SSH.Term = %q (default)", cfg.SSH.Term)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load(missing) error: %v", err)
	}
	if cfg.History.MaxPerDay != 200 {
		t.Errorf("History.MaxPerDay = %d, want default", cfg.History.MaxPerDay)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile("/etc/hydra/config.yaml", []byte(":::invalid:::yaml{{{"), 0644)

	if _, err := Load("/etc/hydra/config.yaml", fsys); err == nil {
		t.Fatal("Load(invalid) expected error, got nil")
	}
}

func TestLoadValidConfig(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile("/etc/hydra/config.yaml", []byte(`
server:
  listen: 0.0.0.0:8080
  allowed_origins: ["dash.example.com"]
ssh:
  ready_timeout: 5s
  known_hosts_path: /etc/ssh/ssh_known_hosts
  keepalive_interval: 0s
capture:
  quiet_window: 350ms
history:
  database_path: /var/lib/hydra/history.db
  max_per_day: 50
  retention_days: 30
  prune_schedule: "0 3 * * *"
profiles:
  path: /var/lib/hydra/connections.yaml
audit:
  provider: gemini
  api_url: https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent
  api_key_env: GEMINI_KEY
  temperature: 0.7
  max_tokens: 1000
recording:
  enabled: true
  path: /var/lib/hydra/casts
logging:
  level: debug
prompt_detection:
  custom_patterns:
    - name: otp
      regex: "(?i)verification code:"
      type: otp
`), 0644)

	cfg, err := Load("/etc/hydra/config.yaml", fsys)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Listen != "0.0.0.0:8080" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.SSH.ReadyTimeout != 5*time.Second || cfg.SSH.KeepaliveInterval != 0 {
		t.Errorf("SSH = %+v", cfg.SSH)
	}
	if cfg.SSH.Term != "xterm-256color" {
		t.Errorf("SSH.Term = %q, want default kept", cfg.SSH.Term)
	}
	if cfg.Capture.QuietWindow != 350*time.Millisecond {
		t.Errorf("Capture.QuietWindow = %v", cfg.Capture.QuietWindow)
	}
	if cfg.History.MaxPerDay != 50 || cfg.History.RetentionDays != 30 || cfg.History.PruneSchedule != "0 3 * * *" {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Audit.Provider != "gemini" || cfg.Audit.MaxTokens != 1000 || cfg.Audit.Temperature != 0.7 {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if !cfg.Recording.Enabled || cfg.Recording.Path != "/var/lib/hydra/casts" {
		t.Errorf("Recording = %+v", cfg.Recording)
	}
	if len(cfg.PromptDetection.CustomPatterns) != 1 || cfg.PromptDetection.CustomPatterns[0].Type != "otp" {
		t.Errorf("PromptDetection = %+v", cfg.PromptDetection)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HYDRA_SERVER_LISTEN", ":9000")
	t.Setenv("HYDRA_HISTORY_MAX_PER_DAY", "75")
	t.Setenv("HYDRA_CAPTURE_QUIET_WINDOW", "500ms")
	t.Setenv("HYDRA_RECORDING_ENABLED", "true")
	t.Setenv("HYDRA_SERVER_ALLOWED_ORIGINS", "a.example.com,b.example.com")

	fsys := fakefs.New()
	fsys.AddFile("/c.yaml", []byte("server:\n  listen: 127.0.0.1:1\nhistory:\n  max_per_day: 10\n"), 0644)

	cfg, err := Load("/c.yaml", fsys)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Listen != ":9000" {
		t.Errorf("Server.Listen = %q, want env value", cfg.Server.Listen)
	}
	if cfg.History.MaxPerDay != 75 {
		t.Errorf("History.MaxPerDay = %d, want env value", cfg.History.MaxPerDay)
	}
	if cfg.Capture.QuietWindow != 500*time.Millisecond {
		t.Errorf("Capture.QuietWindow = %v", cfg.Capture.QuietWindow)
	}
	if !cfg.Recording.Enabled {
		t.Error("Recording.Enabled not overridden")
	}
	if got := strings.Join(cfg.Server.AllowedOrigins, " "); got != "a.example.com b.example.com" {
		t.Errorf("AllowedOrigins = %q", got)
	}
}

func TestLoadEnvironmentIgnoresUnprefixedNames(t *testing.T) {
	t.Setenv("TERM", "dumb")
	t.Setenv("LEVEL", "error")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SSH.Term != "xterm-256color" || cfg.Logging.Level != "info" {
		t.Errorf("unprefixed env leaked into config: term=%q level=%q", cfg.SSH.Term, cfg.Logging.Level)
	}
}

func TestLoadBadEnvironmentValue(t *testing.T) {
	t.Setenv("HYDRA_HISTORY_MAX_PER_DAY", "lots")
	if _, err := Load(""); err == nil {
		t.Fatal("Load() accepted a non-numeric override")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"upper-case level", func(c *Config) { c.Logging.Level = "WARN" }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"negative retention", func(c *Config) { c.History.RetentionDays = -1 }, true},
		{"text format", func(c *Config) { c.Logging.Format = "TEXT" }, false},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"negative keepalive", func(c *Config) { c.SSH.KeepaliveInterval = -time.Second }, true},
		{"pattern without regex", func(c *Config) {
			c.PromptDetection.CustomPatterns = []PatternConfig{{Name: "empty"}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.Capture.QuietWindow != 200*time.Millisecond {
		t.Errorf("QuietWindow = %v, want default", cfg.Capture.QuietWindow)
	}
	if cfg.History.MaxPerDay != 200 {
		t.Errorf("MaxPerDay = %d, want default", cfg.History.MaxPerDay)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.SSH.ReadyTimeout != 10*time.Second {
		t.Errorf("ReadyTimeout = %v", cfg.SSH.ReadyTimeout)
	}
}

func TestAuditAPIKey(t *testing.T) {
	t.Setenv("MY_AUDIT_KEY", "sk-test")
	a := AuditConfig{APIKeyEnv: "MY_AUDIT_KEY"}
	if got := a.APIKey(); got != "sk-test" {
		t.Errorf("APIKey() = %q", got)
	}
	if got := (AuditConfig{}).APIKey(); got != "" {
		t.Errorf("APIKey() without env = %q", got)
	}
}
