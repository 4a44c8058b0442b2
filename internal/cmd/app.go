package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/acolita/hydra-sh/internal/adapters/realfs"
	"github.com/acolita/hydra-sh/internal/audit"
	"github.com/acolita/hydra-sh/internal/config"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/logging"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/acolita/hydra-sh/internal/prompt"
	"github.com/acolita/hydra-sh/internal/server"
	"github.com/acolita/hydra-sh/internal/session"
	"github.com/acolita/hydra-sh/internal/ssh"
)

func (o *globalOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultConfigPath()
}

// load reads and validates the configuration, applying flag overrides.
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.path())
	if err != nil {
		return nil, err
	}
	o.override(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (o *globalOptions) override(cfg *config.Config) {
	if o.debug {
		cfg.Logging.Level = "debug"
	}
}

func setupLogging(cfg *config.Config) *slog.Logger {
	return logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Sanitize)
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	return history.Open(history.Options{
		Path:      cfg.History.DatabasePath,
		MaxPerDay: cfg.History.MaxPerDay,
		Filesys:   realfs.New(),
	})
}

func openProfiles(cfg *config.Config) *profiles.Store {
	return profiles.Open(cfg.Profiles.Path)
}

func newAuditor(cfg *config.Config, logger *slog.Logger) *audit.Client {
	a := cfg.Audit
	key := a.APIKey()
	if key == "" && a.Provider != "" {
		logger.Warn("audit API key not set", slog.String("env", a.APIKeyEnv))
	}
	return audit.New(audit.Config{
		Provider:      a.Provider,
		APIURL:        a.APIURL,
		APIKey:        key,
		Model:         a.Model,
		SystemPrompt:  a.SystemPrompt,
		ContextPrompt: a.ContextPrompt,
		Temperature:   a.Temperature,
		MaxTokens:     a.MaxTokens,
		Timeout:       a.Timeout,
	}, audit.WithLogger(logger))
}

// newDetector adds the configured credential prompts to the defaults.
func newDetector(cfg *config.Config) (*prompt.Detector, error) {
	det := prompt.NewDetector()
	for _, p := range cfg.PromptDetection.CustomPatterns {
		if err := det.AddPatternFromConfig(p.Name, p.Regex, p.Type); err != nil {
			return nil, fmt.Errorf("prompt pattern %q: %w", p.Name, err)
		}
	}
	return det, nil
}

func newConnector(cfg *config.Config, logger *slog.Logger) (session.Connector, error) {
	hostKeys, err := ssh.HostKeyCallback(realfs.New(), cfg.SSH.KnownHostsPath, cfg.SSH.InsecureIgnoreHostKey)
	if err != nil {
		return nil, err
	}
	return session.SSHConnector(ssh.NewConnector(ssh.ConnectorOptions{
		ReadyTimeout:      cfg.SSH.ReadyTimeout,
		KeepaliveInterval: cfg.SSH.KeepaliveInterval,
		HostKeyCallback:   hostKeys,
		AgentSocket:       os.Getenv("SSH_AUTH_SOCK"),
		Logger:            logger,
	})), nil
}

func serverSettings(cfg *config.Config) server.Settings {
	return server.Settings{
		QuietWindow:    cfg.Capture.QuietWindow,
		Term:           cfg.SSH.Term,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
}
