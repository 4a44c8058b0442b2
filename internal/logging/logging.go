// Package logging builds the process loggers. Attributes whose key looks like
// a credential are replaced before they reach the output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Redacted replaces the value of a secret attribute.
const Redacted = "[REDACTED]"

// secretKeyParts match case-insensitively anywhere in an attribute key, so
// jump_password and SSH_AUTH_SOCK are both caught.
var secretKeyParts = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"credential",
	"auth",
	"key",
}

// IsSecretKey reports whether values logged under key are masked.
func IsSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// Options configures New.
type Options struct {
	Level  slog.Leveler
	Format Format
	Redact bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.Redact {
		handlerOpts.ReplaceAttr = redactAttr
	}

	var handler slog.Handler
	if opts.Format == FormatText {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// redactAttr runs for every leaf attribute, including those nested in groups
// and those bound with Logger.With.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if IsSecretKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// level is shared by every logger built by Setup so a config reload can
// change verbosity in place.
var level = new(slog.LevelVar)

// ParseLevel maps debug|info|warn|error to a slog level. Anything else is info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs the default logger on stderr and returns it.
func Setup(levelName, format string, redact bool) *slog.Logger {
	level.Set(ParseLevel(levelName))
	logger := New(os.Stderr, Options{
		Level:  level,
		Format: Format(strings.ToLower(format)),
		Redact: redact,
	})
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the level of loggers created by Setup.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// Level returns the level of loggers created by Setup.
func Level() slog.Level {
	return level.Level()
}
