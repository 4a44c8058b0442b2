package ssh

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"path/filepath"
	"strings"

	"github.com/acolita/hydra-sh/internal/ports"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyCallback builds the host key policy. With insecure set every key is
// accepted. Otherwise known_hosts is enforced when it exists; a missing file
// accepts any key and logs a warning once per host.
func HostKeyCallback(filesystem ports.FileSystem, knownHostsPath string, insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if knownHostsPath == "" {
		knownHostsPath = "~/.ssh/known_hosts"
	}
	expanded := expandPath(filesystem, knownHostsPath)

	callback, err := knownhosts.New(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			slog.Warn("known_hosts missing, accepting host key",
				slog.String("host", hostname),
				slog.String("fingerprint", ssh.FingerprintSHA256(key)),
			)
			return nil
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return callback, nil
}

// expandPath expands ~ to home directory.
func expandPath(filesystem ports.FileSystem, path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := filesystem.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
