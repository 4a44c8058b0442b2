package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/acolita/hydra-sh/internal/testing/fakes/fakedialog"
	"github.com/spf13/cobra"
)

// testEnv points every path at a temp dir and returns the profiles file.
func testEnv(t *testing.T) (opts *globalOptions, profilesPath string) {
	t.Helper()
	dir := t.TempDir()
	profilesPath = filepath.Join(dir, "connections.yaml")
	t.Setenv("HYDRA_PROFILES_PATH", profilesPath)
	t.Setenv("HYDRA_HISTORY_DATABASE_PATH", filepath.Join(dir, "history.db"))
	return &globalOptions{configPath: filepath.Join(dir, "config.yaml")}, profilesPath
}

func run(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, NewRootCmd(BuildInfo{Version: "1.2.3", BuildTime: "today", GitCommit: "abc123"}), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	for _, want := range []string{"hydra version 1.2.3", "Build time: today", "Git commit: abc123"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestProfileListEmpty(t *testing.T) {
	opts, _ := testEnv(t)
	out, err := run(t, newProfileListCmd(opts))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "No saved connections." {
		t.Errorf("output = %q", out)
	}
}

func TestProfileListAndRemove(t *testing.T) {
	opts, path := testEnv(t)
	store := profiles.Open(path)
	jump, err := store.Save(ssh.ConnectionConfig{Name: "bastion", Host: "bastion.example.com", Username: "jump", IsJump: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ssh.ConnectionConfig{Name: "db", Host: "10.0.0.9", Port: 2222, Username: "pg", UseAgent: true, JumpConfig: &jump}); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, newProfileListCmd(opts))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "NAME") {
		t.Fatalf("output =\n%s", out)
	}
	if !strings.Contains(lines[1], "password (jump host)") || !strings.Contains(lines[2], "10.0.0.9:2222") ||
		!strings.Contains(lines[2], "agent") || !strings.Contains(lines[2], "bastion") {
		t.Errorf("rows =\n%s", out)
	}

	out, err = run(t, newProfileRmCmd(opts), "db")
	if err != nil || strings.TrimSpace(out) != "Removed db" {
		t.Fatalf("rm = %q, %v", out, err)
	}
	if names := profileNames(profiles.Open(path)); names != "bastion" {
		t.Errorf("left = %q", names)
	}

	if _, err := run(t, newProfileRmCmd(opts), "nope"); err == nil || !strings.Contains(err.Error(), `no connection named "nope"`) {
		t.Errorf("rm unknown error = %v", err)
	}
}

func profileNames(s *profiles.Store) string {
	var names []string
	for _, p := range s.List() {
		names = append(names, p.Name)
	}
	return strings.Join(names, ",")
}

func TestProfileAdd(t *testing.T) {
	opts, path := testEnv(t)
	dp := fakedialog.New()
	dp.Result = ports.ProfileFormData{Name: "web", Host: "10.0.0.5", Port: 22, Username: "ops", AuthType: profiles.AuthPassword, Confirmed: true}

	out, err := run(t, newProfileAddCmd(opts, dp), "--name", "web", "--host", "10.0.0.5", "--user", "ops")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Saved web (") || !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	if dp.ReceivedPrefill.Host != "10.0.0.5" || dp.ReceivedPrefill.Port != 22 || dp.ReceivedPrefill.AuthType != profiles.AuthPassword {
		t.Errorf("prefill = %+v", dp.ReceivedPrefill)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("profiles file not written: %v", err)
	}
}

func TestProfileAddCancelled(t *testing.T) {
	opts, path := testEnv(t)
	dp := fakedialog.New()

	out, err := run(t, newProfileAddCmd(opts, dp))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Cancelled." {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("profiles file written on cancel: %v", err)
	}
}

func TestLoadAppliesDebugAndRejectsBadConfig(t *testing.T) {
	opts, _ := testEnv(t)
	opts.debug = true
	cfg, err := opts.load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}

	if err := os.WriteFile(opts.configPath, []byte("history:\n  retention_days: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := opts.load(); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("load() error = %v", err)
	}
}

func TestNewDetectorRejectsBadPattern(t *testing.T) {
	opts, _ := testEnv(t)
	if err := os.WriteFile(opts.configPath, []byte("prompt_detection:\n  custom_patterns:\n    - name: vault\n      regex: \"(\"\n      type: password\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := opts.load()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newDetector(cfg); err == nil || !strings.Contains(err.Error(), `prompt pattern "vault"`) {
		t.Errorf("newDetector() error = %v", err)
	}
}
