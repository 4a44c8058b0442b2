package session_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/session"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/acolita/hydra-sh/internal/testing/fakes/faketransport"
)

var epoch = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

const hostPrompt = "user@web:~$ "

// events records everything a session reports.
type events struct {
	mu       sync.Mutex
	chunks   []string
	statuses []session.Status
	entries  []history.Entry
}

func (e *events) OnData(_, data string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chunks = append(e.chunks, data)
}

func (e *events) OnStatus(_ string, status session.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, status)
}

func (e *events) OnCommand(_ string, entry history.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
}

func (e *events) data() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Join(e.chunks, "")
}

func (e *events) dataChunks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.chunks...)
}

func (e *events) statusList() []session.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.Status(nil), e.statuses...)
}

func (e *events) commands() []history.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]history.Entry(nil), e.entries...)
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitDone(t *testing.T, sess *session.Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session goroutine did not exit")
	}
}

// waitShell waits for the n-th transport's shell to open.
func waitShell(t *testing.T, conn *faketransport.Connector, n int) *faketransport.Shell {
	t.Helper()
	var shell *faketransport.Shell
	waitFor(t, "shell", func() bool {
		ts := conn.Transports()
		if len(ts) <= n {
			return false
		}
		shell = ts[n].Shell()
		return shell != nil
	})
	return shell
}

// emit sends output and waits until the session has forwarded it.
func emit(t *testing.T, ev *events, shell *faketransport.Shell, data string) {
	t.Helper()
	before := len(ev.data())
	if err := shell.Emit(data); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	waitFor(t, "output "+data, func() bool { return len(ev.data()) >= before+len(data) })
}

func directConfig() ssh.ConnectionConfig {
	return ssh.ConnectionConfig{
		Name:     "web prod",
		Host:     "10.0.0.5",
		Port:     22,
		Username: "ops",
		Password: "secret",
		AppUser:  "alice",
	}
}

func jumpConfig() ssh.ConnectionConfig {
	cfg := directConfig()
	cfg.JumpConfig = &ssh.ConnectionConfig{
		Name:     "bastion",
		Host:     "bastion.example.com",
		Port:     22,
		Username: "jump",
		Password: "secret",
		IsJump:   true,
	}
	return cfg
}
