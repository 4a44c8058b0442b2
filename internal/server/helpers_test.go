package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/acolita/hydra-sh/internal/testing/fakes/fakeclock"
	"github.com/acolita/hydra-sh/internal/testing/fakes/fakefs"
	"github.com/acolita/hydra-sh/internal/testing/fakes/faketransport"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

var epoch = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

const hostPrompt = "user@web:~$ "

type harness struct {
	srv       *Server
	ts        *httptest.Server
	connector *faketransport.Connector
	clock     *fakeclock.Clock
	history   *history.Store
	profiles  *profiles.Store
	fs        *fakefs.FS
}

func newHarness(t *testing.T, customize ...func(*harness, *Options)) *harness {
	t.Helper()
	clock := fakeclock.New(epoch)
	store, err := history.Open(history.Options{Path: ":memory:", Clock: clock})
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fsys := fakefs.New()
	n := 0
	profileStore := profiles.Open("/data/hydra/connections.yaml",
		profiles.WithFileSystem(fsys),
		profiles.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("conn-%d", n)
		}))

	h := &harness{
		connector: faketransport.New(),
		clock:     clock,
		history:   store,
		profiles:  profileStore,
		fs:        fsys,
	}
	opts := Options{
		History:   store,
		Profiles:  profileStore,
		Connector: h.connector,
		Clock:     clock,
		Settings: Settings{
			QuietWindow: 200 * time.Millisecond,
			Term:        "xterm-256color",
		},
	}
	for _, f := range customize {
		f(h, &opts)
	}
	h.srv = New(opts)
	h.ts = httptest.NewServer(h.srv.Handler())
	t.Cleanup(h.ts.Close)
	return h
}

// received is an outbound message as the browser sees it.
type received struct {
	Type    string          `json:"type"`
	TabID   string          `json:"tabId"`
	Payload json.RawMessage `json:"payload"`
}

func (r received) text(t *testing.T) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(r.Payload, &s); err != nil {
		t.Fatalf("payload %s is not a string: %v", r.Payload, err)
	}
	return s
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	msgs chan received
}

func (h *harness) dial(t *testing.T) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	c := &wsClient{t: t, conn: conn, msgs: make(chan received, 1024)}
	go func() {
		defer close(c.msgs)
		for {
			var msg received
			if err := wsjson.Read(context.Background(), conn, &msg); err != nil {
				return
			}
			c.msgs <- msg
		}
	}()
	t.Cleanup(func() { conn.CloseNow() })
	return c
}

func (c *wsClient) send(msg map[string]any) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		c.t.Fatalf("wsjson.Write() error = %v", err)
	}
}

func (c *wsClient) sendRaw(data string) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, []byte(data)); err != nil {
		c.t.Fatalf("conn.Write() error = %v", err)
	}
}

// expect skips messages until one of type typ arrives.
func (c *wsClient) expect(typ string) received {
	c.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatalf("connection closed waiting for %s", typ)
			}
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

// collect returns the first message of each type, skipping others.
func (c *wsClient) collect(types ...string) map[string]received {
	c.t.Helper()
	want := make(map[string]bool, len(types))
	for _, typ := range types {
		want[typ] = true
	}
	got := make(map[string]received, len(types))
	timeout := time.After(2 * time.Second)
	for len(got) < len(types) {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatalf("connection closed waiting for %v", types)
			}
			if _, seen := got[msg.Type]; want[msg.Type] && !seen {
				got[msg.Type] = msg
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %v", types)
		}
	}
	return got
}

// expectData skips messages until data containing want arrives for tabID.
func (c *wsClient) expectData(tabID, want string) {
	c.t.Helper()
	var seen strings.Builder
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatalf("connection closed waiting for data %q", want)
			}
			if msg.Type == msgData && msg.TabID == tabID {
				seen.WriteString(msg.text(c.t))
				if strings.Contains(seen.String(), want) {
					return
				}
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for data %q, got %q", want, seen.String())
		}
	}
}

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

func webConfig() ssh.ConnectionConfig {
	return ssh.ConnectionConfig{
		Name:     "web prod",
		Host:     "10.0.0.5",
		Port:     22,
		Username: "ops",
		Password: "secret",
		AppUser:  "alice",
	}
}

func createSession(tabID string, cfg ssh.ConnectionConfig, rows, cols int) map[string]any {
	return map[string]any{
		"type":   msgCreateSession,
		"tabId":  tabID,
		"config": cfg,
		"rows":   rows,
		"cols":   cols,
	}
}

// openTab creates a session and waits until its shell is streaming, after
// which input reaches the shell.
func (c *wsClient) openTab(h *harness, tabID string, n int) *faketransport.Shell {
	c.t.Helper()
	c.send(createSession(tabID, webConfig(), 24, 80))
	shell := waitShell(c.t, h.connector, n)
	if err := shell.Emit(hostPrompt); err != nil {
		c.t.Fatalf("Emit() error = %v", err)
	}
	c.expectData(tabID, hostPrompt)
	return shell
}
