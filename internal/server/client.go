package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/session"
	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const (
	outboundBuffer = 256
	writeTimeout   = 10 * time.Second
)

var errNoProfiles = errors.New("connection profiles are not available")

// client is one websocket connection. It owns a session manager and is the
// listener for every session the manager creates.
type client struct {
	srv     *Server
	conn    *websocket.Conn
	id      string
	logger  *slog.Logger
	manager *session.Manager

	ctx    context.Context
	cancel context.CancelFunc
	out    chan outbound

	closeOnce sync.Once
}

func newClient(srv *Server, conn *websocket.Conn, settings Settings) *client {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		srv:    srv,
		conn:   conn,
		id:     id,
		logger: srv.logger.With(slog.String("client_id", id)),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan outbound, outboundBuffer),
	}
	opts := []session.ManagerOption{
		session.WithManagerClock(srv.clock),
		session.WithQuietWindow(settings.QuietWindow),
		session.WithDetector(srv.detector),
		session.WithManagerLogger(c.logger),
	}
	if settings.Term != "" {
		opts = append(opts, session.WithTerm(settings.Term))
	}
	if f := srv.recorderFactory(); f != nil {
		opts = append(opts, session.WithRecorders(f))
	}
	c.manager = session.NewManager(srv.connector, c, opts...)
	return c
}

// serve runs until the client disconnects or is closed, then tears down
// every session it owns.
func (c *client) serve() {
	c.logger.Info("client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.readLoop()

	c.cancel()
	<-writerDone
	if err := c.manager.CloseAll(); err != nil {
		c.logger.Warn("closing sessions", slog.String("error", err.Error()))
	}
	c.close(websocket.StatusNormalClosure, "")
	c.logger.Info("client disconnected")
}

func (c *client) readLoop() {
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && c.ctx.Err() == nil {
				c.logger.Debug("websocket read ended", slog.String("error", err.Error()))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "invalid message")
			continue
		}
		c.handle(msg)
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(ctx, c.conn, msg)
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					c.logger.Debug("websocket write failed", slog.String("error", err.Error()))
				}
				c.cancel()
				return
			}
		}
	}
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close(code, reason)
	})
}

// send queues msg, waiting while the outbound buffer is full. Messages for a
// client that has gone away are dropped.
func (c *client) send(msg outbound) {
	select {
	case c.out <- msg:
	case <-c.ctx.Done():
	}
}

func (c *client) sendError(tabID, message string) {
	c.send(outbound{Type: msgError, TabID: tabID, Payload: message})
}

func (c *client) handle(msg inbound) {
	switch msg.Type {
	case msgCreateSession:
		c.createSession(msg)
	case msgTerminalInput:
		if len(msg.Data) > MaxInputSize {
			c.logger.Warn("terminal input dropped",
				slog.String("tab_id", msg.TabID),
				slog.Int("size", len(msg.Data)))
			return
		}
		if err := c.manager.Write(msg.TabID, msg.Data, msg.CurrentLine); err != nil {
			c.logger.Debug("terminal input failed",
				slog.String("tab_id", msg.TabID),
				slog.String("error", err.Error()))
		}
	case msgResize:
		rows, cols := clampSize(msg.Rows, msg.Cols)
		if err := c.manager.Resize(msg.TabID, rows, cols); err != nil {
			c.logger.Debug("resize failed",
				slog.String("tab_id", msg.TabID),
				slog.String("error", err.Error()))
		}
	case msgCloseSession:
		if err := c.manager.Close(msg.TabID); err != nil {
			c.logger.Debug("close session",
				slog.String("tab_id", msg.TabID),
				slog.String("error", err.Error()))
		}
	case msgLoadConnections:
		c.sendConnections()
	case msgSaveConnection:
		c.saveConnection(msg.Config)
	case msgDeleteConnection:
		c.deleteConnection(msg.ID)
	case msgLoadFullHistory:
		c.sendFullHistory()
	default:
		c.sendError(msg.TabID, "unknown message type: "+msg.Type)
	}
}

func (c *client) createSession(msg inbound) {
	if msg.TabID == "" {
		c.sendError("", "tabId is required")
		return
	}
	if msg.Config == nil {
		c.sendError(msg.TabID, "config is required")
		return
	}
	if err := msg.Config.Validate(); err != nil {
		c.sendError(msg.TabID, err.Error())
		return
	}

	rows, cols := clampSize(msg.Rows, msg.Cols)
	if _, err := c.manager.Create(msg.TabID, *msg.Config, rows, cols); err != nil {
		c.sendError(msg.TabID, err.Error())
		return
	}
	c.sendHostHistory(msg.TabID, msg.Config.Host)
}

func (c *client) sendHostHistory(tabID, host string) {
	days, err := c.srv.history.ByHost(host)
	if err != nil {
		c.logger.Warn("load history",
			slog.String("host", host),
			slog.String("error", err.Error()))
		return
	}
	c.send(outbound{Type: msgHistoryUpdated, TabID: tabID, Payload: days})
}

func (c *client) sendFullHistory() {
	all, err := c.srv.history.All()
	if err != nil {
		c.logger.Warn("load full history", slog.String("error", err.Error()))
		c.sendError("", "history unavailable")
		return
	}
	c.send(outbound{Type: msgFullHistory, Payload: all})
}

// Connection profiles go to the client with their passwords; the page
// reconnects with them.
func (c *client) sendConnections() {
	if c.srv.profiles == nil {
		c.sendError("", errNoProfiles.Error())
		return
	}
	c.send(outbound{Type: msgConnectionsList, Payload: c.srv.profiles.List()})
}

func (c *client) saveConnection(cfg *ssh.ConnectionConfig) {
	if c.srv.profiles == nil {
		c.sendError("", errNoProfiles.Error())
		return
	}
	if cfg == nil {
		c.sendError("", "config is required")
		return
	}
	if _, err := c.srv.profiles.Save(*cfg); err != nil {
		c.sendError("", err.Error())
		return
	}
	c.sendConnections()
}

func (c *client) deleteConnection(id string) {
	if c.srv.profiles == nil {
		c.sendError("", errNoProfiles.Error())
		return
	}
	if err := c.srv.profiles.Delete(id); err != nil {
		c.sendError("", err.Error())
		return
	}
	c.sendConnections()
}

// OnData implements session.Listener.
func (c *client) OnData(tabID, data string) {
	c.send(outbound{Type: msgData, TabID: tabID, Payload: data})
}

// OnStatus implements session.Listener. The client only distinguishes
// connected from disconnected.
func (c *client) OnStatus(tabID string, status session.Status) {
	if status == session.StatusConnecting {
		return
	}
	c.send(outbound{Type: msgStatus, TabID: tabID, Payload: string(status)})
}

// OnCommand implements session.Listener.
func (c *client) OnCommand(tabID string, entry history.Entry) {
	if _, err := c.srv.history.Add(entry.Host, entry); err != nil {
		c.logger.Warn("store command",
			slog.String("tab_id", tabID),
			slog.String("host", entry.Host),
			slog.String("error", err.Error()))
		return
	}
	c.sendHostHistory(tabID, entry.Host)
}

var _ session.Listener = (*client)(nil)
