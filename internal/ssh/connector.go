package ssh

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/acolita/hydra-sh/internal/adapters/realclock"
	"github.com/acolita/hydra-sh/internal/adapters/realnet"
	"github.com/acolita/hydra-sh/internal/ports"
	"golang.org/x/crypto/ssh"
)

// Stage is a connection milestone reported to the Progress callback.
type Stage int

const (
	// StageJumpConnecting is reported before dialing the jump host.
	StageJumpConnecting Stage = iota
	// StageJumpReady is reported when the jump host is authenticated and the
	// tunnel to the target is being opened.
	StageJumpReady
	// StageConnecting is reported before the target handshake.
	StageConnecting
	// StageConnected is reported once the target is authenticated.
	StageConnected
)

// Progress receives connection milestones. It may be nil.
type Progress func(stage Stage, cfg ConnectionConfig)

// ConnectorOptions configures a Connector.
type ConnectorOptions struct {
	// ReadyTimeout bounds each hop, covering dial, handshake and auth.
	ReadyTimeout      time.Duration
	KeepaliveInterval time.Duration
	HostKeyCallback   ssh.HostKeyCallback
	// AgentSocket is the SSH agent socket used when a config asks for agent auth.
	AgentSocket string
	Dialer      ports.NetworkDialer
	Clock       ports.Clock
	Logger      *slog.Logger
}

// Connector opens SSH transports, directly or through a jump host.
type Connector struct {
	readyTimeout time.Duration
	keepalive    time.Duration
	hostKeys     ssh.HostKeyCallback
	agentSocket  string
	dialer       ports.NetworkDialer
	clock        ports.Clock
	logger       *slog.Logger
}

// NewConnector returns a Connector, filling unset options with defaults.
func NewConnector(opts ConnectorOptions) *Connector {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 10 * time.Second
	}
	if opts.HostKeyCallback == nil {
		opts.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	if opts.Dialer == nil {
		opts.Dialer = realnet.NewDialer()
	}
	if opts.Clock == nil {
		opts.Clock = realclock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Connector{
		readyTimeout: opts.ReadyTimeout,
		keepalive:    opts.KeepaliveInterval,
		hostKeys:     opts.HostKeyCallback,
		agentSocket:  opts.AgentSocket,
		dialer:       opts.Dialer,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
}

// Connect opens a transport for cfg. Without a jump config exactly one SSH
// transport is opened; with one, the jump host is authenticated first and the
// target handshake runs over a direct-tcpip channel opened from the jump host.
// On any failure every transport opened so far is closed before returning.
func (c *Connector) Connect(ctx context.Context, cfg ConnectionConfig, progress Progress) (*Transport, error) {
	if progress == nil {
		progress = func(Stage, ConnectionConfig) {}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConnectionError{Hop: HopTarget, Addr: cfg.Addr(), Err: err}
	}

	ag := c.agentFor(ctx, cfg)

	if !cfg.HasJump() {
		progress(StageConnecting, cfg)
		target, err := c.dialDirect(ctx, HopTarget, cfg, ag)
		if err != nil {
			closeAgent(ag)
			return nil, err
		}
		progress(StageConnected, cfg)
		return newTransport(target, nil, ag, c.clock, c.keepalive, c.logger), nil
	}

	jumpCfg := *cfg.JumpConfig
	progress(StageJumpConnecting, jumpCfg)
	jumpAgent := c.agentFor(ctx, jumpCfg)
	jump, err := c.dialDirect(ctx, HopJump, jumpCfg, jumpAgent)
	closeAgent(jumpAgent)
	if err != nil {
		closeAgent(ag)
		return nil, err
	}

	progress(StageJumpReady, jumpCfg)
	target, err := c.dialThrough(ctx, jump, jumpCfg, cfg, ag)
	if err != nil {
		jump.Close()
		closeAgent(ag)
		return nil, err
	}
	progress(StageConnected, cfg)
	return newTransport(target, jump, ag, c.clock, c.keepalive, c.logger), nil
}

// agentFor connects to the local agent when cfg asks for it. An unreachable
// agent falls back to password auth.
func (c *Connector) agentFor(ctx context.Context, cfg ConnectionConfig) *Agent {
	if !cfg.UseAgent {
		return nil
	}
	ag, err := DialAgent(ctx, c.dialer, c.agentSocket)
	if err != nil {
		c.logger.Warn("ssh agent unavailable, falling back to password",
			slog.String("host", cfg.Host),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return ag
}

func closeAgent(ag *Agent) {
	if ag != nil {
		ag.Close()
	}
}

func (c *Connector) clientConfig(cfg ConnectionConfig, ag *Agent) (*ssh.ClientConfig, error) {
	methods, err := authMethods(cfg, ag)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            methods,
		HostKeyCallback: c.hostKeys,
		Timeout:         c.readyTimeout,
	}, nil
}

func (c *Connector) dialDirect(ctx context.Context, hop Hop, cfg ConnectionConfig, ag *Agent) (*ssh.Client, error) {
	addr := cfg.Addr()
	clientCfg, err := c.clientConfig(cfg, ag)
	if err != nil {
		return nil, &ConnectionError{Hop: hop, Addr: addr, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Hop: hop, Addr: addr, After: c.readyTimeout}
		}
		return nil, &ConnectionError{Hop: hop, Addr: addr, Err: err}
	}
	return c.handshake(ctx, hop, conn, addr, clientCfg)
}

func (c *Connector) dialThrough(ctx context.Context, jump *ssh.Client, jumpCfg, cfg ConnectionConfig, ag *Agent) (*ssh.Client, error) {
	addr := cfg.Addr()
	clientCfg, err := c.clientConfig(cfg, ag)
	if err != nil {
		return nil, &ConnectionError{Hop: HopTarget, Addr: addr, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	conn, err := jump.DialContext(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Hop: HopJump, Addr: jumpCfg.Addr(), After: c.readyTimeout}
		}
		return nil, &TunnelError{Jump: jumpCfg.Addr(), Target: addr, Err: err}
	}
	return c.handshake(ctx, HopTarget, conn, addr, clientCfg)
}

type handshakeResult struct {
	conn  ssh.Conn
	chans <-chan ssh.NewChannel
	reqs  <-chan *ssh.Request
	err   error
}

// handshake runs the SSH handshake on conn, bounded by ctx. On timeout the
// underlying conn is closed, which also unblocks the handshake goroutine.
func (c *Connector) handshake(ctx context.Context, hop Hop, conn net.Conn, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	done := make(chan handshakeResult, 1)
	go func() {
		sc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		done <- handshakeResult{conn: sc, chans: chans, reqs: reqs, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			conn.Close()
			return nil, &ConnectionError{Hop: hop, Addr: addr, Err: r.err}
		}
		return ssh.NewClient(r.conn, r.chans, r.reqs), nil

	case <-ctx.Done():
		conn.Close()
		go func() {
			if r := <-done; r.err == nil {
				r.conn.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Hop: hop, Addr: addr, After: c.readyTimeout}
		}
		return nil, &ConnectionError{Hop: hop, Addr: addr, Err: ctx.Err()}
	}
}
