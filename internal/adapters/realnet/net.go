// Package realnet provides a real implementation of the NetworkDialer port.
package realnet

import (
	"context"
	"net"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
)

// Dialer implements ports.NetworkDialer using net.Dialer.
type Dialer struct {
	dialer net.Dialer
}

// NewDialer creates a new Dialer with TCP keepalive enabled.
func NewDialer() *Dialer {
	return &Dialer{dialer: net.Dialer{KeepAlive: 30 * time.Second}}
}

// DialContext establishes a network connection.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.dialer.DialContext(ctx, network, address)
}

var _ ports.NetworkDialer = (*Dialer)(nil)
