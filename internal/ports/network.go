// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

import (
	"context"
	"net"
)

// NetworkDialer abstracts network dialing for testing.
type NetworkDialer interface {
	// DialContext establishes a network connection, honoring ctx cancellation.
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
