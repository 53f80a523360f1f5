package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"session-lab/contract"
	"session-lab/domain"
	apperrors "session-lab/errors"
)

// ConnectionLifecycle owns at most one transport connection and the
// endpoint subscribed on it.
type ConnectionLifecycle struct {
	mu        sync.Mutex
	log       *slog.Logger
	transport contract.Transport
	connected bool
	conn      domain.ConnID
	identity  domain.Identity
	endpoint  contract.Endpoint
	// onRelease runs before the handle is dropped so that open sessions
	// are closed while the connection still works.
	onRelease func()
}

func NewConnectionLifecycle(log *slog.Logger, transport contract.Transport) *ConnectionLifecycle {
	return &ConnectionLifecycle{log: log, transport: transport}
}

func (c *ConnectionLifecycle) OnRelease(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRelease = fn
}

// Connect reuses the current handle when identity is already subscribed.
// Any other live connection is released first.
func (c *ConnectionLifecycle) Connect(ctx context.Context, server string, identity domain.Identity, secret string) (contract.Endpoint, error) {
	c.mu.Lock()
	if c.connected && c.identity == identity {
		endpoint, conn := c.endpoint, c.conn
		c.mu.Unlock()
		c.log.Debug("Reusing connection", "identity", identity.String(), "conn", conn)
		return endpoint, nil
	}
	wasConnected := c.connected
	c.mu.Unlock()

	if wasConnected {
		if err := c.Disconnect(); err != nil {
			c.log.Warn("Failed to release previous connection", "error", err)
		}
	}

	conn, err := c.transport.Connect(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", apperrors.ErrTransport, server, err)
	}
	endpoint, err := c.transport.Subscribe(ctx, identity, secret, conn)
	if err != nil {
		if dErr := c.transport.Disconnect(conn); dErr != nil {
			c.log.Warn("Failed to drop connection after subscribe failure", "conn", conn, "error", dErr)
		}
		return nil, fmt.Errorf("%w: subscribe %s: %w", apperrors.ErrTransport, identity, err)
	}

	c.mu.Lock()
	c.connected = true
	c.conn = conn
	c.identity = identity
	c.endpoint = endpoint
	c.mu.Unlock()
	c.log.Info("Connected", "server", server, "identity", identity.String(), "conn", conn)
	return endpoint, nil
}

// SetRoute makes remote reachable through the current connection.
func (c *ConnectionLifecycle) SetRoute(ctx context.Context, remote domain.Identity) error {
	c.mu.Lock()
	connected, conn := c.connected, c.conn
	c.mu.Unlock()
	if !connected {
		return apperrors.ErrNotConnected
	}
	if err := c.transport.SetRoute(ctx, remote, conn); err != nil {
		return fmt.Errorf("%w: route to %s: %w", apperrors.ErrTransport, remote, err)
	}
	return nil
}

// Disconnect is a no-op when nothing is connected.
func (c *ConnectionLifecycle) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	release := c.onRelease
	conn := c.conn
	c.mu.Unlock()

	if release != nil {
		release()
	}

	c.mu.Lock()
	c.connected = false
	c.endpoint = nil
	c.identity = domain.Identity{}
	c.mu.Unlock()

	if err := c.transport.Disconnect(conn); err != nil {
		return fmt.Errorf("%w: disconnect: %w", apperrors.ErrTransport, err)
	}
	c.log.Info("Disconnected", "conn", conn)
	return nil
}

func (c *ConnectionLifecycle) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *ConnectionLifecycle) Identity() domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *ConnectionLifecycle) ConnID() (domain.ConnID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn, c.connected
}
