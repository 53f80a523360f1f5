package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"session-lab/contract"
	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/gorilla/websocket"
)

const defaultTokenTTL = time.Minute

// Client implements contract.Transport over relay WebSockets.
type Client struct {
	log      *slog.Logger
	dialer   *websocket.Dialer
	tokenTTL time.Duration

	mu     sync.Mutex
	nextID domain.ConnID
	conns  map[domain.ConnID]*conn
}

func NewClient(log *slog.Logger) *Client {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	return &Client{
		log:      log,
		dialer:   &dialer,
		tokenTTL: defaultTokenTTL,
		conns:    make(map[domain.ConnID]*conn),
	}
}

func (c *Client) Connect(ctx context.Context, serverAddr string) (domain.ConnID, error) {
	target, err := WebSocketURL(serverAddr)
	if err != nil {
		return 0, err
	}
	ws, resp, err := c.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", target, err)
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.conns[id] = newConn(c.log, id, ws)
	c.mu.Unlock()
	c.log.Debug("Relay connection opened", "conn", id, "url", target)
	return id, nil
}

func (c *Client) Subscribe(ctx context.Context, identity domain.Identity, secret string, connID domain.ConnID) (contract.Endpoint, error) {
	cn, err := c.lookup(connID)
	if err != nil {
		return nil, err
	}
	token, err := NewSubscribeToken(secret, identity, c.tokenTTL)
	if err != nil {
		return nil, err
	}
	if _, err := cn.request(ctx, Frame{Type: FrameSubscribe, From: identity.String(), Token: token}); err != nil {
		return nil, err
	}
	e := newEndpoint(c.log, cn, identity, secret)
	cn.bind(e)
	return e, nil
}

// SetRoute installs a local route; sessions and invites towards remote are
// refused until one exists.
func (c *Client) SetRoute(_ context.Context, remote domain.Identity, connID domain.ConnID) error {
	cn, err := c.lookup(connID)
	if err != nil {
		return err
	}
	cn.addRoute(remote)
	return nil
}

func (c *Client) Disconnect(connID domain.ConnID) error {
	c.mu.Lock()
	cn, ok := c.conns[connID]
	delete(c.conns, connID)
	c.mu.Unlock()
	if ok {
		cn.close()
	}
	return nil
}

func (c *Client) lookup(id domain.ConnID) (*conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cn, ok := c.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: connection %d", apperrors.ErrNotConnected, id)
	}
	return cn, nil
}

// WebSocketURL turns a server address such as http://localhost:46357 into
// the relay's WebSocket endpoint.
func WebSocketURL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("%w: server address %q: %v", apperrors.ErrInvalidConfig, addr, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", apperrors.ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: server address %q has no host", apperrors.ErrInvalidConfig, addr)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = WebSocketPath
	}
	return u.String(), nil
}
