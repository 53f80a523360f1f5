package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"session-lab/domain"
	apperrors "session-lab/errors"

	"github.com/gorilla/websocket"
)

// conn is the client side of one WebSocket to the relay. Requests are
// matched to their ack by ReqID; everything else is a push routed to the
// endpoint subscribed on this connection.
type conn struct {
	log       *slog.Logger
	id        domain.ConnID
	ws        *websocket.Conn
	send      chan Frame
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	nextReq  uint64
	pending  map[uint64]chan Frame
	endpoint *Endpoint
	routes   map[domain.Identity]struct{}
}

func newConn(log *slog.Logger, id domain.ConnID, ws *websocket.Conn) *conn {
	c := &conn{
		log:     log,
		id:      id,
		ws:      ws,
		send:    make(chan Frame, sendBuffer),
		closed:  make(chan struct{}),
		pending: make(map[uint64]chan Frame),
		routes:  make(map[domain.Identity]struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

// request sends f and waits for its ack. An error frame becomes an error
// from the collaborator taxonomy.
func (c *conn) request(ctx context.Context, f Frame) (Frame, error) {
	reply := make(chan Frame, 1)
	c.mu.Lock()
	c.nextReq++
	f.ReqID = c.nextReq
	c.pending[f.ReqID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ReqID)
		c.mu.Unlock()
	}()

	select {
	case c.send <- f:
	case <-c.closed:
		return Frame{}, apperrors.ErrConnectionClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}

	select {
	case res := <-reply:
		if res.Type == FrameError {
			return res, frameError(res)
		}
		return res, nil
	case <-c.closed:
		return Frame{}, apperrors.ErrConnectionClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (c *conn) bind(e *Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = e
}

func (c *conn) addRoute(remote domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[remote] = struct{}{}
}

func (c *conn) hasRoute(remote domain.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.routes[remote]
	return ok
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
		c.mu.Lock()
		endpoint := c.endpoint
		c.mu.Unlock()
		if endpoint != nil {
			endpoint.connectionLost()
		}
	})
}

func (c *conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warn("Relay connection lost", "conn", c.id, "error", err)
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("Failed to decode frame", "error", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *conn) dispatch(f Frame) {
	if f.Type == FrameAck || f.Type == FrameError {
		c.mu.Lock()
		reply, ok := c.pending[f.ReqID]
		c.mu.Unlock()
		if ok {
			reply <- f
		}
		return
	}

	c.mu.Lock()
	endpoint := c.endpoint
	c.mu.Unlock()
	if endpoint == nil {
		c.log.Debug("Dropping push before subscription", "type", f.Type)
		return
	}
	endpoint.dispatch(f)
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				c.log.Warn("Failed to write frame", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
