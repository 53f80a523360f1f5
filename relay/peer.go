package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"session-lab/domain"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxFrameSize = 1 << 20

	sendBuffer = 256
)

// peer is one WebSocket connection on the relay side.
type peer struct {
	log       *slog.Logger
	conn      *websocket.Conn
	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	identity domain.Identity
}

func newPeer(log *slog.Logger, conn *websocket.Conn) *peer {
	return &peer{
		log:  log,
		conn: conn,
		send: make(chan Frame, sendBuffer),
		done: make(chan struct{}),
	}
}

func (p *peer) Identity() domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

func (p *peer) setIdentity(id domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = id
}

// push queues f without blocking the caller. A peer too slow to drain its
// buffer is disconnected.
func (p *peer) push(f Frame) {
	select {
	case <-p.done:
	case p.send <- f:
	default:
		p.log.Warn("Peer send buffer full, dropping connection", "identity", p.Identity().String())
		p.close()
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// readPump decodes frames and hands them to handle until the socket fails.
func (p *peer) readPump(handle func(*peer, Frame)) {
	defer p.close()

	p.conn.SetReadLimit(maxFrameSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				p.log.Warn("WebSocket read error", "identity", p.Identity().String(), "error", err)
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			p.log.Warn("Failed to decode frame", "error", err)
			continue
		}
		handle(p, f)
	}
}

// writePump serialises queued frames and keeps the connection alive.
func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
	}()

	for {
		select {
		case <-p.done:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case f := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(f); err != nil {
				p.log.Warn("Failed to write frame", "identity", p.Identity().String(), "error", err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
