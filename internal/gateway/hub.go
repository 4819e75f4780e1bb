// Package gateway owns session-room membership: websocket subscribers
// joined to the pub/sub transport.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parleyapp/parley/internal/metrics"
	"github.com/parleyapp/parley/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers authenticate with a bearer token, not a cookie, so
	// cross-origin upgrades carry no ambient credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub maps room keys to their currently connected subscribers and fans
// published payloads out to them. When a redis transport is configured the
// hub also mirrors each active room's redis channel, so publishes from any
// relay node reach local subscribers.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*client]bool
	subs   map[string]context.CancelFunc // active redis subscriptions per room
	redis  *store.RedisStore             // nil when running without redis
	logger zerolog.Logger
}

// NewHub creates a hub. redis may be nil for single-node deployments;
// the hub then doubles as the relay's publisher.
func NewHub(redis *store.RedisStore, logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*client]bool),
		subs:   make(map[string]context.CancelFunc),
		redis:  redis,
		logger: logger,
	}
}

// Publish delivers a payload to every local subscriber of the room.
// Slow subscribers are dropped rather than blocking the broadcast.
func (h *Hub) Publish(ctx context.Context, room string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			close(c.send)
			delete(h.rooms[room], c)
		}
	}
	return nil
}

// ServeWS upgrades the request and joins the connection to the session's
// room until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}

	room := store.RoomKey(sessionID)
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.join(room, c)
	metrics.WSConnections.Inc()

	h.logger.Info().Str("session_id", sessionID).Msg("subscriber joined")

	go h.writePump(c)
	h.readPump(c) // blocks until the client goes away

	h.leave(room, c)
	metrics.WSConnections.Dec()
	h.logger.Info().Str("session_id", sessionID).Msg("subscriber left")
}

func (h *Hub) join(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]bool)
		if h.redis != nil {
			ctx, cancel := context.WithCancel(context.Background())
			h.subs[room] = cancel
			go h.mirror(ctx, room)
		}
	}
	h.rooms[room][c] = true
}

func (h *Hub) leave(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		if members[c] {
			delete(members, c)
			close(c.send)
		}
		if len(members) == 0 {
			delete(h.rooms, room)
			if cancel, ok := h.subs[room]; ok {
				cancel()
				delete(h.subs, room)
			}
		}
	}
	c.conn.Close()
}

// mirror forwards payloads published on the room's redis channel to local
// subscribers. Runs while the room has members.
func (h *Hub) mirror(ctx context.Context, room string) {
	pubsub := h.redis.Subscribe(ctx, room)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = h.Publish(ctx, room, []byte(msg.Payload))
		}
	}
}

// readPump drains the connection. Subscribers send messages over the REST
// endpoint, not the socket, so inbound frames are discarded; the pump
// exists to notice disconnects and answer pings.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
