// Package live pushes committed trip events to connected websocket clients so
// they can refresh seat counts without polling.
package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/rideshare-ledger/internal/auth"
	"github.com/pkordes/rideshare-ledger/internal/domain"
)

const (
	authWait     = 5 * time.Second
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 32
)

// TokenVerifier validates the token sent in the auth message.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// ClientMessage is what a client sends. Only "auth" is understood.
type ClientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServerMessage is what the hub sends: "info" and "error" carry Message,
// "trip_event" carries Event.
type ServerMessage struct {
	Type    string            `json:"type"`
	Message string            `json:"message,omitempty"`
	Event   *domain.TripEvent `json:"event,omitempty"`
}

var errAuthMessage = errors.New(`first message must be {"type":"auth","token":"Bearer <token>"}`)

type client struct {
	user uuid.UUID
	send chan domain.TripEvent
}

// Hub tracks authenticated connections and fans events out to them.
type Hub struct {
	verifier TokenVerifier
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub returns a Hub that authenticates connections with v. Browser
// upgrades must come from one of allowedOrigins; requests without an Origin
// header (non-browser clients) are accepted and rely on token auth alone.
func NewHub(v TokenVerifier, log *slog.Logger, allowedOrigins []string) *Hub {
	return &Hub{
		verifier: v,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		clients: make(map[*client]struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(a, origin)
		})
	}
}

// Broadcast queues ev for every connected client. It never blocks: a client
// whose buffer is full misses the event and is expected to re-read the trip.
// The signature matches events.HandlerFunc.
func (h *Hub) Broadcast(ctx context.Context, ev domain.TripEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- visibleTo(ev, c.user):
		default:
			h.log.WarnContext(ctx, "live client too slow, event dropped",
				"user_id", c.user.String(),
				"kind", string(ev.Kind),
			)
		}
	}
	return nil
}

// Clients returns the number of authenticated connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request, waits for an auth message and then streams
// events until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, err := h.authenticate(conn)
	if err != nil {
		_ = conn.WriteJSON(ServerMessage{Type: "error", Message: err.Error()})
		return
	}

	c := &client{user: id.UserID, send: make(chan domain.TripEvent, sendBuffer)}
	h.add(c)
	defer h.remove(c)

	if err := conn.WriteJSON(ServerMessage{Type: "info", Message: "authenticated"}); err != nil {
		return
	}
	h.log.Info("live client connected", "user_id", c.user.String())

	go h.writeLoop(conn, c)
	h.readLoop(conn)
	h.log.Info("live client disconnected", "user_id", c.user.String())
}

func (h *Hub) authenticate(conn *websocket.Conn) (auth.Identity, error) {
	_ = conn.SetReadDeadline(time.Now().Add(authWait))
	var msg ClientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return auth.Identity{}, errAuthMessage
	}
	if msg.Type != "auth" {
		return auth.Identity{}, errAuthMessage
	}
	return h.verifier.Verify(msg.Token)
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Hub) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the connection's only writer once authentication is done.
func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ServerMessage{Type: "trip_event", Event: &ev}); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// remove unregisters c and closes its queue, which ends its writeLoop.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// visibleTo hides the passenger of a booking from everyone except that
// passenger and the trip's driver.
func visibleTo(ev domain.TripEvent, user uuid.UUID) domain.TripEvent {
	if ev.PassengerID != nil && *ev.PassengerID != user && ev.DriverID != user {
		ev.PassengerID = nil
	}
	return ev
}
