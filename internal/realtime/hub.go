// Package realtime fans property-room events out to websocket clients.
// With Redis configured every instance subscribes to the shared channel
// pattern, so a frame published on one instance reaches sockets on all of
// them; without it, delivery is local to the process.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// Frame is the envelope for everything on the socket.
type Frame struct {
	Event  string          `json:"event"`
	RoomID string          `json:"roomId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// JoinPolicy decides whether actor may join room. A nil policy admits everyone.
type JoinPolicy func(ctx context.Context, actor models.Actor, room string) error

type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*client]struct{}
	clients map[*client]struct{}

	rdb      *redis.Client
	policy   JoinPolicy
	upgrader websocket.Upgrader
}

// NewHub accepts a nil Redis client.
func NewHub(rdb *redis.Client, policy JoinPolicy) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*client]struct{}),
		clients: make(map[*client]struct{}),
		rdb:     rdb,
		policy:  policy,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is enforced by the CORS layer and the token check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ---------------------------------------------------------------------
// Fan-out
// ---------------------------------------------------------------------

// Publish sends {event, roomId, data} to every socket joined to room.
func (h *Hub) Publish(ctx context.Context, room, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Frame{Event: event, RoomID: room, Data: raw})
	if err != nil {
		return err
	}
	h.dispatch(ctx, room, payload)
	return nil
}

// dispatch goes through Redis when available; the subscriber loop delivers
// the frame back to local sockets too. A failed publish falls back to local
// delivery.
func (h *Hub) dispatch(ctx context.Context, room string, payload []byte) {
	if h.rdb != nil {
		err := h.rdb.Publish(ctx, constants.RealtimeChannelPrefix+room, payload).Err()
		if err == nil {
			return
		}
		utils.Logger.WithError(err).WithField("room", room).Warn("redis publish failed; delivering locally only")
	}
	h.broadcast(room, payload)
}

func (h *Hub) broadcast(room string, payload []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		utils.Logger.WithField("userID", c.actor.UserID).Warn("dropping slow websocket client")
		h.remove(c)
	}
}

// Run consumes the Redis pattern subscription until ctx is done. Without
// Redis it just waits. The subscription is re-established with backoff
// after errors.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()
		return
	}

	backoff := time.Second
	for ctx.Err() == nil {
		err := h.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}
		utils.Logger.WithError(err).Warnf("realtime subscriber stopped; resubscribing in %v", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (h *Hub) subscribe(ctx context.Context) error {
	pubsub := h.rdb.PSubscribe(ctx, constants.RealtimeChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	utils.Logger.Infof("realtime subscriber started (pattern: %s*)", constants.RealtimeChannelPrefix)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		room := strings.TrimPrefix(msg.Channel, constants.RealtimeChannelPrefix)
		h.broadcast(room, []byte(msg.Payload))
	}
}

// ---------------------------------------------------------------------
// Membership
// ---------------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) joined(c *client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// remove detaches c from every room and closes its send queue. It is safe
// to call more than once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
	c.closed = true
	close(c.send)
}

// RoomSize is the number of local sockets joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every local socket.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.remove(c)
	}
}

// ---------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------

// Serve upgrades the request and runs the connection until it closes.
// The caller has already authenticated actor.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		hub:   h,
		conn:  conn,
		actor: actor,
		send:  make(chan []byte, constants.WSSendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.register(c)

	go c.writePump()
	c.readPump(r.Context())
}

var errNotJoined = errors.New("join the room before sending to it")
