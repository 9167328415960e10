package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// client is one websocket. rooms and closed are guarded by hub.mu; only
// writePump writes to conn.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	actor  models.Actor
	send   chan []byte
	rooms  map[string]struct{}
	closed bool
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(constants.WSMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(constants.WSPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(constants.WSPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Logger.WithError(err).Debug("websocket closed unexpectedly")
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.replyError("malformed frame")
			continue
		}
		c.handle(ctx, f)
	}
}

func (c *client) handle(ctx context.Context, f Frame) {
	switch f.Event {
	case constants.EventJoinRoom:
		room := roomOf(f)
		if room == "" {
			c.replyError("roomId is required")
			return
		}
		if c.hub.policy != nil {
			if err := c.hub.policy(ctx, c.actor, room); err != nil {
				c.replyError("not allowed to join this room")
				return
			}
		}
		c.hub.join(c, room)

	case constants.EventLeaveRoom:
		if room := roomOf(f); room != "" {
			c.hub.leave(c, room)
		}

	case constants.EventSendMessage:
		room := roomOf(f)
		if room == "" {
			c.replyError("roomId is required")
			return
		}
		if !c.hub.joined(c, room) {
			c.replyError(errNotJoined.Error())
			return
		}
		payload, err := json.Marshal(Frame{Event: constants.EventNewMessage, RoomID: room, Data: f.Data})
		if err != nil {
			return
		}
		c.hub.dispatch(ctx, room, payload)

	default:
		c.replyError("unknown event")
	}
}

// roomOf reads the room from the envelope, then from data.roomId, then
// from data itself when it is a bare string.
func roomOf(f Frame) string {
	if room := strings.TrimSpace(f.RoomID); room != "" {
		return room
	}
	if len(f.Data) == 0 {
		return ""
	}
	var withRoom struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(f.Data, &withRoom); err == nil && withRoom.RoomID != "" {
		return strings.TrimSpace(withRoom.RoomID)
	}
	var bare string
	if err := json.Unmarshal(f.Data, &bare); err == nil {
		return strings.TrimSpace(bare)
	}
	return ""
}

func (c *client) replyError(msg string) {
	data, _ := json.Marshal(map[string]string{"message": msg})
	payload, _ := json.Marshal(Frame{Event: constants.EventError, Data: data})

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(constants.WSPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WSWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
