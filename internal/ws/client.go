package ws

import (
	"log/slog"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxFrameBytes bounds a single binary frame sent by the kiosk.
const maxFrameBytes = 2 << 20

// FramePusher receives camera frames sent over the socket.
type FramePusher interface {
	PushFrame(id uuid.UUID, frame []byte) error
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID uuid.UUID
	send      chan []byte
	frames    FramePusher
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// ReadPump forwards binary messages as frames. Text messages are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.BinaryMessage || c.frames == nil {
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			continue
		}
		if err := c.frames.PushFrame(c.sessionID, message); err != nil {
			c.logger.Debug("frame rejected", "session_id", c.sessionID, "error", err)
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
