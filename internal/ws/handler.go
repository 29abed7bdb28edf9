package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/saturnino-fabrica-de-software/ponto/internal/verification"
)

// Sessions is what the socket handler needs from the session manager.
type Sessions interface {
	FramePusher
	Snapshot(id uuid.UUID) (verification.Snapshot, error)
}

type HandlerConfig struct {
	// FrameRate caps binary frames accepted per second on one socket.
	FrameRate float64
	Logger    *slog.Logger
}

// Handler streams a session's snapshots to the socket, starting with the
// current one, and feeds binary messages back as camera frames. The route
// must carry the session id as :id.
func Handler(hub *Hub, sessions Sessions, cfg HandlerConfig) fiber.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return websocket.New(func(c *websocket.Conn) {
		sessionID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			writeError(c, "invalid session id")
			_ = c.Close()
			return
		}

		client := &Client{
			hub:       hub,
			conn:      c,
			sessionID: sessionID,
			send:      make(chan []byte, 256),
			frames:    sessions,
			logger:    logger,
		}
		if cfg.FrameRate > 0 {
			client.limiter = rate.NewLimiter(rate.Limit(cfg.FrameRate), 1)
		}

		// Registered before the snapshot is read, so every later event
		// lands in client.send behind the initial one.
		if !hub.Register(client) {
			_ = c.Close()
			return
		}

		snap, err := sessions.Snapshot(sessionID)
		if err != nil {
			hub.Unregister(client)
			writeError(c, err.Error())
			_ = c.Close()
			return
		}

		initial, err := json.Marshal(Event{
			SessionID: sessionID,
			Type:      EventSnapshot,
			Data:      snap,
			Timestamp: time.Now(),
		})
		if err != nil {
			hub.Unregister(client)
			_ = c.Close()
			return
		}

		if snap.Closed {
			hub.Unregister(client)
			_ = c.WriteMessage(websocket.TextMessage, initial)
			_ = c.Close()
			return
		}

		if err := c.WriteMessage(websocket.TextMessage, initial); err != nil {
			hub.Unregister(client)
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func writeError(c *websocket.Conn, message string) {
	payload, err := json.Marshal(Event{
		Type:      EventError,
		Data:      fiber.Map{"message": message},
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	_ = c.WriteMessage(websocket.TextMessage, payload)
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
