package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSnapshot EventType = "session.snapshot"
	EventOutcome  EventType = "session.succeeded"
	EventClosed   EventType = "session.closed"
	EventError    EventType = "session.error"
)

type Event struct {
	SessionID uuid.UUID   `json:"session_id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
