package messaging

import (
	"encoding/json"
	"time"

	"tilledge/store"
)

// Message types carried on the sync topic.
const (
	TypeEvent     = "event"
	TypeHeartbeat = "heartbeat"
)

// SyncEnvelope wraps one outbox event for transmission. It is self-contained:
// the server replays it from the embedded IDs and payload alone, never from
// local tables that may have been cleared by the time sync runs.
type SyncEnvelope struct {
	Type      string          `json:"type"`
	EventID   string          `json:"event_id"`
	DeviceID  string          `json:"device_id"`
	StoreID   string          `json:"store_id"`
	EventType string          `json:"event_type"`
	Priority  int             `json:"priority"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
	SentAt    string          `json:"sent_at"`
}

// NewSyncEnvelope builds the wire form of an outbox event.
func NewSyncEnvelope(e store.OutboxEvent) SyncEnvelope {
	return SyncEnvelope{
		Type:      TypeEvent,
		EventID:   e.ID,
		DeviceID:  e.DeviceID,
		StoreID:   e.StoreID,
		EventType: e.EventType,
		Priority:  e.Priority,
		Payload:   json.RawMessage(e.Payload),
		CreatedAt: e.CreatedAt,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// Encode serializes the envelope for the wire.
func (env SyncEnvelope) Encode() ([]byte, error) {
	return json.Marshal(env)
}

// Heartbeat is the periodic device-liveness message.
type Heartbeat struct {
	Type          string `json:"type"`
	DeviceID      string `json:"device_id"`
	StoreID       string `json:"store_id"`
	DeviceName    string `json:"device_name"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	PendingEvents int    `json:"pending_events"`
	Timestamp     string `json:"timestamp"`
}
