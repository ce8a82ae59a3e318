package engine

import "time"

// EventType identifies the kind of event emitted by the Engine.
type EventType int

const (
	// Order events
	EventOrderCreated EventType = iota + 1
	EventOrderCompleted

	// Inventory events
	EventInventoryRecorded

	// Business day events
	EventDayOpened
	EventDayClosed

	// Sync events
	EventSyncDrained
	EventSyncOnline
	EventSyncOffline
)

// Event is the envelope emitted by the Engine's EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// OrderCreatedEvent is emitted when a new offline order is written.
type OrderCreatedEvent struct {
	OrderID string
	Total   float64
}

// OrderCompletedEvent is emitted when an order transitions to completed.
type OrderCompletedEvent struct {
	OrderID       string
	Total         float64
	PaymentMethod string
}

// InventoryRecordedEvent is emitted for every ledger entry.
type InventoryRecordedEvent struct {
	EventID          string
	InventoryStockID string
	EventType        string
	QuantityChange   float64
}

// DayOpenedEvent is emitted at start of day.
type DayOpenedEvent struct {
	BusinessDayID string
	DayDate       string
}

// DayClosedEvent is emitted at end of day.
type DayClosedEvent struct {
	BusinessDayID string
	PendingSync   bool
}

// SyncDrainedEvent is emitted after the drainer delivers a batch.
type SyncDrainedEvent struct {
	Delivered int
	Failed    int
}
