// Package outbox is the write-ahead event log: the single choke point every
// state-changing operation passes through before it is considered done
// locally. An external drainer transmits events; nothing here ever deletes an
// unsynced one.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"tilledge/identity"
	"tilledge/store"

	"github.com/google/uuid"
)

// Event types produced across the system.
const (
	EventOrderCreated   = "order_created"
	EventOrderCompleted = "order_completed"
	EventInventory      = "inventory_event"
	EventSODOpened      = "sod_opened"
	EventEODClosed      = "eod_closed"
)

// Priorities: higher is more sync-urgent. A closed day's attestation outranks
// everything else on the wire.
const (
	PriorityDefault        = 5
	PriorityInventorySale  = 6
	PriorityOrderCreated   = 7
	PriorityOrderCompleted = 8
	PrioritySODOpened      = 8
	PriorityEODClosed      = 9
)

// FailedAttemptThreshold is where Stats starts counting a pending event as
// failed. Display policy only; the drainer never stops retrying.
const FailedAttemptThreshold = 3

// Queue is the outbox service.
type Queue struct {
	db    *store.DB
	ident *identity.Provider
}

// NewQueue creates an outbox queue.
func NewQueue(db *store.DB, ident *identity.Provider) *Queue {
	return &Queue{db: db, ident: ident}
}

// NewEvent marshals a payload and stamps device identity, returning an event
// row ready to persist. Services hand the result to a store write so the
// event commits in the same transaction as the domain rows it describes.
// The payload must be a self-contained, replayable description of the state
// change; it is marshaled as-is and never re-derived from local tables at
// sync time.
func (q *Queue) NewEvent(storeID, eventType string, payload interface{}, priority int) (*store.OutboxEvent, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &store.OutboxEvent{
		ID:        uuid.New().String(),
		DeviceID:  q.ident.DeviceID(),
		StoreID:   storeID,
		EventType: eventType,
		Payload:   data,
		Priority:  priority,
	}, nil
}

// AddEvent appends a domain event on its own and returns its ID.
func (q *Queue) AddEvent(storeID, eventType string, payload interface{}, priority int) (string, error) {
	e, err := q.NewEvent(storeID, eventType, payload, priority)
	if err != nil {
		return "", err
	}
	if err := q.db.InsertOutboxEvent(e); err != nil {
		return "", fmt.Errorf("insert outbox event: %w", err)
	}
	return e.ID, nil
}

func marshalPayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// PendingEvents returns unsynced events ordered by descending priority,
// insertion order breaking ties.
func (q *Queue) PendingEvents(limit int) ([]store.OutboxEvent, error) {
	return q.db.ListPendingOutbox(limit)
}

// PendingEventsByStore scopes pending events to one store.
func (q *Queue) PendingEventsByStore(storeID string, limit int) ([]store.OutboxEvent, error) {
	return q.db.ListPendingOutboxByStore(storeID, limit)
}

// MarkEventSynced flips an event to synced.
func (q *Queue) MarkEventSynced(eventID string) error {
	return q.db.MarkOutboxSynced(eventID)
}

// RecordSyncFailure notes a delivery failure without giving up on the event.
func (q *Queue) RecordSyncFailure(eventID string, syncErr error) error {
	msg := ""
	if syncErr != nil {
		msg = syncErr.Error()
	}
	return q.db.RecordOutboxFailure(eventID, msg)
}

// RetryFailedEvents resets the attempt counter on events at or past the
// failure threshold so the drainer picks them up afresh.
func (q *Queue) RetryFailedEvents(storeID string) (int64, error) {
	return q.db.ResetFailedOutbox(storeID, FailedAttemptThreshold)
}

// CleanupOldEvents garbage-collects synced events older than the retention
// window. Unsynced events are never touched.
func (q *Queue) CleanupOldEvents(daysToKeep int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep).Format("2006-01-02 15:04:05")
	return q.db.DeleteSyncedOutboxBefore(cutoff)
}

// Stats reports sync-health counts, optionally scoped to a store. For
// operator display, not control flow.
func (q *Queue) Stats(storeID string) (*store.OutboxStats, error) {
	return q.db.OutboxStatsFor(storeID, FailedAttemptThreshold)
}
