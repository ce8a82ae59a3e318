package messaging

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"tilledge/config"
	"tilledge/identity"
	"tilledge/outbox"
	"tilledge/store"
)

type fakePublisher struct {
	connected bool
	failWith  error
	published [][]byte
	topics    []string
}

func (f *fakePublisher) IsConnected() bool { return f.connected }

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, payload)
	return nil
}

func testDrainer(t *testing.T, pub Publisher) (*Drainer, *outbox.Queue, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ident := identity.NewProvider(db, identity.NativeHost{MachineIDPath: filepath.Join(t.TempDir(), "missing")}, "test-register")
	queue := outbox.NewQueue(db, ident)
	cfg := &config.SyncConfig{EventsTopic: "tilledge/events", DrainBatchSize: 10}
	d := NewDrainer(queue, ident, pub, cfg, func() string { return "s1" })
	return d, queue, db
}

func TestDrainDeliversAndMarksSynced(t *testing.T) {
	pub := &fakePublisher{connected: true}
	d, queue, db := testDrainer(t, pub)

	id1, _ := queue.AddEvent("s1", outbox.EventOrderCreated, map[string]string{"order_id": "ord-1"}, outbox.PriorityOrderCreated)
	id2, _ := queue.AddEvent("s1", outbox.EventEODClosed, nil, outbox.PriorityEODClosed)

	var gotDelivered, gotFailed int
	d.OnDrained(func(delivered, failed int) { gotDelivered, gotFailed = delivered, failed })
	d.Drain()

	if gotDelivered != 2 || gotFailed != 0 {
		t.Errorf("notify = %d/%d, want 2/0", gotDelivered, gotFailed)
	}
	if len(pub.published) != 2 {
		t.Fatalf("published = %d, want 2", len(pub.published))
	}

	// Highest priority first: eod_closed (9) before order_created (7)
	var first SyncEnvelope
	if err := json.Unmarshal(pub.published[0], &first); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if first.EventID != id2 {
		t.Errorf("first published = %s, want eod_closed %s", first.EventID, id2)
	}
	if first.Type != TypeEvent || first.DeviceID == "" || first.SentAt == "" {
		t.Errorf("envelope incomplete: %+v", first)
	}

	for _, id := range []string{id1, id2} {
		evt, _ := db.GetOutboxEvent(id)
		if !evt.Synced {
			t.Errorf("event %s not marked synced", id)
		}
	}

	// Delivery stamps device liveness
	dc, _ := db.GetDeviceConfig()
	if dc == nil || dc.LastOnlineAt == nil {
		t.Error("LastOnlineAt should be stamped after delivery")
	}
}

func TestDrainSkipsWhenDisconnected(t *testing.T) {
	pub := &fakePublisher{connected: false}
	d, queue, db := testDrainer(t, pub)

	id, _ := queue.AddEvent("s1", outbox.EventOrderCreated, nil, outbox.PriorityOrderCreated)
	d.Drain()

	if len(pub.published) != 0 {
		t.Errorf("published while disconnected: %d", len(pub.published))
	}
	evt, _ := db.GetOutboxEvent(id)
	if evt.Synced || evt.SyncAttempts != 0 {
		t.Errorf("offline drain must not touch events: %+v", evt)
	}
}

func TestDrainFailureKeepsEventAndRecordsAttempt(t *testing.T) {
	pub := &fakePublisher{connected: true, failWith: errors.New("broker unavailable")}
	d, queue, db := testDrainer(t, pub)

	id, _ := queue.AddEvent("s1", outbox.EventOrderCreated, nil, outbox.PriorityOrderCreated)

	var gotFailed int
	d.OnDrained(func(_, failed int) { gotFailed = failed })
	d.Drain()

	if gotFailed != 1 {
		t.Errorf("failed = %d, want 1", gotFailed)
	}
	evt, _ := db.GetOutboxEvent(id)
	if evt.Synced {
		t.Error("failed event must not be marked synced")
	}
	if evt.SyncAttempts != 1 {
		t.Errorf("SyncAttempts = %d, want 1", evt.SyncAttempts)
	}
	if evt.SyncError == nil || *evt.SyncError != "broker unavailable" {
		t.Errorf("SyncError = %v", evt.SyncError)
	}

	// The event is still pending for the next drain
	pending, _ := queue.PendingEventsByStore("s1", 10)
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestDrainScopesToAssignedStore(t *testing.T) {
	pub := &fakePublisher{connected: true}
	d, queue, db := testDrainer(t, pub)

	mine, _ := queue.AddEvent("s1", outbox.EventOrderCreated, nil, outbox.PriorityOrderCreated)
	other, _ := queue.AddEvent("s2", outbox.EventOrderCreated, nil, outbox.PriorityOrderCreated)

	d.Drain()

	if len(pub.published) != 1 {
		t.Fatalf("published = %d, want only this store's event", len(pub.published))
	}
	if evt, _ := db.GetOutboxEvent(mine); !evt.Synced {
		t.Error("own store's event should be synced")
	}
	if evt, _ := db.GetOutboxEvent(other); evt.Synced {
		t.Error("other store's event must stay pending")
	}
}

func TestDrainRespectsBatchSize(t *testing.T) {
	pub := &fakePublisher{connected: true}
	d, queue, _ := testDrainer(t, pub)
	d.cfg.DrainBatchSize = 2

	for i := 0; i < 5; i++ {
		queue.AddEvent("s1", outbox.EventOrderCreated, nil, outbox.PriorityDefault)
	}
	d.Drain()
	if len(pub.published) != 2 {
		t.Errorf("published = %d, want batch of 2", len(pub.published))
	}

	d.Drain()
	d.Drain()
	if len(pub.published) != 5 {
		t.Errorf("published total = %d, want 5 after successive drains", len(pub.published))
	}
}
