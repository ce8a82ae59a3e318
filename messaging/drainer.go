package messaging

import (
	"log"
	"sync"
	"time"

	"tilledge/config"
	"tilledge/identity"
	"tilledge/outbox"
	"tilledge/store"
)

// Publisher is the transport surface the drainer needs.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, payload []byte) error
}

// Drainer periodically transmits pending outbox events, highest priority
// first. It is the only component that mutates events after creation: synced
// flag on success, failure bookkeeping otherwise. Events are never dropped.
type Drainer struct {
	queue    *outbox.Queue
	ident    *identity.Provider
	client   Publisher
	cfg      *config.SyncConfig
	storeID  func() string
	notify   func(delivered, failed int)
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDrainer creates an outbox drainer. storeID is resolved per drain so a
// mid-shift store assignment takes effect without restart.
func NewDrainer(queue *outbox.Queue, ident *identity.Provider, client Publisher, cfg *config.SyncConfig, storeID func() string) *Drainer {
	return &Drainer{
		queue:    queue,
		ident:    ident,
		client:   client,
		cfg:      cfg,
		storeID:  storeID,
		stopChan: make(chan struct{}),
	}
}

// OnDrained registers a callback reporting each batch's outcome.
func (d *Drainer) OnDrained(fn func(delivered, failed int)) {
	d.notify = fn
}

// Start begins the drain loop.
func (d *Drainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the drain loop.
func (d *Drainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *Drainer) drainLoop() {
	defer d.wg.Done()

	interval := d.cfg.DrainInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Drain()
		}
	}
}

// Drain transmits one batch of pending events.
func (d *Drainer) Drain() {
	if !d.client.IsConnected() {
		return
	}

	batch := d.cfg.DrainBatchSize
	if batch <= 0 {
		batch = 50
	}

	var (
		events []store.OutboxEvent
		err    error
	)
	if sid := d.storeID(); sid != "" {
		events, err = d.queue.PendingEventsByStore(sid, batch)
	} else {
		events, err = d.queue.PendingEvents(batch)
	}
	if err != nil {
		log.Printf("drainer: list pending events: %v", err)
		return
	}

	delivered, failed := 0, 0
	for _, e := range events {
		data, err := NewSyncEnvelope(e).Encode()
		if err != nil {
			log.Printf("drainer: encode event %s: %v", e.ID, err)
			d.queue.RecordSyncFailure(e.ID, err)
			failed++
			continue
		}
		if err := d.client.Publish(d.cfg.EventsTopic, data); err != nil {
			log.Printf("drainer: publish event %s: %v", e.ID, err)
			d.queue.RecordSyncFailure(e.ID, err)
			failed++
			continue
		}
		if err := d.queue.MarkEventSynced(e.ID); err != nil {
			log.Printf("drainer: mark synced %s: %v", e.ID, err)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		if err := d.ident.UpdateLastOnlineAt(); err != nil {
			log.Printf("drainer: stamp last online: %v", err)
		}
	}
	if d.notify != nil && (delivered > 0 || failed > 0) {
		d.notify(delivered, failed)
	}
}
