package messaging

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"tilledge/identity"
	"tilledge/outbox"
)

// Heartbeater publishes a periodic device-liveness message and stamps
// last_online_at on success.
type Heartbeater struct {
	client     Publisher
	ident      *identity.Provider
	queue      *outbox.Queue
	deviceName string
	topic      string
	interval   time.Duration
	startTime  time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHeartbeater creates a heartbeater for this device.
func NewHeartbeater(client Publisher, ident *identity.Provider, queue *outbox.Queue, deviceName, topic string, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Heartbeater{
		client:     client,
		ident:      ident,
		queue:      queue,
		deviceName: deviceName,
		topic:      topic,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start sends an initial heartbeat and begins the loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.send()
	go h.loop()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.send()
		}
	}
}

func (h *Heartbeater) send() {
	if !h.client.IsConnected() {
		return
	}
	storeID, _ := h.ident.StoreID()
	pending := 0
	if stats, err := h.queue.Stats(storeID); err == nil {
		pending = stats.Pending
	}
	hb := Heartbeat{
		Type:          TypeHeartbeat,
		DeviceID:      h.ident.DeviceID(),
		StoreID:       storeID,
		DeviceName:    h.deviceName,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PendingEvents: pending,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(hb)
	if err != nil {
		log.Printf("heartbeater: marshal: %v", err)
		return
	}
	if err := h.client.Publish(h.topic, data); err != nil {
		log.Printf("heartbeater: publish: %v", err)
		return
	}
	if err := h.ident.UpdateLastOnlineAt(); err != nil {
		log.Printf("heartbeater: stamp last online: %v", err)
	}
}
