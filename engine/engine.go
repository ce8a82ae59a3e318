package engine

import (
	"time"

	"tilledge/busday"
	"tilledge/config"
	"tilledge/identity"
	"tilledge/ledger"
	"tilledge/outbox"
	"tilledge/pos"
	"tilledge/refdata"
	"tilledge/store"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...interface{})

// Engine centralizes the offline core and orchestrates its subsystems over a
// single store handle.
type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	logFn      LogFunc

	ident     *identity.Provider
	queue     *outbox.Queue
	cache     *refdata.Cache
	ledgerMgr *ledger.Ledger
	posMgr    *pos.Manager
	dayMgr    *busday.Manager

	Events   *EventBus
	stopChan chan struct{}
}

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Remote     refdata.Remote
	HostInfo   identity.HostInfo
	LogFunc    LogFunc
}

// New creates a new Engine. Call Start() to initialize and wire subsystems.
func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		logFn:      logFn,
		Events:     NewEventBus(),
		stopChan:   make(chan struct{}),
	}

	remote := c.Remote
	if remote == nil {
		remote = refdata.NewHTTPRemote(c.AppConfig.Remote.BaseURL, c.AppConfig.Remote.Timeout)
	}

	e.ident = identity.NewProvider(c.DB, c.HostInfo, c.AppConfig.DeviceName)
	e.queue = outbox.NewQueue(c.DB, e.ident)
	e.cache = refdata.NewCache(c.DB, remote, c.AppConfig.Cache.StaleAfter)
	e.ledgerMgr = ledger.NewLedger(c.DB, e.ident, e.queue, &ledgerEmitter{bus: e.Events})
	e.posMgr = pos.NewManager(c.DB, e.ident, e.queue, e.ledgerMgr, &posEmitter{bus: e.Events})
	e.dayMgr = busday.NewManager(c.DB, e.ident, e.queue, e.cache, e.ledgerMgr, &busdayEmitter{bus: e.Events})
	return e
}

// Start resolves the device identity and begins background maintenance.
func (e *Engine) Start() {
	deviceID := e.ident.DeviceID()
	if e.cfg.StoreID != "" {
		if err := e.ident.SetStoreID(e.cfg.StoreID); err != nil {
			e.logFn("engine: set store id: %v", err)
		}
	}
	go e.cleanupLoop()
	e.logFn("engine started: device=%s store=%s", deviceID, e.cfg.StoreID)
}

// Stop shuts down background maintenance.
func (e *Engine) Stop() {
	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}
	e.logFn("engine stopped")
}

// cleanupLoop garbage-collects synced outbox events on an interval.
func (e *Engine) cleanupLoop() {
	interval := e.cfg.Cache.CleanupInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			keep := e.cfg.Cache.OutboxKeepDays
			if keep <= 0 {
				keep = 30
			}
			n, err := e.queue.CleanupOldEvents(keep)
			if err != nil {
				e.logFn("engine: outbox cleanup: %v", err)
			} else if n > 0 {
				e.logFn("engine: outbox cleanup removed %d synced events", n)
			}
		}
	}
}

// AppConfig returns the application configuration.
func (e *Engine) AppConfig() *config.Config { return e.cfg }

// DB returns the underlying store.
func (e *Engine) DB() *store.DB { return e.db }

// Identity returns the device identity provider.
func (e *Engine) Identity() *identity.Provider { return e.ident }

// Outbox returns the outbox queue.
func (e *Engine) Outbox() *outbox.Queue { return e.queue }

// Cache returns the reference data cache.
func (e *Engine) Cache() *refdata.Cache { return e.cache }

// Ledger returns the inventory ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledgerMgr }

// POS returns the order service.
func (e *Engine) POS() *pos.Manager { return e.posMgr }

// BusinessDay returns the business day manager.
func (e *Engine) BusinessDay() *busday.Manager { return e.dayMgr }

// StoreID returns the store the device is assigned to, preferring the stored
// device config over the static config file.
func (e *Engine) StoreID() string {
	if id, err := e.ident.StoreID(); err == nil && id != "" {
		return id
	}
	return e.cfg.StoreID
}
