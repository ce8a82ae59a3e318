// Package busday orchestrates the start-of-day / end-of-day lifecycle per
// device per calendar date: cache warm and snapshot capture at open,
// reconciliation and close-out at close.
package busday

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"tilledge/identity"
	"tilledge/ledger"
	"tilledge/outbox"
	"tilledge/refdata"
	"tilledge/store"

	"github.com/google/uuid"
)

// EventEmitter is the interface the busday package uses to emit events.
type EventEmitter interface {
	EmitDayOpened(businessDayID, dayDate string)
	EmitDayClosed(businessDayID string, pendingSync bool)
}

type noopEmitter struct{}

func (noopEmitter) EmitDayOpened(string, string) {}
func (noopEmitter) EmitDayClosed(string, bool)   {}

// Manager is the business day manager.
type Manager struct {
	db      *store.DB
	ident   *identity.Provider
	queue   *outbox.Queue
	cache   *refdata.Cache
	ledger  *ledger.Ledger
	emitter EventEmitter
}

// NewManager creates a business day manager.
func NewManager(db *store.DB, ident *identity.Provider, queue *outbox.Queue, cache *refdata.Cache, lgr *ledger.Ledger, emitter EventEmitter) *Manager {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Manager{db: db, ident: ident, queue: queue, cache: cache, ledger: lgr, emitter: emitter}
}

// SnapshotItem is one entry of the start-of-day inventory snapshot.
type SnapshotItem struct {
	InventoryStockID string  `json:"inventory_stock_id"`
	StartingQuantity float64 `json:"starting_quantity"`
}

// StartOfDayOpts carries optional shift bookkeeping for the day open.
type StartOfDayOpts struct {
	ShiftID      *string
	StartingCash *float64
}

// StartOfDayResult reports the opened (or already-open) business day.
type StartOfDayResult struct {
	BusinessDayID string              `json:"business_day_id"`
	DayDate       string              `json:"day_date"`
	AlreadyOpen   bool                `json:"already_open"`
	CacheWarmed   bool                `json:"cache_warmed"`
	Warm          *refdata.WarmResult `json:"warm,omitempty"`
}

// InventoryLine is one row of the end-of-day per-item reconciliation table.
type InventoryLine struct {
	InventoryStockID string  `json:"inventory_stock_id"`
	Name             string  `json:"name"`
	Starting         float64 `json:"starting"`
	Ending           float64 `json:"ending"`
	Sold             float64 `json:"sold"`
	Adjusted         float64 `json:"adjusted"`
}

// Summary is the end-of-day close-out: the device's attestation of its entire
// day's activity.
type Summary struct {
	BusinessDayID string          `json:"business_day_id"`
	StoreID       string          `json:"store_id"`
	DeviceID      string          `json:"device_id"`
	DayDate       string          `json:"day_date"`
	TotalOrders   int             `json:"total_orders"`
	TotalSales    float64         `json:"total_sales"`
	TotalDiscount float64         `json:"total_discount"`
	TotalTax      float64         `json:"total_tax"`
	Inventory     []InventoryLine `json:"inventory"`
	PendingSync   bool            `json:"pending_sync"`
	PendingEvents int             `json:"pending_events"`
}

type sodPayload struct {
	BusinessDayID string         `json:"business_day_id"`
	StoreID       string         `json:"store_id"`
	DeviceID      string         `json:"device_id"`
	DayDate       string         `json:"day_date"`
	ShiftID       *string        `json:"shift_id,omitempty"`
	StartingCash  *float64       `json:"starting_cash,omitempty"`
	Snapshot      []SnapshotItem `json:"inventory_snapshot"`
}

// StartOfDay opens the business day for this store/device/date. Idempotent: an
// existing day for today is returned as-is, without re-warming the cache or
// re-capturing the snapshot — re-running SOD must never silently reset the
// day's fold base.
//
// A failed cache warm degrades rather than blocks: the day still opens against
// whatever cache exists and the result carries CacheWarmed=false.
func (m *Manager) StartOfDay(ctx context.Context, storeID string, opts StartOfDayOpts) (*StartOfDayResult, error) {
	deviceID := m.ident.DeviceID()
	today := store.Today()

	existing, err := m.db.GetBusinessDay(storeID, deviceID, today)
	if err != nil {
		return nil, fmt.Errorf("lookup business day: %w", err)
	}
	if existing != nil {
		return &StartOfDayResult{BusinessDayID: existing.ID, DayDate: today, AlreadyOpen: true, CacheWarmed: false}, nil
	}

	warm, warmErr := m.cache.StartOfDay(ctx, storeID)
	if warmErr != nil {
		log.Printf("busday: cache warm failed, opening day against existing cache: %v", warmErr)
	}

	stock, err := m.db.ListInventoryStock(storeID)
	if err != nil {
		return nil, fmt.Errorf("capture snapshot: %w", err)
	}
	snapshot := make([]SnapshotItem, 0, len(stock))
	for _, s := range stock {
		snapshot = append(snapshot, SnapshotItem{InventoryStockID: s.ID, StartingQuantity: s.StartingQuantity})
	}
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	day := &store.BusinessDay{
		ID:                uuid.New().String(),
		StoreID:           storeID,
		DeviceID:          deviceID,
		DayDate:           today,
		ShiftID:           opts.ShiftID,
		StartingCash:      opts.StartingCash,
		InventorySnapshot: string(snapJSON),
	}
	// The sod_opened event is the audit record proving what baseline the day
	// started from, independent of the mutable cache tables. It commits in
	// the same transaction as the day row; neither exists without the other.
	payload := sodPayload{
		BusinessDayID: day.ID,
		StoreID:       storeID,
		DeviceID:      deviceID,
		DayDate:       today,
		ShiftID:       opts.ShiftID,
		StartingCash:  opts.StartingCash,
		Snapshot:      snapshot,
	}
	ob, err := m.queue.NewEvent(storeID, outbox.EventSODOpened, payload, outbox.PrioritySODOpened)
	if err != nil {
		return nil, fmt.Errorf("build sod_opened event: %w", err)
	}
	if err := m.db.InsertBusinessDay(day, ob); err != nil {
		return nil, fmt.Errorf("insert business day: %w", err)
	}

	m.emitter.EmitDayOpened(day.ID, today)
	return &StartOfDayResult{
		BusinessDayID: day.ID,
		DayDate:       today,
		CacheWarmed:   warmErr == nil,
		Warm:          warm,
	}, nil
}

// EndOfDay closes today's business day: computes the summary, stamps totals
// and closed_at, flags pending sync, and enqueues the eod_closed attestation
// at the highest priority in the system. Idempotent: an already-closed day
// returns its stored summary without recomputing.
func (m *Manager) EndOfDay(storeID string) (*Summary, error) {
	deviceID := m.ident.DeviceID()
	today := store.Today()

	day, err := m.db.GetBusinessDay(storeID, deviceID, today)
	if err != nil {
		return nil, fmt.Errorf("lookup business day: %w", err)
	}
	if day == nil {
		return nil, fmt.Errorf("no business day open for %s", today)
	}
	if day.ClosedAt != nil {
		var stored Summary
		if day.Summary != nil {
			if err := json.Unmarshal([]byte(*day.Summary), &stored); err == nil {
				return &stored, nil
			}
		}
		return nil, fmt.Errorf("business day %s already closed", day.ID)
	}

	summary, err := m.BusinessDaySummary(storeID, day)
	if err != nil {
		return nil, err
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	// The close and its eod_closed attestation commit together.
	ob, err := m.queue.NewEvent(storeID, outbox.EventEODClosed, summary, outbox.PriorityEODClosed)
	if err != nil {
		return nil, fmt.Errorf("build eod_closed event: %w", err)
	}
	if err := m.db.CloseBusinessDay(day.ID, summary.TotalOrders, summary.TotalSales, summary.PendingSync, string(summaryJSON), ob); err != nil {
		return nil, fmt.Errorf("close business day: %w", err)
	}

	m.emitter.EmitDayClosed(day.ID, summary.PendingSync)
	return summary, nil
}

// BusinessDaySummary computes the close-out figures for an open day: order
// totals, the per-item inventory fold against the snapshot, and whether
// unsynced outbox events remain for the store.
func (m *Manager) BusinessDaySummary(storeID string, day *store.BusinessDay) (*Summary, error) {
	totals, err := m.db.SalesTotalsForDay(day.DeviceID, day.DayDate)
	if err != nil {
		return nil, fmt.Errorf("sales totals: %w", err)
	}

	levels, err := m.ledger.CurrentInventoryLevels(storeID)
	if err != nil {
		return nil, fmt.Errorf("inventory fold: %w", err)
	}
	lines := make([]InventoryLine, 0, len(levels))
	for _, lvl := range levels {
		lines = append(lines, InventoryLine{
			InventoryStockID: lvl.InventoryStockID,
			Name:             lvl.Name,
			Starting:         lvl.StartingQuantity,
			Ending:           lvl.CurrentQuantity,
			Sold:             lvl.DeductedToday,
			Adjusted:         lvl.AdjustedToday,
		})
	}

	pendingCount, err := m.db.CountPendingOutboxByStore(storeID)
	if err != nil {
		return nil, fmt.Errorf("count pending events: %w", err)
	}

	return &Summary{
		BusinessDayID: day.ID,
		StoreID:       storeID,
		DeviceID:      day.DeviceID,
		DayDate:       day.DayDate,
		TotalOrders:   totals.OrderCount,
		TotalSales:    totals.Net,
		TotalDiscount: totals.Discount,
		TotalTax:      totals.Tax,
		Inventory:     lines,
		PendingSync:   pendingCount > 0,
		PendingEvents: pendingCount,
	}, nil
}

// CurrentBusinessDay returns today's business day row, or nil if none exists.
func (m *Manager) CurrentBusinessDay(storeID string) (*store.BusinessDay, error) {
	return m.db.GetBusinessDay(storeID, m.ident.DeviceID(), store.Today())
}

// IsBusinessDayOpen reports whether today's day exists and is not yet closed.
func (m *Manager) IsBusinessDayOpen(storeID string) (bool, error) {
	day, err := m.CurrentBusinessDay(storeID)
	if err != nil {
		return false, err
	}
	return day != nil && day.ClosedAt == nil, nil
}

// DaysWithPendingSync returns closed days that still had unsynced events at
// close. Audit/ops view.
func (m *Manager) DaysWithPendingSync(storeID string) ([]store.BusinessDay, error) {
	return m.db.ListBusinessDaysPendingSync(storeID)
}
