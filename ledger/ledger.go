// Package ledger records stock-affecting events as an append-only log and
// derives current quantities by folding events over the day's snapshot. There
// is deliberately no read-modify-write on a mutable counter: the event log is
// the only durable truth and the current level is always a derived view.
package ledger

import (
	"fmt"

	"tilledge/identity"
	"tilledge/outbox"
	"tilledge/store"

	"github.com/google/uuid"
)

// EventEmitter is the interface the ledger uses to emit engine events.
type EventEmitter interface {
	EmitInventoryRecorded(eventID, stockID, eventType string, quantityChange float64)
}

// Ledger is the offline inventory ledger service.
type Ledger struct {
	db      *store.DB
	ident   *identity.Provider
	queue   *outbox.Queue
	emitter EventEmitter
}

// InventoryLevel is the derived current-quantity view for one stock item.
type InventoryLevel struct {
	InventoryStockID string  `json:"inventory_stock_id"`
	Name             string  `json:"name"`
	Unit             string  `json:"unit"`
	StartingQuantity float64 `json:"starting_quantity"`
	DeductedToday    float64 `json:"deducted_today"`
	AdjustedToday    float64 `json:"adjusted_today"`
	CurrentQuantity  float64 `json:"current_quantity"`
}

// NewLedger creates an inventory ledger.
func NewLedger(db *store.DB, ident *identity.Provider, queue *outbox.Queue, emitter EventEmitter) *Ledger {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Ledger{db: db, ident: ident, queue: queue, emitter: emitter}
}

type noopEmitter struct{}

func (noopEmitter) EmitInventoryRecorded(string, string, string, float64) {}

// RecordSaleDeduction records the stock movement for a sold product. A product
// with a recipe deducts every ingredient; a product with a direct inventory
// mapping deducts once, scaled by its selling quantity; a product with neither
// records nothing (non-trackable line items such as service fees).
// Returns the number of ledger events written.
func (l *Ledger) RecordSaleDeduction(storeID, productID string, quantity float64, orderID, userID string) (int, error) {
	recipe, err := l.db.GetRecipeForProduct(storeID, productID)
	if err != nil {
		return 0, fmt.Errorf("resolve recipe: %w", err)
	}
	if recipe != nil {
		recorded := 0
		for _, ing := range recipe.Items {
			change := -(ing.QuantityRequired * quantity)
			if err := l.record(storeID, ing.IngredientStockID, store.InventoryEventSale, change, &orderID, nil, userID, outbox.PriorityInventorySale); err != nil {
				return recorded, err
			}
			recorded++
		}
		return recorded, nil
	}

	product, err := l.db.GetProduct(storeID, productID)
	if err != nil {
		return 0, fmt.Errorf("resolve product: %w", err)
	}
	if product.InventoryStockID == "" {
		// Non-trackable item: no stock movement.
		return 0, nil
	}
	selling := product.SellingQuantity
	if selling == 0 {
		selling = 1
	}
	change := -(selling * quantity)
	if err := l.record(storeID, product.InventoryStockID, store.InventoryEventSale, change, &orderID, nil, userID, outbox.PriorityInventorySale); err != nil {
		return 0, err
	}
	return 1, nil
}

// RecordManualAdjustment records a signed manual stock correction.
func (l *Ledger) RecordManualAdjustment(storeID, stockID string, quantityChange float64, reason, userID string) error {
	return l.record(storeID, stockID, store.InventoryEventAdjustment, quantityChange, nil, &reason, userID, outbox.PriorityDefault)
}

// RecordWaste records spoilage or breakage as a negative movement.
func (l *Ledger) RecordWaste(storeID, stockID string, quantity float64, reason, userID string) error {
	if quantity < 0 {
		quantity = -quantity
	}
	return l.record(storeID, stockID, store.InventoryEventWaste, -quantity, nil, &reason, userID, outbox.PriorityDefault)
}

// record is the single primitive all entry points funnel into: the ledger
// event and its outbox twin commit in one transaction. A movement the sync
// engine can never see is worse than no movement at all, so a failed outbox
// write fails the whole operation.
func (l *Ledger) record(storeID, stockID, eventType string, quantityChange float64, orderID, reason *string, userID string, priority int) error {
	evt := &store.OfflineInventoryEvent{
		ID:               uuid.New().String(),
		DeviceID:         l.ident.DeviceID(),
		StoreID:          storeID,
		InventoryStockID: stockID,
		EventType:        eventType,
		QuantityChange:   quantityChange,
		OrderID:          orderID,
		Reason:           reason,
		RecordedBy:       userID,
		DayDate:          store.Today(),
	}
	ob, err := l.queue.NewEvent(storeID, outbox.EventInventory, evt, priority)
	if err != nil {
		return fmt.Errorf("build outbox event: %w", err)
	}
	if err := l.db.InsertInventoryEvent(evt, ob); err != nil {
		return fmt.Errorf("insert inventory event: %w", err)
	}
	l.emitter.EmitInventoryRecorded(evt.ID, stockID, eventType, quantityChange)
	return nil
}

// CurrentInventoryLevels folds today's events for this device over the cached
// starting snapshot: current = starting - deducted + adjusted. Recomputed on
// every call, never persisted.
func (l *Ledger) CurrentInventoryLevels(storeID string) ([]InventoryLevel, error) {
	snapshot, err := l.db.ListInventoryStock(storeID)
	if err != nil {
		return nil, fmt.Errorf("list stock snapshot: %w", err)
	}
	events, err := l.db.ListInventoryEventsForDay(l.ident.DeviceID(), store.Today())
	if err != nil {
		return nil, fmt.Errorf("list inventory events: %w", err)
	}

	deducted := make(map[string]float64)
	adjusted := make(map[string]float64)
	for _, e := range events {
		if e.StoreID != storeID {
			continue
		}
		switch e.EventType {
		case store.InventoryEventSale:
			deducted[e.InventoryStockID] += -e.QuantityChange
		case store.InventoryEventAdjustment, store.InventoryEventWaste, store.InventoryEventRestock:
			adjusted[e.InventoryStockID] += e.QuantityChange
		}
	}

	levels := make([]InventoryLevel, 0, len(snapshot))
	for _, s := range snapshot {
		lvl := InventoryLevel{
			InventoryStockID: s.ID,
			Name:             s.Name,
			Unit:             s.Unit,
			StartingQuantity: s.StartingQuantity,
			DeductedToday:    deducted[s.ID],
			AdjustedToday:    adjusted[s.ID],
		}
		lvl.CurrentQuantity = lvl.StartingQuantity - lvl.DeductedToday + lvl.AdjustedToday
		levels = append(levels, lvl)
	}
	return levels, nil
}
