package store

import "database/sql"

// Inventory event types
const (
	InventoryEventSale       = "sale"
	InventoryEventAdjustment = "adjustment"
	InventoryEventWaste      = "waste"
	InventoryEventRestock    = "restock"
)

// OfflineInventoryEvent is an append-only ledger entry. It is the
// authoritative local record of what happened to stock.
type OfflineInventoryEvent struct {
	ID               string  `json:"id"`
	DeviceID         string  `json:"device_id"`
	StoreID          string  `json:"store_id"`
	InventoryStockID string  `json:"inventory_stock_id"`
	EventType        string  `json:"event_type"`
	QuantityChange   float64 `json:"quantity_change"`
	OrderID          *string `json:"order_id"`
	Reason           *string `json:"reason"`
	RecordedBy       string  `json:"recorded_by"`
	DayDate          string  `json:"day_date"`
	CreatedAt        string  `json:"created_at"`
	Synced           bool    `json:"synced"`
	SyncAttempts     int     `json:"sync_attempts"`
}

const invEventCols = `id, device_id, store_id, inventory_stock_id, event_type, quantity_change,
	order_id, reason, recorded_by, day_date, created_at, synced, sync_attempts`

// InsertInventoryEvent appends a ledger entry. When ob is non-nil the outbox
// event commits in the same transaction; a ledger entry must never exist
// without its outbox twin.
func (db *DB) InsertInventoryEvent(e *OfflineInventoryEvent, ob *OutboxEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT INTO offline_inventory_events
		(id, device_id, store_id, inventory_stock_id, event_type, quantity_change,
		 order_id, reason, recorded_by, day_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeviceID, e.StoreID, e.InventoryStockID, e.EventType, e.QuantityChange,
		e.OrderID, e.Reason, e.RecordedBy, e.DayDate); err != nil {
		return err
	}
	if err := insertOutboxTx(tx, ob); err != nil {
		return err
	}
	return tx.Commit()
}

// ListInventoryEventsForDay returns a device's ledger entries for one
// calendar date, in insertion order.
func (db *DB) ListInventoryEventsForDay(deviceID, dayDate string) ([]OfflineInventoryEvent, error) {
	rows, err := db.Query(`SELECT `+invEventCols+` FROM offline_inventory_events
		WHERE device_id = ? AND day_date = ? ORDER BY rowid`, deviceID, dayDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInventoryEvents(rows)
}

func scanInventoryEvents(rows *sql.Rows) ([]OfflineInventoryEvent, error) {
	var events []OfflineInventoryEvent
	for rows.Next() {
		var e OfflineInventoryEvent
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.StoreID, &e.InventoryStockID, &e.EventType,
			&e.QuantityChange, &e.OrderID, &e.Reason, &e.RecordedBy, &e.DayDate,
			&e.CreatedAt, &e.Synced, &e.SyncAttempts); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
