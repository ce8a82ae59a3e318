package store

import "database/sql"

// BusinessDay is one row per (store, device, date).
type BusinessDay struct {
	ID                string   `json:"id"`
	StoreID           string   `json:"store_id"`
	DeviceID          string   `json:"device_id"`
	DayDate           string   `json:"day_date"`
	OpenedAt          string   `json:"opened_at"`
	ShiftID           *string  `json:"shift_id"`
	StartingCash      *float64 `json:"starting_cash"`
	InventorySnapshot string   `json:"inventory_snapshot"` // JSON array of {inventory_stock_id, starting_quantity}
	TotalOrders       int      `json:"total_orders"`
	TotalSales        float64  `json:"total_sales"`
	ClosedAt          *string  `json:"closed_at"`
	PendingSync       bool     `json:"pending_sync"`
	Summary           *string  `json:"summary"` // JSON close-out summary, set at EOD
}

const busdayCols = `id, store_id, device_id, day_date, opened_at, shift_id, starting_cash,
	inventory_snapshot, total_orders, total_sales, closed_at, pending_sync, summary`

// InsertBusinessDay opens a day. When ob is non-nil the sod_opened outbox
// event commits in the same transaction as the day row.
func (db *DB) InsertBusinessDay(d *BusinessDay, ob *OutboxEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT INTO business_days
		(id, store_id, device_id, day_date, shift_id, starting_cash, inventory_snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.StoreID, d.DeviceID, d.DayDate, d.ShiftID, d.StartingCash, d.InventorySnapshot); err != nil {
		return err
	}
	if err := insertOutboxTx(tx, ob); err != nil {
		return err
	}
	return tx.Commit()
}

// GetBusinessDay returns the row for one (store, device, date), or nil.
func (db *DB) GetBusinessDay(storeID, deviceID, dayDate string) (*BusinessDay, error) {
	d := &BusinessDay{}
	err := db.QueryRow(`SELECT `+busdayCols+` FROM business_days
		WHERE store_id = ? AND device_id = ? AND day_date = ?`, storeID, deviceID, dayDate).
		Scan(&d.ID, &d.StoreID, &d.DeviceID, &d.DayDate, &d.OpenedAt, &d.ShiftID, &d.StartingCash,
			&d.InventorySnapshot, &d.TotalOrders, &d.TotalSales, &d.ClosedAt, &d.PendingSync, &d.Summary)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CloseBusinessDay stamps closed_at and the final close-out figures. When ob
// is non-nil the eod_closed attestation commits with the close.
func (db *DB) CloseBusinessDay(id string, totalOrders int, totalSales float64, pendingSync bool, summary string, ob *OutboxEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE business_days SET closed_at = datetime('now','localtime'),
		total_orders = ?, total_sales = ?, pending_sync = ?, summary = ?
		WHERE id = ?`, totalOrders, totalSales, pendingSync, summary, id); err != nil {
		return err
	}
	if err := insertOutboxTx(tx, ob); err != nil {
		return err
	}
	return tx.Commit()
}

// ListBusinessDaysPendingSync returns closed days that still had unsynced
// events at close, newest first.
func (db *DB) ListBusinessDaysPendingSync(storeID string) ([]BusinessDay, error) {
	rows, err := db.Query(`SELECT `+busdayCols+` FROM business_days
		WHERE store_id = ? AND pending_sync = 1 ORDER BY day_date DESC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBusinessDays(rows)
}

func scanBusinessDays(rows *sql.Rows) ([]BusinessDay, error) {
	var days []BusinessDay
	for rows.Next() {
		var d BusinessDay
		if err := rows.Scan(&d.ID, &d.StoreID, &d.DeviceID, &d.DayDate, &d.OpenedAt, &d.ShiftID,
			&d.StartingCash, &d.InventorySnapshot, &d.TotalOrders, &d.TotalSales,
			&d.ClosedAt, &d.PendingSync, &d.Summary); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
