package store

// CachedInventoryStock mirrors a remote inventory stock row. stock_quantity is
// only a cached starting point; the inventory event log is the local truth for
// what happened after the snapshot was taken.
type CachedInventoryStock struct {
	StoreID          string  `json:"store_id"`
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Unit             string  `json:"unit"`
	StockQuantity    float64 `json:"stock_quantity"`
	StartingQuantity float64 `json:"starting_quantity"`
	DayDate          string  `json:"day_date"`
	CachedAt         string  `json:"cached_at"`
}

// PutInventoryStock bulk-replaces cached stock rows, capturing each row's
// current remote quantity as the day's starting_quantity fold base.
func (db *DB) PutInventoryStock(storeID string, items []CachedInventoryStock, dayDate string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, s := range items {
		if _, err := tx.Exec(`INSERT INTO cached_inventory_stock
			(store_id, id, name, unit, stock_quantity, starting_quantity, day_date, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now','localtime'))
			ON CONFLICT(store_id, id) DO UPDATE SET
				name = excluded.name, unit = excluded.unit,
				stock_quantity = excluded.stock_quantity,
				starting_quantity = excluded.starting_quantity,
				day_date = excluded.day_date, cached_at = excluded.cached_at`,
			storeID, s.ID, s.Name, s.Unit, s.StockQuantity, s.StockQuantity, dayDate); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) GetInventoryStock(storeID, stockID string) (*CachedInventoryStock, error) {
	s := &CachedInventoryStock{}
	err := db.QueryRow(`SELECT store_id, id, name, unit, stock_quantity, starting_quantity, day_date, cached_at
		FROM cached_inventory_stock WHERE store_id = ? AND id = ?`, storeID, stockID).
		Scan(&s.StoreID, &s.ID, &s.Name, &s.Unit, &s.StockQuantity, &s.StartingQuantity, &s.DayDate, &s.CachedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) ListInventoryStock(storeID string) ([]CachedInventoryStock, error) {
	rows, err := db.Query(`SELECT store_id, id, name, unit, stock_quantity, starting_quantity, day_date, cached_at
		FROM cached_inventory_stock WHERE store_id = ? ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CachedInventoryStock
	for rows.Next() {
		var s CachedInventoryStock
		if err := rows.Scan(&s.StoreID, &s.ID, &s.Name, &s.Unit, &s.StockQuantity, &s.StartingQuantity, &s.DayDate, &s.CachedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
