package store

import "database/sql"

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OfflineOrder is an order created locally while offline.
type OfflineOrder struct {
	ID               string  `json:"id"`
	DeviceID         string  `json:"device_id"`
	StoreID          string  `json:"store_id"`
	UserID           string  `json:"user_id"`
	ShiftID          *string `json:"shift_id"`
	CustomerID       *string `json:"customer_id"`
	OrderType        string  `json:"order_type"`
	DeliveryAddress  *string `json:"delivery_address"`
	DeliveryPhone    *string `json:"delivery_phone"`
	Subtotal         float64 `json:"subtotal"`
	Tax              float64 `json:"tax"`
	Discount         float64 `json:"discount"`
	DiscountType     string  `json:"discount_type"`
	DiscountIDNumber string  `json:"discount_id_number"`
	Total            float64 `json:"total"`
	Status           string  `json:"status"`
	DayDate          string  `json:"day_date"`
	CreatedAt        string  `json:"created_at"`
	CompletedAt      *string `json:"completed_at"`
	Synced           bool    `json:"synced"`
	SyncAttempts     int     `json:"sync_attempts"`
}

// OfflineOrderItem is a denormalized line item; name is snapshotted at
// creation so later catalog edits don't retroactively alter receipts.
type OfflineOrderItem struct {
	ID          int64   `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   string  `json:"product_id"`
	VariationID *string `json:"variation_id"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// OfflinePayment is the single payment row of a completed order.
type OfflinePayment struct {
	ID              int64    `json:"id"`
	OrderID         string   `json:"order_id"`
	PaymentMethod   string   `json:"payment_method"`
	Amount          float64  `json:"amount"`
	AmountTendered  *float64 `json:"amount_tendered"`
	ChangeAmount    float64  `json:"change_amount"`
	ReferenceNumber *string  `json:"reference_number"`
	PaymentDetails  *string  `json:"payment_details"`
	Synced          bool     `json:"synced"`
	CreatedAt       string   `json:"created_at"`
}

// SalesTotals aggregates completed orders for one device-day.
type SalesTotals struct {
	OrderCount int     `json:"order_count"`
	Gross      float64 `json:"gross"`
	Discount   float64 `json:"discount"`
	Tax        float64 `json:"tax"`
	Net        float64 `json:"net"`
}

const orderCols = `id, device_id, store_id, user_id, shift_id, customer_id, order_type,
	delivery_address, delivery_phone, subtotal, tax, discount, discount_type,
	discount_id_number, total, status, day_date, created_at, completed_at, synced, sync_attempts`

// InsertOrderWithItems writes an order, its line items, and (when ob is
// non-nil) the order_created outbox event in one transaction. An order row
// without its outbox twin would be invisible to the sync engine forever, so
// the two are never allowed to commit separately. An empty CreatedAt defers
// to the schema default.
func (db *DB) InsertOrderWithItems(o *OfflineOrder, items []OfflineOrderItem, ob *OutboxEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`INSERT INTO offline_orders
		(id, device_id, store_id, user_id, shift_id, customer_id, order_type,
		 delivery_address, delivery_phone, subtotal, tax, discount, discount_type,
		 discount_id_number, total, status, day_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE(NULLIF(?, ''), datetime('now','localtime')))`,
		o.ID, o.DeviceID, o.StoreID, o.UserID, o.ShiftID, o.CustomerID, o.OrderType,
		o.DeliveryAddress, o.DeliveryPhone, o.Subtotal, o.Tax, o.Discount, o.DiscountType,
		o.DiscountIDNumber, o.Total, OrderStatusPending, o.DayDate, o.CreatedAt); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := tx.Exec(`INSERT INTO offline_order_items
			(order_id, product_id, variation_id, name, quantity, unit_price, total_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ID, it.ProductID, it.VariationID, it.Name, it.Quantity, it.UnitPrice, it.TotalPrice); err != nil {
			return err
		}
	}
	if err := insertOutboxTx(tx, ob); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) GetOrder(orderID string) (*OfflineOrder, error) {
	o := &OfflineOrder{}
	err := db.QueryRow(`SELECT `+orderCols+` FROM offline_orders WHERE id = ?`, orderID).
		Scan(&o.ID, &o.DeviceID, &o.StoreID, &o.UserID, &o.ShiftID, &o.CustomerID, &o.OrderType,
			&o.DeliveryAddress, &o.DeliveryPhone, &o.Subtotal, &o.Tax, &o.Discount, &o.DiscountType,
			&o.DiscountIDNumber, &o.Total, &o.Status, &o.DayDate, &o.CreatedAt, &o.CompletedAt,
			&o.Synced, &o.SyncAttempts)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrdersForDay returns a device's orders for one calendar date.
func (db *DB) ListOrdersForDay(deviceID, dayDate string) ([]OfflineOrder, error) {
	rows, err := db.Query(`SELECT `+orderCols+` FROM offline_orders
		WHERE device_id = ? AND day_date = ? ORDER BY created_at DESC`, deviceID, dayDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]OfflineOrder, error) {
	var orders []OfflineOrder
	for rows.Next() {
		var o OfflineOrder
		if err := rows.Scan(&o.ID, &o.DeviceID, &o.StoreID, &o.UserID, &o.ShiftID, &o.CustomerID, &o.OrderType,
			&o.DeliveryAddress, &o.DeliveryPhone, &o.Subtotal, &o.Tax, &o.Discount, &o.DiscountType,
			&o.DiscountIDNumber, &o.Total, &o.Status, &o.DayDate, &o.CreatedAt, &o.CompletedAt,
			&o.Synced, &o.SyncAttempts); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (db *DB) ListOrderItems(orderID string) ([]OfflineOrderItem, error) {
	rows, err := db.Query(`SELECT id, order_id, product_id, variation_id, name, quantity, unit_price, total_price
		FROM offline_order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OfflineOrderItem
	for rows.Next() {
		var it OfflineOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariationID, &it.Name,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CompleteOrderWithPayment flips a pending order to completed, inserts its
// single payment row, and (when ob is non-nil) the order_completed outbox
// event, atomically. An empty completedAt defers to the database clock.
func (db *DB) CompleteOrderWithPayment(orderID string, p *OfflinePayment, completedAt string, ob *OutboxEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE offline_orders SET status = ?,
		completed_at = COALESCE(NULLIF(?, ''), datetime('now','localtime'))
		WHERE id = ?`, OrderStatusCompleted, completedAt, orderID); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO offline_payments
		(order_id, payment_method, amount, amount_tendered, change_amount, reference_number, payment_details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orderID, p.PaymentMethod, p.Amount, p.AmountTendered, p.ChangeAmount,
		p.ReferenceNumber, p.PaymentDetails); err != nil {
		return err
	}
	if err := insertOutboxTx(tx, ob); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) GetPayment(orderID string) (*OfflinePayment, error) {
	p := &OfflinePayment{}
	err := db.QueryRow(`SELECT id, order_id, payment_method, amount, amount_tendered, change_amount,
			reference_number, payment_details, synced, created_at
		FROM offline_payments WHERE order_id = ?`, orderID).
		Scan(&p.ID, &p.OrderID, &p.PaymentMethod, &p.Amount, &p.AmountTendered, &p.ChangeAmount,
			&p.ReferenceNumber, &p.PaymentDetails, &p.Synced, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetOrderStatus overwrites an order's status. Used by the console for
// cancellation; the pos service itself only ever moves pending to completed.
func (db *DB) SetOrderStatus(orderID, status string) error {
	_, err := db.Exec(`UPDATE offline_orders SET status = ? WHERE id = ?`, status, orderID)
	return err
}

// SalesTotalsForDay aggregates completed orders for one device-day.
func (db *DB) SalesTotalsForDay(deviceID, dayDate string) (*SalesTotals, error) {
	t := &SalesTotals{}
	err := db.QueryRow(`SELECT COUNT(*),
			COALESCE(SUM(subtotal), 0), COALESCE(SUM(discount), 0),
			COALESCE(SUM(tax), 0), COALESCE(SUM(total), 0)
		FROM offline_orders
		WHERE device_id = ? AND day_date = ? AND status = ?`,
		deviceID, dayDate, OrderStatusCompleted).
		Scan(&t.OrderCount, &t.Gross, &t.Discount, &t.Tax, &t.Net)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CountUnsyncedOrders returns how many of a device's orders await sync.
func (db *DB) CountUnsyncedOrders(deviceID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM offline_orders WHERE device_id = ? AND synced = 0`, deviceID).Scan(&n)
	return n, err
}
