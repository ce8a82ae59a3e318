// Package pos creates orders and payments locally, triggers inventory ledger
// entries, and enqueues outbox events. This is the primary write path during a
// shift; nothing here talks to the network.
package pos

import (
	"fmt"
	"log"

	"tilledge/identity"
	"tilledge/ledger"
	"tilledge/outbox"
	"tilledge/store"

	"github.com/google/uuid"
)

// Manager is the offline POS order service.
type Manager struct {
	db      *store.DB
	ident   *identity.Provider
	queue   *outbox.Queue
	ledger  *ledger.Ledger
	emitter EventEmitter
}

// NewManager creates a POS order manager.
func NewManager(db *store.DB, ident *identity.Provider, queue *outbox.Queue, lgr *ledger.Ledger, emitter EventEmitter) *Manager {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Manager{db: db, ident: ident, queue: queue, ledger: lgr, emitter: emitter}
}

// CreateOrderParams describes a new order. Total is computed by the caller;
// total = subtotal - discount + tax is expected but not enforced here.
type CreateOrderParams struct {
	StoreID          string            `json:"store_id"`
	UserID           string            `json:"user_id"`
	ShiftID          *string           `json:"shift_id"`
	CustomerID       *string           `json:"customer_id"`
	OrderType        string            `json:"order_type"`
	DeliveryAddress  *string           `json:"delivery_address"`
	DeliveryPhone    *string           `json:"delivery_phone"`
	Subtotal         float64           `json:"subtotal"`
	Tax              float64           `json:"tax"`
	Discount         float64           `json:"discount"`
	DiscountType     string            `json:"discount_type"`
	DiscountIDNumber string            `json:"discount_id_number"`
	Total            float64           `json:"total"`
	Items            []OrderItemParams `json:"items"`
}

// OrderItemParams is one line item of a new order.
type OrderItemParams struct {
	ProductID   string  `json:"product_id"`
	VariationID *string `json:"variation_id"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// CreateOrderResult reports a created order. DeductionFailures counts line
// items whose inventory deduction could not be recorded; the order itself
// still stands (flagged discrepancy, not a rollback).
type CreateOrderResult struct {
	OrderID           string `json:"order_id"`
	Success           bool   `json:"success"`
	DeductionFailures int    `json:"deduction_failures"`
}

// OrderDetails joins an order with its items and payment.
type OrderDetails struct {
	Order   store.OfflineOrder       `json:"order"`
	Items   []store.OfflineOrderItem `json:"items"`
	Payment *store.OfflinePayment    `json:"payment"`
}

type orderEventPayload struct {
	Order   store.OfflineOrder       `json:"order"`
	Items   []store.OfflineOrderItem `json:"items"`
	Payment *store.OfflinePayment    `json:"payment,omitempty"`
}

// CreateOrder builds an order with denormalized line items, records the sale
// deductions, and enqueues an order_created outbox event carrying the full
// order so the sync engine can replay it without local lookups.
func (m *Manager) CreateOrder(params CreateOrderParams) (*CreateOrderResult, error) {
	if len(params.Items) == 0 {
		return &CreateOrderResult{}, fmt.Errorf("order has no items")
	}

	orderID := uuid.New().String()
	order := &store.OfflineOrder{
		ID:               orderID,
		DeviceID:         m.ident.DeviceID(),
		StoreID:          params.StoreID,
		UserID:           params.UserID,
		ShiftID:          params.ShiftID,
		CustomerID:       params.CustomerID,
		OrderType:        params.OrderType,
		DeliveryAddress:  params.DeliveryAddress,
		DeliveryPhone:    params.DeliveryPhone,
		Subtotal:         params.Subtotal,
		Tax:              params.Tax,
		Discount:         params.Discount,
		DiscountType:     params.DiscountType,
		DiscountIDNumber: params.DiscountIDNumber,
		Total:            params.Total,
		DayDate:          store.Today(),
	}

	items := make([]store.OfflineOrderItem, 0, len(params.Items))
	for _, it := range params.Items {
		name := it.Name
		if name == "" {
			// Snapshot the catalog name now so later edits don't rewrite receipts.
			if p, err := m.db.GetProduct(params.StoreID, it.ProductID); err == nil {
				name = p.Name
			}
		}
		items = append(items, store.OfflineOrderItem{
			OrderID:     orderID,
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Name:        name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}

	// The order, its items, and the order_created event commit together; an
	// order the sync engine can never replay must not exist.
	order.Status = store.OrderStatusPending
	order.CreatedAt = store.Now()
	payload := orderEventPayload{Order: *order, Items: items}
	ob, err := m.queue.NewEvent(params.StoreID, outbox.EventOrderCreated, payload, outbox.PriorityOrderCreated)
	if err != nil {
		return &CreateOrderResult{}, fmt.Errorf("build order_created event: %w", err)
	}
	if err := m.db.InsertOrderWithItems(order, items, ob); err != nil {
		return &CreateOrderResult{}, fmt.Errorf("insert order: %w", err)
	}

	deductionFailures := 0
	for _, it := range params.Items {
		if _, err := m.ledger.RecordSaleDeduction(params.StoreID, it.ProductID, it.Quantity, orderID, params.UserID); err != nil {
			deductionFailures++
			log.Printf("pos: sale deduction for order %s product %s: %v", orderID, it.ProductID, err)
		}
	}

	m.emitter.EmitOrderCreated(orderID, params.Total)
	return &CreateOrderResult{OrderID: orderID, Success: true, DeductionFailures: deductionFailures}, nil
}

// CompleteOrder transitions a pending order to completed and records exactly
// one payment. Returns false without side effects when the order does not
// exist or is not pending.
func (m *Manager) CompleteOrder(orderID, paymentMethod string, amountTendered *float64, paymentDetails *string) (bool, error) {
	order, err := m.db.GetOrder(orderID)
	if err != nil {
		log.Printf("pos: complete order %s: %v", orderID, err)
		return false, nil
	}
	if order.Status != store.OrderStatusPending {
		return false, fmt.Errorf("order %s is %s, not pending", orderID, order.Status)
	}

	change := 0.0
	if amountTendered != nil {
		change = *amountTendered - order.Total
	}
	payment := &store.OfflinePayment{
		OrderID:        orderID,
		PaymentMethod:  paymentMethod,
		Amount:         order.Total,
		AmountTendered: amountTendered,
		ChangeAmount:   change,
		PaymentDetails: paymentDetails,
	}

	// Status flip, payment row, and order_completed event commit together.
	completedAt := store.Now()
	items, err := m.db.ListOrderItems(orderID)
	if err != nil {
		return false, fmt.Errorf("list items: %w", err)
	}
	completed := *order
	completed.Status = store.OrderStatusCompleted
	completed.CompletedAt = &completedAt
	payload := orderEventPayload{Order: completed, Items: items, Payment: payment}
	ob, err := m.queue.NewEvent(order.StoreID, outbox.EventOrderCompleted, payload, outbox.PriorityOrderCompleted)
	if err != nil {
		return false, fmt.Errorf("build order_completed event: %w", err)
	}
	if err := m.db.CompleteOrderWithPayment(orderID, payment, completedAt, ob); err != nil {
		return false, fmt.Errorf("complete order: %w", err)
	}

	m.emitter.EmitOrderCompleted(orderID, order.Total, paymentMethod)
	return true, nil
}

// TodayOrders returns this device's orders for the current calendar date.
func (m *Manager) TodayOrders() ([]store.OfflineOrder, error) {
	return m.db.ListOrdersForDay(m.ident.DeviceID(), store.Today())
}

// TodaySalesTotals aggregates today's completed orders only.
func (m *Manager) TodaySalesTotals() (*store.SalesTotals, error) {
	return m.db.SalesTotalsForDay(m.ident.DeviceID(), store.Today())
}

// GetOrderDetails joins an order with its items and payment, if any.
func (m *Manager) GetOrderDetails(orderID string) (*OrderDetails, error) {
	order, err := m.db.GetOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := m.db.ListOrderItems(orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	d := &OrderDetails{Order: *order, Items: items}
	if p, err := m.db.GetPayment(orderID); err == nil {
		d.Payment = p
	}
	return d, nil
}

// UnsyncedOrdersCount returns how many of this device's orders await sync.
func (m *Manager) UnsyncedOrdersCount() (int, error) {
	return m.db.CountUnsyncedOrders(m.ident.DeviceID())
}
