package pos

import (
	"path/filepath"
	"testing"

	"tilledge/identity"
	"tilledge/ledger"
	"tilledge/outbox"
	"tilledge/store"
)

func testManager(t *testing.T) (*Manager, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ident := identity.NewProvider(db, identity.NativeHost{MachineIDPath: filepath.Join(t.TempDir(), "missing")}, "test-register")
	queue := outbox.NewQueue(db, ident)
	lgr := ledger.NewLedger(db, ident, queue, nil)
	return NewManager(db, ident, queue, lgr, nil), db
}

func seedCatalog(t *testing.T, db *store.DB) {
	t.Helper()
	err := db.PutProducts("s1", []store.CachedProduct{
		{ID: "latte", Name: "Latte", Price: 40, SellingQuantity: 1, InventoryStockID: "beans", Active: true},
		{ID: "muffin", Name: "Muffin", Price: 20, SellingQuantity: 1, InventoryStockID: "", Active: true},
	}, 1)
	if err != nil {
		t.Fatalf("seed products: %v", err)
	}
	err = db.PutInventoryStock("s1", []store.CachedInventoryStock{
		{ID: "beans", Name: "Beans", Unit: "kg", StockQuantity: 100},
	}, store.Today())
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func createTestOrder(t *testing.T, m *Manager) string {
	t.Helper()
	res, err := m.CreateOrder(CreateOrderParams{
		StoreID:   "s1",
		UserID:    "user-1",
		OrderType: "dine_in",
		Subtotal:  100,
		Tax:       12,
		Total:     112,
		Items: []OrderItemParams{
			{ProductID: "latte", Quantity: 2, UnitPrice: 40, TotalPrice: 80},
			{ProductID: "muffin", Quantity: 1, UnitPrice: 20, TotalPrice: 20},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !res.Success {
		t.Fatal("create order reported failure")
	}
	return res.OrderID
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	m, _ := testManager(t)
	if _, err := m.CreateOrder(CreateOrderParams{StoreID: "s1", Total: 10}); err == nil {
		t.Error("order with no items should fail")
	}
}

func TestCreateOrderSnapshotsNamesAndDeductsStock(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)
	orderID := createTestOrder(t, m)

	items, err := db.ListOrderItems(orderID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if items[0].Name != "Latte" {
		t.Errorf("item name = %q, want snapshotted catalog name", items[0].Name)
	}

	// The latte deducts beans; the muffin has no mapping and deducts nothing.
	dc, err := db.GetDeviceConfig()
	if err != nil || dc == nil {
		t.Fatalf("device config: %v", err)
	}
	events, err := db.ListInventoryEventsForDay(dc.DeviceID, store.Today())
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("inventory events = %d, want 1", len(events))
	}
	if events[0].QuantityChange != -2 {
		t.Errorf("quantity change = %v, want -2", events[0].QuantityChange)
	}
	if events[0].OrderID == nil || *events[0].OrderID != orderID {
		t.Errorf("event order id = %v, want %s", events[0].OrderID, orderID)
	}
}

func TestCreateOrderEnqueuesOutbox(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)
	createTestOrder(t, m)

	pending, _ := db.ListPendingOutboxByStore("s1", 10)
	types := map[string]int{}
	for _, e := range pending {
		types[e.EventType]++
	}
	if types[outbox.EventOrderCreated] != 1 {
		t.Errorf("order_created events = %d, want 1", types[outbox.EventOrderCreated])
	}
	if types[outbox.EventInventory] != 1 {
		t.Errorf("inventory events = %d, want 1", types[outbox.EventInventory])
	}
	// order_created outranks the inventory deduction in drain order
	if len(pending) > 0 && pending[0].EventType != outbox.EventOrderCreated {
		t.Errorf("first pending = %q, want order_created", pending[0].EventType)
	}
}

func TestCompleteOrderCashChange(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)
	orderID := createTestOrder(t, m)

	tendered := 150.0
	ok, err := m.CompleteOrder(orderID, "cash", &tendered, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !ok {
		t.Fatal("complete returned false")
	}

	p, err := db.GetPayment(orderID)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if p.ChangeAmount != 38 {
		t.Errorf("change = %v, want 38 (150 tendered - 112 total)", p.ChangeAmount)
	}

	order, _ := db.GetOrder(orderID)
	if order.Status != store.OrderStatusCompleted {
		t.Errorf("status = %q, want completed", order.Status)
	}
}

func TestCompleteOrderNoTenderZeroChange(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)
	orderID := createTestOrder(t, m)

	ok, err := m.CompleteOrder(orderID, "gcash", nil, nil)
	if err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}
	p, _ := db.GetPayment(orderID)
	if p.ChangeAmount != 0 {
		t.Errorf("change = %v, want 0 when no tender recorded", p.ChangeAmount)
	}
	if p.AmountTendered != nil {
		t.Errorf("tendered = %v, want nil", p.AmountTendered)
	}
}

func TestCompleteNonexistentOrder(t *testing.T) {
	m, db := testManager(t)

	ok, err := m.CompleteOrder("no-such-order", "cash", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("completing a nonexistent order should return false")
	}
	if _, err := db.GetPayment("no-such-order"); err == nil {
		t.Error("no payment row should exist")
	}
}

func TestCompleteAlreadyCompletedOrder(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)
	orderID := createTestOrder(t, m)

	if ok, err := m.CompleteOrder(orderID, "cash", nil, nil); err != nil || !ok {
		t.Fatalf("first complete: ok=%v err=%v", ok, err)
	}
	ok, err := m.CompleteOrder(orderID, "cash", nil, nil)
	if ok {
		t.Error("second complete should not succeed")
	}
	if err == nil {
		t.Error("second complete should report the non-pending status")
	}
}

func TestTodayTotalsExcludePending(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)

	completed := createTestOrder(t, m)
	createTestOrder(t, m) // stays pending
	if ok, err := m.CompleteOrder(completed, "cash", nil, nil); err != nil || !ok {
		t.Fatalf("complete: ok=%v err=%v", ok, err)
	}

	totals, err := m.TodaySalesTotals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.OrderCount != 1 {
		t.Errorf("OrderCount = %d, want 1", totals.OrderCount)
	}
	if totals.Net != 112 {
		t.Errorf("Net = %v, want 112", totals.Net)
	}

	orders, _ := m.TodayOrders()
	if len(orders) != 2 {
		t.Errorf("today orders = %d, want 2 (pending included in listing)", len(orders))
	}
}

func TestCreateOrderRollsBackWithoutOutboxEvent(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)

	// An order the sync engine can never replay must not exist at all: losing
	// the outbox write has to take the order rows down with it.
	if _, err := db.Exec(`DROP TABLE outbox_events`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := m.CreateOrder(CreateOrderParams{
		StoreID:   "s1",
		UserID:    "user-1",
		OrderType: "dine_in",
		Subtotal:  100,
		Tax:       12,
		Total:     112,
		Items:     []OrderItemParams{{ProductID: "latte", Quantity: 1, UnitPrice: 40, TotalPrice: 40}},
	})
	if err == nil {
		t.Fatal("create should fail when the outbox write fails")
	}

	orders, err := m.TodayOrders()
	if err != nil {
		t.Fatalf("today orders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("orders = %d, want 0 (order row must roll back with the outbox write)", len(orders))
	}
}

func TestCompleteOrderRollsBackWithoutOutboxEvent(t *testing.T) {
	m, db := testManager(t)
	seedCatalog(t, db)
	orderID := createTestOrder(t, m)

	if _, err := db.Exec(`DROP TABLE outbox_events`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if ok, err := m.CompleteOrder(orderID, "cash", nil, nil); err == nil || ok {
		t.Fatalf("complete should fail when the outbox write fails, got ok=%v err=%v", ok, err)
	}

	got, err := db.GetOrder(orderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.OrderStatusPending {
		t.Errorf("status = %q, want pending (flip must roll back with the outbox write)", got.Status)
	}
	if _, err := db.GetPayment(orderID); err == nil {
		t.Error("payment row should not exist after rollback")
	}
}
