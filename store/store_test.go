package store

import (
	"fmt"
	"path/filepath"
	"testing"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// --- KV / device config ---

func TestKVRoundTrip(t *testing.T) {
	db := testDB(t)

	v, err := db.GetKV("device_id")
	if err != nil {
		t.Fatalf("get missing key: %v", err)
	}
	if v != "" {
		t.Errorf("missing key = %q, want empty", v)
	}
	if err := db.SetKV("device_id", "native_abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err = db.GetKV("device_id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "native_abc" {
		t.Errorf("value = %q, want %q", v, "native_abc")
	}

	// Upsert overwrites
	if err := db.SetKV("device_id", "native_def"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	v, _ = db.GetKV("device_id")
	if v != "native_def" {
		t.Errorf("value after upsert = %q, want %q", v, "native_def")
	}
}

func TestDeviceConfigSingleton(t *testing.T) {
	db := testDB(t)

	cfg, err := db.GetDeviceConfig()
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil config before bootstrap")
	}

	if err := db.UpsertDeviceConfig("native_abc", "register-1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := db.SetDeviceStoreID("store-42"); err != nil {
		t.Fatalf("set store: %v", err)
	}

	cfg, err = db.GetDeviceConfig()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.DeviceID != "native_abc" {
		t.Errorf("DeviceID = %q", cfg.DeviceID)
	}
	if cfg.StoreID != "store-42" {
		t.Errorf("StoreID = %q, want store-42", cfg.StoreID)
	}

	// Upserting again must not create a second row
	if err := db.UpsertDeviceConfig("native_abc", "register-1-renamed"); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM device_config`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("device_config rows = %d, want 1", count)
	}
}

// --- Outbox ---

func seedOutbox(t *testing.T, db *DB, storeID string, priorities []int) []string {
	t.Helper()
	ids := make([]string, len(priorities))
	for i, p := range priorities {
		id := fmt.Sprintf("evt-%s-%d", storeID, i)
		e := &OutboxEvent{ID: id, DeviceID: "dev-1", StoreID: storeID, EventType: "order_created", Payload: []byte(`{}`), Priority: p}
		if err := db.InsertOutboxEvent(e); err != nil {
			t.Fatalf("insert outbox: %v", err)
		}
		ids[i] = id
	}
	return ids
}

func TestOutboxPriorityOrdering(t *testing.T) {
	db := testDB(t)
	seedOutbox(t, db, "s1", []int{3, 9, 5, 8})

	events, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]int, len(events))
	for i, e := range events {
		got[i] = e.Priority
	}
	want := []int{9, 8, 5, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: priority = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOutboxInsertionOrderWithinPriority(t *testing.T) {
	db := testDB(t)
	ids := seedOutbox(t, db, "s1", []int{5, 5, 5})

	events, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, e := range events {
		if e.ID != ids[i] {
			t.Errorf("position %d: id = %q, want %q (insertion order)", i, e.ID, ids[i])
		}
	}
}

func TestOutboxSyncedExcludedFromPending(t *testing.T) {
	db := testDB(t)
	ids := seedOutbox(t, db, "s1", []int{5, 5})

	if err := db.MarkOutboxSynced(ids[0]); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	events, _ := db.ListPendingOutbox(10)
	if len(events) != 1 || events[0].ID != ids[1] {
		t.Fatalf("pending = %v, want only %s", events, ids[1])
	}

	evt, err := db.GetOutboxEvent(ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !evt.Synced {
		t.Error("event should be synced")
	}
}

func TestOutboxFailureBookkeeping(t *testing.T) {
	db := testDB(t)
	ids := seedOutbox(t, db, "s1", []int{5})

	for i := 0; i < 3; i++ {
		if err := db.RecordOutboxFailure(ids[0], "connection refused"); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	evt, _ := db.GetOutboxEvent(ids[0])
	if evt.SyncAttempts != 3 {
		t.Errorf("SyncAttempts = %d, want 3", evt.SyncAttempts)
	}
	if evt.SyncError == nil || *evt.SyncError != "connection refused" {
		t.Errorf("SyncError = %v", evt.SyncError)
	}
	if evt.LastSyncAttempt == nil {
		t.Error("LastSyncAttempt should be set")
	}
	// Failed events stay pending; they are never deleted
	events, _ := db.ListPendingOutbox(10)
	if len(events) != 1 {
		t.Fatalf("pending = %d, want 1 (failure must not drop the event)", len(events))
	}

	n, err := db.ResetFailedOutbox("s1", 3)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 1 {
		t.Errorf("reset count = %d, want 1", n)
	}
	evt, _ = db.GetOutboxEvent(ids[0])
	if evt.SyncAttempts != 0 || evt.SyncError != nil {
		t.Errorf("reset did not clear bookkeeping: attempts=%d err=%v", evt.SyncAttempts, evt.SyncError)
	}
}

func TestOutboxCleanupOnlyRemovesSynced(t *testing.T) {
	db := testDB(t)
	ids := seedOutbox(t, db, "s1", []int{5, 5, 5})
	db.MarkOutboxSynced(ids[0])
	db.MarkOutboxSynced(ids[1])

	// Cutoff in the future: both synced rows qualify, pending row must survive
	n, err := db.DeleteSyncedOutboxBefore("2999-01-01 00:00:00")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	evt, _ := db.GetOutboxEvent(ids[2])
	if evt == nil {
		t.Fatal("pending event was deleted by cleanup")
	}
}

func TestOutboxStoreScoping(t *testing.T) {
	db := testDB(t)
	seedOutbox(t, db, "s1", []int{5, 5})
	seedOutbox(t, db, "s2", []int{9})

	s1, _ := db.ListPendingOutboxByStore("s1", 10)
	s2, _ := db.ListPendingOutboxByStore("s2", 10)
	if len(s1) != 2 {
		t.Errorf("s1 pending = %d, want 2", len(s1))
	}
	if len(s2) != 1 {
		t.Errorf("s2 pending = %d, want 1", len(s2))
	}

	stats, err := db.OutboxStatsFor("s1", 3)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 2 {
		t.Errorf("stats = %+v, want total=2 pending=2", stats)
	}
}

// --- Orders ---

func sampleOrder(id, deviceID, dayDate string) *OfflineOrder {
	return &OfflineOrder{
		ID:        id,
		DeviceID:  deviceID,
		StoreID:   "s1",
		UserID:    "user-1",
		OrderType: "dine_in",
		Subtotal:  100,
		Tax:       12,
		Discount:  10,
		Total:     102,
		Status:    OrderStatusPending,
		DayDate:   dayDate,
	}
}

func TestOrderInsertAndReadBack(t *testing.T) {
	db := testDB(t)
	day := Today()

	o := sampleOrder("ord-1", "dev-1", day)
	items := []OfflineOrderItem{
		{OrderID: "ord-1", ProductID: "p1", Name: "Latte", Quantity: 2, UnitPrice: 40, TotalPrice: 80},
		{OrderID: "ord-1", ProductID: "p2", Name: "Muffin", Quantity: 1, UnitPrice: 20, TotalPrice: 20},
	}
	if err := db.InsertOrderWithItems(o, items, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.GetOrder("ord-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Total != 102 || got.Status != OrderStatusPending {
		t.Errorf("order = %+v", got)
	}
	if got.DayDate != day {
		t.Errorf("DayDate = %q, want %q", got.DayDate, day)
	}

	gotItems, err := db.ListOrderItems("ord-1")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(gotItems) != 2 {
		t.Fatalf("items = %d, want 2", len(gotItems))
	}
	if gotItems[0].Name != "Latte" {
		t.Errorf("item name = %q (name must be snapshotted)", gotItems[0].Name)
	}
}

func TestCompleteOrderWithPayment(t *testing.T) {
	db := testDB(t)
	day := Today()
	o := sampleOrder("ord-1", "dev-1", day)
	db.InsertOrderWithItems(o, []OfflineOrderItem{{OrderID: "ord-1", ProductID: "p1", Name: "X", Quantity: 1, UnitPrice: 102, TotalPrice: 102}}, nil)

	tendered := 150.0
	p := &OfflinePayment{
		OrderID:        "ord-1",
		PaymentMethod:  "cash",
		Amount:         102,
		AmountTendered: &tendered,
		ChangeAmount:   48,
	}
	if err := db.CompleteOrderWithPayment("ord-1", p, "", nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := db.GetOrder("ord-1")
	if got.Status != OrderStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}

	pay, err := db.GetPayment("ord-1")
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if pay.ChangeAmount != 48 {
		t.Errorf("ChangeAmount = %v, want 48", pay.ChangeAmount)
	}

	// One payment per order
	if err := db.CompleteOrderWithPayment("ord-1", p, "", nil); err == nil {
		t.Error("second payment for the same order should fail")
	}
}

func TestSalesTotalsCountsCompletedOnly(t *testing.T) {
	db := testDB(t)
	day := Today()

	for i, total := range []float64{102, 51} {
		id := fmt.Sprintf("ord-%d", i)
		o := sampleOrder(id, "dev-1", day)
		o.Subtotal = total
		o.Tax = 0
		o.Discount = 0
		o.Total = total
		db.InsertOrderWithItems(o, []OfflineOrderItem{{OrderID: id, ProductID: "p1", Name: "X", Quantity: 1, UnitPrice: total, TotalPrice: total}}, nil)
	}
	// Complete only the first
	db.CompleteOrderWithPayment("ord-0", &OfflinePayment{OrderID: "ord-0", PaymentMethod: "cash", Amount: 102}, "", nil)

	totals, err := db.SalesTotalsForDay("dev-1", day)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.OrderCount != 1 {
		t.Errorf("OrderCount = %d, want 1 (pending orders excluded)", totals.OrderCount)
	}
	if totals.Net != 102 {
		t.Errorf("Net = %v, want 102", totals.Net)
	}
	if totals.Gross != 102 {
		t.Errorf("Gross = %v, want 102", totals.Gross)
	}
}

func TestOrderQueriesScopeToDevice(t *testing.T) {
	db := testDB(t)
	day := Today()

	// Two registers share a store and a date; each must only ever see its own
	// orders and totals.
	for i, dev := range []string{"dev-a", "dev-a", "dev-b"} {
		id := fmt.Sprintf("ord-%d", i)
		o := sampleOrder(id, dev, day)
		if err := db.InsertOrderWithItems(o, []OfflineOrderItem{{OrderID: id, ProductID: "p1", Name: "X", Quantity: 1, UnitPrice: 102, TotalPrice: 102}}, nil); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
		if err := db.CompleteOrderWithPayment(id, &OfflinePayment{OrderID: id, PaymentMethod: "cash", Amount: 102}, "", nil); err != nil {
			t.Fatalf("complete %s: %v", id, err)
		}
	}

	orders, err := db.ListOrdersForDay("dev-a", day)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("dev-a orders = %d, want 2", len(orders))
	}
	for _, o := range orders {
		if o.DeviceID != "dev-a" {
			t.Errorf("order %s has device %q, want dev-a", o.ID, o.DeviceID)
		}
	}

	totals, err := db.SalesTotalsForDay("dev-b", day)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.OrderCount != 1 || totals.Net != 102 {
		t.Errorf("dev-b totals = %+v, want 1 order / 102 net", totals)
	}
}

// --- Inventory events ---

func TestInventoryEventsAppendOnlyOrdering(t *testing.T) {
	db := testDB(t)
	day := Today()

	for i := 0; i < 3; i++ {
		e := &OfflineInventoryEvent{
			ID:               fmt.Sprintf("ie-%d", i),
			DeviceID:         "dev-1",
			StoreID:          "s1",
			InventoryStockID: "stock-1",
			EventType:        InventoryEventSale,
			QuantityChange:   -1,
			RecordedBy:       "user-1",
			DayDate:          day,
		}
		if err := db.InsertInventoryEvent(e, nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	events, err := db.ListInventoryEventsForDay("dev-1", day)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, e := range events {
		if e.ID != fmt.Sprintf("ie-%d", i) {
			t.Errorf("position %d: id = %q (must be insertion order)", i, e.ID)
		}
	}
}

func TestInventoryEventsScopeToDevice(t *testing.T) {
	db := testDB(t)
	day := Today()

	for i, dev := range []string{"dev-a", "dev-b", "dev-a"} {
		e := &OfflineInventoryEvent{
			ID:               fmt.Sprintf("ie-%d", i),
			DeviceID:         dev,
			StoreID:          "s1",
			InventoryStockID: "stock-1",
			EventType:        InventoryEventSale,
			QuantityChange:   -1,
			RecordedBy:       "user-1",
			DayDate:          day,
		}
		if err := db.InsertInventoryEvent(e, nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	events, err := db.ListInventoryEventsForDay("dev-a", day)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("dev-a events = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.DeviceID != "dev-a" {
			t.Errorf("event %s has device %q, want dev-a", e.ID, e.DeviceID)
		}
	}
}

// --- Reference cache ---

func TestReferenceCacheOverwrite(t *testing.T) {
	db := testDB(t)

	put := func(name string, version int64) {
		err := db.PutProducts("s1", []CachedProduct{
			{ID: "p1", Name: name, CategoryID: "c1", Price: 40, SellingQuantity: 1, InventoryStockID: "stock-1"},
		}, version)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	put("Latte", 1)
	put("Latte Grande", 2)

	p, err := db.GetProduct("s1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "Latte Grande" || p.CacheVersion != 2 {
		t.Errorf("product = %+v, want overwritten row", p)
	}

	all, _ := db.ListProducts("s1")
	if len(all) != 1 {
		t.Errorf("products = %d, want 1 (overwrite, not append)", len(all))
	}
}

func TestRecipeRoundTrip(t *testing.T) {
	db := testDB(t)

	err := db.PutRecipes("s1", []CachedRecipe{
		{ID: "r1", ProductID: "p1", Items: []CachedRecipeItem{
			{IngredientStockID: "beans", QuantityRequired: 0.02},
			{IngredientStockID: "milk", QuantityRequired: 0.25},
		}},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	r, err := db.GetRecipeForProduct("s1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r == nil || len(r.Items) != 2 {
		t.Fatalf("recipe = %+v, want 2 items", r)
	}

	// Absent recipe is nil, nil
	r, err = db.GetRecipeForProduct("s1", "p2")
	if err != nil {
		t.Fatalf("get absent: %v", err)
	}
	if r != nil {
		t.Error("expected nil recipe for product with no recipe")
	}
}

func TestInventoryStockCapturesStartingQuantity(t *testing.T) {
	db := testDB(t)
	day := Today()

	err := db.PutInventoryStock("s1", []CachedInventoryStock{
		{ID: "stock-1", Name: "Beans", Unit: "kg", StockQuantity: 100},
	}, day)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	s, err := db.GetInventoryStock("s1", "stock-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.StartingQuantity != 100 {
		t.Errorf("StartingQuantity = %v, want 100", s.StartingQuantity)
	}
	if s.DayDate != day {
		t.Errorf("DayDate = %q, want %q", s.DayDate, day)
	}
}

// --- Business days ---

func TestBusinessDayUniquePerDeviceDate(t *testing.T) {
	db := testDB(t)
	day := Today()

	d := &BusinessDay{ID: "bd-1", StoreID: "s1", DeviceID: "dev-1", DayDate: day, InventorySnapshot: "[]"}
	if err := db.InsertBusinessDay(d, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dup := &BusinessDay{ID: "bd-2", StoreID: "s1", DeviceID: "dev-1", DayDate: day, InventorySnapshot: "[]"}
	if err := db.InsertBusinessDay(dup, nil); err == nil {
		t.Error("duplicate store/device/date should violate unique constraint")
	}

	// Another device on the same date is fine
	other := &BusinessDay{ID: "bd-3", StoreID: "s1", DeviceID: "dev-2", DayDate: day, InventorySnapshot: "[]"}
	if err := db.InsertBusinessDay(other, nil); err != nil {
		t.Errorf("other device same date: %v", err)
	}
}

func TestBusinessDayClose(t *testing.T) {
	db := testDB(t)
	day := Today()
	d := &BusinessDay{ID: "bd-1", StoreID: "s1", DeviceID: "dev-1", DayDate: day, InventorySnapshot: "[]"}
	db.InsertBusinessDay(d, nil)

	if err := db.CloseBusinessDay("bd-1", 7, 714.5, true, `{"total_orders":7}`, nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := db.GetBusinessDay("s1", "dev-1", day)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClosedAt == nil {
		t.Error("ClosedAt should be set")
	}
	if got.TotalOrders != 7 || got.TotalSales != 714.5 {
		t.Errorf("totals = %d / %v", got.TotalOrders, got.TotalSales)
	}
	if !got.PendingSync {
		t.Error("PendingSync should be true")
	}
	if got.Summary == nil {
		t.Error("Summary should be stored")
	}

	pending, _ := db.ListBusinessDaysPendingSync("s1")
	if len(pending) != 1 {
		t.Errorf("pending days = %d, want 1", len(pending))
	}
}
