package www

import (
	"database/sql"
	"errors"
	"net/http"

	"tilledge/busday"
	"tilledge/pos"
	"tilledge/store"

	"github.com/go-chi/chi/v5"
)

// --- Status ---

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	eng := h.engine
	storeID := eng.StoreID()

	connected := false
	if h.conn != nil {
		connected = h.conn.IsConnected()
	}

	dayOpen, _ := eng.BusinessDay().IsBusinessDayOpen(storeID)
	stats, _ := eng.Outbox().Stats(storeID)
	age, _ := eng.Cache().CacheAgeMinutes(storeID)

	writeJSON(w, map[string]interface{}{
		"device_id":         eng.Identity().DeviceID(),
		"device_name":       eng.AppConfig().DeviceName,
		"store_id":          storeID,
		"connected":         connected,
		"day_open":          dayOpen,
		"outbox":            stats,
		"cache_age_minutes": age,
	})
}

// --- Sync ---

func (h *Handlers) apiSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Outbox().Stats(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, stats)
}

func (h *Handlers) apiSyncDrain(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync transport not configured")
		return
	}
	h.syncer.Drain()
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiRetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.Outbox().RetryFailedEvents(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{"status": "ok", "reset": n})
}

// --- Reference cache ---

func (h *Handlers) apiCacheStatus(w http.ResponseWriter, r *http.Request) {
	storeID := h.engine.StoreID()
	stale, err := h.engine.Cache().IsCacheStale(storeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	age, _ := h.engine.Cache().CacheAgeMinutes(storeID)
	writeJSON(w, map[string]interface{}{"stale": stale, "age_minutes": age})
}

func (h *Handlers) apiCacheRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.Cache().Refresh(r.Context(), h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, result)
}

// --- Business day ---

func (h *Handlers) apiCurrentDay(w http.ResponseWriter, r *http.Request) {
	day, err := h.engine.BusinessDay().CurrentBusinessDay(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if day == nil {
		writeJSON(w, map[string]interface{}{"open": false})
		return
	}
	writeJSON(w, map[string]interface{}{"open": day.ClosedAt == nil, "day": day})
}

func (h *Handlers) apiStartOfDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShiftID      *string  `json:"shift_id"`
		StartingCash *float64 `json:"starting_cash"`
	}
	readJSON(r, &req) // body optional

	result, err := h.engine.BusinessDay().StartOfDay(r.Context(), h.engine.StoreID(), busday.StartOfDayOpts{
		ShiftID:      req.ShiftID,
		StartingCash: req.StartingCash,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, result)
}

func (h *Handlers) apiEndOfDay(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.BusinessDay().EndOfDay(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, summary)
}

func (h *Handlers) apiDaysPendingSync(w http.ResponseWriter, r *http.Request) {
	days, err := h.engine.BusinessDay().DaysWithPendingSync(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, days)
}

// --- Catalog ---

func (h *Handlers) apiProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.engine.DB().ListProducts(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, products)
}

func (h *Handlers) apiCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.engine.DB().ListCategories(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, categories)
}

// --- Orders ---

func (h *Handlers) apiTodayOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.POS().TodayOrders()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, orders)
}

func (h *Handlers) apiTodayTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.engine.POS().TodaySalesTotals()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	unsynced, _ := h.engine.POS().UnsyncedOrdersCount()
	writeJSON(w, map[string]interface{}{"totals": totals, "unsynced_orders": unsynced})
}

func (h *Handlers) apiOrderDetails(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	details, err := h.engine.POS().GetOrderDetails(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, details)
}

func (h *Handlers) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var params pos.CreateOrderParams
	if err := readJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if params.StoreID == "" {
		params.StoreID = h.engine.StoreID()
	}

	result, err := h.engine.POS().CreateOrder(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, result)
}

func (h *Handlers) apiCompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req struct {
		PaymentMethod  string   `json:"payment_method"`
		AmountTendered *float64 `json:"amount_tendered"`
		PaymentDetails *string  `json:"payment_details"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "payment_method is required")
		return
	}

	ok, err := h.engine.POS().CompleteOrder(orderID, req.PaymentMethod, req.AmountTendered, req.PaymentDetails)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// apiCancelOrder voids a pending order. Cancellation is a local status change
// only; the order was never transmitted as completed, so no compensating
// event is needed.
func (h *Handlers) apiCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	order, err := h.engine.DB().GetOrder(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if order.Status != store.OrderStatusPending {
		writeError(w, http.StatusBadRequest, "only pending orders can be cancelled")
		return
	}
	if err := h.engine.DB().SetOrderStatus(orderID, store.OrderStatusCancelled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- Admin ---

func (h *Handlers) apiChangePassword(w http.ResponseWriter, r *http.Request) {
	username, _ := h.sessions.getUser(r)
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "new password must be at least 8 characters")
		return
	}

	user, err := h.engine.DB().GetAdminUser(username)
	if err != nil || user == nil || !checkPassword(req.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.engine.DB().UpdateAdminPassword(username, hash); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- Inventory ---

func (h *Handlers) apiInventoryLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.engine.Ledger().CurrentInventoryLevels(h.engine.StoreID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, levels)
}

func (h *Handlers) apiInventoryAdjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InventoryStockID string  `json:"inventory_stock_id"`
		QuantityChange   float64 `json:"quantity_change"`
		Reason           string  `json:"reason"`
		UserID           string  `json:"user_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InventoryStockID == "" {
		writeError(w, http.StatusBadRequest, "inventory_stock_id is required")
		return
	}

	if err := h.engine.Ledger().RecordManualAdjustment(h.engine.StoreID(), req.InventoryStockID, req.QuantityChange, req.Reason, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiInventoryWaste(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InventoryStockID string  `json:"inventory_stock_id"`
		Quantity         float64 `json:"quantity"`
		Reason           string  `json:"reason"`
		UserID           string  `json:"user_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InventoryStockID == "" {
		writeError(w, http.StatusBadRequest, "inventory_stock_id is required")
		return
	}

	if err := h.engine.Ledger().RecordWaste(h.engine.StoreID(), req.InventoryStockID, req.Quantity, req.Reason, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
