package www

import (
	"net/http"

	"tilledge/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Syncer triggers an immediate outbox drain attempt.
type Syncer interface {
	Drain()
}

// ConnChecker reports sync transport connectivity.
type ConnChecker interface {
	IsConnected() bool
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	engine   *engine.Engine
	sessions *sessionStore
	eventHub *EventHub
	syncer   Syncer
	conn     ConnChecker
}

// NewRouter creates the chi router and returns it along with a stop function.
// syncer and conn may be nil when the daemon runs without a sync transport.
func NewRouter(eng *engine.Engine, syncer Syncer, conn ConnChecker) (http.Handler, func()) {
	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: NewEventHub(),
		syncer:   syncer,
		conn:     conn,
	}

	h.eventHub.Start()
	h.eventHub.SetupEngineListeners(eng)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE (no auth — register screens)
	r.Get("/events", h.eventHub.HandleSSE)

	// Login/logout
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		// Public API (register screens poll these)
		r.Get("/status", h.apiStatus)
		r.Get("/sync/stats", h.apiSyncStats)
		r.Get("/cache/status", h.apiCacheStatus)
		r.Get("/catalog/products", h.apiProducts)
		r.Get("/catalog/categories", h.apiCategories)
		r.Get("/day", h.apiCurrentDay)
		r.Get("/orders", h.apiTodayOrders)
		r.Get("/orders/totals", h.apiTodayTotals)
		r.Get("/orders/{orderID}", h.apiOrderDetails)
		r.Get("/inventory", h.apiInventoryLevels)

		// Register actions (no auth — the terminal itself is the trust boundary)
		r.Post("/orders", h.apiCreateOrder)
		r.Post("/orders/{orderID}/complete", h.apiCompleteOrder)

		// Admin-only (manager PIN behind session auth)
		r.Group(func(r chi.Router) {
			r.Use(h.adminMiddleware)
			r.Post("/orders/{orderID}/cancel", h.apiCancelOrder)
			r.Post("/day/start", h.apiStartOfDay)
			r.Post("/day/end", h.apiEndOfDay)
			r.Get("/day/pending-sync", h.apiDaysPendingSync)
			r.Post("/inventory/adjust", h.apiInventoryAdjust)
			r.Post("/inventory/waste", h.apiInventoryWaste)
			r.Post("/cache/refresh", h.apiCacheRefresh)
			r.Post("/sync/drain", h.apiSyncDrain)
			r.Post("/sync/retry-failed", h.apiRetryFailed)
			r.Post("/admin/password", h.apiChangePassword)
		})
	})

	return r, func() {
		h.eventHub.Stop()
	}
}

func (h *Handlers) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	db := h.engine.DB()

	// First login bootstraps the admin account
	exists, _ := db.AdminUserExists()
	if !exists {
		hash, err := hashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if _, err := db.CreateAdminUser(req.Username, hash); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create admin user")
			return
		}
		h.sessions.setUser(w, r, req.Username)
		writeJSON(w, map[string]interface{}{"status": "ok", "created": true})
		return
	}

	user, err := db.GetAdminUser(req.Username)
	if err != nil || user == nil || !checkPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	h.sessions.setUser(w, r, req.Username)
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.clear(w, r)
	writeJSON(w, map[string]string{"status": "ok"})
}
