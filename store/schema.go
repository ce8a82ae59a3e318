package store

const schema = `
CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS local_kv (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS device_config (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    device_id      TEXT NOT NULL UNIQUE,
    store_id       TEXT NOT NULL DEFAULT '',
    device_name    TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    last_online_at TEXT
);

CREATE TABLE IF NOT EXISTS cached_products (
    store_id           TEXT NOT NULL,
    id                 TEXT NOT NULL,
    name               TEXT NOT NULL,
    category_id        TEXT NOT NULL DEFAULT '',
    price              REAL NOT NULL DEFAULT 0,
    selling_quantity   REAL NOT NULL DEFAULT 1,
    inventory_stock_id TEXT NOT NULL DEFAULT '',
    sku                TEXT NOT NULL DEFAULT '',
    active             INTEGER NOT NULL DEFAULT 1,
    cache_version      INTEGER NOT NULL DEFAULT 0,
    cached_at          TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    PRIMARY KEY (store_id, id)
);

CREATE TABLE IF NOT EXISTS cached_categories (
    store_id  TEXT NOT NULL,
    id        TEXT NOT NULL,
    name      TEXT NOT NULL,
    cached_at TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    PRIMARY KEY (store_id, id)
);

CREATE TABLE IF NOT EXISTS cached_inventory_stock (
    store_id          TEXT NOT NULL,
    id                TEXT NOT NULL,
    name              TEXT NOT NULL,
    unit              TEXT NOT NULL DEFAULT '',
    stock_quantity    REAL NOT NULL DEFAULT 0,
    starting_quantity REAL NOT NULL DEFAULT 0,
    day_date          TEXT NOT NULL DEFAULT '',
    cached_at         TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    PRIMARY KEY (store_id, id)
);

CREATE TABLE IF NOT EXISTS cached_recipes (
    store_id   TEXT NOT NULL,
    id         TEXT NOT NULL,
    product_id TEXT NOT NULL,
    cached_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    PRIMARY KEY (store_id, id)
);
CREATE INDEX IF NOT EXISTS idx_recipes_product ON cached_recipes(store_id, product_id);

CREATE TABLE IF NOT EXISTS cached_recipe_items (
    store_id            TEXT NOT NULL,
    recipe_id           TEXT NOT NULL,
    ingredient_stock_id TEXT NOT NULL,
    quantity_required   REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (store_id, recipe_id, ingredient_stock_id)
);

CREATE TABLE IF NOT EXISTS outbox_events (
    id                TEXT PRIMARY KEY,
    device_id         TEXT NOT NULL,
    store_id          TEXT NOT NULL,
    event_type        TEXT NOT NULL,
    payload           BLOB NOT NULL,
    priority          INTEGER NOT NULL DEFAULT 5,
    synced            INTEGER NOT NULL DEFAULT 0,
    sync_attempts     INTEGER NOT NULL DEFAULT 0,
    last_sync_attempt TEXT,
    sync_error        TEXT,
    created_at        TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_outbox_store_synced ON outbox_events(store_id, synced);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events(priority DESC) WHERE synced = 0;

CREATE TABLE IF NOT EXISTS offline_orders (
    id                 TEXT PRIMARY KEY,
    device_id          TEXT NOT NULL,
    store_id           TEXT NOT NULL,
    user_id            TEXT NOT NULL DEFAULT '',
    shift_id           TEXT,
    customer_id        TEXT,
    order_type         TEXT NOT NULL DEFAULT 'dine_in',
    delivery_address   TEXT,
    delivery_phone     TEXT,
    subtotal           REAL NOT NULL DEFAULT 0,
    tax                REAL NOT NULL DEFAULT 0,
    discount           REAL NOT NULL DEFAULT 0,
    discount_type      TEXT NOT NULL DEFAULT '',
    discount_id_number TEXT NOT NULL DEFAULT '',
    total              REAL NOT NULL DEFAULT 0,
    status             TEXT NOT NULL DEFAULT 'pending',
    day_date           TEXT NOT NULL,
    created_at         TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    completed_at       TEXT,
    synced             INTEGER NOT NULL DEFAULT 0,
    sync_attempts      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_orders_device_day ON offline_orders(device_id, day_date);
CREATE INDEX IF NOT EXISTS idx_orders_device_created ON offline_orders(device_id, created_at);

CREATE TABLE IF NOT EXISTS offline_order_items (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id     TEXT NOT NULL REFERENCES offline_orders(id) ON DELETE CASCADE,
    product_id   TEXT NOT NULL,
    variation_id TEXT,
    name         TEXT NOT NULL,
    quantity     REAL NOT NULL DEFAULT 1,
    unit_price   REAL NOT NULL DEFAULT 0,
    total_price  REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON offline_order_items(order_id);

CREATE TABLE IF NOT EXISTS offline_payments (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id         TEXT NOT NULL UNIQUE REFERENCES offline_orders(id),
    payment_method   TEXT NOT NULL,
    amount           REAL NOT NULL DEFAULT 0,
    amount_tendered  REAL,
    change_amount    REAL NOT NULL DEFAULT 0,
    reference_number TEXT,
    payment_details  TEXT,
    synced           INTEGER NOT NULL DEFAULT 0,
    created_at       TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS offline_inventory_events (
    id                 TEXT PRIMARY KEY,
    device_id          TEXT NOT NULL,
    store_id           TEXT NOT NULL,
    inventory_stock_id TEXT NOT NULL,
    event_type         TEXT NOT NULL,
    quantity_change    REAL NOT NULL,
    order_id           TEXT,
    reason             TEXT,
    recorded_by        TEXT NOT NULL DEFAULT '',
    day_date           TEXT NOT NULL,
    created_at         TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    synced             INTEGER NOT NULL DEFAULT 0,
    sync_attempts      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_inv_events_device_day ON offline_inventory_events(device_id, day_date);
CREATE INDEX IF NOT EXISTS idx_inv_events_stock ON offline_inventory_events(store_id, inventory_stock_id);

CREATE TABLE IF NOT EXISTS business_days (
    id                 TEXT PRIMARY KEY,
    store_id           TEXT NOT NULL,
    device_id          TEXT NOT NULL,
    day_date           TEXT NOT NULL,
    opened_at          TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    shift_id           TEXT,
    starting_cash      REAL,
    inventory_snapshot TEXT NOT NULL DEFAULT '[]',
    total_orders       INTEGER NOT NULL DEFAULT 0,
    total_sales        REAL NOT NULL DEFAULT 0,
    closed_at          TEXT,
    pending_sync       INTEGER NOT NULL DEFAULT 0,
    summary            TEXT,
    UNIQUE(store_id, device_id, day_date)
);
CREATE INDEX IF NOT EXISTS idx_busdays_pending ON business_days(store_id, pending_sync);
`

func (db *DB) migrate() error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	// Graceful migrations for existing DBs
	db.Exec("ALTER TABLE cached_products ADD COLUMN sku TEXT NOT NULL DEFAULT ''")
	db.Exec("ALTER TABLE business_days ADD COLUMN summary TEXT")
	return nil
}
