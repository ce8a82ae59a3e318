// Package store owns the device's single SQLite file: device identity,
// reference-data cache, the outbox, offline orders, the inventory ledger, and
// business days all live in one database so cross-table writes can share a
// transaction.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB is the handle every service shares.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database and applies the schema. WAL keeps
// readers unblocked during the frequent small writes of a shift, and the pool
// is pinned to one connection so SQLite never sees concurrent writers.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	handle.SetMaxOpenConns(1)

	db := &DB{handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
