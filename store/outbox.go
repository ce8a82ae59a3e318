package store

import "database/sql"

// OutboxEvent is a queued domain event awaiting transmission.
type OutboxEvent struct {
	ID              string  `json:"id"`
	DeviceID        string  `json:"device_id"`
	StoreID         string  `json:"store_id"`
	EventType       string  `json:"event_type"`
	Payload         []byte  `json:"payload"`
	Priority        int     `json:"priority"`
	Synced          bool    `json:"synced"`
	SyncAttempts    int     `json:"sync_attempts"`
	LastSyncAttempt *string `json:"last_sync_attempt"`
	SyncError       *string `json:"sync_error"`
	CreatedAt       string  `json:"created_at"`
}

// OutboxStats summarizes outbox sync health for operator display.
type OutboxStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Synced  int `json:"synced"`
}

const outboxCols = `id, device_id, store_id, event_type, payload, priority, synced,
	sync_attempts, last_sync_attempt, sync_error, created_at`

const insertOutboxSQL = `INSERT INTO outbox_events (id, device_id, store_id, event_type, payload, priority)
	VALUES (?, ?, ?, ?, ?, ?)`

func (db *DB) InsertOutboxEvent(e *OutboxEvent) error {
	_, err := db.Exec(insertOutboxSQL, e.ID, e.DeviceID, e.StoreID, e.EventType, e.Payload, e.Priority)
	return err
}

// insertOutboxTx writes an event inside a caller-owned transaction. Domain
// writes use this so the row and its outbox twin commit or roll back together.
func insertOutboxTx(tx *sql.Tx, e *OutboxEvent) error {
	if e == nil {
		return nil
	}
	_, err := tx.Exec(insertOutboxSQL, e.ID, e.DeviceID, e.StoreID, e.EventType, e.Payload, e.Priority)
	return err
}

// ListPendingOutbox returns unsynced events, highest priority first, insertion
// order breaking ties.
func (db *DB) ListPendingOutbox(limit int) ([]OutboxEvent, error) {
	rows, err := db.Query(`SELECT `+outboxCols+` FROM outbox_events
		WHERE synced = 0 ORDER BY priority DESC, rowid LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutboxEvents(rows)
}

// ListPendingOutboxByStore scopes pending events to one store.
func (db *DB) ListPendingOutboxByStore(storeID string, limit int) ([]OutboxEvent, error) {
	rows, err := db.Query(`SELECT `+outboxCols+` FROM outbox_events
		WHERE synced = 0 AND store_id = ? ORDER BY priority DESC, rowid LIMIT ?`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutboxEvents(rows)
}

func scanOutboxEvents(rows *sql.Rows) ([]OutboxEvent, error) {
	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.StoreID, &e.EventType, &e.Payload, &e.Priority,
			&e.Synced, &e.SyncAttempts, &e.LastSyncAttempt, &e.SyncError, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *DB) GetOutboxEvent(id string) (*OutboxEvent, error) {
	e := &OutboxEvent{}
	err := db.QueryRow(`SELECT `+outboxCols+` FROM outbox_events WHERE id = ?`, id).
		Scan(&e.ID, &e.DeviceID, &e.StoreID, &e.EventType, &e.Payload, &e.Priority,
			&e.Synced, &e.SyncAttempts, &e.LastSyncAttempt, &e.SyncError, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// MarkOutboxSynced flips an event to synced. This is the only way an event
// becomes immutable-done.
func (db *DB) MarkOutboxSynced(id string) error {
	_, err := db.Exec(`UPDATE outbox_events SET synced = 1 WHERE id = ?`, id)
	return err
}

// RecordOutboxFailure increments the attempt counter and records the error.
// The event stays pending; nothing is ever given up on at write time.
func (db *DB) RecordOutboxFailure(id, syncError string) error {
	_, err := db.Exec(`UPDATE outbox_events SET sync_attempts = sync_attempts + 1,
		last_sync_attempt = datetime('now','localtime'), sync_error = ?
		WHERE id = ?`, syncError, id)
	return err
}

// ResetFailedOutbox zeroes the attempt counter on failed events so the drainer
// picks them up afresh. Returns the number of events reset.
func (db *DB) ResetFailedOutbox(storeID string, minAttempts int) (int64, error) {
	res, err := db.Exec(`UPDATE outbox_events SET sync_attempts = 0, sync_error = NULL
		WHERE store_id = ? AND synced = 0 AND sync_attempts >= ?`, storeID, minAttempts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteSyncedOutboxBefore garbage-collects synced events older than the
// cutoff. Unsynced events are never touched; that is the core durability
// guarantee of the whole offline design.
func (db *DB) DeleteSyncedOutboxBefore(cutoff string) (int64, error) {
	res, err := db.Exec(`DELETE FROM outbox_events WHERE synced = 1 AND created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OutboxStatsFor reports outbox counts, optionally scoped to a store.
// failedAfter is the attempt count at which a pending event counts as failed.
func (db *DB) OutboxStatsFor(storeID string, failedAfter int) (*OutboxStats, error) {
	where := ""
	args := []interface{}{failedAfter}
	if storeID != "" {
		where = " WHERE store_id = ?"
		args = append(args, storeID)
	}
	st := &OutboxStats{}
	err := db.QueryRow(`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN synced = 0 AND sync_attempts >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN synced = 1 THEN 1 ELSE 0 END), 0)
		FROM outbox_events`+where, args...).
		Scan(&st.Total, &st.Pending, &st.Failed, &st.Synced)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// CountPendingOutboxByStore returns how many unsynced events remain for a store.
func (db *DB) CountPendingOutboxByStore(storeID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM outbox_events WHERE store_id = ? AND synced = 0`, storeID).Scan(&n)
	return n, err
}
