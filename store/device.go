package store

import "database/sql"

// DeviceConfig is the single row describing this device.
type DeviceConfig struct {
	DeviceID     string  `json:"device_id"`
	StoreID      string  `json:"store_id"`
	DeviceName   string  `json:"device_name"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	LastOnlineAt *string `json:"last_online_at"`
}

// GetKV reads a flat key/value entry. Returns ("", nil) when absent.
func (db *DB) GetKV(key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM local_kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SetKV writes a flat key/value entry with overwrite semantics.
func (db *DB) SetKV(key, value string) error {
	_, err := db.Exec(`INSERT INTO local_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetDeviceConfig returns the device config row, or nil if none exists yet.
func (db *DB) GetDeviceConfig() (*DeviceConfig, error) {
	dc := &DeviceConfig{}
	var lastOnline sql.NullString
	err := db.QueryRow(`SELECT device_id, store_id, device_name, created_at, updated_at, last_online_at
		FROM device_config WHERE id = 1`).
		Scan(&dc.DeviceID, &dc.StoreID, &dc.DeviceName, &dc.CreatedAt, &dc.UpdatedAt, &lastOnline)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastOnline.Valid {
		dc.LastOnlineAt = &lastOnline.String
	}
	return dc, nil
}

// UpsertDeviceConfig creates the device config row or refreshes its identity.
func (db *DB) UpsertDeviceConfig(deviceID, deviceName string) error {
	_, err := db.Exec(`INSERT INTO device_config (id, device_id, device_name) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET device_id = excluded.device_id,
			device_name = excluded.device_name,
			updated_at = datetime('now','localtime')`, deviceID, deviceName)
	return err
}

// SetDeviceStoreID associates the device with a store.
func (db *DB) SetDeviceStoreID(storeID string) error {
	_, err := db.Exec(`UPDATE device_config SET store_id = ?, updated_at = datetime('now','localtime') WHERE id = 1`, storeID)
	return err
}

// TouchLastOnline stamps the last time the device was known to be online.
func (db *DB) TouchLastOnline() error {
	_, err := db.Exec(`UPDATE device_config SET last_online_at = datetime('now','localtime'),
		updated_at = datetime('now','localtime') WHERE id = 1`)
	return err
}
