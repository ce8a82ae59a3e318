// Package identity derives and persists the stable per-device identifier that
// partitions all local data and attributes every outbox event to its origin.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"tilledge/store"

	"github.com/google/uuid"
)

// kvDeviceIDKey is the flat persisted location checked for backward
// compatibility alongside the structured device_config row.
const kvDeviceIDKey = "device_id"

// Provider resolves and caches the device identity.
type Provider struct {
	mu         sync.Mutex
	db         *store.DB
	host       HostInfo
	deviceName string
	cached     string
}

// NewProvider creates an identity provider backed by the given host capability.
func NewProvider(db *store.DB, host HostInfo, deviceName string) *Provider {
	if host == nil {
		host = NativeHost{}
	}
	return &Provider{db: db, host: host, deviceName: deviceName}
}

// DeviceID returns the stable device identifier, generating and persisting one
// on first call. It never fails: platform-identity errors degrade through the
// fallback generators.
func (p *Provider) DeviceID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached
	}

	// Two storage locations: flat key first, then the structured row.
	if id, err := p.db.GetKV(kvDeviceIDKey); err == nil && id != "" {
		p.cached = id
		p.persist(id)
		return id
	}
	if dc, err := p.db.GetDeviceConfig(); err == nil && dc != nil && dc.DeviceID != "" {
		p.cached = dc.DeviceID
		p.persist(dc.DeviceID)
		return dc.DeviceID
	}

	id := p.generate()
	p.cached = id
	p.persist(id)
	return id
}

func (p *Provider) persist(id string) {
	if err := p.db.SetKV(kvDeviceIDKey, id); err != nil {
		log.Printf("identity: persist kv: %v", err)
	}
	if err := p.db.UpsertDeviceConfig(id, p.deviceName); err != nil {
		log.Printf("identity: persist device config: %v", err)
	}
}

func (p *Provider) generate() (id string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("identity: host query panicked (%v), using fallback id", r)
			id = fallbackID()
		}
	}()

	switch p.host.Kind() {
	case KindWeb:
		return webID(p.host)
	default:
		return nativeID(p.host)
	}
}

func nativeID(host HostInfo) string {
	if hw, err := host.HardwareID(); err == nil && hw != "" {
		return "native_" + hw
	}
	h := hashAttributes(host.Attributes())
	if h == "" {
		return fallbackID()
	}
	return "native_" + h
}

// webID hashes browser-surface hints and suffixes a creation timestamp to
// reduce collision probability across identical hardware/browser combinations.
func webID(host HostInfo) string {
	h := hashAttributes(host.Attributes())
	if h == "" {
		return fallbackID()
	}
	return fmt.Sprintf("web_%s_%d", h, time.Now().Unix())
}

func fallbackID() string {
	return fmt.Sprintf("fallback_%s_%d", strings.ReplaceAll(uuid.New().String(), "-", "")[:12], time.Now().Unix())
}

func hashAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(attrs[k])
		b.WriteByte('|')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// SetStoreID associates the device with a store. Idempotent update.
func (p *Provider) SetStoreID(storeID string) error {
	p.DeviceID() // ensure the config row exists
	return p.db.SetDeviceStoreID(storeID)
}

// StoreID returns the store the device is assigned to, or "".
func (p *Provider) StoreID() (string, error) {
	dc, err := p.db.GetDeviceConfig()
	if err != nil {
		return "", err
	}
	if dc == nil {
		return "", nil
	}
	return dc.StoreID, nil
}

// UpdateLastOnlineAt stamps connectivity restoration; the sync drainer calls
// this as a liveness signal.
func (p *Provider) UpdateLastOnlineAt() error {
	p.DeviceID()
	return p.db.TouchLastOnline()
}
