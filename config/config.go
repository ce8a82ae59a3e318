package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	StoreID      string `yaml:"store_id"`
	DeviceName   string `yaml:"device_name"`
	DatabasePath string `yaml:"database_path"`

	Web    WebConfig    `yaml:"web"`
	Remote RemoteConfig `yaml:"remote"`
	Sync   SyncConfig   `yaml:"sync"`
	Cache  CacheConfig  `yaml:"cache"`
}

// WebConfig defines the status console settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// RemoteConfig defines the system of record used for reference-data pulls.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SyncConfig defines the outbound sync transport.
type SyncConfig struct {
	Backend           string        `yaml:"backend"` // "http", "mqtt" or "kafka"
	HTTP              HTTPConfig    `yaml:"http"`
	MQTT              MQTTConfig    `yaml:"mqtt"`
	Kafka             KafkaConfig   `yaml:"kafka"`
	EventsTopic       string        `yaml:"events_topic"`
	DrainInterval     time.Duration `yaml:"drain_interval"`
	DrainBatchSize    int           `yaml:"drain_batch_size"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// HTTPConfig defines the HTTPS sync endpoint.
type HTTPConfig struct {
	EndpointURL string        `yaml:"endpoint_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// CacheConfig defines reference-data staleness and outbox retention.
type CacheConfig struct {
	StaleAfter      time.Duration `yaml:"stale_after"`
	OutboxKeepDays  int           `yaml:"outbox_keep_days"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		DeviceName:   "register-1",
		DatabasePath: "tilledge.db",
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Remote: RemoteConfig{
			BaseURL: "https://localhost:8443/api",
			Timeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			Backend:           "http",
			EventsTopic:       "tilledge/events",
			DrainInterval:     5 * time.Second,
			DrainBatchSize:    50,
			HeartbeatInterval: 60 * time.Second,
			HTTP: HTTPConfig{
				EndpointURL: "https://localhost:8443/api/sync/events",
				Timeout:     15 * time.Second,
			},
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
		},
		Cache: CacheConfig{
			StaleAfter:      24 * time.Hour,
			OutboxKeepDays:  30,
			CleanupInterval: 6 * time.Hour,
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
