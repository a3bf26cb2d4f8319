package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "smartparking/backend/libs/config"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

// Reconcile trigger modes.
const (
	ModeTicker = "ticker"
	ModeOnRead = "on-read"
)

// Config defines parking service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Layout    LayoutConfig    `yaml:"layout"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Billing   BillingConfig   `yaml:"billing"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

type HTTPConfig struct {
	Port string `yaml:"port" env:"PARKING_HTTP_PORT"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"PARKING_LOG_LEVEL"`
	Encoding string `yaml:"encoding" env:"PARKING_LOG_ENCODING"`
}

// SensorConfig points at the occupancy device. Slots are NAME=payloadKey pairs.
type SensorConfig struct {
	URL           string   `yaml:"url" env:"PARKING_SENSOR_URL"`
	StatusPath    string   `yaml:"statusPath" env:"PARKING_SENSOR_STATUS_PATH"`
	TimeoutMillis int      `yaml:"timeoutMillis" env:"PARKING_SENSOR_TIMEOUT_MS"`
	Slots         []string `yaml:"slots" env:"PARKING_SENSOR_SLOTS"`
}

// LayoutConfig lists fixed display slots as NAME=free|occupied pairs.
type LayoutConfig struct {
	Static []string `yaml:"static" env:"PARKING_LAYOUT_STATIC"`
}

type ReconcileConfig struct {
	Mode               string `yaml:"mode" env:"PARKING_RECONCILE_MODE"`
	IntervalMillis     int    `yaml:"intervalMillis" env:"PARKING_RECONCILE_INTERVAL_MS"`
	CancelStaleOnStart bool   `yaml:"cancelStaleOnStart" env:"PARKING_RECONCILE_CANCEL_STALE"`
}

type BillingConfig struct {
	RatePerMinute float64 `yaml:"ratePerMinute" env:"PARKING_BILLING_RATE_PER_MINUTE"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"PARKING_STORAGE_DRIVER"`
}

// DatabaseConfig configures Postgres. Zero pool sizes fall back to the db package defaults.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"PARKING_POSTGRES_DSN"`
	MaxOpenConns int    `yaml:"maxOpenConns" env:"PARKING_POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" env:"PARKING_POSTGRES_MAX_IDLE_CONNS"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"PARKING_MONGO_URI"`
	Database string `yaml:"database" env:"PARKING_MONGO_DATABASE"`
}

// RedisConfig enables the open-session cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"PARKING_REDIS_ADDR"`
	Password string `yaml:"password" env:"PARKING_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"PARKING_REDIS_DB"`
	TTL      int    `yaml:"ttlSeconds" env:"PARKING_REDIS_TTL"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"serviceName" env:"OTEL_SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlpEndpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type WebSocketConfig struct {
	PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"PARKING_WS_PING_INTERVAL"`
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"PARKING_WS_WRITE_TIMEOUT"`
}

// SlotBinding maps a slot name to the key the sensor device reports it under.
type SlotBinding struct {
	Name      string
	SensorKey string
}

// StaticSlot is a display-only slot with fixed occupancy.
type StaticSlot struct {
	Name     string
	Occupied bool
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: "5000"},
		Log:  LogConfig{Level: "info", Encoding: "json"},
		Sensor: SensorConfig{
			URL:           "http://192.168.1.105",
			StatusPath:    "/api/status",
			TimeoutMillis: 1000,
			Slots:         []string{"A1=slot1_occupied", "A2=slot2_occupied"},
		},
		Layout: LayoutConfig{
			Static: []string{"B1=free", "B2=occupied", "C1=free", "C2=free", "D1=occupied", "D2=free"},
		},
		Reconcile: ReconcileConfig{
			Mode:               ModeTicker,
			IntervalMillis:     2000,
			CancelStaleOnStart: true,
		},
		Billing:   BillingConfig{RatePerMinute: 15},
		Storage:   StorageConfig{Driver: StorageMemory},
		Database:  DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 5},
		Mongo:     MongoConfig{Database: "smart_parking"},
		Redis:     RedisConfig{TTL: 86400},
		Telemetry: TelemetryConfig{ServiceName: "parking-service"},
		WebSocket: WebSocketConfig{PingIntervalSeconds: 30, WriteTimeoutSeconds: 10},
	}
}

// Load reads configuration via shared helper and validates it.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required for postgres storage")
		}
		if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
			return errors.New("config: database pool sizes must not be negative")
		}
	case StorageMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			return errors.New("config: mongo uri required for mongo storage")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Reconcile.Mode {
	case ModeTicker, ModeOnRead:
	default:
		return fmt.Errorf("config: unknown reconcile mode %q", c.Reconcile.Mode)
	}

	sensorSlots, err := c.SensorSlots()
	if err != nil {
		return err
	}
	if len(sensorSlots) == 0 {
		return errors.New("config: at least one sensor slot required")
	}
	staticSlots, err := c.StaticSlots()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(sensorSlots)+len(staticSlots))
	for _, s := range sensorSlots {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("config: duplicate slot %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	for _, s := range staticSlots {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("config: duplicate slot %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// SensorSlots parses NAME=key pairs in configured order.
func (c *Config) SensorSlots() ([]SlotBinding, error) {
	bindings := make([]SlotBinding, 0, len(c.Sensor.Slots))
	for _, raw := range c.Sensor.Slots {
		name, key, err := splitPair(raw)
		if err != nil {
			return nil, fmt.Errorf("config: sensor slot: %w", err)
		}
		bindings = append(bindings, SlotBinding{Name: name, SensorKey: key})
	}
	return bindings, nil
}

// StaticSlots parses NAME=free|occupied pairs in configured order.
func (c *Config) StaticSlots() ([]StaticSlot, error) {
	slots := make([]StaticSlot, 0, len(c.Layout.Static))
	for _, raw := range c.Layout.Static {
		name, state, err := splitPair(raw)
		if err != nil {
			return nil, fmt.Errorf("config: static slot: %w", err)
		}
		switch strings.ToLower(state) {
		case "occupied":
			slots = append(slots, StaticSlot{Name: name, Occupied: true})
		case "free":
			slots = append(slots, StaticSlot{Name: name})
		default:
			return nil, fmt.Errorf("config: static slot %q: state must be free or occupied", name)
		}
	}
	return slots, nil
}

func splitPair(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if !ok || name == "" || value == "" {
		return "", "", fmt.Errorf("malformed entry %q, want NAME=VALUE", raw)
	}
	return name, value, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "5000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SensorTimeout bounds a single device poll.
func (c *Config) SensorTimeout() time.Duration {
	if c.Sensor.TimeoutMillis <= 0 {
		return time.Second
	}
	return time.Duration(c.Sensor.TimeoutMillis) * time.Millisecond
}

// ReconcileInterval returns the ticker period.
func (c *Config) ReconcileInterval() time.Duration {
	if c.Reconcile.IntervalMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Reconcile.IntervalMillis) * time.Millisecond
}

// ActiveSessionTTL returns redis ttl as duration.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	if c.WebSocket.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	if c.WebSocket.WriteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}
