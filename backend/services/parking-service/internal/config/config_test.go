package config

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	slots, err := cfg.SensorSlots()
	if err != nil {
		t.Fatalf("sensor slots: %v", err)
	}
	if len(slots) != 2 || slots[0].Name != "A1" || slots[0].SensorKey != "slot1_occupied" {
		t.Fatalf("unexpected sensor slots: %+v", slots)
	}

	static, err := cfg.StaticSlots()
	if err != nil {
		t.Fatalf("static slots: %v", err)
	}
	if len(static) != 6 || !static[1].Occupied || static[0].Occupied {
		t.Fatalf("unexpected static slots: %+v", static)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PARKING_SENSOR_SLOTS", "P1=s1,P2=s2,P3=s3")
	t.Setenv("PARKING_LAYOUT_STATIC", "")
	t.Setenv("PARKING_BILLING_RATE_PER_MINUTE", "2.5")
	t.Setenv("PARKING_RECONCILE_MODE", ModeOnRead)
	t.Setenv("PARKING_SENSOR_TIMEOUT_MS", "750")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	slots, _ := cfg.SensorSlots()
	if len(slots) != 3 {
		t.Fatalf("expected 3 sensor slots, got %d", len(slots))
	}
	if cfg.Billing.RatePerMinute != 2.5 {
		t.Fatalf("unexpected rate %v", cfg.Billing.RatePerMinute)
	}
	if cfg.Reconcile.Mode != ModeOnRead {
		t.Fatalf("unexpected mode %q", cfg.Reconcile.Mode)
	}
	if cfg.SensorTimeout() != 750*time.Millisecond {
		t.Fatalf("unexpected timeout %v", cfg.SensorTimeout())
	}
}

func TestLoadDatabasePoolFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PARKING_STORAGE_DRIVER", StoragePostgres)
	t.Setenv("PARKING_POSTGRES_DSN", "postgres://parking@localhost:5432/parking")
	t.Setenv("PARKING_POSTGRES_MAX_OPEN_CONNS", "25")
	t.Setenv("PARKING_POSTGRES_MAX_IDLE_CONNS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 7 {
		t.Fatalf("unexpected pool sizes %+v", cfg.Database)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"postgres without dsn": func(c *Config) { c.Storage.Driver = StoragePostgres },
		"negative pool size": func(c *Config) {
			c.Storage.Driver = StoragePostgres
			c.Database.DSN = "postgres://localhost/parking"
			c.Database.MaxOpenConns = -1
		},
		"mongo without uri":    func(c *Config) { c.Storage.Driver = StorageMongo },
		"unknown driver":       func(c *Config) { c.Storage.Driver = "bolt" },
		"unknown mode":         func(c *Config) { c.Reconcile.Mode = "cron" },
		"no sensor slots":      func(c *Config) { c.Sensor.Slots = nil },
		"malformed slot":       func(c *Config) { c.Sensor.Slots = []string{"A1"} },
		"bad static state":     func(c *Config) { c.Layout.Static = []string{"B1=maybe"} },
		"duplicate name":       func(c *Config) { c.Layout.Static = []string{"A1=free"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	if cfg.SensorTimeout() != time.Second {
		t.Fatalf("unexpected sensor timeout fallback %v", cfg.SensorTimeout())
	}
	if cfg.ReconcileInterval() != 2*time.Second {
		t.Fatalf("unexpected interval fallback %v", cfg.ReconcileInterval())
	}
	if cfg.HTTPAddress() != ":5000" {
		t.Fatalf("unexpected address %q", cfg.HTTPAddress())
	}
}
