package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type nested struct {
	Port    string  `yaml:"port"`
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate" env:"TEST_RATE"`
}

type sample struct {
	Name  string   `yaml:"name" env:"TEST_NAME"`
	Slots []string `yaml:"slots" env:"TEST_SLOTS"`
	HTTP  nested   `yaml:"http"`
	Skip  string   `yaml:"skip" env:"-"`
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("name: from-file\nslots: [A1, A2]\nhttp:\n  port: \"9000\"\n  rate: 2.5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TEST_NAME", "from-env")
	t.Setenv("HTTP_ENABLED", "true")

	var cfg sample
	if err := LoadConfigFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Name != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.Name)
	}
	if !reflect.DeepEqual(cfg.Slots, []string{"A1", "A2"}) {
		t.Fatalf("unexpected slots from file: %v", cfg.Slots)
	}
	if cfg.HTTP.Port != "9000" {
		t.Fatalf("expected port from file, got %q", cfg.HTTP.Port)
	}
	if !cfg.HTTP.Enabled {
		t.Fatal("expected nested env key HTTP_ENABLED to apply")
	}
	if cfg.HTTP.Rate != 2.5 {
		t.Fatalf("expected rate 2.5, got %v", cfg.HTTP.Rate)
	}
}

func TestLoadConfigSliceFromEnv(t *testing.T) {
	t.Setenv("TEST_SLOTS", " A1=slot1 , ,A2=slot2")
	t.Setenv("SKIP", "ignored")

	var cfg sample
	if err := LoadConfigFile("", &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg.Slots, []string{"A1=slot1", "A2=slot2"}) {
		t.Fatalf("unexpected slots: %v", cfg.Slots)
	}
	if cfg.Skip != "" {
		t.Fatalf("expected skipped field to stay empty, got %q", cfg.Skip)
	}
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	var cfg sample
	if err := LoadConfigFile("", cfg); err == nil {
		t.Fatal("expected error for non-pointer target")
	}

	t.Setenv("TEST_RATE", "not-a-number")
	if err := LoadConfigFile("", &cfg); err == nil {
		t.Fatal("expected parse error for invalid float")
	}
}
