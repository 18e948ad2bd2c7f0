package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rigado/gattc"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gattc.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("can't write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
connect_timeout: 10s
queue_depth: 8
auto_bond: true
platform:
  api_level: 26
  manufacturer: oneplus
signed_write_key: "2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b"
profile_cache: /tmp/profiles.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ConnectTimeout != Duration(10*time.Second) {
		t.Errorf("connect timeout %v, want 10s", time.Duration(cfg.ConnectTimeout))
	}
	if cfg.QueueDepth != 8 {
		t.Errorf("queue depth %d, want 8", cfg.QueueDepth)
	}
	if !cfg.AutoBond {
		t.Error("auto_bond not picked up")
	}
	if cfg.Platform.ApiLevel != 26 || cfg.Platform.Manufacturer != "oneplus" {
		t.Errorf("platform %+v", cfg.Platform)
	}

	// Unset fields keep their defaults.
	if cfg.MaxAttempts != 3 {
		t.Errorf("max attempts %d, want default 3", cfg.MaxAttempts)
	}
	if cfg.BondSettleDelay != Duration(time.Second) {
		t.Errorf("bond settle delay %v, want default 1s", time.Duration(cfg.BondSettleDelay))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "queue_depth: [not a number\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.SignedWriteKey = "2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b"
	cfg.ProfileCache = "profiles.json"

	var cachePath string
	opts, err := cfg.Options(func(path string) gattc.GattCache {
		cachePath = path
		return nil
	})
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("no options produced")
	}
	if cachePath != "profiles.json" {
		t.Fatalf("cache factory got %q", cachePath)
	}
}

func TestOptionsBadKey(t *testing.T) {
	cfg := Default()
	cfg.SignedWriteKey = "not hex"

	if _, err := cfg.Options(nil); err == nil {
		t.Fatal("bad signed write key accepted")
	}
}
