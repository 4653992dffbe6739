package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithEnvToken(t *testing.T) {
	t.Setenv("PICORADAR_AUTH_TOKEN", "from-env")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != 11451 {
		t.Fatalf("ServerPort = %d, want default 11451", cfg.ServerPort)
	}
	if cfg.AuthToken != "from-env" {
		t.Fatalf("AuthToken = %q, want from-env", cfg.AuthToken)
	}
	if cfg.SessionQueueCapacity != 16 {
		t.Fatalf("SessionQueueCapacity = %d, want default 16", cfg.SessionQueueCapacity)
	}
}

func TestLoadFailsWithoutToken(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when no auth token is configured")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"server": {"port": 9999}, "auth": {"token": "file-token"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != 9999 {
		t.Fatalf("ServerPort = %d, want 9999", cfg.ServerPort)
	}
	if cfg.AuthToken != "file-token" {
		t.Fatalf("AuthToken = %q, want file-token", cfg.AuthToken)
	}
}

func TestEnvPortOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"server": {"port": 9999}, "auth": {"token": "file-token"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("PICORADAR_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != 7777 {
		t.Fatalf("ServerPort = %d, want env override 7777", cfg.ServerPort)
	}
}
