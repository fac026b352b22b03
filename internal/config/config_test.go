package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("SOCKET_PORT")
	os.Unsetenv("DB_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "4000" {
		t.Errorf("Expected default port 4000, got %q", cfg.Port)
	}
	if cfg.DBPath != "./data/bitacora.db" {
		t.Errorf("Expected default db path, got %q", cfg.DBPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SOCKET_PORT", "9100")
	t.Setenv("DB_PATH", "/var/lib/relay/relay.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Expected port override, got %q", cfg.Port)
	}
	if cfg.DBPath != "/var/lib/relay/relay.db" {
		t.Errorf("Expected db path override, got %q", cfg.DBPath)
	}
}

func TestValidateRejectsBlankPort(t *testing.T) {
	t.Setenv("SOCKET_PORT", "   ")

	if _, err := Load(); err == nil {
		t.Errorf("Expected error for blank SOCKET_PORT")
	}
}
