package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://backend.test/api/v1"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded DashboardConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}

	if loaded.API.BaseURL != "http://backend.test/api/v1" {
		t.Errorf("Expected base URL to be saved, got '%s'", loaded.API.BaseURL)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	if err := Save(&DashboardConfig{}, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.API.TimeoutSeconds = 5
	cfg.API.Retry.MaxRetries = 7
	cfg.Encryption.PublicKeyFile = "/etc/atsg/public.pem"
	cfg.Encryption.RequireEncryption = true
	cfg.UI.BannerSeconds = 9

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.API.TimeoutSeconds != 5 {
		t.Errorf("timeout mismatch: got %d", loaded.API.TimeoutSeconds)
	}
	if loaded.API.Retry.MaxRetries != 7 {
		t.Errorf("max retries mismatch: got %d", loaded.API.Retry.MaxRetries)
	}
	if loaded.Encryption.PublicKeyFile != "/etc/atsg/public.pem" {
		t.Errorf("public key file mismatch: got '%s'", loaded.Encryption.PublicKeyFile)
	}
	if !loaded.Encryption.RequireEncryption {
		t.Error("require_encryption was not persisted")
	}
	if loaded.UI.BannerSeconds != 9 {
		t.Errorf("banner seconds mismatch: got %d", loaded.UI.BannerSeconds)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	first := &DashboardConfig{API: APIConfig{BaseURL: "http://first"}}
	if err := Save(first, path); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	second := &DashboardConfig{API: APIConfig{BaseURL: "http://second"}}
	if err := Save(second, path); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded DashboardConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if loaded.API.BaseURL != "http://second" {
		t.Errorf("Expected 'http://second', got '%s'", loaded.API.BaseURL)
	}
}
