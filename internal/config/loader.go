package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvBaseURL       = "ATSG_API_BASE_URL"
	EnvPublicKey     = "ATSG_PUBLIC_KEY"
	EnvPublicKeyFile = "ATSG_PUBLIC_KEY_FILE"
	EnvStorePath     = "ATSG_STORE_PATH"
	EnvLogLevel      = "LOG_LEVEL"
)

// Load reads and merges configuration from global and project paths, then applies
// environment overrides (a .env file in the working directory is honoured).
// Order of precedence (highest to lowest): environment, project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*DashboardConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.atsg/config.json
// Project: .atsg/config.json (relative to cwd)
func LoadDefault() (*DashboardConfig, error) {
	global, project, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(global, project)
}

// DefaultPaths returns the conventional global and project config paths.
func DefaultPaths() (string, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".atsg", "config.json"), filepath.Join(".atsg", "config.json"), nil
}

// mergeConfigFile reads a JSON config file and merges its non-zero fields into base.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *DashboardConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded DashboardConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := mergo.Merge(base, loaded, mergo.WithOverride); err != nil {
		return fmt.Errorf("merging %s: %w", path, err)
	}

	// mergo skips zero values, so an explicit false is applied by hand.
	var flags explicitFlags
	if err := json.Unmarshal(data, &flags); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if v := flags.Encryption.RequireEncryption; v != nil {
		base.Encryption.RequireEncryption = *v
	}

	return nil
}

// explicitFlags records which booleans a config file actually sets.
type explicitFlags struct {
	Encryption struct {
		RequireEncryption *bool `json:"require_encryption"`
	} `json:"encryption"`
}

func applyEnv(cfg *DashboardConfig) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvPublicKey); v != "" {
		cfg.Encryption.PublicKeyPEM = v
	}
	if v := os.Getenv(EnvPublicKeyFile); v != "" {
		cfg.Encryption.PublicKeyFile = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// PublicKey returns the configured PEM public key, reading PublicKeyFile if no
// inline PEM is set. An empty string means no key is configured.
func (c *DashboardConfig) PublicKey() (string, error) {
	if c.Encryption.PublicKeyPEM != "" {
		return c.Encryption.PublicKeyPEM, nil
	}
	if c.Encryption.PublicKeyFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Encryption.PublicKeyFile)
	if err != nil {
		return "", fmt.Errorf("reading public key %s: %w", c.Encryption.PublicKeyFile, err)
	}
	return string(data), nil
}
