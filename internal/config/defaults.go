package config

import (
	"os"
	"path/filepath"
)

// DefaultBaseURL is the backend the dashboard talks to when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *DashboardConfig {
	dir := defaultDataDir()
	return &DashboardConfig{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: 30,
			Retry: RetryConfig{
				MaxRetries:        3,
				InitialIntervalMs: 200,
				MaxIntervalMs:     2000,
			},
			Breaker: BreakerConfig{
				ConsecutiveFailures: 5,
				OpenSeconds:         30,
			},
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "atsg.db"),
		},
		Log: LogConfig{
			Level: "INFO",
			File:  filepath.Join(dir, "atsg.log"),
		},
		UI: UIConfig{
			BannerSeconds: 3,
			Poll: PollConfig{
				InitialIntervalMs: 1000,
				MaxIntervalMs:     10000,
			},
		},
	}
}

// defaultDataDir is ~/.atsg, or .atsg when the home directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".atsg"
	}
	return filepath.Join(home, ".atsg")
}
