package config

// RetryConfig controls retries of idempotent API reads.
// MaxRetries of 0 disables retrying.
type RetryConfig struct {
	MaxRetries        int `json:"max_retries,omitempty"`
	InitialIntervalMs int `json:"initial_interval_ms,omitempty"`
	MaxIntervalMs     int `json:"max_interval_ms,omitempty"`
}

// BreakerConfig controls the circuit breaker in front of the backend.
type BreakerConfig struct {
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"` // Trip after this many failures in a row
	OpenSeconds         int `json:"open_seconds,omitempty"`         // How long the circuit stays open
}

// APIConfig describes how to reach the execution backend.
type APIConfig struct {
	BaseURL        string        `json:"base_url,omitempty"`
	TimeoutSeconds int           `json:"timeout_seconds,omitempty"`
	Retry          RetryConfig   `json:"retry"`
	Breaker        BreakerConfig `json:"breaker"`
}

// EncryptionConfig holds the public key used to seal API keys before they leave
// the machine. PublicKeyPEM wins over PublicKeyFile when both are set.
type EncryptionConfig struct {
	PublicKeyPEM      string `json:"public_key_pem,omitempty"`
	PublicKeyFile     string `json:"public_key_file,omitempty"`
	RequireEncryption bool   `json:"require_encryption,omitempty"` // Refuse to send plaintext keys
}

// StorageConfig locates the local SQLite file (token, sealed key, history).
type StorageConfig struct {
	Path string `json:"path,omitempty"`
}

// LogConfig configures the shared logger.
type LogConfig struct {
	Level string `json:"level,omitempty"` // DEBUG, INFO, WARN, ERROR
	File  string `json:"file,omitempty"`  // Used by the dashboard so logs don't hit the screen
}

// PollConfig controls how often a running task is re-fetched.
type PollConfig struct {
	InitialIntervalMs int `json:"initial_interval_ms,omitempty"`
	MaxIntervalMs     int `json:"max_interval_ms,omitempty"`
}

// UIConfig holds dashboard timings.
type UIConfig struct {
	BannerSeconds int        `json:"banner_seconds,omitempty"`
	Poll          PollConfig `json:"poll"`
}

// DashboardConfig is the top-level configuration.
type DashboardConfig struct {
	API        APIConfig        `json:"api"`
	Encryption EncryptionConfig `json:"encryption"`
	Storage    StorageConfig    `json:"storage"`
	Log        LogConfig        `json:"log"`
	UI         UIConfig         `json:"ui"`
}
