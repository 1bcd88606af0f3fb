// Package config defines the on-disk configuration for wassupguard.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for wassupguard.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Reputation ReputationConfig `toml:"reputation"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Quarantine QuarantineConfig `toml:"quarantine"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
}

// ScannerConfig holds the scan policy.
type ScannerConfig struct {
	// WatchDirs are the directories observed for new files and swept on demand.
	WatchDirs []string `toml:"watch_dirs"`
	// AllowedExtensions limits scans to matching file types.
	AllowedExtensions []string `toml:"allowed_extensions"`
	// Workers bounds the number of files scanned concurrently.
	Workers int `toml:"workers"`
	// EventQueueSize bounds the watcher's pending-event channel.
	EventQueueSize int `toml:"event_queue_size"`
}

// ReputationConfig holds access to the external reputation service.
type ReputationConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	// SuspiciousThreshold is the suspicious-detection count above which a
	// clean-of-malicious report is still classified Suspicious.
	SuspiciousThreshold int `toml:"suspicious_threshold"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// RateLimitConfig holds the externally imposed request quotas.
type RateLimitConfig struct {
	MinIntervalSeconds int `toml:"min_interval_seconds"`
	PerDay             int `toml:"per_day"`
	PerMonth           int `toml:"per_month"`
}

// QuarantineConfig holds the isolated storage location.
type QuarantineConfig struct {
	Dir string `toml:"dir"`
}

// EncryptionConfig selects how quarantined content is neutralized on disk.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type EncryptionConfig struct {
	Type    string `toml:"type"`               // "age" (default) or "none"
	KeyPath string `toml:"key_path,omitempty"` // only used for type=age
}

// DatabaseConfig represents configuration for the durable store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// Default quota ceilings for the reputation service free tier.
const (
	DefaultMinIntervalSeconds = 15
	DefaultPerDay             = 500
	DefaultPerMonth           = 15500
)

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Scanner: ScannerConfig{
			AllowedExtensions: []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"},
			Workers:           4,
			EventQueueSize:    256,
		},
		Reputation: ReputationConfig{
			BaseURL:             "https://www.virustotal.com/api/v3",
			SuspiciousThreshold: 2,
			TimeoutSeconds:      30,
		},
		RateLimit: RateLimitConfig{
			MinIntervalSeconds: DefaultMinIntervalSeconds,
			PerDay:             DefaultPerDay,
			PerMonth:           DefaultPerMonth,
		},
		Quarantine: QuarantineConfig{
			Dir: filepath.Join(baseDir, "quarantine"),
		},
		Encryption: EncryptionConfig{
			Type:    "age",
			KeyPath: filepath.Join(baseDir, "keys", "quarantine.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
