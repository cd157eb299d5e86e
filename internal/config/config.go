// Package config loads client settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything the MedAI client needs to boot.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Retry   RetryConfig   `yaml:"retry"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig pins the backend contract: base URL, endpoint paths, the
// multipart field name, and upload limits.
type APIConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	ProcessPath    string        `yaml:"processPath"`
	LoginPath      string        `yaml:"loginPath"`
	RegisterPath   string        `yaml:"registerPath"`
	MePath         string        `yaml:"mePath"`
	UploadField    string        `yaml:"uploadField"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes"`
	Timeout        time.Duration `yaml:"timeout"`
}

// RetryConfig controls the envelope's retry policy and the local cooldown
// between analyses.
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxJitter   time.Duration `yaml:"maxJitter"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// StorageConfig locates local state: the persisted session and the report
// history.
type StorageConfig struct {
	SessionPath    string `yaml:"sessionPath"`
	HistoryPath    string `yaml:"historyPath"`
	HistoryEntries int    `yaml:"historyEntries"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls the optional Prometheus listener for long-running
// invocations. Empty address disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MEDAI_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := expandStoragePaths(&cfg.Storage); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			ProcessPath:    "/diagnostics/process",
			LoginPath:      "/auth/login",
			RegisterPath:   "/auth/register",
			MePath:         "/auth/me",
			UploadField:    "image",
			MaxUploadBytes: 8 << 20,
			Timeout:        30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxJitter:   300 * time.Millisecond,
			Cooldown:    2 * time.Second,
		},
		Storage: StorageConfig{
			SessionPath:    "~/.config/medai/session.json",
			HistoryPath:    "~/.config/medai/history.json",
			HistoryEntries: 50,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEDAI_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("MEDAI_API_PROCESS_PATH"); v != "" {
		cfg.API.ProcessPath = v
	}
	if v := os.Getenv("MEDAI_API_LOGIN_PATH"); v != "" {
		cfg.API.LoginPath = v
	}
	if v := os.Getenv("MEDAI_API_REGISTER_PATH"); v != "" {
		cfg.API.RegisterPath = v
	}
	if v := os.Getenv("MEDAI_API_ME_PATH"); v != "" {
		cfg.API.MePath = v
	}
	if v := os.Getenv("MEDAI_API_UPLOAD_FIELD"); v != "" {
		cfg.API.UploadField = v
	}
	if v := os.Getenv("MEDAI_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("MEDAI_API_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.API.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MEDAI_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("MEDAI_RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.BaseDelay = d
		}
	}
	if v := os.Getenv("MEDAI_RETRY_MAX_JITTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.MaxJitter = d
		}
	}
	if v := os.Getenv("MEDAI_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.Cooldown = d
		}
	}
	if v := os.Getenv("MEDAI_SESSION_PATH"); v != "" {
		cfg.Storage.SessionPath = v
	}
	if v := os.Getenv("MEDAI_HISTORY_PATH"); v != "" {
		cfg.Storage.HistoryPath = v
	}
	if v := os.Getenv("MEDAI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MEDAI_LOG_FORMAT"); strings.EqualFold(v, "json") {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MEDAI_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
}

func expandStoragePaths(storage *StorageConfig) error {
	var err error
	if storage.SessionPath, err = expandPath(storage.SessionPath); err != nil {
		return fmt.Errorf("session path: %w", err)
	}
	if storage.HistoryPath, err = expandPath(storage.HistoryPath); err != nil {
		return fmt.Errorf("history path: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
