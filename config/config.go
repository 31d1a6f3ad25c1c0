package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

const DefaultAPIBaseURL = "https://www.alphavantage.co"

// Config holds every runtime setting. The API key is read from the
// environment only and never written to the config file.
type Config struct {
	DataDir      string `json:"data_dir"`
	DBPath       string `json:"db_path"`
	KeywordsFile string `json:"keywords_file"`

	APIKey             string `json:"-"`
	APIBaseURL         string `json:"api_base_url"`
	RequestTimeoutSecs int    `json:"request_timeout_secs"`
	MaxRetries         int    `json:"max_retries"`
	RetryBaseDelayMs   int    `json:"retry_base_delay_ms"`
	MaxConcurrentCalls int    `json:"max_concurrent_calls"`

	ListenAddr    string `json:"listen_addr"`
	LogLevel      string `json:"log_level"`
	LogFile       string `json:"log_file"`
	Debug         bool   `json:"debug"`
	RecordHistory bool   `json:"record_history"`
}

// DefaultConfig returns defaults rooted at ./data with .env and environment
// overrides applied.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(filepath.Join(currentDir, "data"))

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

// DefaultConfigWithRoot returns plain defaults with all files under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		DataDir: root,
		DBPath:  filepath.Join(root, "history.db"),

		APIBaseURL:         DefaultAPIBaseURL,
		RequestTimeoutSecs: 15,
		MaxRetries:         2,
		RetryBaseDelayMs:   500,
		MaxConcurrentCalls: 4,

		ListenAddr:    "127.0.0.1:8080",
		LogLevel:      "info",
		RecordHistory: true,
	}
}

// ApplyEnv loads .env and overrides fields from the environment.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	c.loadFromEnv()
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("ALPHA_VANTAGE_API_KEY"); val != "" {
		c.APIKey = val
	}
	if val := os.Getenv("AV_API"); val != "" {
		c.APIKey = val
	}
	if val := os.Getenv("ALPHA_VANTAGE_BASE_URL"); val != "" {
		c.APIBaseURL = val
	}

	if val := os.Getenv("STOCKBOT_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("STOCKBOT_DB_PATH"); val != "" {
		c.DBPath = val
	}
	if val := os.Getenv("KEYWORDS_FILE"); val != "" {
		c.KeywordsFile = val
	}

	if val := os.Getenv("STOCKBOT_REQUEST_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.RequestTimeoutSecs = v
		}
	}
	if val := os.Getenv("STOCKBOT_MAX_RETRIES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxRetries = v
		}
	}
	if val := os.Getenv("STOCKBOT_MAX_CONCURRENT_CALLS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxConcurrentCalls = v
		}
	}

	if val := os.Getenv("STOCKBOT_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := os.Getenv("STOCKBOT_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("STOCKBOT_LOG_FILE"); val != "" {
		c.LogFile = val
	}
	if val := os.Getenv("STOCKBOT_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("STOCKBOT_RECORD_HISTORY"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.RecordHistory = enabled
		}
	}
}

// Validate checks the settings that can live in the config file.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_base_url %q is not an absolute URL", c.APIBaseURL)
	}
	if c.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("request_timeout_secs must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.RetryBaseDelayMs < 0 {
		return fmt.Errorf("retry_base_delay_ms must not be negative")
	}
	if c.MaxConcurrentCalls <= 0 {
		return fmt.Errorf("max_concurrent_calls must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// RequireAPIKey fails when no market data API key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("no Alpha Vantage API key: set AV_API or ALPHA_VANTAGE_API_KEY")
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.DBPath != "" {
		dirs = append(dirs, filepath.Dir(c.DBPath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
