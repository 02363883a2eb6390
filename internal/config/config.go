// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Chat modes.
const (
	ChatModeProxied = "proxied"
	ChatModeDirect  = "direct"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverBolt   = "bolt"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	GRPCAddr        string // optional gRPC health endpoint, "" disables it
	StoreDriver     string
	DBPath          string
	SiteConfigPath  string // "" uses the embedded default site content
	SessionTTL      time.Duration
	Chat            ChatConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
	Features        Features
}

// ChatConfig controls how chat prompts reach the completion service.
type ChatConfig struct {
	Mode            string
	WorkerURL       string
	ProjectID       string
	APIBaseURL      string
	APIKey          string
	Models          []string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	HistoryLimit    int
	RetryCeiling    int
	RetryBaseDelay  time.Duration
	RequestTimeout  time.Duration
}

// RateLimitConfig bounds chat submissions per visitor.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Features are the explicit capability flags for each page behavior.
type Features struct {
	Chat      bool `json:"chat"`
	Inventory bool `json:"inventory"`
	Feedback  bool `json:"feedback"`
	Takeaway  bool `json:"takeaway"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	mode := strings.ToLower(getEnv("CHAT_MODE", ChatModeProxied))
	defaultModels := "gemma-3-4b-it"
	if mode == ChatModeDirect {
		defaultModels = "gemini-2.5-flash,gemini-2.5-flash-lite,gemini-2.0-flash"
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		GRPCAddr:       getEnv("GRPC_ADDR", ""),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSQLite)),
		DBPath:         getEnv("DB_PATH", "./data/kadak.db"),
		SiteConfigPath: getEnv("SITE_CONFIG", ""),
		SessionTTL:     getEnvDuration("CHAT_SESSION_TTL", 60*time.Minute),
		Chat: ChatConfig{
			Mode:            mode,
			WorkerURL:       getEnv("CHAT_WORKER_URL", "https://withered-base-1bc3.cogniq-yatendra.workers.dev"),
			ProjectID:       getEnv("CHAT_PROJECT_ID", "TEA_WEBSITE"),
			APIBaseURL:      getEnv("GEMINI_API_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			Models:          getEnvList("CHAT_MODELS", defaultModels),
			Temperature:     getEnvFloat("CHAT_TEMPERATURE", 0.7),
			TopP:            getEnvFloat("CHAT_TOP_P", 0.95),
			TopK:            getEnvInt("CHAT_TOP_K", 64),
			MaxOutputTokens: getEnvInt("CHAT_MAX_OUTPUT_TOKENS", 512),
			HistoryLimit:    getEnvInt("CHAT_HISTORY_LIMIT", 10),
			RetryCeiling:    getEnvInt("CHAT_RETRY_CEILING", 3),
			RetryBaseDelay:  getEnvDuration("CHAT_RETRY_BASE_DELAY", time.Second),
			RequestTimeout:  getEnvDuration("CHAT_REQUEST_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
		Features: Features{
			Chat:      getEnvBool("FEATURE_CHAT", true),
			Inventory: getEnvBool("FEATURE_INVENTORY", true),
			Feedback:  getEnvBool("FEATURE_FEEDBACK", true),
			Takeaway:  getEnvBool("FEATURE_TAKEAWAY", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
//
//nolint:gocyclo // Flat field checks read better than a table here.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.StoreDriver != StoreDriverSQLite && c.StoreDriver != StoreDriverBolt {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverSQLite, StoreDriverBolt, c.StoreDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("CHAT_SESSION_TTL must be > 0")
	}
	if c.Features.Chat {
		if err := c.Chat.validate(); err != nil {
			return err
		}
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

func (c ChatConfig) validate() error {
	switch c.Mode {
	case ChatModeProxied:
		if c.WorkerURL == "" {
			return fmt.Errorf("CHAT_WORKER_URL cannot be empty in proxied mode")
		}
	case ChatModeDirect:
		if c.APIBaseURL == "" {
			return fmt.Errorf("GEMINI_API_BASE_URL cannot be empty in direct mode")
		}
	default:
		return fmt.Errorf("CHAT_MODE must be %q or %q, got %q", ChatModeProxied, ChatModeDirect, c.Mode)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("CHAT_MODELS must list at least one model")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be >= 0")
	}
	if c.RetryCeiling <= 0 {
		return fmt.Errorf("CHAT_RETRY_CEILING must be > 0")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("CHAT_RETRY_BASE_DELAY must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
