package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/carlistingworker/pkg/errors"
)

// MaxSeenTTL is the longest relative expiration memcached accepts
const MaxSeenTTL = 30 * 24 * time.Hour

// Ledger backends
const (
	LedgerFile     = "file"
	LedgerPostgres = "postgres"
)

// Source names accepted in ENABLED_SOURCES
const (
	SourceCarsDotCom = "cars.com"
	SourceCarGurus   = "cargurus"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int64
	StreamNotifyEnabled  bool

	// Memcache configuration
	MemcacheAddr string
	SeenTTL      time.Duration

	// Polling configuration
	PollInterval    time.Duration
	RequestInterval time.Duration
	BlockTime       time.Duration

	// Sources
	CarsDotComURL  string
	CarGurusURL    string
	EnabledSources []string
	UseChrome      bool

	// Email notifications
	SMTPHost     string
	SMTPPort     int
	SMTPSender   string
	SMTPPassword string
	NotifyEmail  string

	// Persisted state
	StatePath     string
	LedgerBackend string
	DatabaseURL   string

	// Skip report file; empty disables it
	ErrorLogFile string

	// Interactive console menu
	Console bool

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.ParseInt(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"), 10, 64)
	seenTTLHours, _ := strconv.Atoi(getEnv("SEEN_TTL_HOURS", "720"))
	pollMinutes, _ := strconv.Atoi(getEnv("POLL_INTERVAL_MINUTES", "60"))
	requestMillis, _ := strconv.Atoi(getEnv("REQUEST_INTERVAL_MS", "1500"))
	blockSeconds, _ := strconv.Atoi(getEnv("BLOCK_TIME_SECONDS", "600"))
	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "465"))

	return &Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "carlistings"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		StreamNotifyEnabled:  getBool("NOTIFY_STREAM_ENABLED", false),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		SeenTTL:              time.Duration(seenTTLHours) * time.Hour,
		PollInterval:         time.Duration(pollMinutes) * time.Minute,
		RequestInterval:      time.Duration(requestMillis) * time.Millisecond,
		BlockTime:            time.Duration(blockSeconds) * time.Second,
		CarsDotComURL:        getEnv("CARSDOTCOM_URL", "https://www.cars.com"),
		CarGurusURL:          getEnv("CARGURUS_URL", "https://www.cargurus.com/Cars/forsale"),
		EnabledSources:       getList("ENABLED_SOURCES", []string{SourceCarsDotCom, SourceCarGurus}),
		UseChrome:            getBool("USE_CHROME", false),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             smtpPort,
		SMTPSender:           getEnv("SMTP_SENDER", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		NotifyEmail:          getEnv("NOTIFY_EMAIL", ""),
		StatePath:            getEnv("STATE_PATH", "carwatch.json"),
		LedgerBackend:        strings.ToLower(getEnv("LEDGER_BACKEND", LedgerFile)),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", ""),
		Console:              getBool("CONSOLE", false),
		Environment:          getEnv("CARWATCH_ENVIRONMENT", "development"),
	}
}

// EmailEnabled reports whether an SMTP server is configured
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

// SourceEnabled reports whether name is listed in ENABLED_SOURCES
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range c.EnabledSources {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Validate rejects settings the worker cannot run with
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.NewConfiguration("invalid configuration", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MINUTES must be positive")
	}
	if c.SeenTTL < 0 || c.SeenTTL > MaxSeenTTL {
		return fmt.Errorf("SEEN_TTL_HOURS must be between 0 and %d", int(MaxSeenTTL.Hours()))
	}
	if c.RequestInterval < 0 {
		return fmt.Errorf("REQUEST_INTERVAL_MS must not be negative")
	}
	if c.BlockTime < 0 {
		return fmt.Errorf("BLOCK_TIME_SECONDS must not be negative")
	}
	if len(c.EnabledSources) == 0 {
		return fmt.Errorf("ENABLED_SOURCES lists no source")
	}
	for _, s := range c.EnabledSources {
		if !strings.EqualFold(s, SourceCarsDotCom) && !strings.EqualFold(s, SourceCarGurus) {
			return fmt.Errorf("unknown source %q in ENABLED_SOURCES", s)
		}
	}

	switch c.LedgerBackend {
	case LedgerFile:
		if c.StatePath == "" {
			return fmt.Errorf("STATE_PATH is required for the file ledger")
		}
	case LedgerPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}

	if c.EmailEnabled() {
		if c.NotifyEmail == "" {
			return fmt.Errorf("NOTIFY_EMAIL is required when SMTP_HOST is set")
		}
		if c.SMTPSender == "" {
			return fmt.Errorf("SMTP_SENDER is required when SMTP_HOST is set")
		}
		if c.SMTPPort <= 0 {
			return fmt.Errorf("SMTP_PORT must be positive")
		}
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

// getList splits a comma separated variable, dropping empty items
func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
