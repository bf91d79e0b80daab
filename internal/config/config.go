package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Digiflazz DigiflazzConfig
	TokoPay   TokoPayConfig
	Sync      SyncConfig
	Pricing   PricingConfig
	Checkout  CheckoutConfig
	Breaker   BreakerConfig
	WhatsApp  WhatsAppConfig
	Security  SecurityConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
	File  string
}

// DatabaseConfig holds product/transaction store configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// DigiflazzConfig holds catalog and fulfillment gateway configuration
type DigiflazzConfig struct {
	BaseURL     string
	Username    string
	APIKey      string
	CallbackURL string
	Timeout     time.Duration
}

// TokoPayConfig holds payment gateway configuration
type TokoPayConfig struct {
	BaseURL    string
	MerchantID string
	Secret     string
	Timeout    time.Duration
}

// SyncConfig holds catalog reconciliation configuration
type SyncConfig struct {
	BatchSize     int
	ItemTimeout   time.Duration
	Schedule      string
	BootstrapPath string
}

// PricingConfig holds per-category margins and the base price floor
type PricingConfig struct {
	MobileCreditMargin int64
	ElectricityMargin  int64
	DataPackageMargin  int64
	FloorPercent       int64
}

// CheckoutConfig holds checkout configuration
type CheckoutConfig struct {
	DefaultMethod string
	QRValidity    time.Duration
}

// BreakerConfig holds gateway circuit breaker configuration
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// WhatsAppConfig holds WhatsApp notifier configuration
type WhatsAppConfig struct {
	Enabled   bool
	DBPath    string
	NotifyJID string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	APIKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "INFO"),
			File:  getEnv("LOG_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite3"),
			DSN:    getEnv("DB_DSN", "file:./db/voucher.db?_foreign_keys=on"),
		},
		Digiflazz: DigiflazzConfig{
			BaseURL:     strings.TrimRight(getEnv("DIGIFLAZZ_BASE_URL", "https://api.digiflazz.com/v1"), "/"),
			Username:    getEnv("DIGIFLAZZ_USERNAME", ""),
			APIKey:      getEnv("DIGIFLAZZ_API_KEY", ""),
			CallbackURL: getEnv("DIGIFLAZZ_CALLBACK_URL", ""),
			Timeout:     parseDuration(getEnv("DIGIFLAZZ_TIMEOUT", "30s"), 30*time.Second),
		},
		TokoPay: TokoPayConfig{
			BaseURL:    strings.TrimRight(getEnv("TOKOPAY_BASE_URL", "https://api.tokopay.id"), "/"),
			MerchantID: getEnv("TOKOPAY_MERCHANT_ID", ""),
			Secret:     getEnv("TOKOPAY_SECRET", ""),
			Timeout:    parseDuration(getEnv("TOKOPAY_TIMEOUT", "15s"), 15*time.Second),
		},
		Sync: SyncConfig{
			BatchSize:     parseInt(getEnv("SYNC_BATCH_SIZE", "20"), 20),
			ItemTimeout:   parseDuration(getEnv("SYNC_ITEM_TIMEOUT", "10s"), 10*time.Second),
			Schedule:      getEnv("SYNC_SCHEDULE", "@every 1h"),
			BootstrapPath: getEnv("CATALOG_BOOTSTRAP_PATH", ""),
		},
		Pricing: PricingConfig{
			MobileCreditMargin: int64(parseInt(getEnv("MARGIN_MOBILE_CREDIT", "1000"), 1000)),
			ElectricityMargin:  int64(parseInt(getEnv("MARGIN_ELECTRICITY", "2000"), 2000)),
			DataPackageMargin:  int64(parseInt(getEnv("MARGIN_DATA_PACKAGE", "1500"), 1500)),
			FloorPercent:       int64(parseInt(getEnv("BASE_PRICE_FLOOR_PERCENT", "95"), 95)),
		},
		Checkout: CheckoutConfig{
			DefaultMethod: getEnv("CHECKOUT_METHOD", "QRIS"),
			QRValidity:    parseDuration(getEnv("QRIS_VALIDITY", "15m"), 15*time.Minute),
		},
		Breaker: BreakerConfig{
			MaxRequests:         uint32(parseInt(getEnv("BREAKER_MAX_REQUESTS", "1"), 1)),
			Interval:            parseDuration(getEnv("BREAKER_INTERVAL", "60s"), 60*time.Second),
			Timeout:             parseDuration(getEnv("BREAKER_TIMEOUT", "30s"), 30*time.Second),
			ConsecutiveFailures: uint32(parseInt(getEnv("BREAKER_CONSECUTIVE_FAILURES", "5"), 5)),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:   parseBool(getEnv("WA_ENABLED", "false"), false),
			DBPath:    getEnv("WA_DB_PATH", "./db/whatsmeow.db"),
			NotifyJID: getEnv("WA_NOTIFY_JID", ""),
		},
		Security: SecurityConfig{
			APIKey: getEnv("API_KEY", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	required := map[string]string{
		"DIGIFLAZZ_USERNAME":  c.Digiflazz.Username,
		"DIGIFLAZZ_API_KEY":   c.Digiflazz.APIKey,
		"TOKOPAY_MERCHANT_ID": c.TokoPay.MerchantID,
		"TOKOPAY_SECRET":      c.TokoPay.Secret,
	}
	for _, key := range []string{"DIGIFLAZZ_USERNAME", "DIGIFLAZZ_API_KEY", "TOKOPAY_MERCHANT_ID", "TOKOPAY_SECRET"} {
		if required[key] == "" {
			return fmt.Errorf("%s is required", key)
		}
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite3 or postgres)", c.Database.Driver)
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if c.Pricing.FloorPercent <= 0 || c.Pricing.FloorPercent > 100 {
		return fmt.Errorf("BASE_PRICE_FLOOR_PERCENT must be within 1..100")
	}
	if c.WhatsApp.Enabled && c.WhatsApp.NotifyJID == "" {
		return fmt.Errorf("WA_NOTIFY_JID is required when WA_ENABLED=true")
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseInt parses string to int with default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// parseBool parses string to bool with default value
func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// parseDuration parses string to time.Duration with default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
