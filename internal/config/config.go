package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Trading Asset
	TradingAsset string

	// Polymarket API
	GammaAPIURL string
	CLOBAPIURL  string
	CLOBWSURL   string

	// Hedge Strategy Settings
	Shares        decimal.Decimal // shares per leg
	HedgeSum      decimal.Decimal // leg1 entry + leg2 ask must stay at or below this
	MoveThreshold decimal.Decimal // fractional drop that triggers leg 1
	WindowMinutes float64         // leg 1 is armed only this long after round start
	DropWindowSec float64         // drop is measured over this trailing window

	// Exposure policy: sell an unhedged leg 1 when the round expires
	ForceCloseOnExpiry bool

	// Round discovery
	PollInterval time.Duration

	// WebSocket feed
	WSReconnectDelay time.Duration
	WSMaxReconnects  int // 0 = unlimited

	// Telegram (optional, bot disabled when token empty)
	TelegramToken  string
	TelegramChatID int64

	// Database
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		TradingAsset: getEnv("TRADING_ASSET", "BTC"),

		GammaAPIURL: getEnv("POLYMARKET_API_URL", "https://gamma-api.polymarket.com"),
		CLOBAPIURL:  getEnv("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		CLOBWSURL:   getEnv("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		Shares:        getEnvDecimal("HEDGE_SHARES", decimal.NewFromInt(10)),
		HedgeSum:      getEnvDecimal("HEDGE_SUM", decimal.NewFromFloat(0.95)),
		MoveThreshold: getEnvDecimal("MOVE_THRESHOLD", decimal.NewFromFloat(0.15)),
		WindowMinutes: getEnvFloat("WINDOW_MINUTES", 2.0),
		DropWindowSec: getEnvFloat("DROP_WINDOW_SEC", 3.0),

		ForceCloseOnExpiry: getEnvBool("FORCE_CLOSE_ON_EXPIRY", false),

		PollInterval: getEnvDuration("POLL_INTERVAL", 30*time.Second),

		WSReconnectDelay: getEnvDuration("WS_RECONNECT_DELAY", 2*time.Second),
		WSMaxReconnects:  getEnvInt("WS_MAX_RECONNECTS", 0),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabasePath: getEnv("DATABASE_PATH", "data/hedgebot.db"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.HedgeSum.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("HEDGE_SUM must stay below 1.0, got %s", cfg.HedgeSum)
	}
	if !cfg.Shares.IsPositive() {
		return nil, fmt.Errorf("HEDGE_SHARES must be positive, got %s", cfg.Shares)
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
