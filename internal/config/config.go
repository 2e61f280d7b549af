package config

import (
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CetLoc is the zone dates are rendered in for Telegram messages.
var CetLoc = time.FixedZone("CET", 3600)

// Config is the process configuration, read once at startup.
type Config struct {
	StateFile     string
	LogFile       string
	LogLevel      string
	MaxLogSizeMB  int
	MaxLogBackups int

	PollSchedule          string
	PriceCacheTTL         time.Duration
	PriceFetchConcurrency int
	AlertCooldown         time.Duration
	MarketHoursOnly       bool

	HTTPAddr string

	AlpacaKey     string
	AlpacaSecret  string
	AlpacaBaseURL string
	AlpacaDataURL string

	TelegramToken  string
	TelegramChatID string
}

// secretVars are printed masked.
var secretVars = map[string]bool{
	"APCA_API_KEY_ID":     true,
	"APCA_API_SECRET_KEY": true,
	"TELEGRAM_BOT_TOKEN":  true,
	"TELEGRAM_CHAT_ID":    true,
}

// Load reads .env (if present) and the environment. Missing credentials are not
// fatal: the oracle or the bot is disabled instead.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	cfg := &Config{
		StateFile:     getEnv("WHEEL_STATE_FILE", "wheel_state.json"),
		LogFile:       getEnv("WHEEL_LOG_FILE", "wheel_watcher.log"),
		LogLevel:      strings.ToUpper(getEnv("WHEEL_LOG_LEVEL", "INFO")),
		MaxLogSizeMB:  getEnvAsInt("MAX_LOG_SIZE_MB", 10),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 3),

		PollSchedule:          getEnv("WHEEL_POLL_SCHEDULE", "@every 15m"),
		PriceCacheTTL:         time.Duration(getEnvAsInt("PRICE_CACHE_TTL_SEC", 300)) * time.Second,
		PriceFetchConcurrency: getEnvAsInt("PRICE_FETCH_CONCURRENCY", 4),
		AlertCooldown:         time.Duration(getEnvAsFloat64("ALERT_COOLDOWN_MINS", 60) * float64(time.Minute)),
		MarketHoursOnly:       getEnvAsBool("ALERTS_MARKET_HOURS_ONLY", true),

		HTTPAddr: getEnv("HTTP_ADDR", ""),

		AlpacaKey:     os.Getenv("APCA_API_KEY_ID"),
		AlpacaSecret:  os.Getenv("APCA_API_SECRET_KEY"),
		AlpacaBaseURL: getEnv("APCA_API_BASE_URL", "https://paper-api.alpaca.markets"),
		AlpacaDataURL: os.Getenv("APCA_DATA_URL"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}

	if !cfg.MarketDataEnabled() {
		log.Println("Warning: Alpaca credentials missing, prices will be unavailable")
	}
	if !cfg.TelegramEnabled() {
		log.Println("Warning: Telegram credentials missing, bot disabled")
	}

	printEnvFile()
	return cfg
}

// MarketDataEnabled reports whether both Alpaca keys are set.
func (c *Config) MarketDataEnabled() bool {
	return c.AlpacaKey != "" && c.AlpacaSecret != ""
}

// TelegramEnabled reports whether the bot can run.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// printEnvFile logs the variables defined in .env, secrets masked.
func printEnvFile() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	log.Println("--- .env File Variables ---")
	for _, key := range keys {
		val := envMap[key]
		if secretVars[key] {
			val = Mask(val)
		}
		log.Printf("%s=%s", key, val)
	}
	log.Println("---------------------------")
}

// Mask hides all but the last 4 characters.
func Mask(val string) string {
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid int for config %s=%q, using default %d", key, valueStr, fallback)
		return fallback
	}
	return val
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid bool for config %s=%q, using default %t", key, valueStr, fallback)
		return fallback
	}
	return val
}
