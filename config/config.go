package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// Portal
	PortalBaseURL string // ex: "https://reservations.itec.org.il"
	Email         string
	IDNumber      string
	UnitID        string // facility/location the portal schedules courts under
	CourtType     string // value of the wizard's court-type select

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Telegram
	TelegramToken string
	// AllowedChatID restricts the bot to one chat; 0 = no restriction.
	AllowedChatID int64

	// Behaviour
	DaysAhead int  // default scan horizon
	Headless  bool // false keeps the booking browser visible

	// Logging
	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
}

func Load() *Config {
	return &Config{
		PortalBaseURL: getenv("ITEC_BASE_URL", "https://reservations.itec.org.il"),
		Email:         requireEnv("ITEC_EMAIL"),
		IDNumber:      requireEnv("ITEC_ID_NUMBER"),
		UnitID:        getenv("ITEC_UNIT_ID", "2"),
		CourtType:     getenv("ITEC_COURT_TYPE", "1"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		TelegramToken: requireEnv("TELEGRAM_BOT_TOKEN"),
		AllowedChatID: getenvInt64("TELEGRAM_CHAT_ID", 0),

		DaysAhead: getenvInt("ITEC_DAYS_AHEAD", 3),
		Headless:  mustBool("ITEC_HEADLESS", true),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		PrettyLog: mustBool("PRETTY_LOG", false),
	}
}

// helpers

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
