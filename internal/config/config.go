package config

import (
	"os"
	"strconv"
	"time"

	"github.com/harusame/workshop-live-api/internal/constants"
)

type Config struct {
	DBDriver      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	RedisHost     string
	RedisPort     string
	SessionSecret string
	GinMode       string

	// Realtime cache tunables
	PollInterval    time.Duration
	FreshnessWindow time.Duration
	RefreshThrottle time.Duration

	// Party code issuance
	PartyCodeAttempts int
	// When "fail", exhausting all collision-retry attempts returns an error;
	// when "proceed", the last candidate is inserted and the database's
	// uniqueness constraint has the final word.
	PartyCodePolicy string
}

func Load() *Config {
	return &Config{
		DBDriver:      getEnv("DB_DRIVER", "mysql"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "workshopuser"),
		DBPassword:    getEnv("DB_PASSWORD", "workshoppassword"),
		DBName:        getEnv("DB_NAME", "workshop_live"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		SessionSecret: getEnv("SESSION_SECRET", "default-secret-key-change-me"),
		GinMode:       getEnv("GIN_MODE", "debug"),

		PollInterval:    getDurationEnv("REALTIME_POLL_INTERVAL", constants.DefaultPollInterval),
		FreshnessWindow: getDurationEnv("REALTIME_FRESHNESS_WINDOW", constants.DefaultFreshnessWindow),
		RefreshThrottle: getDurationEnv("REALTIME_REFRESH_THROTTLE", constants.DefaultRefreshThrottle),

		PartyCodeAttempts: getIntEnv("PARTY_CODE_ATTEMPTS", constants.PartyCodeMaxAttempts),
		PartyCodePolicy:   getEnv("PARTY_CODE_POLICY", "proceed"),
	}
}

// StalenessThreshold is how long the realtime caches tolerate silence before
// forcing a fresh snapshot.
func (c *Config) StalenessThreshold() time.Duration {
	return time.Duration(constants.DefaultStalenessFactor) * c.PollInterval
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
