package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	BotToken              string
	NotificationChannelID int64

	ShopBaseURL string
	StoreRegion string

	PollInterval      time.Duration // normal-hours cycle period
	PeakInterval      time.Duration // cycle period during peak hours
	PeakStartHour     int
	PeakEndHour       int
	DowntimeStartHour int
	DowntimeEndHour   int
	Timezone          string

	SendConcurrency int
	SendRateLimit   int // max sends per second, 0 disables pacing
	DrainTimeout    time.Duration

	KafkaBrokers          string
	KafkaStockEventsTopic string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string

	HealthPort string
}

// Load loads configuration from environment variables
func Load() Config {
	return Config{
		BotToken:              getEnv("BOT_TOKEN", ""),
		NotificationChannelID: getEnvInt64("NOTIFICATION_CHANNEL_ID", 0),

		ShopBaseURL: getEnv("SHOP_BASE_URL", "https://shop.amul.com"),
		StoreRegion: getEnv("STORE_REGION", "gujarat"),

		PollInterval:      getEnvSeconds("POLL_INTERVAL_SECONDS", 600),
		PeakInterval:      getEnvSeconds("POLL_INTERVAL_PEAK_SECONDS", 120),
		PeakStartHour:     getEnvInt("PEAK_START_HOUR", 6),
		PeakEndHour:       getEnvInt("PEAK_END_HOUR", 16),
		DowntimeStartHour: getEnvInt("DOWNTIME_START_HOUR", 0),
		DowntimeEndHour:   getEnvInt("DOWNTIME_END_HOUR", 6),
		Timezone:          getEnv("TIMEZONE", "Asia/Kolkata"),

		SendConcurrency: getEnvInt("SEND_CONCURRENCY", 4),
		SendRateLimit:   getEnvInt("SEND_RATE_LIMIT", 20),
		DrainTimeout:    getEnvSeconds("DRAIN_TIMEOUT_SECONDS", 30),

		KafkaBrokers:          getEnv("KAFKA_BROKERS", ""),
		KafkaStockEventsTopic: getEnv("KAFKA_STOCK_EVENTS_TOPIC", "stock-events"),

		RedisHost:     getEnv("REDIS_HOST", "redis"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		PostgresHost: getEnv("POSTGRES_HOST", "postgres"),
		PostgresPort: getEnv("POSTGRES_PORT", "5432"),
		PostgresUser: getEnv("POSTGRES_USER", "postgres"),
		PostgresPass: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:   getEnv("POSTGRES_DB", "postgres"),

		HealthPort: getEnv("HEALTH_PORT", "8080"),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}
