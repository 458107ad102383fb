package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	AuthAddr    string
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int

	RefreshStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers   []string
	KafkaUserTopic string

	CookieSecure       bool
	CSRFEnabled        bool
	UniformLoginErrors bool
}

const (
	RefreshStoreDB    = "db"
	RefreshStoreRedis = "redis"
)

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "auth"),
		AuthAddr:    EnvDefault("AUTH_ADDR", ":8080"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:     []byte(os.Getenv("JWT_SECRET")),
		RefreshSecret: []byte(os.Getenv("REFRESH_SECRET")),
		AccessTTL:     EnvDurationDefault("ACCESS_TTL", 30*time.Minute),
		RefreshTTL:    EnvDurationDefault("REFRESH_TTL", 60*time.Minute),
		BcryptCost:    EnvIntDefault("BCRYPT_COST", 10),

		RefreshStore:  EnvDefault("REFRESH_STORE", RefreshStoreDB),
		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers:   CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaUserTopic: EnvDefault("KAFKA_USER_TOPIC", "user_events"),

		CookieSecure:       EnvBoolDefault("COOKIE_SECURE", true),
		CSRFEnabled:        EnvBoolDefault("CSRF_ENABLED", false),
		UniformLoginErrors: EnvBoolDefault("UNIFORM_LOGIN_ERRORS", false),
	}
}

// Validate aborts the process when a setting the service cannot run without is missing.
func (c Config) Validate() {
	MustNonEmptyBytes(c.JWTSecret, "JWT_SECRET")
	MustNonEmptyBytes(c.RefreshSecret, "REFRESH_SECRET")
	MustNonEmpty(c.DatabaseURL, "DATABASE_URL")
	if c.RefreshStore == RefreshStoreRedis {
		MustNonEmpty(c.RedisAddr, "REDIS_ADDR")
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
