package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"kafka:9092", "kafka2:9092"}, CSV(" kafka:9092, ,kafka2:9092 "))
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"AUTH_ADDR", "DB_DRIVER", "ACCESS_TTL", "REFRESH_TTL", "BCRYPT_COST",
		"REFRESH_STORE", "KAFKA_BROKERS", "KAFKA_USER_TOPIC", "COOKIE_SECURE", "UNIFORM_LOGIN_ERRORS",
		"CSRF_ENABLED",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.AuthAddr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 60*time.Minute, cfg.RefreshTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, RefreshStoreDB, cfg.RefreshStore)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, "user_events", cfg.KafkaUserTopic)
	assert.True(t, cfg.CookieSecure)
	assert.False(t, cfg.UniformLoginErrors)
	assert.False(t, cfg.CSRFEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ACCESS_TTL", "5m")
	t.Setenv("REFRESH_TTL", "not-a-duration")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("REFRESH_STORE", "redis")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("UNIFORM_LOGIN_ERRORS", "true")
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("CSRF_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 60*time.Minute, cfg.RefreshTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, RefreshStoreRedis, cfg.RefreshStore)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.KafkaBrokers)
	assert.False(t, cfg.CookieSecure)
	assert.True(t, cfg.UniformLoginErrors)
	assert.Equal(t, []byte("access"), cfg.JWTSecret)
	assert.True(t, cfg.CSRFEnabled)
}
