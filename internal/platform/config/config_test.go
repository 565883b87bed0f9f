package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HOUSING_ADDR", "")
	t.Setenv("PAYMENT_WINDOW", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SESSION_SIGNING_KEY", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DefaultPaymentWindow, cfg.Workflow.PaymentWindow)
	assert.Equal(t, "housing_session", cfg.Session.CookieName)
	assert.Empty(t, cfg.Session.SigningKey)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Login.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Login.LockFor)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HOUSING_ADDR", ":9000")
	t.Setenv("PAYMENT_WINDOW", "")
	t.Setenv("PAYMENT_WINDOW_SECONDS", "3600")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PROFILE_CHANGE_ADMIN_ONLY", "true")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")
	t.Setenv("LOGIN_LOCKOUT", "1h")

	cfg := FromEnv()

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, time.Hour, cfg.Workflow.PaymentWindow)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Workflow.ProfileChangeAdminOnly)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, time.Hour, cfg.Login.LockFor)
}
