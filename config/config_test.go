package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PICKUP_GRACE_MINUTES", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REQUIRE_VERIFIED_BUYER", "")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.PickupGrace)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.RequireVerifiedBuyer)
	assert.Equal(t, "marketplace.transaction.transitioned", cfg.KafkaTopic)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PICKUP_GRACE_MINUTES", "5")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("REQUIRE_VERIFIED_BUYER", "yes")
	t.Setenv("DB_PORT", " 6432 ")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.PickupGrace)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RequireVerifiedBuyer)
	assert.Contains(t, cfg.DSN(), "port=6432 ")
}
