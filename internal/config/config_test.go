package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "bike_rental", cfg.Database.DBName)
	assert.Equal(t, "sandbox", cfg.Gateway.Mode)
	assert.Equal(t, "platform-escrow", cfg.Rental.EscrowUserID)
	assert.True(t, cfg.Rental.ServiceFeeRate.Equal(decimal.RequireFromString("0.10")))
	assert.Equal(t, 30*time.Minute, cfg.Rental.DraftTTL)
	assert.False(t, cfg.Auth.AllowAdminSignup)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RENTAL_SERVICE_FEE_RATE", "0.15")
	t.Setenv("RENTAL_DRAFT_TTL", "10m")
	t.Setenv("RENTAL_MAX_QUANTITY", "4")
	t.Setenv("AUTH_ALLOW_ADMIN_SIGNUP", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.Rental.ServiceFeeRate.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, 10*time.Minute, cfg.Rental.DraftTTL)
	assert.Equal(t, 4, cfg.Rental.MaxQuantity)
	assert.True(t, cfg.Auth.AllowAdminSignup)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("RENTAL_SERVICE_FEE_RATE", "ten percent")
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("RENTAL_DRAFT_TTL", "forever")
	t.Setenv("REDIS_ENABLED", "maybe")

	cfg := Load()

	assert.True(t, cfg.Rental.ServiceFeeRate.Equal(decimal.RequireFromString("0.10")))
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 30*time.Minute, cfg.Rental.DraftTTL)
	assert.True(t, cfg.Redis.Enabled)
}
