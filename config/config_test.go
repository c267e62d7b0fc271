package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, time.Second, cfg.Realtime.DeliveryDelay)
	assert.Equal(t, "local", cfg.Realtime.EventBus)
	assert.False(t, cfg.Mail.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "8088")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("EVENT_BUS", "redis")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "mailer")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.Addr())
	assert.Equal(t, 5*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, "redis", cfg.Realtime.EventBus)
	assert.True(t, cfg.Mail.Enabled())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsUnknownBus(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("EVENT_BUS", "kafka")
	_, err := Load()
	assert.ErrorContains(t, err, "EVENT_BUS")
}
