//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
database:
  url: postgres://u:p@localhost/db
stripe:
  secret_key: sk_test_x
  webhook_secret: whsec_x
admin:
  api_key: secret
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal), false)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, 10, cfg.Referral.BatchSize)
	assert.Equal(t, time.Second, cfg.Referral.BatchDelay)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.ReferralInterval)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.False(t, cfg.Redis.Enabled())

	amount, err := cfg.Referral.AmountMinor()
	require.NoError(t, err)
	assert.Equal(t, int64(500), amount)
}

func TestParse_Validation(t *testing.T) {
	t.Run("production requires provider credentials", func(t *testing.T) {
		_, err := Parse([]byte("database:\n  url: postgres://x\n"), false)
		assert.Error(t, err)
	})

	t.Run("dev mode needs nothing external", func(t *testing.T) {
		cfg, err := Parse([]byte("log:\n  format: console\n"), true)
		require.NoError(t, err)
		assert.True(t, cfg.Runtime.Dev)
	})

	t.Run("unknown throttle mode", func(t *testing.T) {
		_, err := Parse([]byte("referral:\n  throttle: bursty\n"), true)
		assert.Error(t, err)
	})
}

func TestReferralConfig_AmountMinor(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "5.00", want: 500},
		{in: "12.5", want: 1250},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1.005", wantErr: true},
		{in: "five", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ReferralConfig{DiscountAmount: tc.in}.AmountMinor()
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_env")
	t.Setenv("REDIS_URL", "localhost:6379")

	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, "sk_live_env", cfg.Stripe.SecretKey)
	assert.True(t, cfg.Redis.Enabled())
}
