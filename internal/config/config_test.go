package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookstore/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FE_URL", "https://shop.example")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("CRON_SECRET", "cron")
}

func missingEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.Load(missingEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileGrace)
	assert.Equal(t, 4, cfg.ReconcileConcurrency)
	assert.Equal(t, 100, cfg.ReconcileBatch)
	assert.Contains(t, cfg.DatabaseURL, "host=localhost")
	assert.True(t, cfg.IsDev())
}

func TestLoad_EnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RECONCILE_GRACE=30m\nREDIS_ADDR=localhost:6379\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("RECONCILE_GRACE")
		_ = os.Unsetenv("REDIS_ADDR")
	})

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.ReconcileGrace)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"jwt secret", "JWT_SECRET", ""},
		{"cron secret", "CRON_SECRET", ""},
		{"webhook secret", "STRIPE_WEBHOOK_SECRET", ""},
		{"grace", "RECONCILE_GRACE", "0s"},
		{"concurrency", "RECONCILE_CONCURRENCY", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.val)

			_, err := config.Load(missingEnv(t))
			assert.Error(t, err)
		})
	}
}
