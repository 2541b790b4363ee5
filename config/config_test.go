package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellovesfromage/warehouse-system/config"
	"github.com/mellovesfromage/warehouse-system/stock"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "STOCK_POLICY", "ACTIVITY_CAP", "LOG_LEVEL", "LOG_PRETTY", "CORS_ALLOWED_ORIGINS", "RECONCILE_INTERVAL", "SEED"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "warehouse.db", cfg.DBPath)
	assert.Equal(t, stock.Permissive, cfg.StockPolicy)
	assert.Equal(t, 1000, cfg.ActivityCap)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileInterval)
	assert.True(t, cfg.Seed)
}

func TestLoad_EnvironmentThenFlags(t *testing.T) {
	// GIVEN: environment overrides
	t.Setenv("PORT", "9000")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("STOCK_POLICY", "STRICT")
	t.Setenv("ACTIVITY_CAP", "50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("RECONCILE_INTERVAL", "0")
	t.Setenv("SEED", "false")

	// WHEN: flags are also given
	cfg, err := config.Load([]string{"-port", "3000", "-db", ":memory:"})
	require.NoError(t, err)

	// THEN: flags win over env, env wins over defaults
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, stock.Strict, cfg.StockPolicy)
	assert.Equal(t, 50, cfg.ActivityCap)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Zero(t, cfg.ReconcileInterval)
	assert.False(t, cfg.Seed)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"STOCK_POLICY":       "lenient",
		"ACTIVITY_CAP":       "0",
		"PORT":               "eighty",
		"RECONCILE_INTERVAL": "-1m",
		"LOG_PRETTY":         "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := config.Load(nil)
			assert.Error(t, err)
		})
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("WAREHOUSE_TEST_KEY", "")
	assert.Equal(t, "fallback", config.Getenv("WAREHOUSE_TEST_KEY", "fallback"))

	t.Setenv("WAREHOUSE_TEST_KEY", "set")
	assert.Equal(t, "set", config.Getenv("WAREHOUSE_TEST_KEY", "fallback"))
}
