package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "almoheat", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "almoheat", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, 24*time.Hour, cfg.Redis.DraftTTL)
		assert.Equal(t, "5", cfg.Inventory.DefaultMinQuantity.String())
		assert.True(t, cfg.IsDevelopment())
	})

	t.Run("loads values from environment variables with ALMOHEAT prefix", func(t *testing.T) {
		t.Setenv("ALMOHEAT_APP_PORT", "9000")
		t.Setenv("ALMOHEAT_DATABASE_HOST", "testdb.local")
		t.Setenv("ALMOHEAT_DATABASE_PORT", "5433")
		t.Setenv("ALMOHEAT_REDIS_ENABLED", "true")
		t.Setenv("ALMOHEAT_REDIS_DRAFT_TTL", "2h")
		t.Setenv("ALMOHEAT_INVENTORY_DEFAULT_MIN_QUANTITY", "10")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 2*time.Hour, cfg.Redis.DraftTTL)
		assert.Equal(t, "10", cfg.Inventory.DefaultMinQuantity.String())
	})

	t.Run("rejects invalid min quantity", func(t *testing.T) {
		t.Setenv("ALMOHEAT_INVENTORY_DEFAULT_MIN_QUANTITY", "many")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects negative min quantity", func(t *testing.T) {
		t.Setenv("ALMOHEAT_INVENTORY_DEFAULT_MIN_QUANTITY", "-1")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production forbids disabled ssl", func(t *testing.T) {
		t.Setenv("ALMOHEAT_APP_ENV", "production")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")
	})

	t.Run("idle conns cannot exceed open conns", func(t *testing.T) {
		t.Setenv("ALMOHEAT_DATABASE_MAX_OPEN_CONNS", "2")
		t.Setenv("ALMOHEAT_DATABASE_MAX_IDLE_CONNS", "3")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "p@ss word",
		DBName:   "almoheat",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/almoheat?sslmode=require", d.DSN())
}
