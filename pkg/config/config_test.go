package config

import (
	"testing"
	"time"

	"dungeon-ledger/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 50, cfg.Campaign.JoinCodeAttempts)
	assert.Equal(t, 10, cfg.Campaign.JoinFailureLimit)
	assert.Equal(t, 15*time.Minute, cfg.Campaign.JoinFailureWindow)
	assert.Equal(t, "desc", cfg.Campaign.SessionOrder)
	assert.Empty(t, cfg.Campaign.AllowedLinkHosts)
	assert.False(t, cfg.SheetCharacters())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("SESSION_ORDER", "ASC")
	t.Setenv("CHARACTER_LINK_ALLOWED_HOSTS", "dndbeyond.com, , roll20.net")
	t.Setenv("JOIN_FAILURE_WINDOW", "5m")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CHARACTER_MODE", "Sheet")

	cfg := Load()
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, "asc", cfg.Campaign.SessionOrder)
	assert.Equal(t, []string{"dndbeyond.com", "roll20.net"}, cfg.Campaign.AllowedLinkHosts)
	assert.Equal(t, 5*time.Minute, cfg.Campaign.JoinFailureWindow)
	assert.Equal(t, 2.5, cfg.Security.RateLimit)
	assert.True(t, cfg.Redis.Enabled)
	assert.True(t, cfg.SheetCharacters())
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	cfg := Load()
	cfg.Database.Driver = "oracle"
	_, err := Dialector(cfg)
	assert.Error(t, err)

	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		cfg.Database.Driver = driver
		d, err := Dialector(cfg)
		require.NoError(t, err)
		assert.Equal(t, driver, d.Name())
	}
}

func TestOpenDBWithSQLite(t *testing.T) {
	cfg := Load()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = t.TempDir() + "/ledger.db"
	cfg.Database.Retries = 1

	db, err := OpenDB(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, TestConnection(db))
	assert.True(t, db.Migrator().HasTable(&models.Campaign{}))
	assert.True(t, db.Migrator().HasTable(&models.CampaignMember{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
