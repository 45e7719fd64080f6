package secrets

import (
	"context"
	"testing"

	"dungeon-ledger/backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledVaultUsesEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DB_PASSWORD", "")

	cfg := &config.Config{}
	manager, err := NewVaultManager(cfg, nil)
	require.NoError(t, err)

	value, err := manager.GetSecret(context.Background(), KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	_, err = manager.GetSecret(context.Background(), KeyDBPassword)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	jwtSecret, dbPassword := "configured", "configured-db"
	Overlay(context.Background(), manager, &jwtSecret, &dbPassword)
	assert.Equal(t, "from-env", jwtSecret)
	assert.Equal(t, "configured-db", dbPassword)
}

func TestEnabledVaultRequiresAddressAndToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Vault.Enabled = true

	_, err := NewVaultManager(cfg, nil)
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	cfg.Vault.Addr = "http://127.0.0.1:8200"
	_, err = NewVaultManager(cfg, nil)
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestSplitKVPath(t *testing.T) {
	mount, path := splitKVPath("secret/data/dungeon-ledger")
	assert.Equal(t, "secret", mount)
	assert.Equal(t, "dungeon-ledger", path)

	mount, path = splitKVPath("kv/team/app")
	assert.Equal(t, "kv", mount)
	assert.Equal(t, "team/app", path)
}
