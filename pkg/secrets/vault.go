package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"dungeon-ledger/backend/pkg/config"
	"dungeon-ledger/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

const (
	defaultMount    = "secret"
	defaultCacheTTL = 5 * time.Minute
)

// VaultManager manages secrets with HashiCorp Vault and falls back to
// environment variables when Vault is disabled or misses a key
type VaultManager struct {
	client   *vault.Client
	enabled  bool
	mount    string
	path     string
	cache    map[string]cachedSecret
	mu       sync.RWMutex
	log      *logger.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

type cachedSecret struct {
	value   string
	expires time.Time
}

// NewVaultManager creates a new Vault manager from the vault section of cfg
func NewVaultManager(cfg *config.Config, log *logger.Logger) (*VaultManager, error) {
	if log == nil {
		log = logger.NewNop()
	}

	manager := &VaultManager{
		enabled:  cfg.Vault.Enabled,
		cache:    make(map[string]cachedSecret),
		log:      log,
		cacheTTL: defaultCacheTTL,
		now:      time.Now,
	}
	if !manager.enabled {
		return manager, nil
	}

	if cfg.Vault.Addr == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Vault.Token == "" {
		return nil, ErrNoVaultToken
	}
	manager.mount, manager.path = splitKVPath(cfg.Vault.Path)

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Vault.Addr
	vaultConfig.Timeout = 10 * time.Second
	vaultConfig.MaxRetries = 3

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Vault.Token)
	manager.client = client

	return manager, nil
}

// splitKVPath turns "secret/data/app" into the mount "secret" and the path "app"
func splitKVPath(full string) (string, string) {
	full = strings.Trim(full, "/")
	mount, rest, found := strings.Cut(full, "/")
	if !found {
		return defaultMount, full
	}
	rest = strings.TrimPrefix(rest, "data/")
	return mount, rest
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, found := m.cache[key]
	m.mu.RUnlock()
	if found && m.now().Before(cached.expires) {
		return cached.value, nil
	}

	if m.enabled {
		value, err := m.getFromVault(ctx, key)
		if err == nil {
			m.cacheSecret(key, value)
			return value, nil
		}
		m.log.Warn("Secret not read from Vault, trying environment",
			"key", key,
			"error", err.Error(),
		)
	}

	return m.getFromEnvironment(key)
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		m.log.Debug("Secret not found, using configured value", "key", key)
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.mount).Get(ctx, m.path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// getFromEnvironment maps "jwt_secret" or "jwt-secret" to JWT_SECRET
func (m *VaultManager) getFromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}

	m.cacheSecret(key, value)
	return value, nil
}

func (m *VaultManager) cacheSecret(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cachedSecret{value: value, expires: m.now().Add(m.cacheTTL)}
}
