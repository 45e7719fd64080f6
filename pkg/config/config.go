package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		Env             string
		Timeout         time.Duration
		ShutdownTimeout time.Duration
		BaseURL         string
	}

	// Database configuration
	Database struct {
		// Driver is postgres, mysql or sqlite
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		// Path is the sqlite database file
		Path        string
		MaxConns    int
		Timeout     time.Duration
		Retries     int
		RetryDelay  time.Duration
		AutoMigrate bool
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
		Issuer string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Campaign rules
	Campaign struct {
		JoinCodeAttempts  int
		JoinFailureLimit  int
		JoinFailureWindow time.Duration
		// SessionOrder is asc or desc by scheduled time
		SessionOrder string
		// DisplayTimezone is used when a request carries no timezone
		DisplayTimezone string
		// AllowedLinkHosts restricts character link URLs when not empty
		AllowedLinkHosts []string
		// CharacterMode picks what /characters serves: link or sheet
		CharacterMode string
	}

	// Redis backs the join throttle so all replicas share it
	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
		Timeout  time.Duration
	}

	// Vault configuration for secrets
	Vault struct {
		Enabled bool
		Addr    string
		Token   string
		Path    string
	}

	// Observability configuration
	Observability struct {
		ServiceName    string
		TracingEnabled bool
		MetricsEnabled bool
	}

	// GRPC health endpoint; empty port disables it
	GRPC struct {
		HealthPort string
	}

	// OpenAPI request validation; empty path disables it
	OpenAPI struct {
		SchemaPath string
	}

	// Cache settings for the in-memory fallback
	Cache struct {
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()

		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	// Database config
	cfg.Database.Driver = strings.ToLower(getEnvString("DB_DRIVER", "postgres"))
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", defaultDBPort(cfg.Database.Driver))
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "dungeon_ledger")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.Path = getEnvString("DB_PATH", "dungeon_ledger.db")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)
	cfg.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", 5)
	cfg.Database.RetryDelay = getEnvDuration("DB_CONNECT_RETRY_DELAY", 5*time.Second)
	cfg.Database.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", true)

	// JWT config
	cfg.JWT.Secret = getEnvString("JWT_SECRET", "")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)
	cfg.JWT.Issuer = getEnvString("JWT_ISSUER", "dungeon-ledger")

	// Security config
	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Campaign rules
	cfg.Campaign.JoinCodeAttempts = getEnvInt("JOIN_CODE_ATTEMPTS", 50)
	cfg.Campaign.JoinFailureLimit = getEnvInt("JOIN_FAILURE_LIMIT", 10)
	cfg.Campaign.JoinFailureWindow = getEnvDuration("JOIN_FAILURE_WINDOW", 15*time.Minute)
	cfg.Campaign.SessionOrder = strings.ToLower(getEnvString("SESSION_ORDER", "desc"))
	cfg.Campaign.DisplayTimezone = getEnvString("DISPLAY_TIMEZONE", "UTC")
	cfg.Campaign.AllowedLinkHosts = getEnvStringSlice("CHARACTER_LINK_ALLOWED_HOSTS", nil)
	cfg.Campaign.CharacterMode = strings.ToLower(getEnvString("CHARACTER_MODE", CharacterModeLink))

	// Redis
	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Timeout = getEnvDuration("REDIS_TIMEOUT", 2*time.Second)

	// Vault
	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Addr = getEnvString("VAULT_ADDR", "http://127.0.0.1:8200")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Path = getEnvString("VAULT_SECRET_PATH", "secret/data/dungeon-ledger")

	// Observability
	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "dungeon-ledger")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	cfg.GRPC.HealthPort = getEnvString("GRPC_HEALTH_PORT", "")
	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	// Cache settings
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 10000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	return cfg
}

// Character modes
const (
	CharacterModeLink  = "link"
	CharacterModeSheet = "sheet"
)

// SheetCharacters reports whether characters are kept as in-app sheets instead of links
func (c *Config) SheetCharacters() bool {
	return c.Campaign.CharacterMode == CharacterModeSheet
}

// IsProduction reports whether the server runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func defaultDBPort(driver string) string {
	if driver == "mysql" {
		return "3306"
	}
	return "5432"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
