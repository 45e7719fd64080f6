package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dungeon-ledger/backend/internal/service"
	"dungeon-ledger/backend/internal/ws"
	"dungeon-ledger/backend/pkg/cache"
	"dungeon-ledger/backend/pkg/config"
	"dungeon-ledger/backend/pkg/health"
	"dungeon-ledger/backend/pkg/jwt"
	"dungeon-ledger/backend/pkg/logger"
	"dungeon-ledger/backend/pkg/resilience"
	"dungeon-ledger/backend/shared/observability"
	"dungeon-ledger/backend/shared/redis"

	"gorm.io/gorm"
)

const joinAttemptPrefix = "join-failures:"

// Container holds all the dependencies for the application
type Container struct {
	Config               *config.Config
	DB                   *gorm.DB
	Logger               *logger.Logger
	JWTService           *jwt.Service
	Hub                  *ws.Hub
	UserService          *service.UserService
	CampaignService      *service.CampaignService
	SessionService       *service.SessionService
	CharacterLinkService *service.CharacterLinkService
	CharacterService     *service.CharacterService
	JoinLimiter          service.AttemptLimiter
	Health               *health.Checker
	Telemetry            *observability.Provider
	// DisplayLocation renders session times when a request names no timezone
	DisplayLocation *time.Location

	cache   *cache.Cache
	redis   *redis.RedisClient
	breaker *resilience.CircuitBreaker
}

// Options replaces collaborators that tests want to control
type Options struct {
	// Now defaults to time.Now
	Now func() time.Time
}

// New creates a new dependency injection container
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger, opts ...Options) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT secret is not configured")
	}

	display, err := time.LoadLocation(cfg.Campaign.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", cfg.Campaign.DisplayTimezone, err)
	}

	telemetry, err := observability.Setup(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		TracingEnabled: cfg.Observability.TracingEnabled,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
	}, log)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:          cfg,
		DB:              db,
		Logger:          log,
		Telemetry:       telemetry,
		DisplayLocation: display,
		Hub:             ws.NewHub(log),
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry).WithIssuer(cfg.JWT.Issuer)
	if opt.Now != nil {
		jwtService = jwtService.WithClock(opt.Now)
	}
	c.JWTService = jwtService

	c.JoinLimiter = c.buildJoinLimiter()

	common := service.Common{Now: opt.Now, Logger: log, Publisher: c.Hub}

	c.UserService = service.NewUserServiceWithConfig(db, jwtService, common)

	campaignConfig := service.DefaultCampaignServiceConfig()
	campaignConfig.Common = common
	campaignConfig.JoinCodeAttempts = cfg.Campaign.JoinCodeAttempts
	campaignConfig.Limiter = c.JoinLimiter
	c.CampaignService = service.NewCampaignServiceWithConfig(db, campaignConfig)

	sessionConfig := service.DefaultSessionServiceConfig()
	sessionConfig.Common = common
	sessionConfig.Order = service.SessionOrder(cfg.Campaign.SessionOrder)
	c.SessionService = service.NewSessionServiceWithConfig(db, sessionConfig)

	linkConfig := service.DefaultCharacterLinkServiceConfig()
	linkConfig.Common = common
	linkConfig.AllowedHosts = cfg.Campaign.AllowedLinkHosts
	c.CharacterLinkService = service.NewCharacterLinkServiceWithConfig(db, linkConfig)

	characterConfig := service.DefaultCharacterServiceConfig()
	characterConfig.Common = common
	c.CharacterService = service.NewCharacterServiceWithConfig(db, characterConfig)

	c.Health = c.buildHealth()

	return c, nil
}

// buildJoinLimiter counts failed join attempts in redis when enabled, falling
// back to the in-process cache while redis is unreachable
func (c *Container) buildJoinLimiter() service.AttemptLimiter {
	cfg := c.Config
	c.cache = cache.New(cache.Options{
		DefaultExpiration: cfg.Campaign.JoinFailureWindow,
		CleanupInterval:   cfg.Cache.PurgeWindow,
		MaxItems:          cfg.Cache.MaxSize,
	})
	memory := cache.NewAttemptCounter(c.cache, joinAttemptPrefix, cfg.Campaign.JoinFailureLimit, cfg.Campaign.JoinFailureWindow)

	if !cfg.Redis.Enabled {
		return memory
	}

	c.redis = redis.NewRedisClient(redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.Timeout,
	})
	c.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("redis-join-limiter"), c.Logger)
	primary := redis.NewAttemptCounter(c.redis, joinAttemptPrefix, cfg.Campaign.JoinFailureLimit, cfg.Campaign.JoinFailureWindow)

	c.Logger.Info("Join throttle backed by redis", "addr", cfg.Redis.Addr)
	return service.NewFallbackLimiter(primary, memory, c.breaker, c.Logger)
}

func (c *Container) buildHealth() *health.Checker {
	checker := health.NewChecker(c.Logger, 30*time.Second)
	checker.RegisterDatabaseCheck(func(ctx context.Context) error {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	if c.redis != nil {
		checker.RegisterRedisCheck(c.redis.Ping)
		checker.RegisterCheck("join_throttle", false, func(context.Context) (health.Status, string, error) {
			if c.breaker.GetState() == resilience.StateOpen {
				return health.StatusDegraded, "Redis circuit open, counting in memory", nil
			}
			return health.StatusUp, "Counting in redis", nil
		})
	}
	return checker
}

// Start runs the background workers until ctx is done
func (c *Container) Start(ctx context.Context) {
	go c.Hub.Run(ctx)
	c.Health.Start(ctx)
}

// Close releases connections held by the container
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.cache != nil {
		c.cache.Close()
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.Telemetry != nil {
		errs = append(errs, c.Telemetry.Shutdown(ctx))
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
