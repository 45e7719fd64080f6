package router

import (
	"context"
	"net/http"

	"dungeon-ledger/backend/internal/api"
	"dungeon-ledger/backend/internal/ws"
	"dungeon-ledger/backend/pkg/config"
	"dungeon-ledger/backend/pkg/di"
	"dungeon-ledger/backend/pkg/errors"
	"dungeon-ledger/backend/pkg/logger"
	"dungeon-ledger/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Version is reported by the health endpoints; set at build time
var Version = "dev"

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Config      *config.Config
	rateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestIDMiddleware())
	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(container.Telemetry.Middleware())
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))

	opts := middleware.DefaultRateLimiterOptions()
	opts.Limit = rate.Limit(cfg.Security.RateLimit)
	opts.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(container.Logger, opts)
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		Config:      cfg,
		rateLimiter: rateLimiter,
	}
}

// Start runs the background workers of the router and its container until ctx is done
func (r *Router) Start(ctx context.Context) {
	r.Container.Start(ctx)
	go r.rateLimiter.Run(ctx)
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	if r.Config.OpenAPI.SchemaPath != "" {
		r.AddOpenAPIValidation(r.Config.OpenAPI.SchemaPath)
	}

	jwtAuth := middleware.JWTAuth(r.Container.JWTService)

	authHandler := api.NewAuthHandler(r.Container.UserService)
	campaignHandler := api.NewCampaignHandler(r.Container.CampaignService)
	sessionHandler := api.NewSessionHandler(r.Container.SessionService, r.Container.DisplayLocation)
	var characterHandler characterRoutes = api.NewCharacterHandler(r.Container.CharacterLinkService)
	if r.Config.SheetCharacters() {
		characterHandler = api.NewCharacterSheetHandler(r.Container.CharacterService)
	}
	healthHandler := api.NewHealthHandler(r.Container.Health, r.Container.Hub, Version)
	feedHandler := ws.NewHandler(r.Container.Hub, r.Container.CampaignService.Guard(), r.Config.Security.AllowedOrigins)

	r.Engine.GET("/health", healthHandler.Check)
	if r.Config.Observability.MetricsEnabled {
		r.Engine.GET("/metrics", r.Container.Telemetry.Handler())
	}

	v1 := r.Engine.Group("/api/v1")

	// Public routes (no auth required)
	v1.GET("/health", healthHandler.Check)
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/me", jwtAuth, authHandler.Me)
	}

	// Protected routes (require authentication)
	protected := v1.Group("")
	protected.Use(jwtAuth)

	campaigns := protected.Group("/campaigns")
	{
		campaigns.GET("", campaignHandler.List)
		campaigns.POST("", campaignHandler.Create)
		campaigns.GET("/:id", campaignHandler.Get)
		campaigns.PUT("/:id", campaignHandler.Update)
		campaigns.DELETE("/:id", campaignHandler.Delete)
		campaigns.GET("/:id/join-code", campaignHandler.JoinCode)
		campaigns.POST("/:id/join-code", campaignHandler.RegenerateJoinCode)
		campaigns.GET("/:id/members", campaignHandler.Members)
		campaigns.DELETE("/:id/members/me", campaignHandler.Leave)
		campaigns.GET("/:id/sessions", sessionHandler.List)
		campaigns.POST("/:id/sessions", sessionHandler.Create)
		campaigns.GET("/:id/characters", characterHandler.ListForCampaign)
		campaigns.POST("/:id/characters", characterHandler.Create)
		campaigns.GET("/:id/feed", feedHandler.ServeFeed)
	}

	protected.POST("/memberships", campaignHandler.Join)

	sessions := protected.Group("/sessions")
	{
		sessions.GET("/:id", sessionHandler.Get)
		sessions.PUT("/:id", sessionHandler.Update)
		sessions.PUT("/:id/notes", sessionHandler.UpdateNotes)
		sessions.DELETE("/:id", sessionHandler.Delete)
	}

	characters := protected.Group("/characters")
	{
		characters.GET("", characterHandler.ListMine)
		characters.GET("/:id", characterHandler.Get)
		characters.PUT("/:id", characterHandler.Update)
		characters.DELETE("/:id", characterHandler.Delete)
	}

	r.Engine.NoRoute(func(c *gin.Context) {
		_ = c.Error(errors.NewNotFoundError("ROUTE_NOT_FOUND", "Route not found"))
	})
}

// characterRoutes is served by either the link or the sheet handler
type characterRoutes interface {
	ListMine(c *gin.Context)
	ListForCampaign(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// corsMiddleware allows the configured origins and the headers websocket upgrades need
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		set[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin != "" && (allowAll || set[origin]):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// bodyLimit caps request bodies at limit bytes
func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
