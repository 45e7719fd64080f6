package api

import (
	"net/http"
	"time"

	"dungeon-ledger/backend/pkg/health"

	"github.com/gin-gonic/gin"
)

// ConnectionCounter reports open feed connections
type ConnectionCounter interface {
	ActiveConnections() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *health.Checker
	feeds   ConnectionCounter
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.Checker, feeds ConnectionCounter, version string) *HealthHandler {
	return &HealthHandler{checker: checker, feeds: feeds, version: version}
}

// Check reports the last results of the health checker
func (h *HealthHandler) Check(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if !h.checker.IsSystemHealthy() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":     status,
		"version":    h.version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": h.checker.GetStatus(),
	}
	if h.feeds != nil {
		body["feed_connections"] = h.feeds.ActiveConnections()
	}
	c.JSON(code, body)
}
