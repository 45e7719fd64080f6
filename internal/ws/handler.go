package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"dungeon-ledger/backend/internal/service"
	apperrors "dungeon-ledger/backend/pkg/errors"
	"dungeon-ledger/backend/pkg/logger"
	"dungeon-ledger/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MembershipChecker decides who may follow a campaign feed
type MembershipChecker interface {
	IsCampaignMember(ctx context.Context, campaignID uint, id service.Identity) (bool, error)
}

// Handler upgrades feed requests of campaign members
type Handler struct {
	hub      *Hub
	members  MembershipChecker
	upgrader websocket.Upgrader
}

// NewHandler creates a feed handler. allowedOrigins of "*" or nothing accepts every origin.
func NewHandler(hub *Hub, members MembershipChecker, allowedOrigins []string) *Handler {
	return &Handler{
		hub:     hub,
		members: members,
		upgrader: websocket.Upgrader{
			CheckOrigin:      originChecker(allowedOrigins),
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeFeed handles GET /campaigns/:id/feed
func (h *Handler) ServeFeed(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		_ = c.Error(apperrors.NewNotFoundError("NOT_FOUND", "Campaign not found"))
		return
	}

	id := service.NewIdentity(middleware.UserID(c))
	member, err := h.members.IsCampaignMember(c.Request.Context(), uint(campaignID), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !member {
		_ = c.Error(apperrors.NewNotFoundError("NOT_FOUND", "Campaign not found"))
		return
	}

	log := logger.FromGin(c).WithCampaignID(uint(campaignID))
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already answered the request
		log.Debug("Feed upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		ID:         uuid.NewString(),
		UserID:     id.UserID,
		CampaignID: uint(campaignID),
		Conn:       conn,
		Send:       make(chan []byte, 64),
		Hub:        h.hub,
		log:        log,
	}
	if !h.hub.add(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	log.Info("Feed connection established", "client_id", client.ID)

	go client.WritePump()
	go client.ReadPump()
}
