package api

import (
	"net/http"
	"time"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler serves the sessions of campaigns.
// Times are entered and shown as local wall-clock time; the timezone comes from
// the request and defaults to the configured display zone.
type SessionHandler struct {
	sessions *service.SessionService
	display  *time.Location
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService, display *time.Location) *SessionHandler {
	if display == nil {
		display = time.UTC
	}
	return &SessionHandler{sessions: sessions, display: display}
}

// location resolves the zone for rendering from the timezone query parameter
func (h *SessionHandler) location(c *gin.Context) (*time.Location, bool) {
	loc, err := service.ResolveLocation(c.Query("timezone"), h.display)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return loc, true
}

func (h *SessionHandler) input(c *gin.Context) (service.SessionInput, *time.Location, bool) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return service.SessionInput{}, nil, false
	}

	loc, err := service.ResolveLocation(req.Timezone, h.display)
	if err != nil {
		fail(c, err)
		return service.SessionInput{}, nil, false
	}
	scheduled, err := service.ParseLocalTime(req.ScheduledAt, loc)
	if err != nil {
		fail(c, err)
		return service.SessionInput{}, nil, false
	}

	return service.SessionInput{
		Title:          req.Title,
		ScheduledAt:    scheduled,
		LocationOrLink: req.LocationOrLink,
		Notes:          req.Notes,
		Summary:        req.Summary,
		NextSteps:      req.NextSteps,
	}, loc, true
}

// List returns the sessions of a campaign the caller belongs to
func (h *SessionHandler) List(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	loc, ok := h.location(c)
	if !ok {
		return
	}

	id := identity(c)
	sessions, err := h.sessions.ListForCampaign(c.Request.Context(), campaignID, id)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]models.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessions[i].ToResponse(id.UserID, loc))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// Create schedules a session in a campaign
func (h *SessionHandler) Create(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, loc, ok := h.input(c)
	if !ok {
		return
	}

	id := identity(c)
	session, err := h.sessions.Create(c.Request.Context(), campaignID, in, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session.ToResponse(id.UserID, loc))
}

// Get returns one session
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	loc, ok := h.location(c)
	if !ok {
		return
	}

	id := identity(c)
	session, err := h.sessions.Get(c.Request.Context(), sessionID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session.ToResponse(id.UserID, loc))
}

// Update changes a session the caller created
func (h *SessionHandler) Update(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, loc, ok := h.input(c)
	if !ok {
		return
	}

	id := identity(c)
	session, err := h.sessions.Update(c.Request.Context(), sessionID, in, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session.ToResponse(id.UserID, loc))
}

// UpdateNotes replaces only the notes of a session the caller created
func (h *SessionHandler) UpdateNotes(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	loc, ok := h.location(c)
	if !ok {
		return
	}

	var req models.SessionNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id := identity(c)
	session, err := h.sessions.UpdateNotes(c.Request.Context(), sessionID, req.Notes, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session.ToResponse(id.UserID, loc))
}

// Delete removes a session the caller created
func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), sessionID, identity(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
