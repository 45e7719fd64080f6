package api

import (
	"net/http"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// CampaignHandler serves campaigns and their membership
type CampaignHandler struct {
	campaigns *service.CampaignService
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaigns *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

func campaignResponses(campaigns []models.Campaign, viewer string) []models.CampaignResponse {
	out := make([]models.CampaignResponse, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, campaigns[i].ToResponse(viewer))
	}
	return out
}

type campaignRequest models.CampaignRequest

func (r campaignRequest) input() service.CampaignInput {
	return service.CampaignInput{Name: r.Name, System: r.System, Description: r.Description}
}

// List returns the campaigns the caller owns or has joined
func (h *CampaignHandler) List(c *gin.Context) {
	id := identity(c)
	campaigns, err := h.campaigns.ListForUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaignResponses(campaigns, id.UserID)})
}

// Create starts a new campaign owned by the caller
func (h *CampaignHandler) Create(c *gin.Context) {
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id := identity(c)
	campaign, err := h.campaigns.Create(c.Request.Context(), req.input(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign.ToResponse(id.UserID))
}

// Get returns a campaign to any of its members
func (h *CampaignHandler) Get(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	id := identity(c)
	campaign, err := h.campaigns.GetForMember(c.Request.Context(), campaignID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign.ToResponse(id.UserID))
}

// Update changes a campaign the caller owns
func (h *CampaignHandler) Update(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id := identity(c)
	campaign, err := h.campaigns.Update(c.Request.Context(), campaignID, req.input(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign.ToResponse(id.UserID))
}

// Delete removes a campaign the caller owns with everything in it
func (h *CampaignHandler) Delete(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.campaigns.Delete(c.Request.Context(), campaignID, identity(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// JoinCode shows the join code to the owner
func (h *CampaignHandler) JoinCode(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	campaign, err := h.campaigns.GetOwned(c.Request.Context(), campaignID, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"join_code": campaign.JoinCode})
}

// RegenerateJoinCode replaces the join code; the old one stops working
func (h *CampaignHandler) RegenerateJoinCode(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	campaign, err := h.campaigns.RegenerateJoinCode(c.Request.Context(), campaignID, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"join_code": campaign.JoinCode})
}

// Members lists who belongs to a campaign
func (h *CampaignHandler) Members(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := h.campaigns.ListMembers(c.Request.Context(), campaignID, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// Leave removes the caller from a campaign they joined
func (h *CampaignHandler) Leave(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.campaigns.Leave(c.Request.Context(), campaignID, identity(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Join adds the caller to the campaign with the given join code
func (h *CampaignHandler) Join(c *gin.Context) {
	var req models.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id := identity(c)
	campaign, err := h.campaigns.JoinByCode(c.Request.Context(), req.JoinCode, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign.ToResponse(id.UserID))
}
