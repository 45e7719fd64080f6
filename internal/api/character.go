package api

import (
	"net/http"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// CharacterHandler serves character sheet links
type CharacterHandler struct {
	links *service.CharacterLinkService
}

// NewCharacterHandler creates a new character handler
func NewCharacterHandler(links *service.CharacterLinkService) *CharacterHandler {
	return &CharacterHandler{links: links}
}

func bindLink(c *gin.Context) (service.CharacterLinkInput, bool) {
	var req models.CharacterLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return service.CharacterLinkInput{}, false
	}
	return service.CharacterLinkInput{Name: req.Name, URL: req.URL}, true
}

// ListMine returns the caller's links across all campaigns
func (h *CharacterHandler) ListMine(c *gin.Context) {
	links, err := h.links.ListForUser(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": links})
}

// ListForCampaign returns the links of a campaign the caller may see
func (h *CharacterHandler) ListForCampaign(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	links, err := h.links.ListForCampaign(c.Request.Context(), campaignID, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": links})
}

// Create adds a link for the caller to a campaign
func (h *CharacterHandler) Create(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := bindLink(c)
	if !ok {
		return
	}

	link, err := h.links.Create(c.Request.Context(), campaignID, in, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// Get returns a link to its owner or the campaign owner
func (h *CharacterHandler) Get(c *gin.Context) {
	linkID, ok := pathID(c, "id")
	if !ok {
		return
	}

	link, err := h.links.Get(c.Request.Context(), linkID, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// Update changes a link the caller owns
func (h *CharacterHandler) Update(c *gin.Context) {
	linkID, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := bindLink(c)
	if !ok {
		return
	}

	link, err := h.links.Update(c.Request.Context(), linkID, in, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// Delete removes a link the caller owns
func (h *CharacterHandler) Delete(c *gin.Context) {
	linkID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.links.Delete(c.Request.Context(), linkID, identity(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
