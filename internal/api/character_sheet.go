package api

import (
	"net/http"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// CharacterSheetHandler serves characters kept inside the app.
// It answers the same routes as CharacterHandler when sheets are enabled.
type CharacterSheetHandler struct {
	characters *service.CharacterService
}

// NewCharacterSheetHandler creates a new character sheet handler
func NewCharacterSheetHandler(characters *service.CharacterService) *CharacterSheetHandler {
	return &CharacterSheetHandler{characters: characters}
}

func bindCharacter(c *gin.Context) (service.CharacterInput, bool) {
	var req models.CharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return service.CharacterInput{}, false
	}
	return service.CharacterInput{
		Name:   req.Name,
		Class:  req.Class,
		Level:  req.Level,
		Status: req.Status,
		Notes:  req.Notes,
	}, true
}

// ListMine returns the caller's characters across all campaigns
func (h *CharacterSheetHandler) ListMine(c *gin.Context) {
	characters, err := h.characters.ListForUser(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": characters})
}

// ListForCampaign returns the characters of a campaign the caller may see
func (h *CharacterSheetHandler) ListForCampaign(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}

	characters, err := h.characters.ListForCampaign(c.Request.Context(), campaignID, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": characters})
}

// Create adds a character for the caller to a campaign
func (h *CharacterSheetHandler) Create(c *gin.Context) {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := bindCharacter(c)
	if !ok {
		return
	}

	character, err := h.characters.Create(c.Request.Context(), campaignID, in, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, character)
}

// Get returns a character to its owner or the campaign owner
func (h *CharacterSheetHandler) Get(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	character, err := h.characters.Get(c.Request.Context(), characterID, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}

// Update replaces a character the caller owns
func (h *CharacterSheetHandler) Update(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}
	in, ok := bindCharacter(c)
	if !ok {
		return
	}

	character, err := h.characters.Update(c.Request.Context(), characterID, in, identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}

// Delete removes a character the caller owns
func (h *CharacterSheetHandler) Delete(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.characters.Delete(c.Request.Context(), characterID, identity(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
