package models

import (
	"time"
)

// JoinCodeLength is the number of characters in a campaign join code
const JoinCodeLength = 8

// Field length limits shared by validation and the schema
const (
	CampaignNameMaxLen        = 80
	CampaignSystemMaxLen      = 40
	CampaignDescriptionMaxLen = 1000
)

// Campaign is a tabletop game owned by one user and joinable by others via its join code
type Campaign struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:80;not null" json:"name"`
	System      *string   `gorm:"size:40" json:"system,omitempty"`
	Description *string   `gorm:"size:1000" json:"description,omitempty"`
	OwnerID     string    `gorm:"size:64;not null;index" json:"owner_id"`
	JoinCode    string    `gorm:"size:8;not null;uniqueIndex" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false;index" json:"updated_at"`

	Sessions       []Session        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CharacterLinks []CharacterLink  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Characters     []Character      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Members        []CampaignMember `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsOwnedBy reports whether userID owns the campaign
func (c *Campaign) IsOwnedBy(userID string) bool {
	return userID != "" && c.OwnerID == userID
}

// CampaignMember records that a user belongs to a campaign.
// The owner is a member too and always has a row.
type CampaignMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;uniqueIndex:idx_campaign_member" json:"campaign_id"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:idx_campaign_member;index" json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
}

// CampaignResponse is the API view of a campaign. JoinCode is only filled for the owner.
type CampaignResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	System      *string   `json:"system,omitempty"`
	Description *string   `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	IsOwner     bool      `json:"is_owner"`
	JoinCode    string    `json:"join_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToResponse renders the campaign for viewer
func (c *Campaign) ToResponse(viewer string) CampaignResponse {
	resp := CampaignResponse{
		ID:          c.ID,
		Name:        c.Name,
		System:      c.System,
		Description: c.Description,
		OwnerID:     c.OwnerID,
		IsOwner:     c.IsOwnedBy(viewer),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if resp.IsOwner {
		resp.JoinCode = c.JoinCode
	}
	return resp
}

// CampaignRequest is the request body for creating or updating a campaign
type CampaignRequest struct {
	Name        string  `json:"name" binding:"required"`
	System      *string `json:"system"`
	Description *string `json:"description"`
}

// JoinRequest is the request body for joining a campaign by code
type JoinRequest struct {
	JoinCode string `json:"join_code" binding:"required"`
}
