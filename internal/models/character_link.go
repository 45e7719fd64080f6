package models

import (
	"time"
)

// Field length limits for character links
const (
	CharacterLinkNameMaxLen = 80
	CharacterLinkURLMaxLen  = 500
)

// CharacterLink references an external character sheet.
// It belongs to one campaign and exactly one owning user.
type CharacterLink struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CampaignID  uint      `gorm:"not null;index" json:"campaign_id"`
	OwnerUserID string    `gorm:"size:64;not null;index" json:"owner_user_id"`
	Name        string    `gorm:"size:80;not null" json:"name"`
	URL         string    `gorm:"column:url;size:500;not null" json:"url"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// CharacterLinkRequest is the request body for creating or updating a character link
type CharacterLinkRequest struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
}
