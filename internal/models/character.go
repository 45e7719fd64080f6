package models

import (
	"time"
)

// Limits of an in-app character sheet
const (
	CharacterNameMaxLen  = 60
	CharacterClassMaxLen = 60
	CharacterNotesMaxLen = 2000
	CharacterMinLevel    = 1
	CharacterMaxLevel    = 20
)

// CharacterStatus is where a character stands in the story
type CharacterStatus string

const (
	CharacterActive  CharacterStatus = "active"
	CharacterRetired CharacterStatus = "retired"
	CharacterDead    CharacterStatus = "dead"
)

// Valid reports whether s is a known status
func (s CharacterStatus) Valid() bool {
	switch s {
	case CharacterActive, CharacterRetired, CharacterDead:
		return true
	}
	return false
}

// Character is a sheet kept inside the app.
// It belongs to one campaign and exactly one owning user.
type Character struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CampaignID  uint            `gorm:"not null;index" json:"campaign_id"`
	OwnerUserID string          `gorm:"size:64;not null;index" json:"owner_user_id"`
	Name        string          `gorm:"size:60;not null" json:"name"`
	Class       *string         `gorm:"size:60" json:"class,omitempty"`
	Level       int             `gorm:"not null;default:1" json:"level"`
	Status      CharacterStatus `gorm:"size:16;not null;default:active" json:"status"`
	Notes       *string         `gorm:"size:2000" json:"notes,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// CharacterRequest is the request body for creating or updating a character sheet.
// Level defaults to 1 and status to active.
type CharacterRequest struct {
	Name   string  `json:"name" binding:"required"`
	Class  *string `json:"class"`
	Level  *int    `json:"level"`
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}
