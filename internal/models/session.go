package models

import (
	"time"
)

// Field length limits for sessions
const (
	SessionTitleMaxLen    = 100
	SessionLocationMaxLen = 200
	SessionTextMaxLen     = 2000
)

// LocalTimeLayout is the wall-clock format sessions are entered and displayed in
const LocalTimeLayout = "2006-01-02T15:04"

// Session is a scheduled game meeting of a campaign.
// ScheduledAt is always stored in UTC.
type Session struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CampaignID      uint      `gorm:"not null;index" json:"campaign_id"`
	Title           string    `gorm:"size:100;not null" json:"title"`
	ScheduledAt     time.Time `gorm:"not null;index" json:"scheduled_at"`
	LocationOrLink  *string   `gorm:"size:200" json:"location_or_link,omitempty"`
	Notes           *string   `gorm:"size:2000" json:"notes,omitempty"`
	Summary         *string   `gorm:"size:2000" json:"summary,omitempty"`
	NextSteps       *string   `gorm:"size:2000" json:"next_steps,omitempty"`
	CreatedByUserID string    `gorm:"size:64;not null;index" json:"created_by_user_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// SessionResponse is the API view of a session
type SessionResponse struct {
	Session
	ScheduledLocal string `json:"scheduled_local"`
	Timezone       string `json:"timezone"`
	IsCreator      bool   `json:"is_creator"`
}

// ToResponse renders the session in loc for viewer
func (s *Session) ToResponse(viewer string, loc *time.Location) SessionResponse {
	if loc == nil {
		loc = time.UTC
	}
	return SessionResponse{
		Session:        *s,
		ScheduledLocal: s.ScheduledAt.In(loc).Format(LocalTimeLayout),
		Timezone:       loc.String(),
		IsCreator:      viewer != "" && s.CreatedByUserID == viewer,
	}
}

// SessionRequest is the request body for creating or updating a session.
// ScheduledAt is local wall-clock time in LocalTimeLayout, interpreted in Timezone.
type SessionRequest struct {
	Title          string  `json:"title" binding:"required"`
	ScheduledAt    string  `json:"scheduled_at" binding:"required"`
	Timezone       string  `json:"timezone"`
	LocationOrLink *string `json:"location_or_link"`
	Notes          *string `json:"notes"`
	Summary        *string `json:"summary"`
	NextSteps      *string `json:"next_steps"`
}

// SessionNotesRequest is the request body for replacing only the notes of a session
type SessionNotesRequest struct {
	Notes *string `json:"notes"`
}
