package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dungeon-ledger/backend/internal/models"

	"gorm.io/gorm"
)

// SessionOrder is the direction sessions are listed by scheduled time
type SessionOrder string

const (
	SessionOrderDesc SessionOrder = "desc"
	SessionOrderAsc  SessionOrder = "asc"
)

// SessionServiceConfig defines configuration for the session service
type SessionServiceConfig struct {
	Common
	Order SessionOrder
}

// DefaultSessionServiceConfig returns default configuration
func DefaultSessionServiceConfig() SessionServiceConfig {
	return SessionServiceConfig{Order: SessionOrderDesc}
}

// SessionInput carries the editable session fields.
// ScheduledAt may be in any location; it is stored in UTC.
// Notes are only read by Create, Update leaves them to UpdateNotes.
type SessionInput struct {
	Title          string
	ScheduledAt    time.Time
	LocationOrLink *string
	Notes          *string
	Summary        *string
	NextSteps      *string
}

func (in SessionInput) normalize() (SessionInput, error) {
	var err error
	out := SessionInput{}
	if out.Title, err = requiredText("title", in.Title, models.SessionTitleMaxLen); err != nil {
		return out, err
	}
	if in.ScheduledAt.IsZero() {
		return out, invalid("scheduled_at", "is required")
	}
	out.ScheduledAt = in.ScheduledAt.UTC()
	if out.LocationOrLink, err = optionalText("location_or_link", in.LocationOrLink, models.SessionLocationMaxLen); err != nil {
		return out, err
	}
	if out.Summary, err = optionalText("summary", in.Summary, models.SessionTextMaxLen); err != nil {
		return out, err
	}
	if out.NextSteps, err = optionalText("next_steps", in.NextSteps, models.SessionTextMaxLen); err != nil {
		return out, err
	}
	return out, nil
}

// notesText keeps the formatting of notes and only maps blank notes to nil
func notesText(notes *string) (*string, error) {
	if notes == nil || strings.TrimSpace(*notes) == "" {
		return nil, nil
	}
	if len([]rune(*notes)) > models.SessionTextMaxLen {
		return nil, invalid("notes", "must be at most %d characters", models.SessionTextMaxLen)
	}
	n := *notes
	return &n, nil
}

// SessionService owns scheduled sessions of campaigns
type SessionService struct {
	db      *gorm.DB
	config  SessionServiceConfig
	common  Common
	guard   *AccessGuard
	metrics *serviceMetrics
}

// NewSessionService creates a new session service with default config
func NewSessionService(db *gorm.DB) *SessionService {
	return NewSessionServiceWithConfig(db, DefaultSessionServiceConfig())
}

// NewSessionServiceWithConfig creates a new session service with custom config
func NewSessionServiceWithConfig(db *gorm.DB, config SessionServiceConfig) *SessionService {
	if config.Order != SessionOrderAsc {
		config.Order = SessionOrderDesc
	}
	return &SessionService{
		db:      db,
		config:  config,
		common:  config.Common.withDefaults(),
		guard:   NewAccessGuard(db),
		metrics: defaultMetrics(),
	}
}

// ListForCampaign returns the sessions of a campaign id belongs to, by scheduled time.
// Non-members get an empty list.
func (s *SessionService) ListForCampaign(ctx context.Context, campaignID uint, id Identity) (sessions []models.Session, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.ListForCampaign")
	defer finish(span, &err)

	sessions = []models.Session{}
	member, err := s.guard.IsCampaignMember(ctx, campaignID, id)
	if err != nil {
		return nil, err
	}
	if !member {
		return sessions, nil
	}

	direction := "DESC"
	if s.config.Order == SessionOrderAsc {
		direction = "ASC"
	}

	err = s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("scheduled_at " + direction).
		Order("id " + direction).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Get returns a session when id belongs to its campaign
func (s *SessionService) Get(ctx context.Context, sessionID uint, id Identity) (session *models.Session, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Get")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotFound
	}

	var found models.Session
	if err := s.db.WithContext(ctx).First(&found, sessionID).Error; err != nil {
		return nil, notFoundOr(err)
	}

	member, err := s.guard.IsCampaignMember(ctx, found.CampaignID, id)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotFound
	}
	return &found, nil
}

// Create schedules a session in a campaign id belongs to and records id as its creator
func (s *SessionService) Create(ctx context.Context, campaignID uint, in SessionInput, id Identity) (session *models.Session, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Create")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	fields, err := in.normalize()
	if err != nil {
		return nil, err
	}
	if fields.Notes, err = notesText(in.Notes); err != nil {
		return nil, err
	}

	now := s.common.now()
	created := &models.Session{
		CampaignID:      campaignID,
		Title:           fields.Title,
		ScheduledAt:     fields.ScheduledAt,
		LocationOrLink:  fields.LocationOrLink,
		Notes:           fields.Notes,
		Summary:         fields.Summary,
		NextSteps:       fields.NextSteps,
		CreatedByUserID: id.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.guard.In(tx).IsCampaignMember(ctx, campaignID, id)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotFound
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}
		return touchCampaign(tx, campaignID, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.add(ctx, s.metrics.sessionsCreated)
	s.common.Logger.Info("Session created", "session_id", created.ID, "campaign_id", campaignID, "user_id", id.UserID)
	s.publish(EventSessionCreated, created, id)
	return created, nil
}

// Update changes title, schedule, location, summary and next steps of a session id created.
// Notes are left alone, see UpdateNotes.
func (s *SessionService) Update(ctx context.Context, sessionID uint, in SessionInput, id Identity) (session *models.Session, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Update")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	fields, err := in.normalize()
	if err != nil {
		return nil, err
	}

	return s.modify(ctx, sessionID, id, func(found *models.Session) map[string]any {
		found.Title = fields.Title
		found.ScheduledAt = fields.ScheduledAt
		found.LocationOrLink = fields.LocationOrLink
		found.Summary = fields.Summary
		found.NextSteps = fields.NextSteps
		return map[string]any{
			"title":            found.Title,
			"scheduled_at":     found.ScheduledAt,
			"location_or_link": found.LocationOrLink,
			"summary":          found.Summary,
			"next_steps":       found.NextSteps,
		}
	})
}

// UpdateNotes replaces only the notes of a session id created
func (s *SessionService) UpdateNotes(ctx context.Context, sessionID uint, notes *string, id Identity) (session *models.Session, err error) {
	ctx, span := tracer.Start(ctx, "SessionService.UpdateNotes")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	cleaned, err := notesText(notes)
	if err != nil {
		return nil, err
	}

	return s.modify(ctx, sessionID, id, func(found *models.Session) map[string]any {
		found.Notes = cleaned
		return map[string]any{"notes": found.Notes}
	})
}

// modify loads a session created by id, applies change and touches the parent campaign
func (s *SessionService) modify(ctx context.Context, sessionID uint, id Identity, change func(*models.Session) map[string]any) (*models.Session, error) {
	var found models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadCreated(ctx, tx, sessionID, id, &found); err != nil {
			return err
		}

		now := s.common.now()
		updates := change(&found)
		found.UpdatedAt = now
		updates["updated_at"] = now

		if err := tx.Model(&models.Session{}).Where("id = ?", found.ID).Updates(updates).Error; err != nil {
			return err
		}
		return touchCampaign(tx, found.CampaignID, now)
	})
	if err != nil {
		return nil, err
	}

	s.publish(EventSessionUpdated, &found, id)
	return &found, nil
}

// loadCreated loads a session created by id in a campaign id still belongs to
func (s *SessionService) loadCreated(ctx context.Context, tx *gorm.DB, sessionID uint, id Identity, found *models.Session) error {
	if err := tx.Where("id = ? AND created_by_user_id = ?", sessionID, id.UserID).First(found).Error; err != nil {
		return notFoundOr(err)
	}
	member, err := s.guard.In(tx).IsCampaignMember(ctx, found.CampaignID, id)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session id created
func (s *SessionService) Delete(ctx context.Context, sessionID uint, id Identity) (err error) {
	ctx, span := tracer.Start(ctx, "SessionService.Delete")
	defer finish(span, &err)

	if !id.Authenticated() {
		return ErrNotAuthenticated
	}

	var found models.Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadCreated(ctx, tx, sessionID, id, &found); err != nil {
			return err
		}
		if err := tx.Delete(&models.Session{}, found.ID).Error; err != nil {
			return err
		}
		return touchCampaign(tx, found.CampaignID, s.common.now())
	})
	if err != nil {
		return err
	}

	s.common.Logger.Info("Session deleted", "session_id", sessionID, "campaign_id", found.CampaignID, "user_id", id.UserID)
	s.publish(EventSessionDeleted, &found, id)
	return nil
}

func (s *SessionService) publish(eventType string, session *models.Session, id Identity) {
	s.common.Publisher.Publish(Event{
		Type:       eventType,
		CampaignID: session.CampaignID,
		ActorID:    id.UserID,
		Payload:    session,
		At:         s.common.now(),
	})
}

// touchCampaign bumps the update time of a campaign after a change to one of its children
func touchCampaign(tx *gorm.DB, campaignID uint, now time.Time) error {
	return tx.Model(&models.Campaign{}).Where("id = ?", campaignID).Update("updated_at", now).Error
}
