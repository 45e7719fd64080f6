package service

import (
	"context"
	"fmt"

	"dungeon-ledger/backend/internal/models"

	"gorm.io/gorm"
)

// CharacterLinkServiceConfig defines configuration for the character link service
type CharacterLinkServiceConfig struct {
	Common
	// AllowedHosts optionally restricts link URLs to these hosts and their subdomains
	AllowedHosts []string
}

// DefaultCharacterLinkServiceConfig returns default configuration
func DefaultCharacterLinkServiceConfig() CharacterLinkServiceConfig {
	return CharacterLinkServiceConfig{}
}

// CharacterLinkInput carries the editable character link fields
type CharacterLinkInput struct {
	Name string
	URL  string
}

func (in CharacterLinkInput) normalize(allowedHosts []string) (CharacterLinkInput, error) {
	var err error
	out := CharacterLinkInput{}
	if out.Name, err = requiredText("name", in.Name, models.CharacterLinkNameMaxLen); err != nil {
		return out, err
	}
	if out.URL, err = ValidateCharacterURL(in.URL, allowedHosts); err != nil {
		return out, err
	}
	return out, nil
}

// CharacterLinkService owns the character sheet links players attach to campaigns
type CharacterLinkService struct {
	db      *gorm.DB
	config  CharacterLinkServiceConfig
	common  Common
	guard   *AccessGuard
	metrics *serviceMetrics
}

// NewCharacterLinkService creates a new character link service with default config
func NewCharacterLinkService(db *gorm.DB) *CharacterLinkService {
	return NewCharacterLinkServiceWithConfig(db, DefaultCharacterLinkServiceConfig())
}

// NewCharacterLinkServiceWithConfig creates a new character link service with custom config
func NewCharacterLinkServiceWithConfig(db *gorm.DB, config CharacterLinkServiceConfig) *CharacterLinkService {
	return &CharacterLinkService{
		db:      db,
		config:  config,
		common:  config.Common.withDefaults(),
		guard:   NewAccessGuard(db),
		metrics: defaultMetrics(),
	}
}

// ListForUser returns every link id owns across campaigns, by name
func (s *CharacterLinkService) ListForUser(ctx context.Context, id Identity) (links []models.CharacterLink, err error) {
	ctx, span := tracer.Start(ctx, "CharacterLinkService.ListForUser")
	defer finish(span, &err)

	links = []models.CharacterLink{}
	if !id.Authenticated() {
		return links, nil
	}

	err = s.db.WithContext(ctx).
		Where("owner_user_id = ?", id.UserID).
		Order("name ASC").
		Order("id ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list character links: %w", err)
	}
	return links, nil
}

// ListForCampaign returns the links of a campaign by name.
// The campaign owner sees every link, other members only their own and non-members nothing.
func (s *CharacterLinkService) ListForCampaign(ctx context.Context, campaignID uint, id Identity) (links []models.CharacterLink, err error) {
	ctx, span := tracer.Start(ctx, "CharacterLinkService.ListForCampaign")
	defer finish(span, &err)

	links = []models.CharacterLink{}
	member, err := s.guard.IsCampaignMember(ctx, campaignID, id)
	if err != nil {
		return nil, err
	}
	if !member {
		return links, nil
	}

	owner, err := s.guard.IsCampaignOwner(ctx, campaignID, id)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID)
	if !owner {
		query = query.Where("owner_user_id = ?", id.UserID)
	}
	if err := query.Order("name ASC").Order("id ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list campaign character links: %w", err)
	}
	return links, nil
}

// Get returns a link to its owner or to the owner of its campaign
func (s *CharacterLinkService) Get(ctx context.Context, linkID uint, id Identity) (link *models.CharacterLink, err error) {
	ctx, span := tracer.Start(ctx, "CharacterLinkService.Get")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotFound
	}

	var found models.CharacterLink
	if err := s.db.WithContext(ctx).First(&found, linkID).Error; err != nil {
		return nil, notFoundOr(err)
	}
	visible, err := s.guard.CanViewOwned(ctx, found.CampaignID, found.OwnerUserID, id)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrNotFound
	}
	return &found, nil
}

// loadOwned loads a link id owns in a campaign id still belongs to
func (s *CharacterLinkService) loadOwned(ctx context.Context, tx *gorm.DB, linkID uint, id Identity, found *models.CharacterLink) error {
	if err := tx.Where("id = ? AND owner_user_id = ?", linkID, id.UserID).First(found).Error; err != nil {
		return notFoundOr(err)
	}
	editable, err := s.guard.In(tx).CanEditOwned(ctx, found.CampaignID, found.OwnerUserID, id)
	if err != nil {
		return err
	}
	if !editable {
		return ErrNotFound
	}
	return nil
}

// Create adds a link owned by id to a campaign id belongs to
func (s *CharacterLinkService) Create(ctx context.Context, campaignID uint, in CharacterLinkInput, id Identity) (link *models.CharacterLink, err error) {
	ctx, span := tracer.Start(ctx, "CharacterLinkService.Create")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	fields, err := in.normalize(s.config.AllowedHosts)
	if err != nil {
		return nil, err
	}

	now := s.common.now()
	created := &models.CharacterLink{
		CampaignID:  campaignID,
		OwnerUserID: id.UserID,
		Name:        fields.Name,
		URL:         fields.URL,
		CreatedAt:   now,
		UpdatedAt:   now,
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

	s.metrics.add(ctx, s.metrics.characterLinksCreated)
	s.publish(ctx, EventCharacterLinkCreated, created, id)
	return created, nil
}

// Update changes name and URL of a link id owns
func (s *CharacterLinkService) Update(ctx context.Context, linkID uint, in CharacterLinkInput, id Identity) (link *models.CharacterLink, err error) {
	ctx, span := tracer.Start(ctx, "CharacterLinkService.Update")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	fields, err := in.normalize(s.config.AllowedHosts)
	if err != nil {
		return nil, err
	}

	var found models.CharacterLink
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwned(ctx, tx, linkID, id, &found); err != nil {
			return err
		}

		now := s.common.now()
		found.Name = fields.Name
		found.URL = fields.URL
		found.UpdatedAt = now

		err := tx.Model(&models.CharacterLink{}).Where("id = ?", found.ID).Updates(map[string]any{
			"name":       found.Name,
			"url":        found.URL,
			"updated_at": found.UpdatedAt,
		}).Error
		if err != nil {
			return err
		}
		return touchCampaign(tx, found.CampaignID, now)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventCharacterLinkUpdated, &found, id)
	return &found, nil
}

// Delete removes a link id owns
func (s *CharacterLinkService) Delete(ctx context.Context, linkID uint, id Identity) (err error) {
	ctx, span := tracer.Start(ctx, "CharacterLinkService.Delete")
	defer finish(span, &err)

	if !id.Authenticated() {
		return ErrNotAuthenticated
	}

	var found models.CharacterLink
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwned(ctx, tx, linkID, id, &found); err != nil {
			return err
		}
		if err := tx.Delete(&models.CharacterLink{}, found.ID).Error; err != nil {
			return err
		}
		return touchCampaign(tx, found.CampaignID, s.common.now())
	})
	if err != nil {
		return err
	}

	s.publish(ctx, EventCharacterLinkDeleted, &found, id)
	return nil
}

// publish sends link events only to the link owner and the campaign owner,
// matching who may list the link
func (s *CharacterLinkService) publish(ctx context.Context, eventType string, link *models.CharacterLink, id Identity) {
	audience, err := s.guard.ownedAudience(ctx, link.CampaignID, link.OwnerUserID)
	if err != nil {
		s.common.Logger.LogError(err, "Failed to resolve campaign owner for event", "campaign_id", link.CampaignID)
	}

	s.common.Publisher.Publish(Event{
		Type:       eventType,
		CampaignID: link.CampaignID,
		ActorID:    id.UserID,
		Payload:    link,
		At:         s.common.now(),
		Audience:   audience,
	})
}
