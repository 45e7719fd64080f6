package service

import (
	"context"
	"fmt"
	"strings"

	"dungeon-ledger/backend/internal/models"

	"gorm.io/gorm"
)

// CharacterServiceConfig defines configuration for the character sheet service
type CharacterServiceConfig struct {
	Common
}

// DefaultCharacterServiceConfig returns default configuration
func DefaultCharacterServiceConfig() CharacterServiceConfig {
	return CharacterServiceConfig{}
}

// CharacterInput carries the editable fields of a character sheet.
// A nil Level means level 1 and a blank Status means active.
type CharacterInput struct {
	Name   string
	Class  *string
	Level  *int
	Status string
	Notes  *string
}

func (in CharacterInput) normalize() (models.Character, error) {
	var err error
	out := models.Character{Level: models.CharacterMinLevel, Status: models.CharacterActive}
	if out.Name, err = requiredText("name", in.Name, models.CharacterNameMaxLen); err != nil {
		return out, err
	}
	if out.Class, err = optionalText("class", in.Class, models.CharacterClassMaxLen); err != nil {
		return out, err
	}
	if in.Level != nil {
		if *in.Level < models.CharacterMinLevel || *in.Level > models.CharacterMaxLevel {
			return out, invalid("level", "must be between %d and %d", models.CharacterMinLevel, models.CharacterMaxLevel)
		}
		out.Level = *in.Level
	}
	if status := strings.ToLower(strings.TrimSpace(in.Status)); status != "" {
		out.Status = models.CharacterStatus(status)
		if !out.Status.Valid() {
			return out, invalid("status", "must be one of active, retired, dead")
		}
	}
	if out.Notes, err = optionalText("notes", in.Notes, models.CharacterNotesMaxLen); err != nil {
		return out, err
	}
	return out, nil
}

// CharacterService owns the character sheets players keep inside campaigns.
// Visibility matches character links: owners see their own, the campaign owner sees all.
type CharacterService struct {
	db      *gorm.DB
	config  CharacterServiceConfig
	common  Common
	guard   *AccessGuard
	metrics *serviceMetrics
}

// NewCharacterService creates a new character service with default config
func NewCharacterService(db *gorm.DB) *CharacterService {
	return NewCharacterServiceWithConfig(db, DefaultCharacterServiceConfig())
}

// NewCharacterServiceWithConfig creates a new character service with custom config
func NewCharacterServiceWithConfig(db *gorm.DB, config CharacterServiceConfig) *CharacterService {
	return &CharacterService{
		db:      db,
		config:  config,
		common:  config.Common.withDefaults(),
		guard:   NewAccessGuard(db),
		metrics: defaultMetrics(),
	}
}

// ListForUser returns every character id owns across campaigns, by name
func (s *CharacterService) ListForUser(ctx context.Context, id Identity) (characters []models.Character, err error) {
	ctx, span := tracer.Start(ctx, "CharacterService.ListForUser")
	defer finish(span, &err)

	characters = []models.Character{}
	if !id.Authenticated() {
		return characters, nil
	}

	err = s.db.WithContext(ctx).
		Where("owner_user_id = ?", id.UserID).
		Order("name ASC").
		Order("id ASC").
		Find(&characters).Error
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return characters, nil
}

// ListForCampaign returns the characters of a campaign by name.
// The campaign owner sees every character, other members only their own and non-members nothing.
func (s *CharacterService) ListForCampaign(ctx context.Context, campaignID uint, id Identity) (characters []models.Character, err error) {
	ctx, span := tracer.Start(ctx, "CharacterService.ListForCampaign")
	defer finish(span, &err)

	characters = []models.Character{}
	member, err := s.guard.IsCampaignMember(ctx, campaignID, id)
	if err != nil || !member {
		return characters, err
	}
	owner, err := s.guard.IsCampaignOwner(ctx, campaignID, id)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID)
	if !owner {
		query = query.Where("owner_user_id = ?", id.UserID)
	}
	if err := query.Order("name ASC").Order("id ASC").Find(&characters).Error; err != nil {
		return nil, fmt.Errorf("list campaign characters: %w", err)
	}
	return characters, nil
}

// Get returns a character to its owner or to the owner of its campaign
func (s *CharacterService) Get(ctx context.Context, characterID uint, id Identity) (character *models.Character, err error) {
	ctx, span := tracer.Start(ctx, "CharacterService.Get")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotFound
	}

	var found models.Character
	if err := s.db.WithContext(ctx).First(&found, characterID).Error; err != nil {
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

// Create adds a character owned by id to a campaign id belongs to
func (s *CharacterService) Create(ctx context.Context, campaignID uint, in CharacterInput, id Identity) (character *models.Character, err error) {
	ctx, span := tracer.Start(ctx, "CharacterService.Create")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	created, err := in.normalize()
	if err != nil {
		return nil, err
	}
	now := s.common.now()
	created.CampaignID = campaignID
	created.OwnerUserID = id.UserID
	created.CreatedAt = now
	created.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.guard.In(tx).IsCampaignMember(ctx, campaignID, id)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotFound
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return touchCampaign(tx, campaignID, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.add(ctx, s.metrics.charactersCreated)
	s.publish(ctx, EventCharacterCreated, &created, id)
	return &created, nil
}

// Update replaces the sheet of a character id owns
func (s *CharacterService) Update(ctx context.Context, characterID uint, in CharacterInput, id Identity) (character *models.Character, err error) {
	ctx, span := tracer.Start(ctx, "CharacterService.Update")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	fields, err := in.normalize()
	if err != nil {
		return nil, err
	}

	var found models.Character
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwned(ctx, tx, characterID, id, &found); err != nil {
			return err
		}

		now := s.common.now()
		found.Name = fields.Name
		found.Class = fields.Class
		found.Level = fields.Level
		found.Status = fields.Status
		found.Notes = fields.Notes
		found.UpdatedAt = now

		err := tx.Model(&models.Character{}).Where("id = ?", found.ID).Updates(map[string]any{
			"name":       found.Name,
			"class":      found.Class,
			"level":      found.Level,
			"status":     found.Status,
			"notes":      found.Notes,
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

	s.publish(ctx, EventCharacterUpdated, &found, id)
	return &found, nil
}

// Delete removes a character id owns
func (s *CharacterService) Delete(ctx context.Context, characterID uint, id Identity) (err error) {
	ctx, span := tracer.Start(ctx, "CharacterService.Delete")
	defer finish(span, &err)

	if !id.Authenticated() {
		return ErrNotAuthenticated
	}

	var found models.Character
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwned(ctx, tx, characterID, id, &found); err != nil {
			return err
		}
		if err := tx.Delete(&models.Character{}, found.ID).Error; err != nil {
			return err
		}
		return touchCampaign(tx, found.CampaignID, s.common.now())
	})
	if err != nil {
		return err
	}

	s.publish(ctx, EventCharacterDeleted, &found, id)
	return nil
}

func (s *CharacterService) loadOwned(ctx context.Context, tx *gorm.DB, characterID uint, id Identity, found *models.Character) error {
	if err := tx.Where("id = ? AND owner_user_id = ?", characterID, id.UserID).First(found).Error; err != nil {
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

func (s *CharacterService) publish(ctx context.Context, eventType string, character *models.Character, id Identity) {
	audience, err := s.guard.ownedAudience(ctx, character.CampaignID, character.OwnerUserID)
	if err != nil {
		s.common.Logger.LogError(err, "Failed to resolve campaign owner for event", "campaign_id", character.CampaignID)
	}

	s.common.Publisher.Publish(Event{
		Type:       eventType,
		CampaignID: character.CampaignID,
		ActorID:    id.UserID,
		Payload:    character,
		At:         s.common.now(),
		Audience:   audience,
	})
}
