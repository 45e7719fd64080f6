package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dungeon-ledger/backend/internal/models"

	"gorm.io/gorm"
)

// CampaignServiceConfig defines configuration for the campaign service
type CampaignServiceConfig struct {
	Common
	// JoinCodeAttempts bounds join-code generation, counting taken codes and insert collisions
	JoinCodeAttempts int
	// GenerateCode produces candidate join codes
	GenerateCode func() string
	// Limiter throttles users that keep entering unknown join codes
	Limiter AttemptLimiter
}

// DefaultCampaignServiceConfig returns default configuration
func DefaultCampaignServiceConfig() CampaignServiceConfig {
	return CampaignServiceConfig{
		JoinCodeAttempts: DefaultJoinCodeAttempts,
		GenerateCode:     GenerateJoinCode,
	}
}

// CampaignInput carries the editable campaign fields
type CampaignInput struct {
	Name        string
	System      *string
	Description *string
}

func (in CampaignInput) normalize() (CampaignInput, error) {
	var err error
	out := CampaignInput{}
	if out.Name, err = requiredText("name", in.Name, models.CampaignNameMaxLen); err != nil {
		return out, err
	}
	if out.System, err = optionalText("system", in.System, models.CampaignSystemMaxLen); err != nil {
		return out, err
	}
	if out.Description, err = optionalText("description", in.Description, models.CampaignDescriptionMaxLen); err != nil {
		return out, err
	}
	return out, nil
}

// CampaignService owns campaign lifecycle and membership
type CampaignService struct {
	db      *gorm.DB
	config  CampaignServiceConfig
	common  Common
	guard   *AccessGuard
	limiter AttemptLimiter
	metrics *serviceMetrics
}

// NewCampaignService creates a new campaign service with default config
func NewCampaignService(db *gorm.DB) *CampaignService {
	return NewCampaignServiceWithConfig(db, DefaultCampaignServiceConfig())
}

// NewCampaignServiceWithConfig creates a new campaign service with custom config
func NewCampaignServiceWithConfig(db *gorm.DB, config CampaignServiceConfig) *CampaignService {
	if config.JoinCodeAttempts <= 0 {
		config.JoinCodeAttempts = DefaultJoinCodeAttempts
	}
	if config.GenerateCode == nil {
		config.GenerateCode = GenerateJoinCode
	}
	limiter := config.Limiter
	if limiter == nil {
		limiter = noLimiter{}
	}

	return &CampaignService{
		db:      db,
		config:  config,
		common:  config.Common.withDefaults(),
		guard:   NewAccessGuard(db),
		limiter: limiter,
		metrics: defaultMetrics(),
	}
}

// Guard exposes the access guard used by the service
func (s *CampaignService) Guard() *AccessGuard {
	return s.guard
}

// ListForUser returns the campaigns id owns or has joined, most recently updated first.
// It repairs the caller's owned campaigns first, see RepairOwned.
func (s *CampaignService) ListForUser(ctx context.Context, id Identity) (campaigns []models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.ListForUser")
	defer finish(span, &err)

	campaigns = []models.Campaign{}
	if !id.Authenticated() {
		return campaigns, nil
	}

	if err := s.RepairOwned(ctx, id); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Where("owner_id = ? OR id IN (SELECT campaign_id FROM campaign_members WHERE user_id = ?)", id.UserID, id.UserID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// RepairOwned backfills legacy rows of the campaigns id owns: a missing owner
// membership row and a blank join code. It is idempotent and persists its changes.
func (s *CampaignService) RepairOwned(ctx context.Context, id Identity) error {
	if !id.Authenticated() {
		return nil
	}

	var owned []models.Campaign
	if err := s.db.WithContext(ctx).Where("owner_id = ?", id.UserID).Find(&owned).Error; err != nil {
		return fmt.Errorf("load owned campaigns: %w", err)
	}

	for i := range owned {
		if err := s.repairOne(ctx, &owned[i]); err != nil {
			return err
		}
	}
	return nil
}

// repairOne makes sure the owner of c is a member and c has a join code
func (s *CampaignService) repairOne(ctx context.Context, c *models.Campaign) error {
	if strings.TrimSpace(c.JoinCode) == "" {
		code, err := s.assignJoinCode(ctx, c.ID)
		if err != nil {
			return err
		}
		c.JoinCode = code
		s.common.Logger.Info("Backfilled campaign join code", "campaign_id", c.ID)
	}

	created, err := s.ensureMembership(ctx, s.db, c.ID, c.OwnerID)
	if err != nil {
		return err
	}
	if created {
		s.common.Logger.Info("Backfilled owner membership", "campaign_id", c.ID, "user_id", c.OwnerID)
	}
	return nil
}

// GetOwned returns the campaign only when id owns it
func (s *CampaignService) GetOwned(ctx context.Context, campaignID uint, id Identity) (campaign *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.GetOwned")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotFound
	}

	var c models.Campaign
	err = s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", campaignID, id.UserID).
		First(&c).Error
	if err != nil {
		return nil, notFoundOr(err)
	}

	if err := s.repairOne(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetForMember returns the campaign when id owns or has joined it
func (s *CampaignService) GetForMember(ctx context.Context, campaignID uint, id Identity) (campaign *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.GetForMember")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotFound
	}

	var c models.Campaign
	err = s.db.WithContext(ctx).
		Where("id = ?", campaignID).
		Where("owner_id = ? OR id IN (SELECT campaign_id FROM campaign_members WHERE user_id = ?)", id.UserID, id.UserID).
		First(&c).Error
	if err != nil {
		return nil, notFoundOr(err)
	}

	if err := s.repairOne(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create stores a new campaign owned by id together with the owner's membership row
func (s *CampaignService) Create(ctx context.Context, in CampaignInput, id Identity) (campaign *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.Create")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	fields, err := in.normalize()
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.config.JoinCodeAttempts; attempt++ {
		code := NormalizeJoinCode(s.config.GenerateCode())

		taken, err := joinCodeTaken(ctx, s.db, code)
		if err != nil {
			return nil, fmt.Errorf("check join code: %w", err)
		}
		if taken {
			s.metrics.add(ctx, s.metrics.joinCodeCollisions)
			continue
		}

		now := s.common.now()
		c := &models.Campaign{
			Name:        fields.Name,
			System:      fields.System,
			Description: fields.Description,
			OwnerID:     id.UserID,
			JoinCode:    code,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(c).Error; err != nil {
				return err
			}
			return tx.Create(&models.CampaignMember{
				CampaignID: c.ID,
				UserID:     id.UserID,
				JoinedAt:   now,
			}).Error
		})
		if err == nil {
			s.metrics.add(ctx, s.metrics.campaignsCreated)
			s.common.Logger.Info("Campaign created", "campaign_id", c.ID, "user_id", id.UserID)
			return c, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("create campaign: %w", err)
		}

		// Another request stored the same code between the check and the insert
		s.metrics.add(ctx, s.metrics.joinCodeCollisions)
		s.common.Logger.Warn("Join code collided on insert, retrying", "attempt", attempt)
	}

	return nil, ErrJoinCodeExhausted
}

// Update changes the editable fields of a campaign owned by id
func (s *CampaignService) Update(ctx context.Context, campaignID uint, in CampaignInput, id Identity) (campaign *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.Update")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	fields, err := in.normalize()
	if err != nil {
		return nil, err
	}

	var c models.Campaign
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND owner_id = ?", campaignID, id.UserID).First(&c).Error; err != nil {
			return notFoundOr(err)
		}

		c.Name = fields.Name
		c.System = fields.System
		c.Description = fields.Description
		c.UpdatedAt = s.common.now()

		return tx.Model(&models.Campaign{}).Where("id = ?", c.ID).Updates(map[string]any{
			"name":        c.Name,
			"system":      c.System,
			"description": c.Description,
			"updated_at":  c.UpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.common.Publisher.Publish(Event{
		Type:       EventCampaignUpdated,
		CampaignID: c.ID,
		ActorID:    id.UserID,
		Payload:    c.ToResponse(""),
		At:         c.UpdatedAt,
	})
	return &c, nil
}

// Delete removes a campaign owned by id with its sessions, characters and memberships
func (s *CampaignService) Delete(ctx context.Context, campaignID uint, id Identity) (err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.Delete")
	defer finish(span, &err)

	if !id.Authenticated() {
		return ErrNotAuthenticated
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owns, err := s.guard.In(tx).IsCampaignOwner(ctx, campaignID, id)
		if err != nil {
			return err
		}
		if !owns {
			return ErrNotFound
		}

		for _, child := range []any{&models.Session{}, &models.CharacterLink{}, &models.Character{}, &models.CampaignMember{}} {
			if err := tx.Where("campaign_id = ?", campaignID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Campaign{}, campaignID).Error
	})
	if err != nil {
		return err
	}

	s.metrics.add(ctx, s.metrics.campaignsDeleted)
	s.common.Logger.Info("Campaign deleted", "campaign_id", campaignID, "user_id", id.UserID)
	s.common.Publisher.Publish(Event{
		Type:       EventCampaignDeleted,
		CampaignID: campaignID,
		ActorID:    id.UserID,
		At:         s.common.now(),
	})
	return nil
}

// JoinByCode adds id as a member of the campaign with the given join code.
// Joining a campaign the caller already belongs to returns it unchanged.
func (s *CampaignService) JoinByCode(ctx context.Context, code string, id Identity) (campaign *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.JoinByCode")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	blocked, err := s.limiter.Blocked(ctx, id.UserID)
	if err != nil {
		s.common.Logger.LogError(err, "Join limiter unavailable", "user_id", id.UserID)
	} else if blocked {
		return nil, ErrTooManyJoinAttempts
	}

	code = NormalizeJoinCode(code)
	var c models.Campaign
	if code != "" {
		err = s.db.WithContext(ctx).Where("UPPER(join_code) = ?", code).First(&c).Error
	} else {
		err = gorm.ErrRecordNotFound
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.add(ctx, s.metrics.joinFailures)
			if err := s.limiter.RecordFailure(ctx, id.UserID); err != nil {
				s.common.Logger.LogError(err, "Failed to record join failure", "user_id", id.UserID)
			}
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find campaign by join code: %w", err)
	}

	if c.IsOwnedBy(id.UserID) {
		if err := s.repairOne(ctx, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}

	created, err := s.ensureMembership(ctx, s.db, c.ID, id.UserID)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.add(ctx, s.metrics.campaignJoins)
		s.common.Logger.Info("Player joined campaign", "campaign_id", c.ID, "user_id", id.UserID)
		s.common.Publisher.Publish(Event{
			Type:       EventMemberJoined,
			CampaignID: c.ID,
			ActorID:    id.UserID,
			At:         s.common.now(),
		})
	}
	return &c, nil
}

// Leave removes the membership of a player. Owners cannot leave their own campaign.
func (s *CampaignService) Leave(ctx context.Context, campaignID uint, id Identity) (err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.Leave")
	defer finish(span, &err)

	if !id.Authenticated() {
		return ErrNotAuthenticated
	}

	owns, err := s.guard.IsCampaignOwner(ctx, campaignID, id)
	if err != nil {
		return err
	}
	if owns {
		return invalid("campaign", "the owner cannot leave their own campaign; delete it instead")
	}

	res := s.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ?", campaignID, id.UserID).
		Delete(&models.CampaignMember{})
	if res.Error != nil {
		return fmt.Errorf("leave campaign: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.common.Publisher.Publish(Event{
		Type:       EventMemberLeft,
		CampaignID: campaignID,
		ActorID:    id.UserID,
		At:         s.common.now(),
	})
	return nil
}

// ListMembers returns the membership rows of a campaign id belongs to, oldest first
func (s *CampaignService) ListMembers(ctx context.Context, campaignID uint, id Identity) (members []models.CampaignMember, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.ListMembers")
	defer finish(span, &err)

	if _, err := s.GetForMember(ctx, campaignID, id); err != nil {
		return nil, err
	}

	members = []models.CampaignMember{}
	err = s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&members).Error
	return members, err
}

// RegenerateJoinCode replaces the join code of a campaign owned by id.
// The old code stops working immediately; existing members are kept.
func (s *CampaignService) RegenerateJoinCode(ctx context.Context, campaignID uint, id Identity) (campaign *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CampaignService.RegenerateJoinCode")
	defer finish(span, &err)

	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	c, err := s.GetOwned(ctx, campaignID, id)
	if err != nil {
		return nil, err
	}

	code, err := s.assignJoinCode(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.JoinCode = code
	return c, nil
}

// assignJoinCode stores a fresh unique join code on campaignID
func (s *CampaignService) assignJoinCode(ctx context.Context, campaignID uint) (string, error) {
	for attempt := 1; attempt <= s.config.JoinCodeAttempts; attempt++ {
		code := NormalizeJoinCode(s.config.GenerateCode())

		taken, err := joinCodeTaken(ctx, s.db, code)
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if taken {
			s.metrics.add(ctx, s.metrics.joinCodeCollisions)
			continue
		}

		err = s.db.WithContext(ctx).
			Model(&models.Campaign{}).
			Where("id = ?", campaignID).
			Update("join_code", code).Error
		if err == nil {
			return code, nil
		}
		if !isDuplicateKey(err) {
			return "", fmt.Errorf("store join code: %w", err)
		}
		s.metrics.add(ctx, s.metrics.joinCodeCollisions)
	}
	return "", ErrJoinCodeExhausted
}

// ensureMembership inserts a membership row unless one exists.
// A concurrent insert of the same row counts as success.
func (s *CampaignService) ensureMembership(ctx context.Context, db *gorm.DB, campaignID uint, userID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&models.CampaignMember{}).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	err = db.WithContext(ctx).Create(&models.CampaignMember{
		CampaignID: campaignID,
		UserID:     userID,
		JoinedAt:   s.common.now(),
	}).Error
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create membership: %w", err)
	}
	return true, nil
}
