package service

import (
	"context"

	"dungeon-ledger/backend/internal/models"

	"gorm.io/gorm"
)

// AccessGuard answers ownership and membership questions for the campaign services.
// Bind it to a transaction with In so checks and writes share one unit of work.
type AccessGuard struct {
	db *gorm.DB
}

// NewAccessGuard creates a guard reading from db
func NewAccessGuard(db *gorm.DB) *AccessGuard {
	return &AccessGuard{db: db}
}

// In returns a guard that runs its queries on tx
func (g *AccessGuard) In(tx *gorm.DB) *AccessGuard {
	return &AccessGuard{db: tx}
}

// IsCampaignOwner reports whether id owns the campaign
func (g *AccessGuard) IsCampaignOwner(ctx context.Context, campaignID uint, id Identity) (bool, error) {
	if !id.Authenticated() {
		return false, nil
	}

	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ? AND owner_id = ?", campaignID, id.UserID).
		Count(&count).Error
	return count > 0, err
}

// IsCampaignMember reports whether id owns or has joined the campaign.
// Owners count as members even when their membership row is missing.
func (g *AccessGuard) IsCampaignMember(ctx context.Context, campaignID uint, id Identity) (bool, error) {
	if !id.Authenticated() {
		return false, nil
	}

	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Where("owner_id = ? OR id IN (SELECT campaign_id FROM campaign_members WHERE user_id = ?)", id.UserID, id.UserID).
		Count(&count).Error
	return count > 0, err
}

// IsRecordOwner reports whether id is the recorded owner or creator of a row
func IsRecordOwner(ownerID string, id Identity) bool {
	return id.Authenticated() && ownerID == id.UserID
}

// CanViewOwned reports whether id may read a record ownerID keeps in a campaign:
// the record owner while still a member, or the campaign owner
func (g *AccessGuard) CanViewOwned(ctx context.Context, campaignID uint, ownerID string, id Identity) (bool, error) {
	if IsRecordOwner(ownerID, id) {
		return g.IsCampaignMember(ctx, campaignID, id)
	}
	return g.IsCampaignOwner(ctx, campaignID, id)
}

// CanEditOwned reports whether id may change a record ownerID keeps in a campaign.
// Only the record owner may, and only while still a member.
func (g *AccessGuard) CanEditOwned(ctx context.Context, campaignID uint, ownerID string, id Identity) (bool, error) {
	if !IsRecordOwner(ownerID, id) {
		return false, nil
	}
	return g.IsCampaignMember(ctx, campaignID, id)
}

// ownedAudience lists who may see events about a record ownerID keeps in a campaign
func (g *AccessGuard) ownedAudience(ctx context.Context, campaignID uint, ownerID string) ([]string, error) {
	audience := []string{ownerID}

	var campaign models.Campaign
	if err := g.db.WithContext(ctx).Select("id", "owner_id").First(&campaign, campaignID).Error; err != nil {
		return audience, err
	}
	if campaign.OwnerID != ownerID {
		audience = append(audience, campaign.OwnerID)
	}
	return audience, nil
}
