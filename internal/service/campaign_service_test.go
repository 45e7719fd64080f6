package service

import (
	"context"
	"strings"
	"testing"

	"dungeon-ledger/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCampaignCreateListsOnlyForOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.createCampaign(t, alice, "  The Lost Mine  ")
	assert.Equal(t, "The Lost Mine", c.Name)
	assert.Equal(t, alice, c.OwnerID)
	assert.True(t, IsWellFormedJoinCode(c.JoinCode))
	assert.Equal(t, "UTC", c.CreatedAt.Location().String())

	mine, err := f.campaigns.ListForUser(ctx, NewIdentity(alice))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	theirs, err := f.campaigns.ListForUser(ctx, NewIdentity(bob))
	require.NoError(t, err)
	assert.Empty(t, theirs)

	anon, err := f.campaigns.ListForUser(ctx, Anonymous)
	require.NoError(t, err)
	assert.NotNil(t, anon)
	assert.Empty(t, anon)
}

func TestCampaignCreateInsertsOwnerMembership(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, alice, "Curse of Strahd")

	var members []models.CampaignMember
	require.NoError(t, f.db.Where("campaign_id = ?", c.ID).Find(&members).Error)
	require.Len(t, members, 1)
	assert.Equal(t, alice, members[0].UserID)
}

func TestCampaignCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.campaigns.Create(ctx, CampaignInput{Name: "   "}, NewIdentity(alice))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	_, err = f.campaigns.Create(ctx, CampaignInput{Name: strings.Repeat("x", models.CampaignNameMaxLen+1)}, NewIdentity(alice))
	assert.True(t, IsValidationError(err))

	_, err = f.campaigns.Create(ctx, CampaignInput{Name: "ok", System: strPtr(strings.Repeat("y", models.CampaignSystemMaxLen+1))}, NewIdentity(alice))
	assert.True(t, IsValidationError(err))

	_, err = f.campaigns.Create(ctx, CampaignInput{Name: "ok"}, Anonymous)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	c, err := f.campaigns.Create(ctx, CampaignInput{Name: "ok", System: strPtr("  "), Description: strPtr(" dark ")}, NewIdentity(alice))
	require.NoError(t, err)
	assert.Nil(t, c.System)
	require.NotNil(t, c.Description)
	assert.Equal(t, "dark", *c.Description)
}

func TestCampaignGetOwnedHidesFromOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Owned")
	f.join(t, c, bob)

	got, err := f.campaigns.GetOwned(ctx, c.ID, NewIdentity(alice))
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	for _, id := range []Identity{NewIdentity(bob), NewIdentity(carol), Anonymous} {
		_, err := f.campaigns.GetOwned(ctx, c.ID, id)
		assert.ErrorIs(t, err, ErrNotFound, "identity %q", id.UserID)
	}

	_, err = f.campaigns.GetOwned(ctx, c.ID+100, NewIdentity(alice))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCampaignGetForMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Shared")
	f.join(t, c, bob)

	for _, user := range []string{alice, bob} {
		got, err := f.campaigns.GetForMember(ctx, c.ID, NewIdentity(user))
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
	}

	_, err := f.campaigns.GetForMember(ctx, c.ID, NewIdentity(carol))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.campaigns.GetForMember(ctx, c.ID, Anonymous)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCampaignListOrdersByLastUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createCampaign(t, alice, "First")
	second := f.createCampaign(t, alice, "Second")

	list, err := f.campaigns.ListForUser(ctx, NewIdentity(alice))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = f.campaigns.Update(ctx, first.ID, CampaignInput{Name: "First, renamed"}, NewIdentity(alice))
	require.NoError(t, err)

	list, err = f.campaigns.ListForUser(ctx, NewIdentity(alice))
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "First, renamed", list[0].Name)
}

func TestCampaignUpdateOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Before")
	f.join(t, c, bob)

	_, err := f.campaigns.Update(ctx, c.ID, CampaignInput{Name: "Hijacked"}, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.campaigns.Update(ctx, c.ID, CampaignInput{Name: "Hijacked"}, Anonymous)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	updated, err := f.campaigns.Update(ctx, c.ID, CampaignInput{Name: "After", System: strPtr("D&D 5e")}, NewIdentity(alice))
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.True(t, updated.UpdatedAt.After(c.UpdatedAt))

	stored := f.reloadCampaign(t, c.ID)
	assert.Equal(t, "After", stored.Name)
	require.NotNil(t, stored.System)
	assert.Equal(t, "D&D 5e", *stored.System)
	assert.Len(t, f.events.ofType(EventCampaignUpdated), 1)
}

func TestCampaignDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Doomed")
	other := f.createCampaign(t, alice, "Survivor")
	f.join(t, c, bob)
	f.createSession(t, c.ID, alice, "Session 1", f.clock.Now())
	f.createLink(t, c.ID, bob, "Bob the Bard")
	f.createSession(t, other.ID, alice, "Kept", f.clock.Now())

	assert.ErrorIs(t, f.campaigns.Delete(ctx, c.ID, NewIdentity(bob)), ErrNotFound)
	assert.ErrorIs(t, f.campaigns.Delete(ctx, c.ID, Anonymous), ErrNotAuthenticated)

	require.NoError(t, f.campaigns.Delete(ctx, c.ID, NewIdentity(alice)))

	for _, model := range []any{&models.Session{}, &models.CharacterLink{}, &models.CampaignMember{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Where("campaign_id = ?", c.ID).Count(&count).Error)
		assert.Zero(t, count, "%T rows left behind", model)
	}

	var remaining int64
	require.NoError(t, f.db.Model(&models.Session{}).Where("campaign_id = ?", other.ID).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)

	assert.ErrorIs(t, f.campaigns.Delete(ctx, c.ID, NewIdentity(alice)), ErrNotFound)
}

func TestJoinByCodeIsCaseInsensitiveAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Joinable")

	joined, err := f.campaigns.JoinByCode(ctx, "  "+strings.ToLower(c.JoinCode)+" ", NewIdentity(bob))
	require.NoError(t, err)
	assert.Equal(t, c.ID, joined.ID)

	again, err := f.campaigns.JoinByCode(ctx, c.JoinCode, NewIdentity(bob))
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.CampaignMember{}).
		Where("campaign_id = ? AND user_id = ?", c.ID, bob).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Len(t, f.events.ofType(EventMemberJoined), 1)

	list, err := f.campaigns.ListForUser(ctx, NewIdentity(bob))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestJoinByCodeOwnerDoesNotDuplicateMembership(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, alice, "Mine")

	_, err := f.campaigns.JoinByCode(context.Background(), c.JoinCode, NewIdentity(alice))
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.CampaignMember{}).Where("campaign_id = ?", c.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestJoinByCodeUnknownAndUnauthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCampaign(t, alice, "Hidden")

	_, err := f.campaigns.JoinByCode(ctx, "ZZZZZZZZ", NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.campaigns.JoinByCode(ctx, "", NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.campaigns.JoinByCode(ctx, "ZZZZZZZZ", Anonymous)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestJoinByCodeThrottlesRepeatedFailures(t *testing.T) {
	limiter := newMemoryLimiter(3)
	f := newFixture(t, func(c *fixtureConfig) { c.campaign.Limiter = limiter })
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Guarded")

	for i := 0; i < 3; i++ {
		_, err := f.campaigns.JoinByCode(ctx, "WRONG000", NewIdentity(bob))
		assert.ErrorIs(t, err, ErrNotFound)
	}

	_, err := f.campaigns.JoinByCode(ctx, c.JoinCode, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrTooManyJoinAttempts)

	// other users are not affected
	_, err = f.campaigns.JoinByCode(ctx, c.JoinCode, NewIdentity(carol))
	assert.NoError(t, err)
}

func TestJoinCodesAreUniqueAcrossManyCampaigns(t *testing.T) {
	f := newFixture(t)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c := f.createCampaign(t, alice, "Campaign")
		require.True(t, IsWellFormedJoinCode(c.JoinCode), c.JoinCode)
		require.False(t, seen[c.JoinCode], "duplicate join code %s", c.JoinCode)
		seen[c.JoinCode] = true
	}
}

func TestCreateRetriesTakenJoinCodes(t *testing.T) {
	codes := []string{"AAAAAAAA", "AAAAAAAA", "aaaaaaaa", "BBBBBBBB"}
	next := 0
	f := newFixture(t, func(c *fixtureConfig) {
		c.campaign.GenerateCode = func() string {
			code := codes[next%len(codes)]
			next++
			return code
		}
	})

	first := f.createCampaign(t, alice, "One")
	second := f.createCampaign(t, alice, "Two")
	assert.Equal(t, "AAAAAAAA", first.JoinCode)
	assert.Equal(t, "BBBBBBBB", second.JoinCode)
}

func TestCreateGivesUpWhenCodesRunOut(t *testing.T) {
	f := newFixture(t, func(c *fixtureConfig) {
		c.campaign.JoinCodeAttempts = 5
		c.campaign.GenerateCode = func() string { return "SAMECODE" }
	})
	f.createCampaign(t, alice, "Holds the code")

	_, err := f.campaigns.Create(context.Background(), CampaignInput{Name: "Unlucky"}, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrJoinCodeExhausted)
}

func TestCreateRetriesOnInsertCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	codes := []string{"RACE0001", "RACE0002"}
	f.campaigns.config.GenerateCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}

	// another writer takes the code between the pre-check and the insert
	raced := false
	err := f.db.Callback().Create().Before("gorm:create").Register("test:race_join_code", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "campaigns" {
			return
		}
		raced = true
		now := f.clock.Now()
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO campaigns (name, owner_id, join_code, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			"Racer", carol, "RACE0001", now, now,
		)
	})
	require.NoError(t, err)

	c, err := f.campaigns.Create(ctx, CampaignInput{Name: "Winner"}, NewIdentity(alice))
	require.NoError(t, err)
	assert.True(t, raced)
	assert.Equal(t, "RACE0002", c.JoinCode)
}

func TestListForUserRepairsLegacyRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := f.clock.Now()
	legacy := models.Campaign{Name: "Legacy", OwnerID: alice, JoinCode: "LEGACY01", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.db.Create(&legacy).Error)
	// blank codes are what old rows carry
	require.NoError(t, f.db.Model(&models.Campaign{}).Where("id = ?", legacy.ID).Update("join_code", "").Error)

	list, err := f.campaigns.ListForUser(ctx, NewIdentity(alice))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, IsWellFormedJoinCode(list[0].JoinCode))

	stored := f.reloadCampaign(t, legacy.ID)
	assert.Equal(t, list[0].JoinCode, stored.JoinCode)

	var members []models.CampaignMember
	require.NoError(t, f.db.Where("campaign_id = ?", legacy.ID).Find(&members).Error)
	require.Len(t, members, 1)
	assert.Equal(t, alice, members[0].UserID)

	// running it again changes nothing
	require.NoError(t, f.campaigns.RepairOwned(ctx, NewIdentity(alice)))
	assert.Equal(t, stored.JoinCode, f.reloadCampaign(t, legacy.ID).JoinCode)
	var count int64
	require.NoError(t, f.db.Model(&models.CampaignMember{}).Where("campaign_id = ?", legacy.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOwnedRestoresOwnerMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Healed")
	require.NoError(t, f.db.Where("campaign_id = ?", c.ID).Delete(&models.CampaignMember{}).Error)

	_, err := f.campaigns.GetOwned(ctx, c.ID, NewIdentity(alice))
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.CampaignMember{}).Where("campaign_id = ? AND user_id = ?", c.ID, alice).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLeaveCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Revolving door")
	f.join(t, c, bob)

	assert.True(t, IsValidationError(f.campaigns.Leave(ctx, c.ID, NewIdentity(alice))))
	require.NoError(t, f.campaigns.Leave(ctx, c.ID, NewIdentity(bob)))
	assert.ErrorIs(t, f.campaigns.Leave(ctx, c.ID, NewIdentity(bob)), ErrNotFound)

	_, err := f.campaigns.GetForMember(ctx, c.ID, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, f.events.ofType(EventMemberLeft), 1)
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Party")
	f.join(t, c, bob)

	members, err := f.campaigns.ListMembers(ctx, c.ID, NewIdentity(bob))
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, alice, members[0].UserID)
	assert.Equal(t, bob, members[1].UserID)

	_, err = f.campaigns.ListMembers(ctx, c.ID, NewIdentity(carol))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegenerateJoinCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Rotating")
	f.join(t, c, bob)
	oldCode := c.JoinCode

	_, err := f.campaigns.RegenerateJoinCode(ctx, c.ID, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := f.campaigns.RegenerateJoinCode(ctx, c.ID, NewIdentity(alice))
	require.NoError(t, err)
	assert.NotEqual(t, oldCode, updated.JoinCode)

	_, err = f.campaigns.JoinByCode(ctx, oldCode, NewIdentity(carol))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.campaigns.GetForMember(ctx, c.ID, NewIdentity(bob))
	assert.NoError(t, err)
}

func TestCampaignResponseShowsJoinCodeToOwnerOnly(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, alice, "Secret")

	assert.Equal(t, c.JoinCode, c.ToResponse(alice).JoinCode)
	assert.True(t, c.ToResponse(alice).IsOwner)
	assert.Empty(t, c.ToResponse(bob).JoinCode)
	assert.False(t, c.ToResponse(bob).IsOwner)
}

func TestLeaveRevokesAccessToOwnRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCampaign(t, alice, "Walkout")
	f.join(t, c, bob)
	s := f.createSession(t, c.ID, bob, "Bob's one-shot", f.clock.Now())
	l := f.createLink(t, c.ID, bob, "Bob's sheet")

	require.NoError(t, f.campaigns.Leave(ctx, c.ID, NewIdentity(bob)))
	touched := f.reloadCampaign(t, c.ID).UpdatedAt
	before := len(f.events.events)

	_, err := f.sessions.Get(ctx, s.ID, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.sessions.Update(ctx, s.ID, SessionInput{Title: "Renamed", ScheduledAt: s.ScheduledAt}, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.sessions.UpdateNotes(ctx, s.ID, strPtr("notes"), NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.sessions.Delete(ctx, s.ID, NewIdentity(bob)), ErrNotFound)

	_, err = f.links.Get(ctx, l.ID, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.links.Update(ctx, l.ID, CharacterLinkInput{Name: "Renamed", URL: "https://example.com/c/2"}, NewIdentity(bob))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.links.Delete(ctx, l.ID, NewIdentity(bob)), ErrNotFound)

	var stored models.Session
	require.NoError(t, f.db.First(&stored, s.ID).Error)
	assert.Equal(t, "Bob's one-shot", stored.Title)
	var link models.CharacterLink
	require.NoError(t, f.db.First(&link, l.ID).Error)
	assert.Equal(t, "Bob's sheet", link.Name)

	assert.True(t, f.reloadCampaign(t, c.ID).UpdatedAt.Equal(touched))
	assert.Len(t, f.events.events, before)

	// the campaign owner still sees the departed player's link
	_, err = f.links.Get(ctx, l.ID, NewIdentity(alice))
	assert.NoError(t, err)
}

func TestCancelledContextLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.campaigns.Create(ctx, CampaignInput{Name: "Never"}, NewIdentity(alice))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var campaigns, members int64
	require.NoError(t, f.db.Model(&models.Campaign{}).Count(&campaigns).Error)
	require.NoError(t, f.db.Model(&models.CampaignMember{}).Count(&members).Error)
	assert.Zero(t, campaigns)
	assert.Zero(t, members)
	assert.Empty(t, f.events.events)
}
