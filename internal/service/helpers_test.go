package service

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"dungeon-ledger/backend/internal/models"
	"dungeon-ledger/backend/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
	carol = "user-carol"
)

// newTestDB opens a private in-memory database with foreign keys enforced
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// stepClock advances one second on every read so stored timestamps never tie
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(eventType string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// memoryLimiter is a trivial AttemptLimiter for tests
type memoryLimiter struct {
	mu       sync.Mutex
	limit    int
	failures map[string]int
}

func newMemoryLimiter(limit int) *memoryLimiter {
	return &memoryLimiter{limit: limit, failures: map[string]int{}}
}

func (l *memoryLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key] >= l.limit, nil
}

func (l *memoryLimiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
	return nil
}

type fixture struct {
	db        *gorm.DB
	clock     *stepClock
	events    *recordingPublisher
	campaigns *CampaignService
	sessions  *SessionService
	links     *CharacterLinkService
	sheets    *CharacterService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	campaign CampaignServiceConfig
	session  SessionServiceConfig
	link     CharacterLinkServiceConfig
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		db:     newTestDB(t),
		clock:  newStepClock(),
		events: &recordingPublisher{},
	}
	common := Common{Now: f.clock.Now, Logger: logger.NewNop(), Publisher: f.events}

	cfg := fixtureConfig{
		campaign: DefaultCampaignServiceConfig(),
		session:  DefaultSessionServiceConfig(),
		link:     DefaultCharacterLinkServiceConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.campaign.Common = common
	cfg.session.Common = common
	cfg.link.Common = common

	f.campaigns = NewCampaignServiceWithConfig(f.db, cfg.campaign)
	f.sessions = NewSessionServiceWithConfig(f.db, cfg.session)
	f.links = NewCharacterLinkServiceWithConfig(f.db, cfg.link)
	f.sheets = NewCharacterServiceWithConfig(f.db, CharacterServiceConfig{Common: common})
	return f
}

func (f *fixture) createCampaign(t *testing.T, owner, name string) *models.Campaign {
	t.Helper()
	c, err := f.campaigns.Create(context.Background(), CampaignInput{Name: name}, NewIdentity(owner))
	require.NoError(t, err)
	return c
}

func (f *fixture) join(t *testing.T, c *models.Campaign, user string) {
	t.Helper()
	_, err := f.campaigns.JoinByCode(context.Background(), c.JoinCode, NewIdentity(user))
	require.NoError(t, err)
}

func (f *fixture) createSession(t *testing.T, campaignID uint, user, title string, at time.Time) *models.Session {
	t.Helper()
	s, err := f.sessions.Create(context.Background(), campaignID, SessionInput{Title: title, ScheduledAt: at}, NewIdentity(user))
	require.NoError(t, err)
	return s
}

func (f *fixture) createLink(t *testing.T, campaignID uint, user, name string) *models.CharacterLink {
	t.Helper()
	l, err := f.links.Create(context.Background(), campaignID, CharacterLinkInput{Name: name, URL: "https://www.dndbeyond.com/characters/1"}, NewIdentity(user))
	require.NoError(t, err)
	return l
}

func (f *fixture) reloadCampaign(t *testing.T, id uint) models.Campaign {
	t.Helper()
	var c models.Campaign
	require.NoError(t, f.db.First(&c, id).Error)
	return c
}

func strPtr(s string) *string { return &s }
