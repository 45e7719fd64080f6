package service

import (
	"time"

	"dungeon-ledger/backend/pkg/logger"
)

// Common holds the collaborators every campaign service uses
type Common struct {
	// Now returns the current time; stored timestamps are converted to UTC
	Now func() time.Time
	// Logger defaults to the global logger
	Logger *logger.Logger
	// Publisher receives committed changes; defaults to a no-op
	Publisher Publisher
}

func (c Common) withDefaults() Common {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logger.GetGlobal()
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}

func (c Common) now() time.Time {
	return c.Now().UTC()
}
