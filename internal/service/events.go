package service

import "time"

// Event types published to campaign activity feeds
const (
	EventCampaignUpdated      = "campaign.updated"
	EventCampaignDeleted      = "campaign.deleted"
	EventMemberJoined         = "member.joined"
	EventMemberLeft           = "member.left"
	EventSessionCreated       = "session.created"
	EventSessionUpdated       = "session.updated"
	EventSessionDeleted       = "session.deleted"
	EventCharacterLinkCreated = "character_link.created"
	EventCharacterLinkUpdated = "character_link.updated"
	EventCharacterLinkDeleted = "character_link.deleted"
	EventCharacterCreated     = "character.created"
	EventCharacterUpdated     = "character.updated"
	EventCharacterDeleted     = "character.deleted"
)

// Event describes a committed change inside a campaign
type Event struct {
	Type       string    `json:"type"`
	CampaignID uint      `json:"campaign_id"`
	ActorID    string    `json:"actor_id"`
	Payload    any       `json:"payload,omitempty"`
	At         time.Time `json:"at"`
	// Audience restricts delivery to these user ids; empty means every member
	Audience []string `json:"-"`
}

// VisibleTo reports whether userID may receive the event
func (e Event) VisibleTo(userID string) bool {
	if len(e.Audience) == 0 {
		return true
	}
	for _, id := range e.Audience {
		if id == userID {
			return true
		}
	}
	return false
}

// Publisher receives events after the change is stored
type Publisher interface {
	Publish(event Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
