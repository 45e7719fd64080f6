package ws

import (
	"context"
	"encoding/json"
	"sync"

	"dungeon-ledger/backend/internal/service"
	"dungeon-ledger/backend/pkg/logger"
)

// Hub fans committed campaign events out to the feed connections of that campaign
type Hub struct {
	clients    map[uint]map[*Client]bool
	broadcast  chan service.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *logger.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub; call Run to start delivering
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		broadcast:  make(chan service.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Publish queues an event for delivery. It never blocks the caller;
// events are dropped when the hub falls behind.
func (h *Hub) Publish(event service.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("Feed queue full, dropping event",
			"type", event.Type,
			"campaign_id", event.CampaignID,
		)
	}
}

// Run delivers events until ctx is done and then closes every connection
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for campaignID, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
				delete(h.clients, campaignID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.CampaignID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.CampaignID] = set
			}
			set[client] = true
			h.mu.Unlock()
			h.log.Debug("Feed client registered",
				"client_id", client.ID,
				"campaign_id", client.CampaignID,
				"user_id", client.UserID,
			)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event service.Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.log.LogError(err, "Failed to encode feed event", "type", event.Type)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[event.CampaignID] {
		if !event.VisibleTo(client.UserID) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			h.remove(client)
			h.log.Warn("Feed client removed due to blocked channel", "client_id", client.ID)
			continue
		}

		// A member who left and everybody in a deleted campaign lose access
		if event.Type == service.EventCampaignDeleted ||
			(event.Type == service.EventMemberLeft && event.ActorID == client.UserID) {
			h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove closes and forgets client; callers hold h.mu
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.CampaignID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.CampaignID)
	}
}

// ClientCount returns the open feed connections of a campaign
func (h *Hub) ClientCount(campaignID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[campaignID])
}

// ActiveConnections returns the number of open feed connections
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
