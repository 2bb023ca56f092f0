package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	UserID() uuid.UUID
	Role() domain.Role
	Send(data []byte) error
	Close() error
}

// Hub manages WebSocket connections organized by user.
// It is safe for concurrent use.
type Hub struct {
	// users maps user ID to a map of connection ID to client; a user may
	// hold several tabs open at once
	users map[uuid.UUID]map[string]ClientInterface
	mu    sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		users: make(map[uuid.UUID]map[string]ClientInterface),
	}
}

// Register adds a client to the hub under its user
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.UserID()
	clientID := client.ID()

	if h.users[userID] == nil {
		h.users[userID] = make(map[string]ClientInterface)
	}

	h.users[userID][clientID] = client

	log.Debug().
		Str("user_id", userID.String()).
		Str("client_id", clientID).
		Msg("WebSocket client registered")
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.UserID()
	clientID := client.ID()

	if clients, ok := h.users[userID]; ok {
		if _, exists := clients[clientID]; exists {
			delete(clients, clientID)

			// Clean up empty user maps
			if len(clients) == 0 {
				delete(h.users, userID)
			}

			log.Debug().
				Str("user_id", userID.String()).
				Str("client_id", clientID).
				Msg("WebSocket client unregistered")
		}
	}
}

// Deliver implements domain.NotificationSink by pushing the event to every
// connection whose user matches the recipient criteria, by id or by role.
func (h *Hub) Deliver(ctx context.Context, n *domain.Notification) error {
	event := EventFromNotification(n)
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return err
	}

	targets := h.matchClients(n.Recipients)
	if len(targets) == 0 {
		return nil
	}

	// Send to each client asynchronously
	for _, client := range targets {
		go func(c ClientInterface) {
			if err := c.Send(data); err != nil {
				log.Warn().
					Err(err).
					Str("client_id", c.ID()).
					Str("user_id", c.UserID().String()).
					Msg("Failed to send to client")
			}
		}(client)
	}

	log.Debug().
		Str("event_type", event.Type).
		Int("client_count", len(targets)).
		Msg("Broadcast event")
	return nil
}

func (h *Hub) matchClients(criteria domain.RecipientCriteria) []ClientInterface {
	roleSet := make(map[domain.Role]struct{}, len(criteria.Roles))
	for _, role := range criteria.Roles {
		roleSet[role] = struct{}{}
	}
	idSet := make(map[uuid.UUID]struct{}, len(criteria.UserIDs))
	for _, id := range criteria.UserIDs {
		idSet[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	// Copy matches so the lock is not held during send
	var targets []ClientInterface
	for userID, clients := range h.users {
		for _, client := range clients {
			_, byID := idSet[userID]
			_, byRole := roleSet[client.Role()]
			if byID || byRole {
				targets = append(targets, client)
			}
		}
	}
	return targets
}

// ClientCount returns the number of connections held by a user
func (h *Hub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.users[userID]; ok {
		return len(clients)
	}
	return 0
}

// TotalClientCount returns the total number of connected clients
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.users {
		total += len(clients)
	}
	return total
}

// Ensure Hub implements the sink contract
var _ domain.NotificationSink = (*Hub)(nil)
