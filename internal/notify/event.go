package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// Event is the wire format pushed to connected clients.
// Format: { type, refEntity, refId, message, timestamp }
type Event struct {
	Type      string    `json:"type"`      // e.g. "plan_escalated"
	RefEntity string    `json:"refEntity"` // e.g. "payment_plan"
	RefID     uuid.UUID `json:"refId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EventFromNotification converts a staged notification to its wire form.
func EventFromNotification(n *domain.Notification) Event {
	return Event{
		Type:      n.Type,
		RefEntity: n.RefEntity,
		RefID:     n.RefID,
		Message:   n.Message,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
