package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
)

// Routing keys
const (
	RouteComputedEvent = "route.computed"
	SOSRaisedEvent     = "sos.raised"
)

// Event is the envelope published for every domain event
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// RouteComputed is published after a route is scored and saved
type RouteComputed struct {
	RouteID      string           `json:"routeId"`
	UserID       string           `json:"userId"`
	Source       geo.Location     `json:"source"`
	Destination  geo.Location     `json:"destination"`
	RiskLevel    safety.RiskLevel `json:"riskLevel"`
	OverallScore int              `json:"overallScore"`
	Degraded     bool             `json:"degraded"`
}

// SOSRaised is published when a user raises an SOS
type SOSRaised struct {
	AlertID         string       `json:"alertId"`
	UserID          string       `json:"userId"`
	Location        geo.Location `json:"location"`
	EmergencyNumber string       `json:"emergencyNumber"`
	Message         string       `json:"message"`
	WhatsAppURL     string       `json:"whatsappUrl"`
}

// NewEvent wraps payload in an Event with a fresh id
func NewEvent(eventType string, payload interface{}, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: now.UTC(),
		Data:       data,
	}, nil
}
