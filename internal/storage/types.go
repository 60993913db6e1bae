package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
)

// ErrNotFound is returned when a record does not exist or belongs to another user
var ErrNotFound = errors.New("not found")

// Alert types and statuses
const (
	AlertTypeSOS      = "sos"
	AlertStatusActive = "active"
)

// Step is one navigation instruction saved with a route
type Step struct {
	Instruction string    `json:"instruction"`
	Distance    string    `json:"distance"`
	Duration    string    `json:"duration"`
	Start       geo.Point `json:"start"`
	End         geo.Point `json:"end"`
}

// RouteRecord is a computed route and its safety assessment
type RouteRecord struct {
	ID          uuid.UUID         `json:"id"`
	UserID      string            `json:"userId"`
	Source      geo.Location      `json:"source"`
	Destination geo.Location      `json:"destination"`
	Coordinates []geo.Point       `json:"coordinates"`
	Assessment  safety.Assessment `json:"safety"`
	Distance    string            `json:"distance"`
	Duration    string            `json:"duration"`
	Steps       []Step            `json:"steps"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// EmergencyAlert is a persisted SOS
type EmergencyAlert struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"userId"`
	Location  geo.Location `json:"location"`
	AlertType string       `json:"alertType"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Profile holds the contact details used by SOS
type Profile struct {
	UserID           string    `json:"userId"`
	FullName         string    `json:"fullName"`
	Phone            string    `json:"phone"`
	EmergencyContact string    `json:"emergencyContact"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// RouteStore persists route history
type RouteStore interface {
	// SaveRoute assigns ID and CreatedAt when unset
	SaveRoute(ctx context.Context, r *RouteRecord) error
	// ListRoutes returns the user's routes newest first
	ListRoutes(ctx context.Context, userID string, limit int) ([]*RouteRecord, error)
	// GetRoute returns ErrNotFound unless the route belongs to userID
	GetRoute(ctx context.Context, userID string, id uuid.UUID) (*RouteRecord, error)
}

// AlertStore persists emergency alerts
type AlertStore interface {
	SaveAlert(ctx context.Context, a *EmergencyAlert) error
}

// ProfileStore persists user profiles
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
}

// Repository is the full storage surface
type Repository interface {
	RouteStore
	AlertStore
	ProfileStore
}

func prepareRoute(r *RouteRecord, now time.Time) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

func prepareAlert(a *EmergencyAlert, now time.Time) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
}
