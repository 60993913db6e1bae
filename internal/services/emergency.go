package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpup/prefab/logging"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/sos"
	"github.com/shaktipath/safepath/server/internal/messaging"
	"github.com/shaktipath/safepath/server/internal/storage"
)

// SOSResult is what the caller needs to open the WhatsApp alert
type SOSResult struct {
	AlertID  string       `json:"alertId,omitempty"`
	Location geo.Location `json:"location"`
	sos.Dispatch
}

// EmergencyService raises SOS alerts and manages the profiles they depend on
type EmergencyService struct {
	geocode   *GeocodeService
	alerts    storage.AlertStore
	profiles  storage.ProfileStore
	composer  *sos.Composer
	publisher messaging.Publisher
}

// NewEmergencyService creates an EmergencyService
func NewEmergencyService(geocode *GeocodeService, alerts storage.AlertStore, profiles storage.ProfileStore, composer *sos.Composer, publisher messaging.Publisher) *EmergencyService {
	return &EmergencyService{
		geocode:   geocode,
		alerts:    alerts,
		profiles:  profiles,
		composer:  composer,
		publisher: publisher,
	}
}

// RaiseSOS records an alert at p and builds the WhatsApp message for the
// user's emergency contact. Persisting and publishing are best effort; a
// missing profile or emergency contact fails with sos.ErrNoEmergencyContact.
func (s *EmergencyService) RaiseSOS(ctx context.Context, userID string, p geo.Point) (*SOSResult, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, sos.ErrNoEmergencyContact
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	location := s.geocode.ReverseGeocode(ctx, p)

	dispatch, err := s.composer.Compose(sos.Sender{
		FullName:         profile.FullName,
		Phone:            profile.Phone,
		EmergencyContact: profile.EmergencyContact,
	}, location)
	if err != nil {
		return nil, err
	}

	result := &SOSResult{Location: location, Dispatch: dispatch}

	alert := &storage.EmergencyAlert{
		UserID:    userID,
		Location:  location,
		AlertType: storage.AlertTypeSOS,
		Status:    storage.AlertStatusActive,
	}
	if err := s.alerts.SaveAlert(ctx, alert); err != nil {
		logging.Errorw(ctx, "Failed to save emergency alert", "user.id", userID, "error", err)
	} else {
		result.AlertID = alert.ID.String()
	}

	event := messaging.SOSRaised{
		AlertID:         result.AlertID,
		UserID:          userID,
		Location:        location,
		EmergencyNumber: dispatch.Number,
		Message:         dispatch.Message,
		WhatsAppURL:     dispatch.WhatsAppURL,
	}
	if err := s.publisher.Publish(ctx, messaging.SOSRaisedEvent, event); err != nil {
		logging.Errorw(ctx, "Failed to publish SOS event", "user.id", userID, "error", err)
	}

	logging.Infow(ctx, "SOS raised", "user.id", userID, "alert.id", result.AlertID)
	return result, nil
}

// Profile returns the user's profile
func (s *EmergencyService) Profile(ctx context.Context, userID string) (*storage.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// UpdateProfile creates or replaces the user's profile
func (s *EmergencyService) UpdateProfile(ctx context.Context, p *storage.Profile) error {
	if err := s.profiles.UpsertProfile(ctx, p); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
