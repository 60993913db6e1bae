package httpapi

import (
	"errors"
	"net/http"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/lib/sos"
	"github.com/shaktipath/safepath/server/internal/storage"
)

type sosRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

type profileRequest struct {
	FullName         string `json:"fullName" validate:"required,max=100"`
	Phone            string `json:"phone" validate:"max=20"`
	EmergencyContact string `json:"emergencyContact" validate:"required,max=20"`
}

func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	var req sosRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := s.emergency.RaiseSOS(r.Context(), userID(r), geo.Point{Latitude: *req.Lat, Longitude: *req.Lng})
	if errors.Is(err, sos.ErrNoEmergencyContact) {
		respondWithError(w, http.StatusUnprocessableEntity, "Add an emergency contact to your profile first", nil)
		return
	}
	if err != nil {
		internalError(w, r, "Failed to raise SOS", err)
		return
	}
	respondWithSuccess(w, http.StatusCreated, "SOS alert ready", result)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.emergency.Profile(r.Context(), userID(r))
	if errors.Is(err, storage.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Profile not found", nil)
		return
	}
	if err != nil {
		internalError(w, r, "Failed to load profile", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Profile", profile)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if sos.NormalizeNumber(req.EmergencyContact) == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed", []string{"emergencyContact must contain digits"})
		return
	}

	profile := &storage.Profile{
		UserID:           userID(r),
		FullName:         req.FullName,
		Phone:            req.Phone,
		EmergencyContact: req.EmergencyContact,
	}
	if err := s.emergency.UpdateProfile(r.Context(), profile); err != nil {
		internalError(w, r, "Failed to save profile", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Profile saved", profile)
}
