package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"

	"github.com/shaktipath/safepath/server/internal/lib/export"
	"github.com/shaktipath/safepath/server/internal/lib/geo"
	"github.com/shaktipath/safepath/server/internal/services"
	"github.com/shaktipath/safepath/server/internal/storage"
)

const maxHistoryLimit = 50

// locationInput is a coordinate pair with an optional display address
type locationInput struct {
	Lat     *float64 `json:"lat" validate:"required,latitude"`
	Lng     *float64 `json:"lng" validate:"required,longitude"`
	Address string   `json:"address" validate:"max=300"`
}

func (l *locationInput) location() *geo.Location {
	return &geo.Location{
		Point:   geo.Point{Latitude: *l.Lat, Longitude: *l.Lng},
		Address: l.Address,
	}
}

type computeRouteRequest struct {
	Source      *locationInput `json:"source" validate:"required"`
	Destination *locationInput `json:"destination" validate:"required"`
}

// routeResponse is a computed route plus the pipeline states it went through
type routeResponse struct {
	*storage.RouteRecord
	State services.State   `json:"state"`
	Trace []services.State `json:"trace"`
}

func (s *Server) handleComputeRoute(w http.ResponseWriter, r *http.Request) {
	var req computeRouteRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	result := s.routes.ComputeRoute(r.Context(), services.RouteRequest{
		UserID:      userID(r),
		Source:      req.Source.location(),
		Destination: req.Destination.location(),
	})

	switch {
	case result.Err == nil:
		respondWithSuccess(w, http.StatusOK, "Route computed", routeResponse{
			RouteRecord: result.Route,
			State:       result.State,
			Trace:       result.Trace,
		})
	case errors.Is(result.Err, services.ErrMissingEndpoint), errors.Is(result.Err, services.ErrInvalidEndpoint):
		respondWithError(w, http.StatusBadRequest, result.Err.Error(), nil)
	case errors.Is(result.Err, services.ErrSuperseded):
		respondWithError(w, http.StatusConflict, "A newer route request replaced this one", nil)
	case errors.Is(result.Err, services.ErrNoRoute):
		respondWithError(w, http.StatusUnprocessableEntity, "No walking route found between these locations", nil)
	default:
		internalError(w, r, "Failed to compute route", result.Err)
	}
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondWithError(w, http.StatusBadRequest, "Validation failed",
				[]string{fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit)})
			return
		}
		limit = n
	}

	routes, err := s.routes.ListHistory(r.Context(), userID(r), limit)
	if err != nil {
		internalError(w, r, "Failed to load route history", err)
		return
	}
	if routes == nil {
		routes = []*storage.RouteRecord{}
	}
	respondWithSuccess(w, http.StatusOK, "Route history", routes)
}

func (s *Server) handleCurrentRoute(w http.ResponseWriter, r *http.Request) {
	route, ok := s.routes.CurrentRoute(userID(r))
	if !ok {
		respondWithError(w, http.StatusNotFound, "No route computed yet", nil)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Current route", route)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	route, ok := s.loadRoute(w, r)
	if !ok {
		return
	}
	respondWithSuccess(w, http.StatusOK, "Route", route)
}

func (s *Server) handleRouteKML(w http.ResponseWriter, r *http.Request) {
	route, ok := s.loadRoute(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRouteKML(&buf, route); err != nil {
		internalError(w, r, "Failed to export route", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="route-%s.kml"`, route.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleRouteBriefing(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid route id", nil)
		return
	}

	b, err := s.briefings.BriefRoute(r.Context(), userID(r), id)
	switch {
	case err == nil:
		respondWithSuccess(w, http.StatusOK, "Route briefing", b)
	case errors.Is(err, services.ErrBriefingDisabled):
		respondWithError(w, http.StatusServiceUnavailable, "Route briefings are not enabled", nil)
	case errors.Is(err, storage.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Route not found", nil)
	default:
		logging.Warnw(r.Context(), "Route briefing failed", "route.id", id, "error", err)
		respondWithError(w, http.StatusBadGateway, "Briefing unavailable", nil)
	}
}

// loadRoute fetches the {id} route of the current user, writing the error response on failure
func (s *Server) loadRoute(w http.ResponseWriter, r *http.Request) (*storage.RouteRecord, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid route id", nil)
		return nil, false
	}

	route, err := s.routes.GetRoute(r.Context(), userID(r), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Route not found", nil)
		return nil, false
	}
	if err != nil {
		internalError(w, r, "Failed to load route", err)
		return nil, false
	}
	return route, true
}
