// Package httpapi exposes the safe route services as a JSON API under /api/v1/.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/dpup/prefab/logging"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shaktipath/safepath/server/internal/auth"
	"github.com/shaktipath/safepath/server/internal/services"
)

// PathPrefix is where the API is mounted
const PathPrefix = "/api/v1/"

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Server handles the JSON API
type Server struct {
	routes    *services.RoutesService
	emergency *services.EmergencyService
	geocode   *services.GeocodeService
	briefings *services.BriefingService
	verifier  *auth.Verifier
	validate  *validator.Validate
	mux       *http.ServeMux
}

// NewServer creates a Server and registers every endpoint
func NewServer(routes *services.RoutesService, emergency *services.EmergencyService, geocode *services.GeocodeService, briefings *services.BriefingService, verifier *auth.Verifier) *Server {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names in validation messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		routes:    routes,
		emergency: emergency,
		geocode:   geocode,
		briefings: briefings,
		verifier:  verifier,
		validate:  validate,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/v1/routes", s.requireUser(s.handleComputeRoute))
	s.mux.HandleFunc("GET /api/v1/routes", s.requireUser(s.handleListRoutes))
	s.mux.HandleFunc("GET /api/v1/routes/current", s.requireUser(s.handleCurrentRoute))
	s.mux.HandleFunc("GET /api/v1/routes/{id}", s.requireUser(s.handleGetRoute))
	s.mux.HandleFunc("GET /api/v1/routes/{id}/kml", s.requireUser(s.handleRouteKML))
	s.mux.HandleFunc("GET /api/v1/routes/{id}/briefing", s.requireUser(s.handleRouteBriefing))
	s.mux.HandleFunc("POST /api/v1/sos", s.requireUser(s.handleSOS))
	s.mux.HandleFunc("GET /api/v1/profile", s.requireUser(s.handleGetProfile))
	s.mux.HandleFunc("PUT /api/v1/profile", s.requireUser(s.handlePutProfile))
	s.mux.HandleFunc("GET /api/v1/places/search", s.handlePlaceSearch)
	s.mux.HandleFunc("GET /api/v1/geocode/reverse", s.handleReverseGeocode)
	s.mux.HandleFunc(PathPrefix, func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found", nil)
	})

	return s
}

// Handler returns the instrumented API handler
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "safepath-api")
}

// ServeHTTP serves the API without instrumentation
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// requireUser rejects requests without a valid bearer token and stores the
// token subject as the request user
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		claims, err := s.verifier.Verify(token)
		if err != nil {
			logging.Debugw(r.Context(), "Rejected bearer token", "error", err)
			respondWithError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), claims.Subject)))
	}
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", []string{err.Error()})
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed", validationMessages(err))
		return false
	}
	return true
}

// validateQuery validates a struct populated from query parameters
func (s *Server) validateQuery(w http.ResponseWriter, q interface{}) bool {
	if err := s.validate.Struct(q); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed", validationMessages(err))
		return false
	}
	return true
}

func userID(r *http.Request) string {
	id, _ := auth.UserFromContext(r.Context())
	return id
}

// internalError logs err and responds with a generic 500
func internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	logging.Errorw(r.Context(), message, "error", err, "http.path", r.URL.Path)
	respondWithError(w, http.StatusInternalServerError, message, nil)
}

// queryFloat parses an optional float query parameter
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}
