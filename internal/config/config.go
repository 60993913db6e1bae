package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/facilities"
)

// Config represents the complete server configuration
type Config struct {
	Google    GoogleConfig    `koanf:"google"`
	OpenCage  OpenCageConfig  `koanf:"opencage"`
	Safety    SafetyConfig    `koanf:"safety"`
	Storage   StorageConfig   `koanf:"storage"`
	Messaging MessagingConfig `koanf:"messaging"`
	Auth      AuthConfig      `koanf:"auth"`
	Briefing  BriefingConfig  `koanf:"briefing"`
}

// GoogleConfig holds Google Routes and Places API settings
type GoogleConfig struct {
	APIKey         string        `koanf:"api_key"`
	PlacesCacheTTL time.Duration `koanf:"places_cache_ttl"`
}

// OpenCageConfig holds reverse geocoding settings
type OpenCageConfig struct {
	APIKey string `koanf:"api_key"`
}

// SafetyConfig holds facility search and scoring settings
type SafetyConfig struct {
	TimeZone           string        `koanf:"time_zone"`
	ProximityThreshold float64       `koanf:"proximity_threshold"`
	SampleStride       int           `koanf:"sample_stride"`
	SearchRadius       float64       `koanf:"search_radius"`
	DedupRadius        float64       `koanf:"dedup_radius"`
	MaxFacilities      int           `koanf:"max_facilities"`
	SampleTimeout      time.Duration `koanf:"sample_timeout"`
	MaxConcurrency     int           `koanf:"max_concurrency"`
	HistoryLimit       int           `koanf:"history_limit"`
	PersistTimeout     time.Duration `koanf:"persist_timeout"`
	SessionTTL         time.Duration `koanf:"session_ttl"`
}

// StorageConfig selects PostgreSQL when a URL is set, memory otherwise
type StorageConfig struct {
	DatabaseURL string `koanf:"database_url"`
	MaxConns    int32  `koanf:"max_conns"`
}

// MessagingConfig selects RabbitMQ when a URL is set, log output otherwise
type MessagingConfig struct {
	AMQPURL  string `koanf:"amqp_url"`
	Exchange string `koanf:"exchange"`
}

// AuthConfig holds JWT verification settings
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
	Audience  string `koanf:"audience"`
}

// BriefingConfig holds OpenAI briefing settings; empty key disables briefings
type BriefingConfig struct {
	OpenAIAPIKey string        `koanf:"openai_api_key"`
	Model        string        `koanf:"model"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// Unmarshaler loads a config section; prefab.Config satisfies it
type Unmarshaler interface {
	Unmarshal(path string, o interface{}) error
}

// Load overlays every section from src onto the defaults
func Load(src Unmarshaler) (*Config, error) {
	cfg := DefaultConfig()

	sections := []struct {
		path   string
		target interface{}
	}{
		{"google", &cfg.Google},
		{"opencage", &cfg.OpenCage},
		{"safety", &cfg.Safety},
		{"storage", &cfg.Storage},
		{"messaging", &cfg.Messaging},
		{"auth", &cfg.Auth},
		{"briefing", &cfg.Briefing},
	}
	for _, s := range sections {
		if err := src.Unmarshal(s.path, s.target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s section: %w", s.path, err)
		}
	}

	return cfg, nil
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.Google.APIKey == "" {
		errs = append(errs, errors.New("google.api_key is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if _, err := c.Safety.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Safety.SampleStride < 1 {
		errs = append(errs, errors.New("safety.sample_stride must be at least 1"))
	}
	return errors.Join(errs...)
}

// Location loads the zone used for the night travel rule and SOS timestamps
func (s SafetyConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid safety.time_zone %q: %w", s.TimeZone, err)
	}
	return loc, nil
}

// LocatorOptions converts the safety settings to facility locator options
func (s SafetyConfig) LocatorOptions() facilities.Options {
	return facilities.Options{
		ProximityThreshold: s.ProximityThreshold,
		SampleStride:       s.SampleStride,
		SearchRadius:       s.SearchRadius,
		DedupRadius:        s.DedupRadius,
		MaxResults:         s.MaxFacilities,
		SampleTimeout:      s.SampleTimeout,
		MaxConcurrency:     s.MaxConcurrency,
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	locator := facilities.DefaultOptions()
	return &Config{
		Google: GoogleConfig{
			PlacesCacheTTL: 30 * time.Minute,
		},
		Safety: SafetyConfig{
			TimeZone:           "Asia/Kolkata",
			ProximityThreshold: locator.ProximityThreshold,
			SampleStride:       locator.SampleStride,
			SearchRadius:       locator.SearchRadius,
			DedupRadius:        locator.DedupRadius,
			MaxFacilities:      locator.MaxResults,
			SampleTimeout:      locator.SampleTimeout,
			MaxConcurrency:     locator.MaxConcurrency,
			HistoryLimit:       5,
			PersistTimeout:     10 * time.Second,
			SessionTTL:         24 * time.Hour,
		},
		Storage: StorageConfig{
			MaxConns: 10,
		},
		Messaging: MessagingConfig{
			Exchange: "safepath",
		},
		Auth: AuthConfig{
			Audience: "authenticated",
		},
		Briefing: BriefingConfig{
			Model:    "gpt-4o-mini",
			CacheTTL: 24 * time.Hour,
		},
	}
}
