package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/smog-density-map/internal/smog"
)

// ViewMode selects how results are presented.
type ViewMode string

const (
	ViewHeatmap ViewMode = "heatmap"
	ViewCards   ViewMode = "cards"
)

const maxLocations = 10

// Bounds on a single call to the air-quality service.
const (
	minHTTPTimeout = 5 * time.Second
	maxHTTPTimeout = 8 * time.Second
)

type AppConfig struct {
	Port string

	// AQIServiceURL is the base URL of the external air-quality service.
	AQIServiceURL string
	// HTTPTimeout bounds every call to the service.
	HTTPTimeout time.Duration
	// BreakerMaxFailures consecutive failures open the circuit to the service.
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration

	JoinPolicy    smog.JoinPolicy
	ViewMode      ViewMode
	LocationCount int

	// Session retention.
	SessionMax    int           // max sessions held (0 = unlimited)
	SessionMaxAge time.Duration // idle time before a session is swept
	SweepInterval time.Duration

	// Optional reverse geocoding of marker labels.
	GeocoderAPIKey string

	// Page and map presentation.
	Title      string
	MapCenter  [2]float64
	MapZoom    int
	TileURL    string
	TileAttrib string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.AQIServiceURL = strings.TrimRight(getenvDefault("AQI_SERVICE_URL", "http://localhost:5000"), "/")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "8s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: must be positive")
	}
	if clamped := clampDuration(cfg.HTTPTimeout, minHTTPTimeout, maxHTTPTimeout); clamped != cfg.HTTPTimeout {
		log.Printf("INFO: HTTP_TIMEOUT %s outside %s-%s, using %s", cfg.HTTPTimeout, minHTTPTimeout, maxHTTPTimeout, clamped)
		cfg.HTTPTimeout = clamped
	}
	if cfg.BreakerCooldown, err = getenvDuration("BREAKER_COOLDOWN", "30s"); err != nil {
		return nil, err
	}
	cfg.BreakerMaxFailures = uint32(max(getenvInt("BREAKER_MAX_FAILURES", 5), 1))

	if cfg.JoinPolicy, err = smog.ParseJoinPolicy(getenvDefault("JOIN_POLICY", string(smog.JoinAllOrNothing))); err != nil {
		return nil, fmt.Errorf("invalid JOIN_POLICY: %w", err)
	}

	switch mode := ViewMode(getenvDefault("VIEW_MODE", string(ViewHeatmap))); mode {
	case ViewHeatmap, ViewCards:
		cfg.ViewMode = mode
	default:
		return nil, fmt.Errorf("invalid VIEW_MODE %q: use heatmap or cards", mode)
	}

	cfg.LocationCount = getenvInt("LOCATION_COUNT", 2)
	if cfg.LocationCount < 1 || cfg.LocationCount > maxLocations {
		return nil, fmt.Errorf("invalid LOCATION_COUNT %d: must be between 1 and %d", cfg.LocationCount, maxLocations)
	}

	// Session retention.
	cfg.SessionMax = getenvInt("SESSION_MAX", 1000)
	if cfg.SessionMaxAge, err = getenvDuration("SESSION_MAX_AGE", "1h"); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	cfg.Title = getenvDefault("APP_TITLE", "Smog Density Map")
	if cfg.MapCenter[0], err = getenvFloat("MAP_CENTER_LAT", 30.3753); err != nil {
		return nil, err
	}
	if cfg.MapCenter[1], err = getenvFloat("MAP_CENTER_LNG", 69.3451); err != nil {
		return nil, err
	}
	cfg.MapZoom = getenvInt("MAP_ZOOM", 6)
	cfg.TileURL = getenvDefault("TILE_URL", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	cfg.TileAttrib = getenvDefault("TILE_ATTRIBUTION",
		`&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`)

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	return min(max(d, lo), hi)
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
