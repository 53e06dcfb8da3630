package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Pipeline constants. These are deliberately not runtime-tunable: the chunk
// size is bounded by OSRM's coordinate limit per request, and the corridor
// snap limit was calibrated against the Wonju network.
const (
	// ChunkSize is the maximum number of stops sent to OSRM in one request.
	ChunkSize = 120

	// FetchConcurrency bounds concurrent TAGO API fetches (phase 1).
	FetchConcurrency = 10

	// SnapConcurrency bounds concurrent per-route snap pipelines (phase 2).
	SnapConcurrency = 4

	// OSRMMaxAttempts is the total attempt budget for one OSRM request.
	// Only transport-level failures are retried.
	OSRMMaxAttempts = 3

	// OSRMRetryDelay is the fixed wait between OSRM attempts.
	OSRMRetryDelay = 500 * time.Millisecond

	// CorridorSnapMaxMeters is the largest projection distance at which an
	// interior stop is snapped onto its corridor. Anything farther is
	// assumed to be legitimately off-corridor (e.g. a terminus loop).
	CorridorSnapMaxMeters = 90.0
)

// Default API endpoints, overridable via environment.
const (
	defaultTagoURL = "http://apis.data.go.kr/1613000/BusRouteInfoInqireService"
	defaultOSRMURL = "http://router.project-osrm.org/route/v1/driving"
)

// Config holds all configuration for the route pipeline binaries
type Config struct {
	// TAGO public bus API
	TagoBaseURL string
	ServiceKey  string
	CityCode    string

	// OSRM routing engine
	OSRMBaseURL  string
	OSRMGeometry string // "geojson" or "polyline"

	// Storage layout
	OutputDir    string
	CacheDir     string
	PolylineDir  string
	RouteMapFile string
	DatabasePath string

	// Worker pools
	FetchWorkers int
	SnapWorkers  int

	// Observability
	MetricsAddr string
}

// Load reads configuration from .env and environment variables with
// sensible defaults
func Load() *Config {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		TagoBaseURL: getEnv("TAGO_API_URL", defaultTagoURL),
		ServiceKey:  getEnv("DATA_GO_KR_SERVICE_KEY", ""),
		CityCode:    getEnv("CITY_CODE", "32020"), // Wonju

		OSRMBaseURL:  getEnv("OSRM_API_URL", defaultOSRMURL),
		OSRMGeometry: getEnv("OSRM_GEOMETRY", "geojson"),

		OutputDir:   getEnv("OUTPUT_DIR", "./storage"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),

		FetchWorkers: getEnvInt("FETCH_CONCURRENCY", FetchConcurrency),
		SnapWorkers:  getEnvInt("SNAP_CONCURRENCY", SnapConcurrency),
	}

	// Derived paths
	cfg.CacheDir = filepath.Join(cfg.OutputDir, "cache")
	cfg.PolylineDir = filepath.Join(cfg.OutputDir, "polylines")
	cfg.RouteMapFile = filepath.Join(cfg.OutputDir, "routeMap.json")
	cfg.DatabasePath = getEnv("SQLITE_DATABASE", filepath.Join(cfg.OutputDir, "routes.db"))

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
