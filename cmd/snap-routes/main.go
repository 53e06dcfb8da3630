package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonju-bus-map/snapper/internal/config"
	"github.com/wonju-bus-map/snapper/internal/metrics"
	"github.com/wonju-bus-map/snapper/internal/osrm"
	"github.com/wonju-bus-map/snapper/internal/route"
	"github.com/wonju-bus-map/snapper/internal/store"
)

func main() {
	cfg := config.Load()

	routeID := flag.String("route", "", "Snap only the route with this route id")
	outputDir := flag.String("output", cfg.OutputDir, "Output directory (must contain the fetch cache)")
	flag.Parse()

	if *outputDir != cfg.OutputDir {
		cfg.OutputDir = *outputDir
		cfg.CacheDir = filepath.Join(cfg.OutputDir, "cache")
		cfg.PolylineDir = filepath.Join(cfg.OutputDir, "polylines")
	}

	if err := os.MkdirAll(cfg.PolylineDir, 0755); err != nil {
		log.Fatalf("Failed to create polyline directory: %v", err)
	}

	stations := loadStationMap(filepath.Join(cfg.OutputDir, "stationMap.json"))

	rawFiles, err := listRawFiles(cfg.CacheDir, *routeID)
	if err != nil {
		log.Fatalf("Failed to list cache: %v", err)
	}
	if len(rawFiles) == 0 {
		log.Fatalf("No raw route files in %s, run fetch-routes first", cfg.CacheDir)
	}

	ctx := context.Background()

	db, err := store.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	startedAt := time.Now()
	snapshotID, err := db.CreateSnapshot(ctx, startedAt)
	if err != nil {
		log.Fatalf("Failed to create snapshot: %v", err)
	}
	log.Printf("Snapshot %s", snapshotID)

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector()
		collector.Serve(cfg.MetricsAddr)
	}

	processor := route.NewProcessor(
		osrm.NewClient(cfg.OSRMBaseURL, cfg.OSRMGeometry, collector),
		stations,
		cfg.PolylineDir,
	)
	processor.SnapshotID = snapshotID
	processor.Store = db
	processor.Metrics = collector

	runner := &route.Runner{Processor: processor, Concurrency: cfg.SnapWorkers}

	log.Printf("Snapping %d routes (%d workers, OSRM %s)...",
		len(rawFiles), cfg.SnapWorkers, cfg.OSRMBaseURL)
	failed := runner.Run(ctx, rawFiles)

	elapsed := time.Since(startedAt).Round(time.Second)
	log.Printf("Snap complete in %v: %d routes, %d failed", elapsed, len(rawFiles)-failed, failed)
	if mean, stddev, count := collector.LatencySummary(); count > 0 {
		log.Printf("OSRM latency: mean %.0f ms, stddev %.0f ms over %d requests",
			mean*1000, stddev*1000, count)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// loadStationMap reads the shared station coordinate lookup. A missing or
// unreadable map is not fatal: routes then keep their own coordinates.
func loadStationMap(path string) map[string]route.StationRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: no station map at %s: %v", path, err)
		return nil
	}
	var file route.StationMapFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Printf("Warning: unreadable station map: %v", err)
		return nil
	}
	log.Printf("Station map loaded: %d stations (updated %s)", len(file.Stations), file.LastUpdated)
	return file.Stations
}

// listRawFiles returns the raw cache files to process, sorted by name. The
// optional routeID filter matches the <routeNo>_<routeID>.json suffix.
func listRawFiles(cacheDir, routeID string) ([]string, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		if routeID != "" && !strings.HasSuffix(name, "_"+routeID+".json") {
			continue
		}
		files = append(files, filepath.Join(cacheDir, name))
	}
	sort.Strings(files)
	return files, nil
}
