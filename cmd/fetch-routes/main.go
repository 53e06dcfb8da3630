package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wonju-bus-map/snapper/internal/config"
	"github.com/wonju-bus-map/snapper/internal/route"
	"github.com/wonju-bus-map/snapper/internal/store"
	"github.com/wonju-bus-map/snapper/internal/tago"
)

// fetchResult carries one route's stop list back from a fetch worker.
type fetchResult struct {
	route tago.RouteSummary
	stops []tago.StopItem
	err   error
}

func main() {
	cfg := config.Load()

	cityCode := flag.String("city", cfg.CityCode, "TAGO city code")
	routeNo := flag.String("route", "", "Fetch only routes with this route number")
	outputDir := flag.String("output", cfg.OutputDir, "Output directory")
	stationMapOnly := flag.Bool("station-map-only", false, "Rebuild stationMap.json from cached raw files without fetching")
	force := flag.Bool("force", false, "Fetch even when the cache already exists")
	flag.Parse()

	cfg.CityCode = *cityCode
	if *outputDir != cfg.OutputDir {
		cfg.OutputDir = *outputDir
		cfg.CacheDir = filepath.Join(cfg.OutputDir, "cache")
		cfg.RouteMapFile = filepath.Join(cfg.OutputDir, "routeMap.json")
	}

	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		log.Fatalf("Failed to create cache directory: %v", err)
	}

	if *stationMapOnly {
		if err := rebuildStationMap(cfg); err != nil {
			log.Fatalf("Failed to rebuild station map: %v", err)
		}
		return
	}

	if cfg.ServiceKey == "" {
		log.Fatal("DATA_GO_KR_SERVICE_KEY is not set")
	}

	// An existing cache with a route map means a previous fetch completed;
	// skip the API round trips unless forced.
	if !*force && *routeNo == "" && cacheLooksComplete(cfg) {
		log.Printf("Cache at %s already populated, skipping fetch (use -force to refetch)", cfg.CacheDir)
		return
	}

	ctx := context.Background()
	client := tago.NewClient(cfg.TagoBaseURL, cfg.ServiceKey, cfg.CityCode)

	log.Printf("Fetching route list for city %s...", cfg.CityCode)
	routes, err := client.RouteList(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch route list: %v", err)
	}
	if *routeNo != "" {
		routes = filterByRouteNo(routes, *routeNo)
	}
	log.Printf("Fetching stops for %d routes...", len(routes))

	results := fetchAllStops(ctx, client, routes, cfg.FetchWorkers)

	routeMap := map[string][]string{}
	routeDetails := map[string]route.RouteDetails{}
	stations := map[string]route.StationRecord{}
	fetched, failed := 0, 0

	for res := range results {
		if res.err != nil {
			log.Printf("Route %s (%s): %v", res.route.RouteNo, res.route.RouteID, res.err)
			failed++
			continue
		}
		if len(res.stops) == 0 {
			log.Printf("Route %s (%s): no stops published, skipping", res.route.RouteNo, res.route.RouteID)
			continue
		}

		no := res.route.RouteNo.String()
		routeMap[no] = append(routeMap[no], res.route.RouteID)
		routeDetails[res.route.RouteID] = buildDetails(no, res.stops)
		for _, s := range res.stops {
			stations[s.NodeID] = route.StationRecord{
				Name:   s.NodeName,
				NodeNo: s.NodeNo.String(),
				Lat:    s.GPSLat,
				Lon:    s.GPSLong,
			}
		}

		if err := writeRawFile(cfg.CacheDir, res.route, res.stops); err != nil {
			log.Printf("Route %s (%s): %v", no, res.route.RouteID, err)
			failed++
			continue
		}
		fetched++
	}

	for no := range routeMap {
		sort.Strings(routeMap[no])
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	if err := writeJSON(cfg.RouteMapFile, route.RouteMapFile{LastUpdated: now, RouteNumbers: routeMap}); err != nil {
		log.Fatalf("Failed to write route map: %v", err)
	}
	if err := writeJSON(filepath.Join(cfg.OutputDir, "routeDetails.json"),
		route.RouteDetailsFile{LastUpdated: now, RouteDetails: routeDetails}); err != nil {
		log.Fatalf("Failed to write route details: %v", err)
	}
	if err := writeJSON(filepath.Join(cfg.OutputDir, "stationMap.json"),
		route.StationMapFile{LastUpdated: now, Stations: stations}); err != nil {
		log.Fatalf("Failed to write station map: %v", err)
	}

	if err := indexInDatabase(ctx, cfg, routeMap, stations); err != nil {
		log.Printf("Warning: database index update failed: %v", err)
	}

	log.Printf("Fetch complete: %d routes cached, %d failed, %d stations", fetched, failed, len(stations))
}

// fetchAllStops fans the per-route stop fetch out over a bounded worker pool
// and streams results back over a channel.
func fetchAllStops(ctx context.Context, client *tago.Client, routes []tago.RouteSummary, workers int) <-chan fetchResult {
	jobs := make(chan tago.RouteSummary)
	results := make(chan fetchResult)

	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				stops, err := client.RouteStops(ctx, r.RouteID)
				results <- fetchResult{route: r, stops: stops, err: err}
			}
		}()
	}

	go func() {
		for _, r := range routes {
			jobs <- r
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	return results
}

func filterByRouteNo(routes []tago.RouteSummary, no string) []tago.RouteSummary {
	filtered := routes[:0]
	for _, r := range routes {
		if r.RouteNo.String() == no {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func buildDetails(no string, stops []tago.StopItem) route.RouteDetails {
	seq := make([]route.SequenceStop, len(stops))
	for i, s := range stops {
		seq[i] = route.SequenceStop{
			NodeID:   s.NodeID,
			NodeOrd:  s.NodeOrd,
			UpDownCd: int64(s.UpDownCd),
		}
	}
	sort.SliceStable(seq, func(i, j int) bool { return seq[i].NodeOrd < seq[j].NodeOrd })
	return route.RouteDetails{RouteNo: no, Sequence: seq}
}

// writeRawFile persists one route's stop list as <routeNo>_<routeID>.json,
// the cache format consumed by snap-routes.
func writeRawFile(cacheDir string, r tago.RouteSummary, items []tago.StopItem) error {
	stops := make([]route.Stop, len(items))
	for i, s := range items {
		stops[i] = route.Stop{
			NodeID:   s.NodeID,
			NodeName: s.NodeName,
			NodeOrd:  s.NodeOrd,
			NodeNo:   s.NodeNo.String(),
			Lat:      s.GPSLat,
			Lon:      s.GPSLong,
			UpDownCd: int64(s.UpDownCd),
		}
	}
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].NodeOrd < stops[j].NodeOrd })

	raw := route.RawRouteFile{
		RouteID:   r.RouteID,
		RouteNo:   r.RouteNo.String(),
		FetchedAt: time.Now().Format(time.RFC3339),
		Stops:     stops,
	}

	name := fmt.Sprintf("%s_%s.json", r.RouteNo, r.RouteID)
	return writeJSON(filepath.Join(cacheDir, name), raw)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func cacheLooksComplete(cfg *config.Config) bool {
	if _, err := os.Stat(cfg.RouteMapFile); err != nil {
		return false
	}
	entries, err := os.ReadDir(cfg.CacheDir)
	return err == nil && len(entries) > 0
}

// rebuildStationMap regenerates stationMap.json from the cached raw files,
// useful after hand-editing individual route caches.
func rebuildStationMap(cfg *config.Config) error {
	entries, err := os.ReadDir(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}

	stations := map[string]route.StationRecord{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(cfg.CacheDir, e.Name()))
		if err != nil {
			return err
		}
		var raw route.RawRouteFile
		if err := json.Unmarshal(data, &raw); err != nil {
			log.Printf("Skipping unreadable cache file %s: %v", e.Name(), err)
			continue
		}
		for _, s := range raw.Stops {
			stations[s.NodeID] = route.StationRecord{
				Name:   s.NodeName,
				NodeNo: s.NodeNo,
				Lat:    s.Lat,
				Lon:    s.Lon,
			}
		}
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	path := filepath.Join(cfg.OutputDir, "stationMap.json")
	if err := writeJSON(path, route.StationMapFile{LastUpdated: now, Stations: stations}); err != nil {
		return err
	}
	log.Printf("Station map rebuilt: %d stations from %d cache files", len(stations), len(entries))
	return nil
}

// indexInDatabase mirrors the fetch results into the SQLite sidecar so other
// tools can query them without parsing JSON.
func indexInDatabase(ctx context.Context, cfg *config.Config, routeMap map[string][]string,
	stations map[string]route.StationRecord) error {

	db, err := store.Connect(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	records := make([]store.Station, 0, len(stations))
	for nodeID, s := range stations {
		records = append(records, store.Station{
			NodeID: nodeID,
			NodeNo: s.NodeNo,
			Name:   s.Name,
			Lat:    s.Lat,
			Lon:    s.Lon,
		})
	}
	if err := db.UpsertStations(ctx, records); err != nil {
		return err
	}
	return db.UpsertRouteNumbers(ctx, routeMap)
}
