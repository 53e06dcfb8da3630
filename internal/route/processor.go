package route

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/wonju-bus-map/snapper/internal/config"
	"github.com/wonju-bus-map/snapper/internal/geo"
	"github.com/wonju-bus-map/snapper/internal/metrics"
	"github.com/wonju-bus-map/snapper/internal/store"
)

// Processor runs the geometry pipeline for individual routes. It owns no
// per-route state; every ProcessRawFile call works on its own copy of the
// stop list, so one Processor is safe for concurrent use.
type Processor struct {
	Router     Router
	Stations   map[string]StationRecord // read-only reference lookup
	OutDir     string
	ChunkSize  int
	SnapshotID string
	Store      *store.DB          // optional artifact index
	Metrics    *metrics.Collector // optional
}

// NewProcessor wires a processor with the standard chunk size.
func NewProcessor(router Router, stations map[string]StationRecord, outDir string) *Processor {
	return &Processor{
		Router:    router,
		Stations:  stations,
		OutDir:    outDir,
		ChunkSize: config.ChunkSize,
	}
}

// ProcessRawFile runs the full pipeline for one raw cache file: overlay
// reference coordinates, sanitize, stitch, quantize, assemble, write.
// Only unexpected read/parse errors are returned; routing failures and
// too-short routes are handled internally.
func (p *Processor) ProcessRawFile(ctx context.Context, rawPath string) error {
	content, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", rawPath, err)
	}

	var raw RawRouteFile
	if err := json.Unmarshal(content, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", rawPath, err)
	}

	stops := raw.Stops
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].NodeOrd < stops[j].NodeOrd })

	// Overlay station map coordinates for accuracy.
	for i := range stops {
		if station, ok := p.Stations[stops[i].NodeID]; ok {
			stops[i].Lat = station.Lat
			stops[i].Lon = station.Lon
		}
	}

	p.sanitizeToCorridor(ctx, stops)

	if len(stops) < 2 {
		log.Printf("Route %s: only %d stops, skipping", raw.RouteID, len(stops))
		if p.Metrics != nil {
			p.Metrics.RoutesSkipped.Inc()
		}
		return nil
	}

	turnStopIdx := turnStopIndex(stops)

	coords, stopToCoord := p.stitchChunks(ctx, raw.RouteID, stops)

	// Quantize once, before metrics, so bbox/length and the persisted
	// geometry agree.
	geo.QuantizeCoords(coords)

	turnCoordIdx := len(coords) / 2
	if turnStopIdx < len(stopToCoord) {
		turnCoordIdx = stopToCoord[turnStopIdx]
	}

	bbox, totalDist := geo.Metrics(coords)

	artifact := p.assemble(raw, stops, coords, stopToCoord, turnCoordIdx, totalDist, bbox)

	outPath := filepath.Join(p.OutDir, raw.RouteID+".geojson")
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact for %s: %w", raw.RouteID, err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write artifact for %s: %w", raw.RouteID, err)
	}

	if p.Store != nil {
		rec := store.ArtifactRecord{
			RouteID:      raw.RouteID,
			RouteNo:      raw.RouteNo,
			StopCount:    len(stops),
			CoordCount:   len(coords),
			TotalDistM:   totalDist,
			TurnCoordIdx: turnCoordIdx,
		}
		if err := p.Store.UpsertArtifact(ctx, p.SnapshotID, rec); err != nil {
			log.Printf("Route %s: artifact index write failed: %v", raw.RouteID, err)
		}
	}

	if p.Metrics != nil {
		p.Metrics.RoutesProcessed.Inc()
	}
	log.Printf("Route %s (%s): %d stops, %d coords, %.1f km",
		raw.RouteNo, raw.RouteID, len(stops), len(coords), totalDist/1000)
	return nil
}

// turnStopIndex finds the first stop pair whose direction code changes.
// Routes that never change direction turn at the last stop.
func turnStopIndex(stops []Stop) int {
	for i := 0; i < len(stops)-1; i++ {
		if stops[i].UpDownCd != stops[i+1].UpDownCd {
			return i
		}
	}
	return len(stops) - 1
}

func (p *Processor) assemble(raw RawRouteFile, stops []Stop, coords [][2]float64,
	stopToCoord []int, turnCoordIdx int, totalDist float64, bbox [4]float64) FeatureCollection {

	artifactStops := make([]ArtifactStop, len(stops))
	for i, s := range stops {
		artifactStops[i] = ArtifactStop{
			ID:     s.NodeID,
			Name:   s.NodeName,
			Ord:    s.NodeOrd,
			UpDown: s.UpDownCd,
		}
	}

	return FeatureCollection{
		Type: "FeatureCollection",
		Features: []Feature{{
			Type: "Feature",
			ID:   raw.RouteID,
			BBox: bbox[:],
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: coords,
			},
			Properties: Properties{
				RouteID:     raw.RouteID,
				RouteNo:     raw.RouteNo,
				Stops:       artifactStops,
				TurnIdx:     turnCoordIdx,
				StopToCoord: stopToCoord,
				TotalDist:   math.Round(totalDist*10) / 10,
				SourceVer:   raw.FetchedAt,
			},
		}},
	}
}
