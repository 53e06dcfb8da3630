package route

import (
	"context"
	"log"

	"github.com/wonju-bus-map/snapper/internal/geo"
)

// stitchChunks splits the stop list into overlapping chunks of at most
// ChunkSize stops, routes each chunk, and merges the returned polylines
// into one continuous geometry. Each chunk after the first starts at the
// previous chunk's last stop, so the routing engine is always asked for a
// physically continuous path and consecutive polylines share exactly one
// point at the boundary.
//
// Returns the merged geometry and the per-stop index map into it. The map
// always has one entry per stop: stops whose chunk returned no geometry
// get the best available approximation (the next chunk's merge offset, or
// the final coordinate for a failed trailing chunk).
func (p *Processor) stitchChunks(ctx context.Context, routeID string, stops []Stop) ([][2]float64, []int) {
	coords := make([][2]float64, 0, len(stops)*4)
	stopToCoord := make([]int, 0, len(stops))

	start := 0
	for start < len(stops)-1 {
		end := start + p.ChunkSize
		if end > len(stops) {
			end = len(stops)
		}
		chunk := stops[start:end]
		if len(chunk) < 2 {
			break
		}

		points := make([][2]float64, len(chunk))
		for i, s := range chunk {
			points[i] = [2]float64{s.Lon, s.Lat}
		}

		line, err := p.Router.Route(ctx, points)
		if err != nil {
			log.Printf("Route %s: chunk [%d:%d] returned no geometry: %v", routeID, start, end, err)
			if p.Metrics != nil {
				p.Metrics.ChunksDropped.Inc()
			}
			start = end - 1
			continue
		}

		base := len(coords)

		// Map every stop of this chunk that is still unmapped. The nearest
		// vertex is searched in the chunk's own polyline; the local index
		// is then translated past the dropped boundary duplicate.
		for i, s := range chunk {
			if start+i < len(stopToCoord) {
				continue // mapped by the previous chunk's overlap
			}

			local, ok := geo.NearestCoordIndex([2]float64{s.Lon, s.Lat}, line)
			if !ok {
				stopToCoord = append(stopToCoord, base)
				continue
			}

			global := local
			if base > 0 {
				if local == 0 {
					// The shared overlap stop: its position is the last
					// point already merged.
					global = base - 1
				} else {
					global = base + local - 1
				}
			}
			stopToCoord = append(stopToCoord, global)
		}

		// Merge, dropping the first coordinate when it duplicates the
		// overlap point already present in the merged geometry.
		if base > 0 {
			coords = append(coords, line[1:]...)
		} else {
			coords = append(coords, line...)
		}
		if p.Metrics != nil {
			p.Metrics.ChunksMerged.Inc()
		}

		start = end - 1
	}

	// Trailing stops left unmapped by failed chunks point at the final
	// available coordinate. Approximate, but keeps the map total.
	for len(stopToCoord) < len(stops) {
		idx := len(coords) - 1
		if idx < 0 {
			idx = 0
		}
		stopToCoord = append(stopToCoord, idx)
	}

	return coords, stopToCoord
}
