package route

import (
	"context"

	"github.com/wonju-bus-map/snapper/internal/config"
	"github.com/wonju-bus-map/snapper/internal/geo"
)

// sanitizeToCorridor corrects GPS drift on interior stops. For each stop
// with both neighbors present it fetches the road path between the
// neighbors and, when the stop projects within CorridorSnapMaxMeters of
// that path, moves the stop onto the projection. Stops farther away are
// left alone: a terminus loop stop can legitimately sit off the corridor,
// and snapping it would drag the route onto the wrong road.
func (p *Processor) sanitizeToCorridor(ctx context.Context, stops []Stop) {
	if len(stops) < 3 {
		return
	}

	for i := 1; i < len(stops)-1; i++ {
		corridor, err := p.Router.Route(ctx, [][2]float64{
			{stops[i-1].Lon, stops[i-1].Lat},
			{stops[i+1].Lon, stops[i+1].Lat},
		})
		if err != nil {
			continue // no reference path, keep the original coordinates
		}

		point := [2]float64{stops[i].Lon, stops[i].Lat}
		if proj, dist, ok := geo.ClosestPointOnPolyline(point, corridor); ok && dist <= config.CorridorSnapMaxMeters {
			stops[i].Lon = proj[0]
			stops[i].Lat = proj[1]
		}
	}
}
