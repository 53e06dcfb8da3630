// Package route implements the route geometry construction pipeline:
// correcting drifted stop coordinates, snapping stop sequences onto the
// road network in chunks, stitching the results into one polyline and
// assembling the annotated GeoJSON artifact per route.
package route

import "context"

// Stop is one stop of a route in travel order. Field names mirror the raw
// cache file format.
type Stop struct {
	NodeID   string  `json:"node_id"`
	NodeName string  `json:"node_nm"`
	NodeOrd  int64   `json:"node_ord"`
	NodeNo   string  `json:"node_no"`
	Lat      float64 `json:"gps_lat"`
	Lon      float64 `json:"gps_long"`
	UpDownCd int64   `json:"up_down_cd"`
}

// RawRouteFile is the per-route cache file written by fetch-routes and
// consumed by snap-routes.
type RawRouteFile struct {
	RouteID   string `json:"route_id"`
	RouteNo   string `json:"route_no"`
	FetchedAt string `json:"fetched_at"`
	Stops     []Stop `json:"stops"`
}

// StationRecord is one entry of the shared station coordinate lookup,
// aggregated across every route during the fetch phase. Its coordinates
// are preferred over the per-route stop coordinates.
type StationRecord struct {
	Name   string  `json:"nodenm"`
	NodeNo string  `json:"nodeno"`
	Lat    float64 `json:"gpslati"`
	Lon    float64 `json:"gpslong"`
}

// StationMapFile is the stationMap.json layout.
type StationMapFile struct {
	LastUpdated string                   `json:"lastUpdated"`
	Stations    map[string]StationRecord `json:"stations"`
}

// RouteMapFile is the routeMap.json layout: route number -> route ids.
type RouteMapFile struct {
	LastUpdated  string              `json:"lastUpdated"`
	RouteNumbers map[string][]string `json:"route_numbers"`
}

// RouteDetails is the per-route stop sequence metadata kept in
// routeDetails.json.
type RouteDetails struct {
	RouteNo  string         `json:"routeno"`
	Sequence []SequenceStop `json:"sequence"`
}

// SequenceStop is one stop reference within RouteDetails.
type SequenceStop struct {
	NodeID   string `json:"nodeid"`
	NodeOrd  int64  `json:"nodeord"`
	UpDownCd int64  `json:"updowncd"`
}

// RouteDetailsFile is the routeDetails.json layout.
type RouteDetailsFile struct {
	LastUpdated  string                  `json:"lastUpdated"`
	RouteDetails map[string]RouteDetails `json:"route_details"`
}

// FeatureCollection is the GeoJSON artifact written per route.
type FeatureCollection struct {
	Type     string    `json:"type"` // "FeatureCollection"
	Features []Feature `json:"features"`
}

// Feature holds the single LineString feature of a route artifact.
type Feature struct {
	Type       string     `json:"type"` // "Feature"
	ID         string     `json:"id"`
	BBox       []float64  `json:"bbox,omitempty"`
	Properties Properties `json:"properties"`
	Geometry   Geometry   `json:"geometry"`
}

// Geometry is the merged, quantized route polyline.
type Geometry struct {
	Type        string       `json:"type"` // "LineString"
	Coordinates [][2]float64 `json:"coordinates"`
}

// Properties annotates the geometry with per-stop positions and metrics.
type Properties struct {
	RouteID     string         `json:"route_id"`
	RouteNo     string         `json:"route_no"`
	Stops       []ArtifactStop `json:"stops"`
	TurnIdx     int            `json:"turn_idx"`
	StopToCoord []int          `json:"stop_to_coord"`
	TotalDist   float64        `json:"total_dist"`
	SourceVer   string         `json:"source_ver"`
}

// ArtifactStop is the trimmed stop record embedded in the artifact.
type ArtifactStop struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Ord    int64  `json:"ord"`
	UpDown int64  `json:"ud"`
}

// Router is the routing engine dependency of the pipeline. Implemented by
// *osrm.Client; an error means "no result for this span", never a reason
// to abort the route.
type Router interface {
	Route(ctx context.Context, points [][2]float64) ([][2]float64, error)
}
