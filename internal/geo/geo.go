package geo

import "math"

const earthRadiusMeters = 6371000

// Coordinates are [2]float64{lon, lat} pairs, matching GeoJSON ordering.

// MetersBetween calculates the distance in meters between two GPS
// coordinates using the equirectangular approximation. Good to well under a
// percent at intra-city scales; not valid for very long distances.
func MetersBetween(lon1, lat1, lon2, lat2 float64) float64 {
	x := (lon2 - lon1) * math.Pi / 180 * math.Cos((lat1+lat2)*0.5*math.Pi/180)
	y := (lat2 - lat1) * math.Pi / 180

	return math.Sqrt(x*x+y*y) * earthRadiusMeters
}

// ClosestPointOnPolyline finds the point on any segment of line closest to
// point, together with its distance in meters. The projection is clamped to
// the segment, not the infinite line. Returns ok=false when line has fewer
// than 2 points or only zero-length segments.
func ClosestPointOnPolyline(point [2]float64, line [][2]float64) ([2]float64, float64, bool) {
	if len(line) < 2 {
		return [2]float64{}, 0, false
	}

	px, py := point[0], point[1]

	var best [2]float64
	bestDist := math.Inf(1)
	found := false

	for i := 0; i < len(line)-1; i++ {
		x1, y1 := line[i][0], line[i][1]
		x2, y2 := line[i+1][0], line[i+1][1]

		dx := x2 - x1
		dy := y2 - y1

		denom := dx*dx + dy*dy
		if denom == 0 {
			continue
		}

		t := ((px-x1)*dx + (py-y1)*dy) / denom
		t = math.Max(0, math.Min(1, t))

		cx := x1 + t*dx
		cy := y1 + t*dy

		d := MetersBetween(px, py, cx, cy)
		if d < bestDist {
			best = [2]float64{cx, cy}
			bestDist = d
			found = true
		}
	}

	if !found {
		return [2]float64{}, 0, false
	}
	return best, bestDist, true
}

// NearestCoordIndex finds the index of the coordinate in line closest to
// point. Ties resolve to the lowest index. Returns ok=false on an empty line.
func NearestCoordIndex(point [2]float64, line [][2]float64) (int, bool) {
	if len(line) == 0 {
		return 0, false
	}

	px, py := point[0], point[1]

	bestIdx := 0
	minDist := math.MaxFloat64

	for i, coord := range line {
		d := MetersBetween(px, py, coord[0], coord[1])
		if d < minDist {
			minDist = d
			bestIdx = i
		}
	}

	return bestIdx, true
}

// Metrics calculates the bounding box [minLon, minLat, maxLon, maxLat] and
// total length in meters of a coordinate sequence in a single pass. The bbox
// starts at inverted sentinels and only widens; fewer than 2 points yields
// zero length.
func Metrics(coords [][2]float64) ([4]float64, float64) {
	bbox := [4]float64{180, 90, -180, -90}
	var dist float64

	for i, c := range coords {
		if c[0] < bbox[0] {
			bbox[0] = c[0]
		}
		if c[1] < bbox[1] {
			bbox[1] = c[1]
		}
		if c[0] > bbox[2] {
			bbox[2] = c[0]
		}
		if c[1] > bbox[3] {
			bbox[3] = c[1]
		}

		if i > 0 {
			dist += MetersBetween(coords[i-1][0], coords[i-1][1], c[0], c[1])
		}
	}

	return bbox, dist
}

// Round6 rounds a coordinate component to 6 decimal places (~0.11 m).
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// QuantizeCoords rounds every coordinate in place to 6 decimal places to
// bound artifact size. Idempotent.
func QuantizeCoords(coords [][2]float64) {
	for i := range coords {
		coords[i][0] = Round6(coords[i][0])
		coords[i][1] = Round6(coords[i][1])
	}
}
