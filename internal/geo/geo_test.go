package geo

import (
	"math"
	"testing"
)

// Roughly one degree of latitude in meters, for sanity bounds.
const latDegreeMeters = 111194.9

func TestMetersBetween(t *testing.T) {
	tests := []struct {
		name                   string
		lon1, lat1, lon2, lat2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 127.95, 37.34, 127.95, 37.34, 0, 0.001},
		{"one degree latitude", 127.0, 37.0, 127.0, 38.0, latDegreeMeters, 200},
		{"one degree longitude at 37N", 127.0, 37.0, 128.0, 37.0, latDegreeMeters * math.Cos(37*math.Pi/180), 300},
		{"short hop", 127.9500, 37.3400, 127.9510, 37.3400, 88.3, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MetersBetween(tc.lon1, tc.lat1, tc.lon2, tc.lat2)
			if math.Abs(got-tc.want) > tc.tolerance {
				t.Errorf("MetersBetween = %f, want %f (±%f)", got, tc.want, tc.tolerance)
			}
		})
	}
}

func TestClosestPointOnPolyline(t *testing.T) {
	line := [][2]float64{{127.90, 37.30}, {127.92, 37.30}, {127.92, 37.32}}

	t.Run("projects onto interior of segment", func(t *testing.T) {
		pt, d, ok := ClosestPointOnPolyline([2]float64{127.91, 37.301}, line)
		if !ok {
			t.Fatal("expected a projection")
		}
		if math.Abs(pt[0]-127.91) > 1e-9 || math.Abs(pt[1]-37.30) > 1e-9 {
			t.Errorf("projected point = %v, want (127.91, 37.30)", pt)
		}
		wantDist := MetersBetween(127.91, 37.301, 127.91, 37.30)
		if math.Abs(d-wantDist) > 0.01 {
			t.Errorf("distance = %f, want %f", d, wantDist)
		}
	})

	t.Run("clamps beyond segment end", func(t *testing.T) {
		// Point past the last vertex must project onto the vertex, not the
		// infinite line extension.
		pt, _, ok := ClosestPointOnPolyline([2]float64{127.92, 37.35}, line)
		if !ok {
			t.Fatal("expected a projection")
		}
		if pt[0] != 127.92 || pt[1] != 37.32 {
			t.Errorf("projected point = %v, want clamp to (127.92, 37.32)", pt)
		}
	})

	t.Run("too short polyline", func(t *testing.T) {
		if _, _, ok := ClosestPointOnPolyline([2]float64{127.9, 37.3}, [][2]float64{{127.9, 37.3}}); ok {
			t.Error("single-point polyline should yield no projection")
		}
		if _, _, ok := ClosestPointOnPolyline([2]float64{127.9, 37.3}, nil); ok {
			t.Error("empty polyline should yield no projection")
		}
	})

	t.Run("all zero-length segments", func(t *testing.T) {
		degenerate := [][2]float64{{127.9, 37.3}, {127.9, 37.3}, {127.9, 37.3}}
		if _, _, ok := ClosestPointOnPolyline([2]float64{127.91, 37.3}, degenerate); ok {
			t.Error("degenerate polyline should yield no projection")
		}
	})
}

func TestNearestCoordIndex(t *testing.T) {
	line := [][2]float64{{127.90, 37.30}, {127.91, 37.30}, {127.92, 37.30}}

	idx, ok := NearestCoordIndex([2]float64{127.912, 37.301}, line)
	if !ok || idx != 1 {
		t.Errorf("NearestCoordIndex = (%d, %v), want (1, true)", idx, ok)
	}

	if _, ok := NearestCoordIndex([2]float64{127.9, 37.3}, nil); ok {
		t.Error("empty polyline should yield no index")
	}
}

func TestNearestCoordIndexTieBreaksLow(t *testing.T) {
	// Two vertices at the identical position: the first one wins.
	line := [][2]float64{{127.90, 37.30}, {127.95, 37.30}, {127.90, 37.30}}
	idx, ok := NearestCoordIndex([2]float64{127.90, 37.30}, line)
	if !ok || idx != 0 {
		t.Errorf("NearestCoordIndex = (%d, %v), want first of tied vertices (0)", idx, ok)
	}
}

func TestMetrics(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		bbox, dist := Metrics(nil)
		if dist != 0 {
			t.Errorf("distance = %f, want 0", dist)
		}
		want := [4]float64{180, 90, -180, -90}
		if bbox != want {
			t.Errorf("bbox = %v, want untouched sentinels %v", bbox, want)
		}
	})

	t.Run("single point", func(t *testing.T) {
		bbox, dist := Metrics([][2]float64{{127.95, 37.34}})
		if dist != 0 {
			t.Errorf("distance = %f, want 0", dist)
		}
		want := [4]float64{127.95, 37.34, 127.95, 37.34}
		if bbox != want {
			t.Errorf("bbox = %v, want degenerate point bbox %v", bbox, want)
		}
	})

	t.Run("multi point", func(t *testing.T) {
		coords := [][2]float64{{127.90, 37.30}, {127.92, 37.31}, {127.91, 37.33}}
		bbox, dist := Metrics(coords)
		want := [4]float64{127.90, 37.30, 127.92, 37.33}
		if bbox != want {
			t.Errorf("bbox = %v, want %v", bbox, want)
		}
		wantDist := MetersBetween(127.90, 37.30, 127.92, 37.31) + MetersBetween(127.92, 37.31, 127.91, 37.33)
		if math.Abs(dist-wantDist) > 0.001 {
			t.Errorf("distance = %f, want %f", dist, wantDist)
		}
	})
}

func TestQuantizeCoordsIdempotent(t *testing.T) {
	coords := [][2]float64{
		{127.123456789, 37.987654321},
		{-0.0000004, 0.0000005},
	}
	QuantizeCoords(coords)

	first := make([][2]float64, len(coords))
	copy(first, coords)

	if coords[0][0] != 127.123457 || coords[0][1] != 37.987654 {
		t.Errorf("first coord = %v, want (127.123457, 37.987654)", coords[0])
	}

	// Quantizing already-quantized coordinates must be a no-op.
	QuantizeCoords(coords)
	for i := range coords {
		if coords[i] != first[i] {
			t.Errorf("coord %d changed on second quantization: %v -> %v", i, first[i], coords[i])
		}
	}
}
