package metrics

import (
	"math"
	"testing"
)

func TestWelfordState(t *testing.T) {
	var w WelfordState

	if w.StdDev() != 0 {
		t.Error("empty state should have zero stddev")
	}

	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Update(v)
	}

	if w.Count != 8 {
		t.Errorf("count = %d, want 8", w.Count)
	}
	if math.Abs(w.Mean-5) > 1e-12 {
		t.Errorf("mean = %f, want 5", w.Mean)
	}
	// Known population stddev of this series is exactly 2.
	if math.Abs(w.StdDev()-2) > 1e-12 {
		t.Errorf("stddev = %f, want 2", w.StdDev())
	}
}

func TestWelfordSingleObservation(t *testing.T) {
	var w WelfordState
	w.Update(3.5)

	if w.Mean != 3.5 {
		t.Errorf("mean = %f, want 3.5", w.Mean)
	}
	if w.StdDev() != 0 {
		t.Error("one observation should have zero stddev")
	}
}
