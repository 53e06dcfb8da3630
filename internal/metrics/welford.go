package metrics

import "math"

// WelfordState holds running statistics using Welford's online algorithm,
// so mean and standard deviation can be tracked in O(1) space without
// storing every observation.
type WelfordState struct {
	Count int     // number of observations
	Mean  float64 // running mean
	m2    float64 // sum of squared differences from the mean
}

// Update adds a new observation. Numerically stable.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
func (w *WelfordState) Update(v float64) {
	w.Count++
	delta := v - w.Mean
	w.Mean += delta / float64(w.Count)
	w.m2 += delta * (v - w.Mean)
}

// StdDev returns the population standard deviation, or 0 for fewer than 2
// observations.
func (w *WelfordState) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.Count))
}
