package clusterkit

import "math"

// euclidSquared returns the squared Euclidean distance between two rows.
func euclidSquared(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// euclid returns the Euclidean distance between two rows.
func euclid(a, b []float64) float64 {
	return math.Sqrt(euclidSquared(a, b))
}
