package clusterkit

import (
	"errors"
	"sort"
)

// MeanShift seeks density modes: every row is shifted toward the mean of
// its flat-kernel neighborhood until it converges on a mode, and rows
// sharing a mode share a cluster. Every row receives a label.
type MeanShift struct {
	// Bandwidth is the kernel radius. Zero estimates it from the data.
	Bandwidth float64

	// MaxIter bounds the shifting iterations per row.
	MaxIter int
}

// NewMeanShift creates a MeanShift model.
func NewMeanShift(bandwidth float64, maxIter int) *MeanShift {
	return &MeanShift{Bandwidth: bandwidth, MaxIter: maxIter}
}

// Cluster returns one label per row. Modes are numbered in row order of
// their first member, so labeling is deterministic.
func (m *MeanShift) Cluster(X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return nil, errors.New("input data cannot be empty")
	}
	n, p := len(X), len(X[0])
	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}
	bw := m.Bandwidth
	if bw <= 0 {
		bw = estimateBandwidth(X)
	}
	if bw <= 0 {
		// All points coincide.
		return make([]int, n), nil
	}
	bw2 := bw * bw

	const tolerance = 1e-6
	modes := make([][]float64, n)
	for i := range X {
		point := append([]float64(nil), X[i]...)
		for it := 0; it < maxIter; it++ {
			mean := make([]float64, p)
			count := 0
			for j := range X {
				if euclidSquared(point, X[j]) <= bw2 {
					for d := 0; d < p; d++ {
						mean[d] += X[j][d]
					}
					count++
				}
			}
			for d := 0; d < p; d++ {
				mean[d] /= float64(count)
			}
			if euclid(point, mean) < tolerance {
				point = mean
				break
			}
			point = mean
		}
		modes[i] = point
	}

	// Merge modes closer than half the bandwidth.
	labels := make([]int, n)
	var centers [][]float64
	for i, mode := range modes {
		assigned := -1
		for c, center := range centers {
			if euclid(mode, center) < bw/2 {
				assigned = c
				break
			}
		}
		if assigned < 0 {
			assigned = len(centers)
			centers = append(centers, mode)
		}
		labels[i] = assigned
	}
	return labels, nil
}

// estimateBandwidth picks a kernel radius from the 30th percentile of
// pairwise distances.
func estimateBandwidth(X [][]float64) float64 {
	n := len(X)
	if n < 2 {
		return 0
	}
	var dists []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dists = append(dists, euclid(X[i], X[j]))
		}
	}
	sort.Float64s(dists)
	return dists[len(dists)*3/10]
}
