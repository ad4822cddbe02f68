package clusterkit

import (
	"errors"
	"math"
	"math/rand"
)

// KMeans partitions rows into K clusters around iteratively refined
// centroids. Every row receives a label; k-means produces no noise.
type KMeans struct {
	K       int
	MaxIter int
	Seed    int64

	Centroids [][]float64
	Inertia   float64
}

// NewKMeans creates a KMeans model.
func NewKMeans(k, maxIter int, seed int64) *KMeans {
	return &KMeans{K: k, MaxIter: maxIter, Seed: seed}
}

// Cluster fits the model and returns one label per row.
func (m *KMeans) Cluster(X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return nil, errors.New("input data cannot be empty")
	}
	if m.K <= 0 {
		return nil, errors.New("K must be positive")
	}
	n, p := len(X), len(X[0])
	k := m.K
	if k > n {
		k = n
	}
	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}

	// k-means++ style seeding: first centroid at random, each next
	// proportional to squared distance from the nearest chosen one.
	rng := rand.New(rand.NewSource(m.Seed))
	m.Centroids = make([][]float64, 0, k)
	first := rng.Intn(n)
	m.Centroids = append(m.Centroids, append([]float64(nil), X[first]...))
	dists := make([]float64, n)
	for len(m.Centroids) < k {
		var sum float64
		for i := range X {
			best := math.MaxFloat64
			for _, c := range m.Centroids {
				if d := euclidSquared(X[i], c); d < best {
					best = d
				}
			}
			dists[i] = best
			sum += best
		}
		next := first
		if sum > 0 {
			r := rng.Float64() * sum
			for i, d := range dists {
				r -= d
				if r <= 0 {
					next = i
					break
				}
			}
		} else {
			next = rng.Intn(n)
		}
		m.Centroids = append(m.Centroids, append([]float64(nil), X[next]...))
	}

	assign := make([]int, n)
	for it := 0; it < maxIter; it++ {
		changed := false
		m.Inertia = 0

		for i := range X {
			best, bestD := 0, math.MaxFloat64
			for c := range m.Centroids {
				if d := euclidSquared(X[i], m.Centroids[c]); d < bestD {
					best, bestD = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
			m.Inertia += bestD
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, p)
		}
		for i := range X {
			c := assign[i]
			counts[c]++
			for j := 0; j < p; j++ {
				sums[c][j] += X[i][j]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := 0; j < p; j++ {
				m.Centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}

		if !changed {
			break
		}
	}
	return assign, nil
}
