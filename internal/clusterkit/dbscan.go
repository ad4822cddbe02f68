package clusterkit

import "errors"

// Noise is the DBSCAN label for rows that belong to no cluster.
const Noise = -1

// DBSCAN groups rows by density: a row with at least MinPts neighbors
// within Eps seeds a cluster that expands through density-connected
// neighbors. Rows reachable from no core point are labeled Noise.
type DBSCAN struct {
	Eps    float64
	MinPts int
}

// NewDBSCAN creates a DBSCAN model.
func NewDBSCAN(eps float64, minPts int) *DBSCAN {
	return &DBSCAN{Eps: eps, MinPts: minPts}
}

// Cluster returns one label per row, Noise for unclustered rows. Cluster
// ids are assigned in row order, so labeling is deterministic.
func (m *DBSCAN) Cluster(X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return nil, errors.New("input data cannot be empty")
	}
	if m.Eps <= 0 {
		return nil, errors.New("eps must be positive")
	}
	minPts := m.MinPts
	if minPts <= 0 {
		minPts = 2
	}

	n := len(X)
	const unvisited = -2
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}
	eps2 := m.Eps * m.Eps

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if euclidSquared(X[i], X[j]) <= eps2 {
				out = append(out, j)
			}
		}
		return out
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		nb := neighbors(i)
		if len(nb) < minPts {
			labels[i] = Noise
			continue
		}

		id := next
		next++
		labels[i] = id

		// Expand the cluster through the seed queue.
		queue := append([]int(nil), nb...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if labels[j] == Noise {
				labels[j] = id
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = id
			jnb := neighbors(j)
			if len(jnb) >= minPts {
				queue = append(queue, jnb...)
			}
		}
	}
	return labels, nil
}
