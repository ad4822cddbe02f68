package rulesmith

import "sort"

// NoiseLabel is the clusterer output marking a row as unlabeled noise.
// Noise rows never reach signature synthesis.
const NoiseLabel = -1

// Clusterer assigns one integer label per row of a numeric feature matrix.
// Implementations return NoiseLabel for rows they cannot place. The
// clusterkit package provides k-means, DBSCAN, and mean-shift providers;
// any external label source satisfying this contract can be used instead.
type Clusterer interface {
	Cluster(x [][]float64) ([]int, error)
}

// Group is one cluster: its non-negative label and the member rows.
type Group struct {
	ID   int
	Rows *Table
}

// GroupByLabel partitions table rows by cluster label, dropping noise.
// Every original column is preserved; duplicate filenames are tolerated.
// Groups come back sorted by label so emission order is deterministic.
func GroupByLabel(t *Table, labels []int) ([]Group, error) {
	if len(labels) != t.NumRows() {
		return nil, ErrLabelMismatch
	}

	byLabel := make(map[int][]int)
	for i, l := range labels {
		if l == NoiseLabel {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
	}

	ids := make([]int, 0, len(byLabel))
	for id := range byLabel {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	groups := make([]Group, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, Group{ID: id, Rows: t.view(byLabel[id])})
	}
	return groups, nil
}

// CountLabels returns how many rows are labeled and how many are noise.
func CountLabels(labels []int) (labeled, noise int) {
	for _, l := range labels {
		if l == NoiseLabel {
			noise++
		} else {
			labeled++
		}
	}
	return labeled, noise
}
