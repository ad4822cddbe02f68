// Package clusterkit provides the label providers and matrix preprocessing
// used by the rulesmith pipeline: k-means, DBSCAN, and mean-shift
// clustering plus standardization and PCA reduction. All operate on plain
// [][]float64 row matrices and are deterministic for a fixed seed.
package clusterkit
