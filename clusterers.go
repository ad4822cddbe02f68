package rulesmith

import (
	"fmt"

	"github.com/rulesmith/rulesmith/internal/clusterkit"
)

// NewClusterer builds the label provider named by the configuration.
// Unknown names are a usage error, surfaced before any file is touched.
func NewClusterer(cfg ClustererConfig) (Clusterer, error) {
	switch cfg.Name {
	case "kmeans":
		return clusterkit.NewKMeans(cfg.K, cfg.MaxIter, cfg.Seed), nil
	case "dbscan":
		return clusterkit.NewDBSCAN(cfg.Eps, cfg.MinSamples), nil
	case "meanshift":
		return clusterkit.NewMeanShift(cfg.Bandwidth, cfg.MaxIter), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClusterer, cfg.Name)
	}
}

// ClustererNames lists the built-in label providers.
func ClustererNames() []string {
	return []string{"dbscan", "kmeans", "meanshift"}
}

// Preprocess applies the configured matrix transforms: optional
// centering/scaling, then optional PCA reduction. Every row goes through
// the identical transform.
func Preprocess(matrix [][]float64, cfg PreprocessConfig) ([][]float64, error) {
	out := clusterkit.Standardize(matrix, cfg.Center, cfg.Scale)
	if cfg.Components == 0 {
		return out, nil
	}
	k := cfg.Components
	if k == ComponentsAuto {
		k = clusterkit.ComponentsAuto
	}
	return clusterkit.Reduce(out, k, 0)
}
