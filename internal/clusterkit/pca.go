package clusterkit

import (
	"errors"
	"math"
	"math/rand"
)

// ComponentsAuto asks Reduce to pick the component count from the
// explained-variance profile.
const ComponentsAuto = -1

// autoVarianceTarget is the cumulative explained-variance fraction the
// automatic component count aims for.
const autoVarianceTarget = 0.95

// Reduce projects X onto at most k top principal components via power
// iteration with deflation; fewer come back when the data has less rank.
// k = ComponentsAuto keeps adding components until they explain
// autoVarianceTarget of the total variance. The iteration is seeded
// deterministically so repeated runs agree.
func Reduce(X [][]float64, k, maxIters int) ([][]float64, error) {
	if len(X) == 0 {
		return nil, errors.New("input data cannot be empty")
	}
	n, d := len(X), len(X[0])
	if d == 0 {
		return nil, errors.New("input data has no columns")
	}
	if maxIters <= 0 {
		maxIters = 100
	}

	maxK := d
	if n < maxK {
		maxK = n
	}
	auto := k == ComponentsAuto
	if auto || k > maxK {
		k = maxK
	}
	if k <= 0 {
		return nil, errors.New("component count must be positive")
	}

	// Center the matrix.
	means := make([]float64, d)
	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			means[j] += X[i][j]
		}
		means[j] /= float64(n)
	}
	Z := make([][]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		z := make([]float64, d)
		for j := 0; j < d; j++ {
			z[j] = X[i][j] - means[j]
			total += z[j] * z[j]
		}
		Z[i] = z
	}
	if total == 0 {
		// Degenerate matrix: every row identical. Project to zeros.
		out := make([][]float64, n)
		for i := range out {
			out[i] = make([]float64, 1)
		}
		return out, nil
	}

	rng := rand.New(rand.NewSource(1))
	components := make([][]float64, 0, k)
	var explained float64

	for comp := 0; comp < k; comp++ {
		v := make([]float64, d)
		for j := range v {
			v[j] = rng.Float64() - 0.5
		}
		v = normalize(v)

		// Power iteration: v <- Z^T (Z v), renormalized.
		for t := 0; t < maxIters; t++ {
			zv := make([]float64, n)
			for i := 0; i < n; i++ {
				zv[i] = dot(Z[i], v)
			}
			w := make([]float64, d)
			for i := 0; i < n; i++ {
				for j := 0; j < d; j++ {
					w[j] += Z[i][j] * zv[i]
				}
			}
			nw := normalize(w)
			if converged(v, nw) {
				v = nw
				break
			}
			v = nw
		}
		// Deflate: remove the found component and track its variance.
		var eig float64
		for i := 0; i < n; i++ {
			p := dot(Z[i], v)
			eig += p * p
			for j := 0; j < d; j++ {
				Z[i][j] -= p * v[j]
			}
		}

		// No residual variance left: the remaining directions are noise of
		// the deflation, not real components.
		if eig <= total*1e-12 && len(components) > 0 {
			break
		}
		components = append(components, v)
		explained += eig

		if auto && explained/total >= autoVarianceTarget {
			break
		}
	}

	// Project the original (centered) data onto the components.
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(components))
		for c, v := range components {
			var p float64
			for j := 0; j < d; j++ {
				p += (X[i][j] - means[j]) * v[j]
			}
			row[c] = p
		}
		out[i] = row
	}
	return out, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(v []float64) []float64 {
	n := math.Sqrt(dot(v, v))
	if n == 0 {
		out := make([]float64, len(v))
		if len(out) > 0 {
			out[0] = 1
		}
		return out
	}
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] / n
	}
	return out
}

func converged(a, b []float64) bool {
	// Eigenvectors are sign-ambiguous; compare up to sign.
	d := math.Abs(dot(a, b))
	return math.Abs(d-1) < 1e-10
}
