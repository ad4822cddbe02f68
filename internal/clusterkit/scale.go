package clusterkit

import "math"

// Standardize returns a copy of X with each column optionally centered to
// zero mean and optionally scaled to unit variance. Columns with zero
// variance scale to zero rather than dividing by zero.
func Standardize(X [][]float64, center, scale bool) [][]float64 {
	if len(X) == 0 || (!center && !scale) {
		return X
	}
	rows, cols := len(X), len(X[0])

	means := make([]float64, cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			means[j] += X[i][j]
		}
		means[j] /= float64(rows)
	}

	stds := make([]float64, cols)
	for j := 0; j < cols; j++ {
		var ss float64
		for i := 0; i < rows; i++ {
			d := X[i][j] - means[j]
			ss += d * d
		}
		stds[j] = math.Sqrt(ss / float64(rows))
	}

	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			v := X[i][j]
			if center {
				v -= means[j]
			}
			if scale {
				if stds[j] != 0 {
					v /= stds[j]
				} else {
					v = 0
				}
			}
			out[i][j] = v
		}
	}
	return out
}
