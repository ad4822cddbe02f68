package clusterkit

import (
	"math"
	"testing"
)

// line3d is points along a single direction in three dimensions, with the
// third coordinate constant.
func line3d() [][]float64 {
	return [][]float64{
		{0, 0, 5},
		{1, 2, 5},
		{2, 4, 5},
		{3, 6, 5},
		{4, 8, 5},
	}
}

// cloud3d is points with variance in all three dimensions.
func cloud3d() [][]float64 {
	return [][]float64{
		{0, 0, 0},
		{4, 1, 0.5},
		{1, 5, 0.2},
		{3, 2, 1.5},
		{2, 4, 0.8},
		{5, 3, 0.1},
	}
}

func TestReduceShape(t *testing.T) {
	out, err := Reduce(cloud3d(), 2, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("rows = %d, want 6", len(out))
	}
	for _, row := range out {
		if len(row) != 2 {
			t.Fatalf("columns = %d, want 2", len(row))
		}
	}
}

func TestReduceCollinearData(t *testing.T) {
	// All variance lies along one line, so only one real component exists
	// even when two are requested, and the projection preserves the point
	// spacing along the line.
	out, err := Reduce(line3d(), 2, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(out[0]) != 1 {
		t.Fatalf("rank-one data kept %d components, want 1", len(out[0]))
	}
	step := out[1][0] - out[0][0]
	if math.Abs(math.Abs(step)-math.Sqrt(5)) > 1e-6 {
		t.Errorf("projection step = %v, want ±sqrt(5)", step)
	}
	for i := 2; i < len(out); i++ {
		if math.Abs((out[i][0]-out[i-1][0])-step) > 1e-6 {
			t.Errorf("projection spacing not preserved: %v", out)
		}
	}
}

func TestReduceAutoComponents(t *testing.T) {
	out, err := Reduce(line3d(), ComponentsAuto, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	// One direction explains all the variance.
	if len(out[0]) != 1 {
		t.Errorf("auto kept %d components, want 1", len(out[0]))
	}
}

func TestReduceClampsK(t *testing.T) {
	out, err := Reduce(cloud3d(), 10, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(out[0]) > 3 {
		t.Errorf("components = %d, want at most 3", len(out[0]))
	}
}

func TestReduceComponentsOrderedByVariance(t *testing.T) {
	out, err := Reduce(cloud3d(), 2, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	variance := func(c int) float64 {
		var s float64
		for i := range out {
			s += out[i][c] * out[i][c]
		}
		return s
	}
	if variance(0) < variance(1) {
		t.Errorf("first component carries less variance than the second")
	}
}

func TestReduceDegenerateMatrix(t *testing.T) {
	X := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	out, err := Reduce(X, 2, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	for i, row := range out {
		for _, v := range row {
			if v != 0 {
				t.Errorf("row %d = %v, want zeros", i, row)
			}
		}
	}
}

func TestReduceDeterministic(t *testing.T) {
	first, err := Reduce(cloud3d(), 2, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	second, err := Reduce(cloud3d(), 2, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatal("repeated runs disagree")
			}
		}
	}
}

func TestReduceRejectsEmpty(t *testing.T) {
	if _, err := Reduce(nil, 2, 0); err == nil {
		t.Error("empty input accepted")
	}
	if _, err := Reduce([][]float64{{1}}, 0, 0); err == nil {
		t.Error("k = 0 accepted")
	}
}
