package rulesmith

import (
	"errors"
	"testing"
)

func labeledTable(t *testing.T, names ...string) *Table {
	t.Helper()
	records := make([]*Record, len(names))
	for i, n := range names {
		records[i] = recordWith(n, map[Field]Value{FieldMagic: IntValue(MagicPE32)})
	}
	table, err := BuildTable(records)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	return table
}

func TestGroupByLabelDropsNoise(t *testing.T) {
	table := labeledTable(t, "a.exe", "b.exe", "c.exe", "d.exe")
	groups, err := GroupByLabel(table, []int{1, NoiseLabel, 0, 1})
	if err != nil {
		t.Fatalf("GroupByLabel: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].ID != 0 || groups[1].ID != 1 {
		t.Errorf("group ids = %d,%d, want 0,1", groups[0].ID, groups[1].ID)
	}
	if groups[0].Rows.NumRows() != 1 || groups[0].Rows.Filename(0) != "c.exe" {
		t.Errorf("cluster 0 rows wrong")
	}
	if groups[1].Rows.NumRows() != 2 || groups[1].Rows.Filename(0) != "a.exe" {
		t.Errorf("cluster 1 rows wrong")
	}
}

func TestGroupByLabelMismatch(t *testing.T) {
	table := labeledTable(t, "a.exe")
	if _, err := GroupByLabel(table, []int{0, 1}); !errors.Is(err, ErrLabelMismatch) {
		t.Errorf("err = %v, want ErrLabelMismatch", err)
	}
}

func TestGroupByLabelKeepsDuplicates(t *testing.T) {
	table := labeledTable(t, "same.exe", "same.exe")
	groups, err := GroupByLabel(table, []int{0, 0})
	if err != nil {
		t.Fatalf("GroupByLabel: %v", err)
	}
	if groups[0].Rows.NumRows() != 2 {
		t.Errorf("duplicate filenames were deduplicated")
	}
}

func TestGroupByLabelAllNoise(t *testing.T) {
	table := labeledTable(t, "a.exe", "b.exe")
	groups, err := GroupByLabel(table, []int{NoiseLabel, NoiseLabel})
	if err != nil {
		t.Fatalf("GroupByLabel: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("all-noise labeling produced %d groups", len(groups))
	}
}

func TestCountLabels(t *testing.T) {
	labeled, noise := CountLabels([]int{0, 1, NoiseLabel, 2, NoiseLabel})
	if labeled != 3 || noise != 2 {
		t.Errorf("CountLabels = %d,%d, want 3,2", labeled, noise)
	}
}
