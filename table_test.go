package rulesmith

import (
	"errors"
	"testing"
)

func recordWith(name string, cells map[Field]Value) *Record {
	rec := NewRecord(name)
	for f, v := range cells {
		rec.set(f, v)
	}
	return rec
}

func TestBuildTableEmptyInput(t *testing.T) {
	if _, err := BuildTable(nil); !errors.Is(err, ErrNoInput) {
		t.Errorf("BuildTable(nil) = %v, want ErrNoInput", err)
	}
	if _, err := BuildTable([]*Record{}); !errors.Is(err, ErrNoInput) {
		t.Errorf("BuildTable(empty) = %v, want ErrNoInput", err)
	}
}

func TestBuildTableUnionSchemaFirstSeen(t *testing.T) {
	a := recordWith("a.exe", map[Field]Value{
		FieldMachine: IntValue(0x14c),
		FieldMagic:   IntValue(MagicPE32),
	})
	b := recordWith("b.exe", map[Field]Value{
		FieldMachine:    IntValue(0x14c),
		FieldEntryPoint: IntValue(0x1000),
	})

	table, err := BuildTable([]*Record{a, b})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	cols := table.Columns()
	want := []Field{FieldMachine, FieldMagic, FieldEntryPoint}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %s, want %s", i, cols[i].Name(), want[i].Name())
		}
	}
	if table.Filename(0) != "a.exe" || table.Filename(1) != "b.exe" {
		t.Error("filenames out of order")
	}
}

func TestBuildTableSentinelFill(t *testing.T) {
	a := recordWith("a.exe", map[Field]Value{
		FieldMagic:         IntValue(MagicPE32),
		FieldResource0Size: IntValue(64),
	})
	b := recordWith("b.exe", map[Field]Value{
		FieldMagic: IntValue(MagicPE32),
	})

	table, err := BuildTable([]*Record{a, b})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	// Every cell concrete after filling.
	for i := 0; i < table.NumRows(); i++ {
		for ci := 0; ci < table.NumColumns(); ci++ {
			if table.At(i, ci).Absent() {
				t.Fatalf("cell (%d,%d) still absent after fill", i, ci)
			}
		}
	}

	ci := table.ColumnIndex(FieldResource0Size)
	if v := table.At(1, ci); !v.IsSentinel() {
		t.Errorf("missing resource cell = %v, want sentinel", v)
	}
	if v := table.At(0, ci); v.Int64() != 64 {
		t.Errorf("present resource cell = %v, want 64", v)
	}
}

func TestBuildTableFillIdempotent(t *testing.T) {
	rec := recordWith("a.exe", map[Field]Value{
		FieldMagic:      IntValue(MagicPE32),
		FieldEntryPoint: IntValue(0x1000),
	})
	table, err := BuildTable([]*Record{rec})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	before := make([]Value, table.NumColumns())
	for ci := range before {
		before[ci] = table.At(0, ci)
	}
	table.fillWhere(func(Field) bool { return true })
	for ci := range before {
		if !table.At(0, ci).Equal(before[ci]) {
			t.Errorf("re-filling changed column %d", ci)
		}
	}
}

func TestTableSetLabels(t *testing.T) {
	table, err := BuildTable([]*Record{
		recordWith("a.exe", map[Field]Value{FieldMagic: IntValue(MagicPE32)}),
		recordWith("b.exe", map[Field]Value{FieldMagic: IntValue(MagicPE32)}),
	})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	if err := table.SetLabels([]int{0}); !errors.Is(err, ErrLabelMismatch) {
		t.Errorf("short labels = %v, want ErrLabelMismatch", err)
	}
	if err := table.SetLabels([]int{0, NoiseLabel}); err != nil {
		t.Fatalf("SetLabels: %v", err)
	}
	got := table.Labels()
	if len(got) != 2 || got[0] != 0 || got[1] != NoiseLabel {
		t.Errorf("Labels = %v", got)
	}
}

func TestTableMatrixExcludesStringColumns(t *testing.T) {
	a := recordWith("a.exe", map[Field]Value{
		FieldMagic:         IntValue(MagicPE32),
		FieldImageBase:     FloatValue(0x400000),
		FieldResource0Type: StringValue("RT_ICON"),
	})
	b := recordWith("b.exe", map[Field]Value{
		FieldMagic:     IntValue(MagicPE32),
		FieldImageBase: FloatValue(0x500000),
	})

	table, err := BuildTable([]*Record{a, b})
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	matrix, fields := table.Matrix()
	if len(matrix) != 2 {
		t.Fatalf("matrix rows = %d", len(matrix))
	}
	for _, f := range fields {
		if f == FieldResource0Type {
			t.Error("string column leaked into the numeric matrix")
		}
	}
	// b's resource_0_type cell was sentinel-filled to -1 (numeric), but
	// the column holds a string in row a, so the whole column is
	// excluded.
	if len(fields) != 2 {
		t.Errorf("numeric columns = %d, want 2", len(fields))
	}
	if matrix[1][1] != 0x500000 {
		t.Errorf("matrix[1][1] = %v, want image base", matrix[1][1])
	}
}
