package rulesmith

import (
	"errors"
	"strings"
	"testing"
)

func synthTable(t *testing.T, records ...*Record) *Table {
	t.Helper()
	table, err := BuildTable(records)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}
	return table
}

func baseCells(timestamp, entryPoint int64) map[Field]Value {
	return map[Field]Value{
		FieldMachine:            IntValue(0x14c),
		FieldSectionCount:       IntValue(3),
		FieldTimestamp:          IntValue(timestamp),
		FieldSymbolTablePtr:     IntValue(0),
		FieldSymbolCount:        IntValue(0),
		FieldOptionalHeaderSize: IntValue(224),
		FieldCharacteristics:    IntValue(0x102),
		FieldMagic:              IntValue(MagicPE32),
		FieldEntryPoint:         IntValue(entryPoint),
		FieldChecksum:           IntValue(0xbeef),
	}
}

func findPattern(r *Rule, f Field) (BytePattern, bool) {
	for _, p := range r.Patterns {
		if p.Field == f {
			return p, true
		}
	}
	return BytePattern{}, false
}

func findAssertion(r *Rule, f Field) (FieldAssertion, bool) {
	for _, a := range r.Assertions {
		if a.Field == f {
			return a, true
		}
	}
	return FieldAssertion{}, false
}

// Three files differing only in compile timestamp: the timestamp is a
// file-header column, so it is simply omitted rather than wildcarded,
// while every other shared field survives.
func TestSynthesizeTimestampVariance(t *testing.T) {
	table := synthTable(t,
		recordWith("a.exe", baseCells(100, 0x1000)),
		recordWith("b.exe", baseCells(200, 0x1000)),
		recordWith("c.exe", baseCells(300, 0x1000)),
	)

	synth := NewSynthesizer(SynthesizerConfig{ClusterType: "dbscan", Author: "tester"})
	rule, err := synth.Synthesize(0, table)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if _, ok := findAssertion(rule, FieldTimestamp); ok {
		t.Error("varying timestamp must not be asserted")
	}
	for _, f := range []Field{FieldMachine, FieldSectionCount, FieldSymbolTablePtr,
		FieldSymbolCount, FieldOptionalHeaderSize, FieldCharacteristics} {
		if _, ok := findAssertion(rule, f); !ok {
			t.Errorf("constant file-header field %s missing from assertions", f.Name())
		}
	}
	if p, ok := findPattern(rule, FieldEntryPoint); !ok || p.Hex != "00100000" {
		t.Errorf("entry_point pattern = %+v, want exact 00100000", p)
	}
	if p, ok := findPattern(rule, FieldChecksum); !ok || p.Hex != hexLE32(0xbeef) {
		t.Errorf("checksum pattern = %+v", p)
	}
	if rule.Name != "dbscan_cluster_0" {
		t.Errorf("rule name = %q", rule.Name)
	}
}

// Two files with entry points 0x1000 and 0x1004 pack to 00100000 and
// 04100000; the consensus wildcards exactly the one differing nibble.
func TestSynthesizeEntryPointConsensus(t *testing.T) {
	table := synthTable(t,
		recordWith("a.exe", baseCells(100, 0x1000)),
		recordWith("b.exe", baseCells(100, 0x1004)),
	)

	rule, err := NewSynthesizer(SynthesizerConfig{ClusterType: "dbscan"}).Synthesize(1, table)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	p, ok := findPattern(rule, FieldEntryPoint)
	if !ok {
		t.Fatal("entry_point consensus pattern missing")
	}
	if p.Hex != "0?100000" {
		t.Errorf("consensus = %q, want 0?100000", p.Hex)
	}
}

// A column constant at the sentinel is suppressed unless its name is
// entirely lowercase letters.
func TestSynthesizeSentinelSuppression(t *testing.T) {
	// The third record carries checksum and export_size so both columns
	// enter the union schema; the first two rows sentinel-fill them.
	cellsNoChecksum := func(name string) *Record {
		c := baseCells(100, 0x1000)
		delete(c, FieldChecksum)
		return recordWith(name, c)
	}
	third := baseCells(100, 0x1000)
	third[FieldExportSize] = IntValue(0x200)
	table := synthTable(t,
		cellsNoChecksum("a.exe"),
		cellsNoChecksum("b.exe"),
		recordWith("c.exe", third),
	)

	groups, err := GroupByLabel(table, []int{0, 0, NoiseLabel})
	if err != nil {
		t.Fatalf("GroupByLabel: %v", err)
	}
	rule, err := NewSynthesizer(SynthesizerConfig{ClusterType: "dbscan"}).Synthesize(0, groups[0].Rows)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	// checksum is all-lowercase: kept even at the sentinel.
	if p, ok := findPattern(rule, FieldChecksum); !ok || p.Hex != "ffffffff" {
		t.Errorf("sentinel checksum pattern = %+v, want ffffffff", p)
	}
	// export_size is not all-lowercase: suppressed at the sentinel.
	if _, ok := findPattern(rule, FieldExportSize); ok {
		t.Error("sentinel export_size must be suppressed")
	}
}

func TestSynthesizeCardinalityCap(t *testing.T) {
	records := make([]*Record, 10)
	for i := range records {
		records[i] = recordWith("s.exe", baseCells(100, int64(0x1000+i*0x10)))
	}
	table := synthTable(t, records...)

	rule, err := NewSynthesizer(SynthesizerConfig{ClusterType: "kmeans"}).Synthesize(0, table)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, ok := findPattern(rule, FieldEntryPoint); ok {
		t.Error("column with 10 distinct values must be excluded from consensus")
	}
	// The constant columns still carry the rule.
	if _, ok := findPattern(rule, FieldMagic); !ok {
		t.Error("constant magic pattern missing")
	}
}

func TestSynthesizeEmptyOptionalBlock(t *testing.T) {
	// Only file-header fields: no optional-header pattern can form, so
	// no rule is emitted.
	cells := map[Field]Value{
		FieldMachine:      IntValue(0x14c),
		FieldSectionCount: IntValue(3),
	}
	table := synthTable(t,
		recordWith("a.exe", cells),
		recordWith("b.exe", cells),
	)

	_, err := NewSynthesizer(SynthesizerConfig{ClusterType: "dbscan"}).Synthesize(0, table)
	if !errors.Is(err, ErrEmptyRule) {
		t.Errorf("err = %v, want ErrEmptyRule", err)
	}
}

func TestSynthesizeWidePacking(t *testing.T) {
	wideCells := func() map[Field]Value {
		c := baseCells(100, 0x1000)
		c[FieldMagic] = IntValue(MagicPE32Plus)
		c[FieldImageBase] = FloatValue(0x140000000)
		return c
	}
	table := synthTable(t,
		recordWith("a.exe", wideCells()),
		recordWith("b.exe", wideCells()),
	)

	rule, err := NewSynthesizer(SynthesizerConfig{ClusterType: "dbscan"}).Synthesize(0, table)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	p, ok := findPattern(rule, FieldImageBase)
	if !ok {
		t.Fatal("image_base pattern missing")
	}
	if p.Hex != "0000004001000000" {
		t.Errorf("PE32+ image_base = %q, want 8-byte LE 0000004001000000", p.Hex)
	}
}

func TestSynthesizeNarrowPackingUnderPE32(t *testing.T) {
	cells := baseCells(100, 0x1000)
	cells[FieldImageBase] = FloatValue(0x400000)
	table := synthTable(t, recordWith("a.exe", cells), recordWith("b.exe", cells))

	rule, err := NewSynthesizer(SynthesizerConfig{ClusterType: "dbscan"}).Synthesize(0, table)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	p, ok := findPattern(rule, FieldImageBase)
	if !ok {
		t.Fatal("image_base pattern missing")
	}
	if p.Hex != "00004000" {
		t.Errorf("PE32 image_base = %q, want 4-byte LE 00004000", p.Hex)
	}
}

func TestRepresentativeRow(t *testing.T) {
	table := synthTable(t,
		recordWith("b.exe", baseCells(1, 1)),
		recordWith("a.exe", baseCells(2, 2)),
		recordWith("a.exe", baseCells(3, 3)),
	)
	if rep := representativeRow(table); rep != 1 {
		t.Errorf("representative = %d, want 1 (first a.exe row)", rep)
	}

	tie := synthTable(t,
		recordWith("x.exe", baseCells(1, 1)),
		recordWith("y.exe", baseCells(2, 2)),
	)
	if rep := representativeRow(tie); rep != 0 {
		t.Errorf("tie representative = %d, want first row", rep)
	}
}

func TestSynthesizeMetadata(t *testing.T) {
	recA := recordWith("a.exe", baseCells(1, 1))
	recA.Digest = "digest-a"
	recB := recordWith("b.exe", baseCells(1, 1))
	table := synthTable(t, recA, recB)

	rule, err := NewSynthesizer(SynthesizerConfig{
		ClusterType: "dbscan",
		Author:      "secops",
		Contact:     "secops@example.com",
	}).Synthesize(7, table)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	wantOrder := []MetaEntry{
		{"author", "secops"},
		{"contact", "secops@example.com"},
		{"cluster", "7"},
		{"sample0", "a.exe"},
		{"hash0", "digest-a"},
		{"sample1", "b.exe"},
	}
	if len(rule.Meta) != len(wantOrder) {
		t.Fatalf("meta = %v", rule.Meta)
	}
	for i, want := range wantOrder {
		if rule.Meta[i] != want {
			t.Errorf("meta[%d] = %v, want %v", i, rule.Meta[i], want)
		}
	}
	if !strings.HasSuffix(rule.Filename(), ".yar") {
		t.Errorf("artifact filename = %q", rule.Filename())
	}
}
