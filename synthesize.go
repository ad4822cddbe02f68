package rulesmith

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
)

// SynthesizerConfig configures rule synthesis.
type SynthesizerConfig struct {
	// ClusterType names the label provider, used in rule names.
	// Default: "cluster".
	ClusterType string

	// Author is recorded in rule metadata.
	Author string

	// Contact is recorded in rule metadata.
	Contact string
}

func (c *SynthesizerConfig) normalize() {
	if c.ClusterType == "" {
		c.ClusterType = "cluster"
	}
}

// Synthesizer derives one detection rule per cluster. For every table
// column it decides between an exact assertion, an exact byte pattern, a
// consensus-wildcarded byte pattern, or nothing, then assembles the rule
// around the cluster's representative sample.
type Synthesizer struct {
	cfg SynthesizerConfig
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	cfg.normalize()
	return &Synthesizer{cfg: cfg}
}

// Synthesize builds the rule for one cluster. Returns ErrEmptyRule when
// the cluster yields no optional-header patterns; such clusters carry too
// little signal to emit.
func (s *Synthesizer) Synthesize(clusterID int, rows *Table) (*Rule, error) {
	if rows == nil || rows.NumRows() == 0 {
		return nil, ErrEmptyRule
	}

	rep := representativeRow(rows)
	wide := clusterIsPE32Plus(rows, rep)

	rule := &Rule{
		Name:        fmt.Sprintf("%s_cluster_%d", s.cfg.ClusterType, clusterID),
		ClusterType: s.cfg.ClusterType,
		ClusterID:   clusterID,
		Meta:        s.buildMeta(clusterID, rows),
	}

	for ci, f := range rows.Columns() {
		vals := columnValues(rows, ci)
		if constant(vals) {
			s.classifyConstant(rule, f, vals[0], wide)
			continue
		}
		if p, ok := consensusPattern(f, vals); ok {
			rule.Patterns = append(rule.Patterns, BytePattern{Field: f, Hex: p})
		}
	}

	if len(rule.Patterns) == 0 {
		slog.Info("cluster yields no optional-header patterns, skipping",
			"cluster", clusterID, "samples", rows.NumRows())
		return nil, ErrEmptyRule
	}
	return rule, nil
}

// classifyConstant routes a constant column into the rule, or suppresses
// it. A sentinel constant conveys "unknown" rather than a constraint and
// is dropped, except for the always-meaningful columns whose names are
// entirely lowercase letters.
func (s *Synthesizer) classifyConstant(rule *Rule, f Field, v Value, wide bool) {
	if v.IsSentinel() && !allLowercaseName(f.Name()) {
		return
	}
	switch {
	case f.InFileHeaderSet():
		rule.Assertions = append(rule.Assertions, FieldAssertion{Field: f, Value: v.Int64()})
	case f.InOptionalSet():
		rule.Patterns = append(rule.Patterns, BytePattern{Field: f, Hex: constantHex(f, v, wide)})
	}
}

// constantHex packs a constant optional-header value to its little-endian
// hex form. Wide fields take 8 bytes under the PE32+ variant, 4 otherwise;
// every other field takes 4.
func constantHex(f Field, v Value, wide bool) string {
	if f.Wide() && wide {
		fv, _ := v.Float64()
		if fv < 0 {
			return hexLE64(int64(fv))
		}
		return hex.EncodeToString(packLE(uint64(fv), 8))
	}
	return hexLE32(v.Int64())
}

// consensusPattern classifies a variable column. Only non-string
// optional-header columns with at most maxConsensusValues distinct values
// are worth a consensus search; an all-wildcard result carries no signal.
func consensusPattern(f Field, vals []Value) (string, bool) {
	if !f.InOptionalSet() {
		return "", false
	}
	ints := make([]int64, len(vals))
	for i, v := range vals {
		if v.Kind() == KindString {
			return "", false
		}
		ints[i] = v.Int64()
	}
	distinct := distinctInt64(ints)
	if len(distinct) > maxConsensusValues {
		return "", false
	}
	p := consensusHex(distinct)
	if allWildcards(p) {
		return "", false
	}
	return p, true
}

// representativeRow picks the row whose filename occurs most often in the
// cluster, ties broken by first appearance. Its header values anchor the
// rule.
func representativeRow(rows *Table) int {
	counts := make(map[string]int, rows.NumRows())
	for i := 0; i < rows.NumRows(); i++ {
		counts[rows.Filename(i)]++
	}
	best, bestCount := 0, 0
	for i := 0; i < rows.NumRows(); i++ {
		if c := counts[rows.Filename(i)]; c > bestCount {
			best, bestCount = i, c
		}
	}
	return best
}

// clusterIsPE32Plus reports whether the representative row's magic marks
// the 64-bit header variant, which widens the five 64-bit fields to
// 8-byte patterns.
func clusterIsPE32Plus(rows *Table, rep int) bool {
	ci := rows.ColumnIndex(FieldMagic)
	if ci < 0 {
		return false
	}
	return rows.At(rep, ci).Int64() == MagicPE32Plus
}

func columnValues(rows *Table, ci int) []Value {
	vals := make([]Value, rows.NumRows())
	for i := range vals {
		vals[i] = rows.At(i, ci)
	}
	return vals
}

func constant(vals []Value) bool {
	for _, v := range vals[1:] {
		if !v.Equal(vals[0]) {
			return false
		}
	}
	return true
}

// buildMeta assembles the rule metadata block: author, contact, cluster
// identifier, then one sample entry (and content hash, when known) per
// contributing file.
func (s *Synthesizer) buildMeta(clusterID int, rows *Table) []MetaEntry {
	meta := make([]MetaEntry, 0, 3+2*rows.NumRows())
	if s.cfg.Author != "" {
		meta = append(meta, MetaEntry{Key: "author", Value: s.cfg.Author})
	}
	if s.cfg.Contact != "" {
		meta = append(meta, MetaEntry{Key: "contact", Value: s.cfg.Contact})
	}
	meta = append(meta, MetaEntry{Key: "cluster", Value: strconv.Itoa(clusterID)})
	for i := 0; i < rows.NumRows(); i++ {
		meta = append(meta, MetaEntry{Key: "sample" + strconv.Itoa(i), Value: rows.Filename(i)})
		if d := rows.Digest(i); d != "" {
			meta = append(meta, MetaEntry{Key: "hash" + strconv.Itoa(i), Value: d})
		}
	}
	return meta
}
