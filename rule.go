package rulesmith

import (
	"fmt"
	"strings"
)

// RuleExt is the artifact filename extension.
const RuleExt = ".yar"

// MetaEntry is one ordered rule metadata pair.
type MetaEntry struct {
	Key   string
	Value string
}

// FieldAssertion asserts an exact file-header field value.
type FieldAssertion struct {
	Field Field
	Value int64
}

// BytePattern is a little-endian byte pattern for one optional-header
// field: hex digits with '?' marking wildcard nibbles.
type BytePattern struct {
	Field Field
	Hex   string
}

// Rule is one synthesized signature. A rule is emittable only when its
// optional-header pattern block is non-empty.
type Rule struct {
	// Name is the rule identifier, "<cluster-type>_cluster_<id>".
	Name string

	// ClusterType is the label provider that produced the cluster.
	ClusterType string

	// ClusterID is the cluster's label.
	ClusterID int

	// Meta holds the metadata block in emission order: author, contact,
	// cluster identifier, then one sample and one hash entry per
	// contributing file.
	Meta []MetaEntry

	// Assertions is the file-header match block. May be empty.
	Assertions []FieldAssertion

	// Patterns is the optional-header match block.
	Patterns []BytePattern
}

// Filename returns the artifact name the rule is stored under.
func (r *Rule) Filename() string { return r.Name + RuleExt }

// yaraConditionNames maps file-header catalog fields to their YARA pe
// module identifiers.
var yaraConditionNames = map[Field]string{
	FieldMachine:            "pe.machine",
	FieldSectionCount:       "pe.number_of_sections",
	FieldTimestamp:          "pe.timestamp",
	FieldSymbolTablePtr:     "pe.pointer_to_symbol_table",
	FieldSymbolCount:        "pe.number_of_symbols",
	FieldOptionalHeaderSize: "pe.size_of_optional_header",
	FieldCharacteristics:    "pe.characteristics",
}

// Render produces the YARA source of the rule.
func (r *Rule) Render() []byte {
	var b strings.Builder

	if len(r.Assertions) > 0 {
		b.WriteString("import \"pe\"\n\n")
	}

	fmt.Fprintf(&b, "rule %s\n{\n", r.Name)

	b.WriteString("    meta:\n")
	for _, m := range r.Meta {
		fmt.Fprintf(&b, "        %s = \"%s\"\n", m.Key, escapeMeta(m.Value))
	}

	if len(r.Patterns) > 0 {
		b.WriteString("\n    strings:\n")
		for _, p := range r.Patterns {
			fmt.Fprintf(&b, "        $%s = { %s }\n", p.Field.Name(), hexPairs(p.Hex))
		}
	}

	b.WriteString("\n    condition:\n")
	var terms []string
	for _, a := range r.Assertions {
		terms = append(terms, fmt.Sprintf("%s == %s", yaraConditionNames[a.Field], formatAssertionValue(a.Field, a.Value)))
	}
	if len(r.Patterns) > 0 {
		terms = append(terms, "all of them")
	}
	if len(terms) == 0 {
		terms = append(terms, "false")
	}
	for i, term := range terms {
		sep := " and"
		if i == len(terms)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "        %s%s\n", term, sep)
	}

	b.WriteString("}\n")
	return []byte(b.String())
}

// formatAssertionValue renders flag-like and pointer fields in hex,
// everything else in decimal.
func formatAssertionValue(f Field, v int64) string {
	switch f {
	case FieldMachine, FieldCharacteristics, FieldSymbolTablePtr:
		return fmt.Sprintf("0x%x", uint64(v))
	}
	return fmt.Sprintf("%d", v)
}

// hexPairs spaces a hex pattern into byte pairs for YARA hex strings.
func hexPairs(h string) string {
	var b strings.Builder
	for i := 0; i < len(h); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := i + 2
		if end > len(h) {
			end = len(h)
		}
		b.WriteString(h[i:end])
	}
	return b.String()
}

func escapeMeta(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
