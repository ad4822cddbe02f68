// Package rulesmith clusters Windows PE executables by structural header
// features and synthesizes wildcarded YARA detection rules from each cluster.
//
// The pipeline has four stages: a tolerant header parser that extracts a
// fixed catalog of COFF, optional-header, data-directory, and resource
// fields from each file; a table builder that unifies the per-file records
// under one sentinel-filled column schema; a grouping step that partitions
// rows by externally assigned cluster labels; and a synthesizer that derives
// a byte-level pattern matching every member of a cluster while wildcarding
// the positions where members disagree.
//
// # Basic Usage
//
// Run the whole pipeline over a directory of samples:
//
//	cfg := rulesmith.DefaultConfig("./samples", "./rules")
//	cfg.Author = "secops"
//	cfg.Clusterer.Name = "dbscan"
//	report, err := rulesmith.Run(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Render())
//
// Or drive the stages individually:
//
//	parser := rulesmith.NewParser(rulesmith.DefaultParserConfig())
//	rec, err := parser.Parse("sample.exe")
//	...
//	table, err := rulesmith.BuildTable(records)
//	...
//	groups, err := rulesmith.GroupByLabel(table, labels)
//	...
//	rule, err := synth.Synthesize(id, groups[id])
//
// # Features
//
// Parsing & Features:
//   - Tolerant PE header parsing that returns partial records on damage
//   - Fixed field catalog: COFF header, optional header, data directories,
//     first resource leaves
//   - Sentinel-filled feature tables with a stable union schema
//   - Snappy-compressed table cache keyed by corpus digest
//
// Clustering:
//   - Numeric matrix projection with optional centering, scaling, and PCA
//   - Built-in k-means, DBSCAN, and mean-shift label providers
//   - Any label source can be plugged in through the Clusterer interface
//
// Rule Output:
//   - Little-endian byte patterns with nibble wildcards
//   - YARA rendering with pe module conditions and sample metadata
//   - Pluggable rule stores (file, memory, SQLite, S3)
//
// # Configuration
//
// Use [Config] to customize behavior:
//
//	cfg := rulesmith.Config{
//	    InputDir:  "./samples",
//	    Author:    "secops",
//	    Clusterer: rulesmith.ClustererConfig{Name: "kmeans", K: 8},
//	    Store:     rulesmith.StoreConfig{Backend: "file", Dir: "./rules"},
//	}
//
// Or use [DefaultConfig] for sensible defaults.
package rulesmith
