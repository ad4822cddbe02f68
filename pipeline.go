package rulesmith

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Run executes the whole pipeline: scan the input directory, parse every
// file into a feature record, assemble the sentinel-filled table, cluster
// the numeric projection, and synthesize one rule per qualifying cluster
// into the configured store.
//
// Run returns ErrNoInput when the directory yields no usable records and
// ErrUnknownClusterer for an unrecognized clusterer name; both abort
// before any rule is written. Per-file parse damage and degenerate
// clusters are recovered and counted in the report.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg.normalize()
	start := time.Now()

	// Resolve the clusterer first so a usage error aborts before any
	// file is touched.
	clusterer, err := NewClusterer(cfg.Clusterer)
	if err != nil {
		return nil, err
	}

	paths, err := ScanDir(cfg.InputDir, cfg.Extensions)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoInput
	}

	report := &Report{FilesScanned: len(paths)}

	table, err := loadOrBuildTable(ctx, cfg, paths, report)
	if err != nil {
		return nil, err
	}
	report.Records = table.NumRows()

	matrix, _ := table.Matrix()
	if len(matrix) > 0 {
		report.FeatureColumns = len(matrix[0])
	}
	matrix, err = Preprocess(matrix, cfg.Preprocess)
	if err != nil {
		return nil, err
	}

	labels, err := clusterer.Cluster(matrix)
	if err != nil {
		return nil, err
	}
	if err := table.SetLabels(labels); err != nil {
		return nil, err
	}
	report.Labeled, report.Noise = CountLabels(labels)

	groups, err := GroupByLabel(table, labels)
	if err != nil {
		return nil, err
	}
	report.Clusters = len(groups)
	slog.Info("clustering complete",
		"clusterer", cfg.Clusterer.Name,
		"clusters", len(groups),
		"labeled", report.Labeled,
		"noise", report.Noise)

	store, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	synth := NewSynthesizer(SynthesizerConfig{
		ClusterType: cfg.Clusterer.Name,
		Author:      cfg.Author,
		Contact:     cfg.Contact,
	})
	for _, g := range groups {
		rule, err := synth.Synthesize(g.ID, g.Rows)
		if errors.Is(err, ErrEmptyRule) {
			report.ClustersSkipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := store.Put(ctx, rule); err != nil {
			return nil, err
		}
		report.RulesWritten++
		slog.Info("rule written", "rule", rule.Name, "samples", g.Rows.NumRows(),
			"patterns", len(rule.Patterns), "assertions", len(rule.Assertions))
	}

	report.Columns = summarizeColumns(table)
	report.Duration = time.Since(start)
	return report, nil
}

// loadOrBuildTable returns the feature table for the input set, from the
// cache when enabled and fresh, otherwise by parsing every file.
func loadOrBuildTable(ctx context.Context, cfg Config, paths []string, report *Report) (*Table, error) {
	var cache *TableCache
	var key string
	if cfg.Cache.Enabled {
		c, err := NewTableCache(cfg.Cache.Dir)
		if err != nil {
			slog.Warn("table cache unavailable", "dir", cfg.Cache.Dir, "err", err)
		} else if k, err := CorpusKey(paths); err == nil {
			cache, key = c, k
			if t, ok := cache.Load(key); ok {
				slog.Info("feature table loaded from cache", "key", key[:12], "rows", t.NumRows())
				report.CacheHit = true
				return t, nil
			}
		}
	}

	records := parseAll(ctx, cfg, paths, report)
	table, err := BuildTable(records)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Store(key, table); err != nil {
			slog.Warn("table cache write failed", "err", err)
		}
	}
	return table, nil
}

// parseAll extracts a record from every path using a bounded worker pool.
// Results keep input order, so downstream tie-breaks are deterministic.
// Unreadable files are logged, counted, and skipped.
func parseAll(ctx context.Context, cfg Config, paths []string, report *Report) []*Record {
	parser := NewParser(cfg.Parser)
	results := make([]*Record, len(paths))

	workers := cfg.Workers
	if workers > len(paths) {
		workers = len(paths)
	}

	var wg sync.WaitGroup
	idx := make(chan int)
	var failures sync.Map

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				rec, err := parser.Parse(paths[i])
				if err != nil {
					slog.Warn("skipping unreadable file", "file", paths[i], "err", err)
					failures.Store(i, struct{}{})
					continue
				}
				results[i] = rec
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case idx <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(idx)
	wg.Wait()

	records := make([]*Record, 0, len(paths))
	for _, rec := range results {
		if rec == nil {
			report.ParseFailures++
			continue
		}
		if len(rec.Warnings) > 0 {
			report.PartialRecords++
		}
		records = append(records, rec)
	}
	return records
}
