package rulesmith

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("samples", "rules")
	if cfg.InputDir != "samples" || cfg.Store.Dir != "rules" {
		t.Errorf("directories = %q, %q", cfg.InputDir, cfg.Store.Dir)
	}
	if cfg.Clusterer.Name != "dbscan" {
		t.Errorf("default clusterer = %q", cfg.Clusterer.Name)
	}
	if !cfg.Preprocess.Center || !cfg.Preprocess.Scale {
		t.Error("centering and scaling should default on")
	}
	if cfg.Preprocess.Components != 0 {
		t.Errorf("PCA should default off, components = %d", cfg.Preprocess.Components)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("default backend = %q", cfg.Store.Backend)
	}
}

func TestConfigNormalize(t *testing.T) {
	var cfg Config
	cfg.normalize()

	if cfg.Workers != 4 {
		t.Errorf("workers = %d", cfg.Workers)
	}
	if cfg.Clusterer.Name != "dbscan" || cfg.Clusterer.K != 4 ||
		cfg.Clusterer.MaxIter != 300 || cfg.Clusterer.MinSamples != 2 {
		t.Errorf("clusterer defaults = %+v", cfg.Clusterer)
	}
	if cfg.Clusterer.Eps != 0.5 {
		t.Errorf("eps = %v", cfg.Clusterer.Eps)
	}
	if cfg.Store.Backend != "file" || cfg.Cache.Dir == "" {
		t.Errorf("store/cache defaults = %+v / %+v", cfg.Store, cfg.Cache)
	}

	cfg.Preprocess.Components = -5
	cfg.normalize()
	if cfg.Preprocess.Components != 0 {
		t.Errorf("out-of-range components = %d, want 0", cfg.Preprocess.Components)
	}
}

const sampleRunSpec = `apiVersion: rulesmith/v1
kind: RuleRun
metadata:
  name: nightly
spec:
  inputDir: /data/samples
  extensions: [".exe", ".dll"]
  author: secops
  contact: secops@example.com
  workers: 8
  clusterer:
    name: kmeans
    k: 6
    seed: 42
  preprocess:
    center: true
    scale: false
    components: auto
  store:
    backend: sqlite
    path: /data/rules.db
  cache:
    enabled: true
    dir: /data/cache
`

func TestParseRunSpec(t *testing.T) {
	cfg, err := ParseRunSpec([]byte(sampleRunSpec))
	if err != nil {
		t.Fatalf("ParseRunSpec: %v", err)
	}

	if cfg.InputDir != "/data/samples" {
		t.Errorf("inputDir = %q", cfg.InputDir)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[0] != ".exe" {
		t.Errorf("extensions = %v", cfg.Extensions)
	}
	if cfg.Author != "secops" || cfg.Workers != 8 {
		t.Errorf("author/workers = %q/%d", cfg.Author, cfg.Workers)
	}
	if cfg.Clusterer.Name != "kmeans" || cfg.Clusterer.K != 6 || cfg.Clusterer.Seed != 42 {
		t.Errorf("clusterer = %+v", cfg.Clusterer)
	}
	if !cfg.Preprocess.Center || cfg.Preprocess.Scale {
		t.Errorf("preprocess flags = %+v", cfg.Preprocess)
	}
	if cfg.Preprocess.Components != ComponentsAuto {
		t.Errorf("components = %d, want auto", cfg.Preprocess.Components)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/data/rules.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Dir != "/data/cache" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestParseRunSpecDefaults(t *testing.T) {
	cfg, err := ParseRunSpec([]byte("spec:\n  inputDir: samples\n"))
	if err != nil {
		t.Fatalf("ParseRunSpec: %v", err)
	}
	// Unset fields fall back to DefaultConfig values.
	if cfg.Clusterer.Name != "dbscan" || cfg.Workers != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should default off")
	}
}

func TestParseRunSpecRejectsWrongKind(t *testing.T) {
	_, err := ParseRunSpec([]byte("kind: Deployment\n"))
	if err == nil || !strings.Contains(err.Error(), "kind") {
		t.Errorf("wrong kind error = %v", err)
	}
}

func TestParseRunSpecRejectsBadComponents(t *testing.T) {
	_, err := ParseRunSpec([]byte("kind: RuleRun\nspec:\n  preprocess:\n    components: maybe\n"))
	if err == nil {
		t.Error("invalid components accepted")
	}
}

func TestLoadRunSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(sampleRunSpec), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadRunSpec(path)
	if err != nil {
		t.Fatalf("LoadRunSpec: %v", err)
	}
	if cfg.InputDir != "/data/samples" {
		t.Errorf("inputDir = %q", cfg.InputDir)
	}

	if _, err := LoadRunSpec(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing spec file accepted")
	}
}
