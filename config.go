package rulesmith

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ComponentsAuto asks PCA to keep enough components to explain 95% of
// the variance.
const ComponentsAuto = -1

// Config is the full pipeline configuration.
type Config struct {
	// InputDir is the directory of candidate sample files.
	InputDir string

	// Extensions restricts scanning to files with these extensions
	// (e.g. ".exe", ".dll"). Empty means every regular file.
	Extensions []string

	// Author and Contact are recorded in rule metadata.
	Author  string
	Contact string

	// Workers bounds the concurrent parse workers. Default: 4.
	Workers int

	// Parser configures header extraction.
	Parser ParserConfig

	// Clusterer selects and tunes the label provider.
	Clusterer ClustererConfig

	// Preprocess configures the feature-matrix transforms applied before
	// clustering.
	Preprocess PreprocessConfig

	// Store selects where rendered rules are written.
	Store StoreConfig

	// Cache configures the feature-table cache.
	Cache CacheConfig
}

// ClustererConfig selects and tunes a label provider. Only the
// parameters of the named clusterer are consulted.
type ClustererConfig struct {
	// Name is one of ClustererNames(). Default: "dbscan".
	Name string

	// K is the cluster count (kmeans). Default: 4.
	K int

	// MaxIter bounds the iteration count (kmeans, meanshift).
	// Default: 300.
	MaxIter int

	// Eps is the neighborhood radius (dbscan). Default: 0.5.
	Eps float64

	// MinSamples is the core point threshold (dbscan). Default: 2.
	MinSamples int

	// Bandwidth is the kernel radius (meanshift). Zero means estimate
	// from the data.
	Bandwidth float64

	// Seed fixes the kmeans initialization for reproducible runs.
	Seed int64
}

// PreprocessConfig configures the matrix transforms run before
// clustering.
type PreprocessConfig struct {
	// Center subtracts the column mean.
	Center bool

	// Scale divides by the column standard deviation.
	Scale bool

	// Components is the PCA target dimensionality: 0 disables PCA,
	// ComponentsAuto keeps 95% of the variance.
	Components int
}

// StoreConfig selects the rule store backend.
type StoreConfig struct {
	// Backend is one of "file", "memory", "sqlite", "s3".
	// Default: "file".
	Backend string

	// Dir is the rule directory for the file backend.
	Dir string

	// Path is the database file for the sqlite backend.
	Path string

	// S3 configures the s3 backend.
	S3 S3StoreConfig
}

// CacheConfig configures the feature-table cache.
type CacheConfig struct {
	// Enabled turns the cache on.
	Enabled bool

	// Dir is the cache directory. Default: ".rulesmith-cache".
	Dir string
}

// DefaultConfig returns a configuration with sensible defaults for a run
// over inputDir, writing rules to outputDir.
func DefaultConfig(inputDir, outputDir string) Config {
	return Config{
		InputDir: inputDir,
		Workers:  4,
		Parser:   DefaultParserConfig(),
		Clusterer: ClustererConfig{
			Name:       "dbscan",
			K:          4,
			MaxIter:    300,
			Eps:        0.5,
			MinSamples: 2,
		},
		Preprocess: PreprocessConfig{Center: true, Scale: true},
		Store:      StoreConfig{Backend: "file", Dir: outputDir},
		Cache:      CacheConfig{Dir: ".rulesmith-cache"},
	}
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	c.Parser.normalize()
	if c.Clusterer.Name == "" {
		c.Clusterer.Name = "dbscan"
	}
	if c.Clusterer.K <= 0 {
		c.Clusterer.K = 4
	}
	if c.Clusterer.MaxIter <= 0 {
		c.Clusterer.MaxIter = 300
	}
	if c.Clusterer.Eps <= 0 {
		c.Clusterer.Eps = 0.5
	}
	if c.Clusterer.MinSamples <= 0 {
		c.Clusterer.MinSamples = 2
	}
	if c.Preprocess.Components < ComponentsAuto {
		c.Preprocess.Components = 0
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = ".rulesmith-cache"
	}
}

// RunSpec is the declarative YAML form of a run configuration.
type RunSpec struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Spec struct {
		InputDir   string   `yaml:"inputDir"`
		Extensions []string `yaml:"extensions"`
		Author     string   `yaml:"author"`
		Contact    string   `yaml:"contact"`
		Workers    int      `yaml:"workers"`
		Clusterer  struct {
			Name       string  `yaml:"name"`
			K          int     `yaml:"k"`
			MaxIter    int     `yaml:"maxIter"`
			Eps        float64 `yaml:"eps"`
			MinSamples int     `yaml:"minSamples"`
			Bandwidth  float64 `yaml:"bandwidth"`
			Seed       int64   `yaml:"seed"`
		} `yaml:"clusterer"`
		Preprocess struct {
			Center     *bool  `yaml:"center"`
			Scale      *bool  `yaml:"scale"`
			Components string `yaml:"components"`
		} `yaml:"preprocess"`
		Store struct {
			Backend string `yaml:"backend"`
			Dir     string `yaml:"dir"`
			Path    string `yaml:"path"`
			S3      struct {
				Bucket   string `yaml:"bucket"`
				Region   string `yaml:"region"`
				Endpoint string `yaml:"endpoint"`
				Prefix   string `yaml:"prefix"`
			} `yaml:"s3"`
		} `yaml:"store"`
		Cache struct {
			Enabled bool   `yaml:"enabled"`
			Dir     string `yaml:"dir"`
		} `yaml:"cache"`
	} `yaml:"spec"`
}

// runSpecKind is the accepted kind value for run spec files.
const runSpecKind = "RuleRun"

// LoadRunSpec reads and resolves a YAML run spec file.
func LoadRunSpec(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseRunSpec(data)
}

// ParseRunSpec resolves YAML run spec bytes into a Config.
func ParseRunSpec(data []byte) (Config, error) {
	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Config{}, fmt.Errorf("parsing run spec: %w", err)
	}
	if spec.Kind != "" && spec.Kind != runSpecKind {
		return Config{}, fmt.Errorf("unsupported run spec kind %q", spec.Kind)
	}
	return spec.Config()
}

// Config resolves the spec into a pipeline configuration, starting from
// DefaultConfig and overlaying every field the spec sets.
func (s *RunSpec) Config() (Config, error) {
	cfg := DefaultConfig(s.Spec.InputDir, s.Spec.Store.Dir)
	cfg.Extensions = s.Spec.Extensions
	cfg.Author = s.Spec.Author
	cfg.Contact = s.Spec.Contact
	if s.Spec.Workers > 0 {
		cfg.Workers = s.Spec.Workers
	}

	if s.Spec.Clusterer.Name != "" {
		cfg.Clusterer.Name = s.Spec.Clusterer.Name
	}
	if s.Spec.Clusterer.K > 0 {
		cfg.Clusterer.K = s.Spec.Clusterer.K
	}
	if s.Spec.Clusterer.MaxIter > 0 {
		cfg.Clusterer.MaxIter = s.Spec.Clusterer.MaxIter
	}
	if s.Spec.Clusterer.Eps > 0 {
		cfg.Clusterer.Eps = s.Spec.Clusterer.Eps
	}
	if s.Spec.Clusterer.MinSamples > 0 {
		cfg.Clusterer.MinSamples = s.Spec.Clusterer.MinSamples
	}
	cfg.Clusterer.Bandwidth = s.Spec.Clusterer.Bandwidth
	cfg.Clusterer.Seed = s.Spec.Clusterer.Seed

	if s.Spec.Preprocess.Center != nil {
		cfg.Preprocess.Center = *s.Spec.Preprocess.Center
	}
	if s.Spec.Preprocess.Scale != nil {
		cfg.Preprocess.Scale = *s.Spec.Preprocess.Scale
	}
	switch s.Spec.Preprocess.Components {
	case "", "0", "none":
		cfg.Preprocess.Components = 0
	case "auto":
		cfg.Preprocess.Components = ComponentsAuto
	default:
		var n int
		if _, err := fmt.Sscanf(s.Spec.Preprocess.Components, "%d", &n); err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid components %q", s.Spec.Preprocess.Components)
		}
		cfg.Preprocess.Components = n
	}

	if s.Spec.Store.Backend != "" {
		cfg.Store.Backend = s.Spec.Store.Backend
	}
	if s.Spec.Store.Dir != "" {
		cfg.Store.Dir = s.Spec.Store.Dir
	}
	cfg.Store.Path = s.Spec.Store.Path
	cfg.Store.S3.Bucket = s.Spec.Store.S3.Bucket
	cfg.Store.S3.Region = s.Spec.Store.S3.Region
	cfg.Store.S3.Endpoint = s.Spec.Store.S3.Endpoint
	cfg.Store.S3.Prefix = s.Spec.Store.S3.Prefix

	cfg.Cache.Enabled = s.Spec.Cache.Enabled
	if s.Spec.Cache.Dir != "" {
		cfg.Cache.Dir = s.Spec.Cache.Dir
	}
	return cfg, nil
}
