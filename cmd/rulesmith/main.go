package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rulesmith/rulesmith"
)

var version = "0.1.0-dev"

// Exit codes: 0 ok, 1 runtime failure, 2 usage error, 3 no usable input.
const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
	exitNoInput = 3
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, rulesmith.ErrNoInput):
		return exitNoInput
	case errors.Is(err, rulesmith.ErrUnknownClusterer):
		return exitUsage
	default:
		return exitRuntime
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "rulesmith",
		Short:   "Cluster PE files and synthesize YARA rules",
		Version: version,
		Long: `Rulesmith extracts structural header features from Windows PE
executables, clusters the files by those features, and synthesizes one
wildcarded YARA detection rule per cluster.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
				&slog.HandlerOptions{Level: level})))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newStoreCmd())
	return rootCmd
}

func newScanCmd() *cobra.Command {
	var (
		specPath   string
		outputDir  string
		author     string
		contact    string
		exts       []string
		workers    int
		clusterer  string
		k          int
		eps        float64
		minSamples int
		bandwidth  float64
		center     bool
		scale      bool
		components string
		backend    string
		sqlitePath string
		useCache   bool
		cacheDir   string
	)

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Run the full pipeline over a directory of samples",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg rulesmith.Config
			if specPath != "" {
				var err error
				if cfg, err = rulesmith.LoadRunSpec(specPath); err != nil {
					return err
				}
				if len(args) == 1 {
					cfg.InputDir = args[0]
				}
			} else {
				if len(args) != 1 {
					return errors.New("a sample directory (or --spec) is required")
				}
				cfg = rulesmith.DefaultConfig(args[0], outputDir)
				cfg.Author = author
				cfg.Contact = contact
				cfg.Extensions = exts
				cfg.Workers = workers
				cfg.Clusterer = rulesmith.ClustererConfig{
					Name:       clusterer,
					K:          k,
					Eps:        eps,
					MinSamples: minSamples,
					Bandwidth:  bandwidth,
				}
				cfg.Preprocess.Center = center
				cfg.Preprocess.Scale = scale
				n, err := parseComponents(components)
				if err != nil {
					return err
				}
				cfg.Preprocess.Components = n
				cfg.Store.Backend = backend
				cfg.Store.Dir = outputDir
				cfg.Store.Path = sqlitePath
				cfg.Cache.Enabled = useCache
				if cacheDir != "" {
					cfg.Cache.Dir = cacheDir
				}
			}

			report, err := rulesmith.Run(context.Background(), cfg)
			if err != nil {
				return err
			}
			fmt.Print(report.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "YAML run spec file (overrides other flags)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "rules", "output directory for the file store")
	cmd.Flags().StringVar(&author, "author", "", "rule metadata author")
	cmd.Flags().StringVar(&contact, "contact", "", "rule metadata contact")
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "only scan files with these extensions (e.g. .exe,.dll)")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent parse workers")
	cmd.Flags().StringVar(&clusterer, "clusterer", "dbscan",
		"label provider: "+strings.Join(rulesmith.ClustererNames(), "|"))
	cmd.Flags().IntVar(&k, "k", 4, "cluster count (kmeans)")
	cmd.Flags().Float64Var(&eps, "eps", 0.5, "neighborhood radius (dbscan)")
	cmd.Flags().IntVar(&minSamples, "min-samples", 2, "core point threshold (dbscan)")
	cmd.Flags().Float64Var(&bandwidth, "bandwidth", 0, "kernel radius, 0 = estimate (meanshift)")
	cmd.Flags().BoolVar(&center, "center", true, "center feature columns before clustering")
	cmd.Flags().BoolVar(&scale, "scale", true, "scale feature columns to unit variance")
	cmd.Flags().StringVar(&components, "components", "0", "PCA component count, \"auto\", or 0 to disable")
	cmd.Flags().StringVar(&backend, "store", "file", "rule store backend: file|memory|sqlite|s3")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "rulesmith.db", "database path for the sqlite store")
	cmd.Flags().BoolVar(&useCache, "cache", false, "cache the feature table between runs")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "feature table cache directory")
	return cmd
}

func parseComponents(s string) (int, error) {
	switch s {
	case "", "0", "none":
		return 0, nil
	case "auto":
		return rulesmith.ComponentsAuto, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid components %q", s)
	}
	return n, nil
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse one PE file and print its feature record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := rulesmith.NewParser(rulesmith.DefaultParserConfig())
			rec, err := parser.Parse(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("filename: %s\n", rec.Filename)
			if rec.Digest != "" {
				fmt.Printf("digest:   %s\n", rec.Digest)
			}
			for _, f := range rec.Fields() {
				v, _ := rec.Get(f)
				fmt.Printf("%-24s %s\n", f.Name(), v)
			}
			for _, w := range rec.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
	return cmd
}

func newStoreCmd() *cobra.Command {
	var (
		backend    string
		dir        string
		sqlitePath string
	)

	openStore := func() (rulesmith.RuleStore, error) {
		return rulesmith.OpenStore(rulesmith.StoreConfig{
			Backend: backend,
			Dir:     dir,
			Path:    sqlitePath,
		})
	}

	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the rule store",
	}
	storeCmd.PersistentFlags().StringVar(&backend, "store", "file", "rule store backend: file|sqlite|s3")
	storeCmd.PersistentFlags().StringVarP(&dir, "dir", "d", "rules", "rule directory for the file store")
	storeCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "rulesmith.db", "database path for the sqlite store")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			names, err := store.List(context.Background())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <rule>",
		Short: "Print a stored rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			data, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <rule>",
		Short: "Delete a stored rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return store.Delete(context.Background(), args[0])
		},
	}

	storeCmd.AddCommand(listCmd, showCmd, rmCmd)
	return storeCmd
}
