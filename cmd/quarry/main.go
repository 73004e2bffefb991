package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry-go/environment"
	"github.com/quarrylabs/quarry-go/internal/platform/objectstore"
	"github.com/quarrylabs/quarry-go/internal/platform/postgres"
	"github.com/quarrylabs/quarry-go/keyindex"
	pgindex "github.com/quarrylabs/quarry-go/keyindex/postgres"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "Experiment environment tooling",
		Long:  "Quarry resolves experiment environments, fingerprints them, and manages their result assets.",
	}

	rootCmd.AddCommand(newKeyCommand())
	rootCmd.AddCommand(newPathsCommand())
	rootCmd.AddCommand(newLookupCommand())
	rootCmd.AddCommand(newSyncCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type envFlags struct {
	defaultsPath string
	rootPath     string
	target       string
	idColumn     string
	metrics      []string
	holdoutPath  string
	testPath     string
	blacklist    []string
	runs         int
	seed         int
	cvType       string
	verbose      bool
}

func (f *envFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.defaultsPath, "defaults", "", "Path to an environment defaults record (YAML or JSON)")
	cmd.Flags().StringVar(&f.rootPath, "root", "", "Root results path")
	cmd.Flags().StringVar(&f.target, "target", "", "Target column name")
	cmd.Flags().StringVar(&f.idColumn, "id-column", "", "Sample id column name")
	cmd.Flags().StringSliceVar(&f.metrics, "metric", nil, "Metric as name or name=identifier (repeatable)")
	cmd.Flags().StringVar(&f.holdoutPath, "holdout", "", "Holdout dataset CSV path")
	cmd.Flags().StringVar(&f.testPath, "test", "", "Test dataset CSV path")
	cmd.Flags().StringSliceVar(&f.blacklist, "blacklist", nil, "Result categories to skip, or ALL")
	cmd.Flags().IntVar(&f.runs, "runs", 0, "Repetitions per hyperparameter set")
	cmd.Flags().IntVar(&f.seed, "seed", 0, "Global random seed")
	cmd.Flags().StringVar(&f.cvType, "cv-type", "", "Cross-validation scheme name")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Verbose resolution logging")
}

func (f *envFlags) options(cmd *cobra.Command) ([]environment.Option, error) {
	var opts []environment.Option
	if f.defaultsPath != "" {
		opts = append(opts, environment.WithDefaultsPath(f.defaultsPath))
	}
	if f.rootPath != "" {
		opts = append(opts, environment.WithRootResultsPath(f.rootPath))
	}
	if f.target != "" {
		opts = append(opts, environment.WithTargetColumn(f.target))
	}
	if f.idColumn != "" {
		opts = append(opts, environment.WithIDColumn(f.idColumn))
	}
	if len(f.metrics) > 0 {
		metricsMap, err := parseMetrics(f.metrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, environment.WithMetricsMap(metricsMap))
	}
	if f.holdoutPath != "" {
		opts = append(opts, environment.WithHoldout(f.holdoutPath))
	}
	if f.testPath != "" {
		opts = append(opts, environment.WithTestDataset(f.testPath))
	}
	if len(f.blacklist) > 0 {
		categories := make([]environment.Category, 0, len(f.blacklist))
		for _, entry := range f.blacklist {
			categories = append(categories, environment.Category(entry))
		}
		opts = append(opts, environment.WithFileBlacklist(categories...))
	}
	if cmd.Flags().Changed("runs") {
		opts = append(opts, environment.WithRuns(f.runs))
	}
	if cmd.Flags().Changed("seed") {
		opts = append(opts, environment.WithGlobalRandomSeed(f.seed))
	}
	if f.cvType != "" {
		opts = append(opts, environment.WithCrossValidationType(f.cvType))
	}
	if cmd.Flags().Changed("verbose") {
		opts = append(opts, environment.WithVerbose(f.verbose))
	}
	return opts, nil
}

func parseMetrics(entries []string) (map[string]string, error) {
	metricsMap := make(map[string]string, len(entries))
	for _, entry := range entries {
		name, id := entry, entry
		for i := 0; i < len(entry); i++ {
			if entry[i] == '=' {
				name, id = entry[:i], entry[i+1:]
				break
			}
		}
		if name == "" || id == "" {
			return nil, fmt.Errorf("invalid metric %q; expected name or name=identifier", entry)
		}
		metricsMap[name] = id
	}
	return metricsMap, nil
}

func buildEnvironment(cmd *cobra.Command, trainPath string, flags *envFlags) (*environment.Environment, error) {
	opts, err := flags.options(cmd)
	if err != nil {
		return nil, err
	}
	env, err := environment.New(trainPath, opts...)
	if err != nil {
		return nil, err
	}
	environment.Activate(env)
	return env, nil
}

func newKeyCommand() *cobra.Command {
	flags := &envFlags{}
	var (
		record  bool
		usePg   bool
		quietHB bool
	)
	cmd := &cobra.Command{
		Use:   "key <train.csv>",
		Short: "Resolve an environment and print its cross-experiment key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvironment(cmd, args[0], flags)
			if err != nil {
				return err
			}
			defer environment.Deactivate()

			if !quietHB {
				handler, err := env.InitializeReporting(newLogger(env.Verbose))
				if err != nil {
					return fmt.Errorf("initialize reporting: %w", err)
				}
				defer handler.Close()
			}

			fmt.Println(env.Key())

			if !record {
				return nil
			}
			store, cleanup, err := openStore(cmd.Context(), env, usePg)
			if err != nil {
				return err
			}
			defer cleanup()
			rec := keyindex.FromEnvironment(env)
			if err := store.SaveTested(cmd.Context(), rec); err != nil {
				return fmt.Errorf("record tested key: %w", err)
			}
			fmt.Printf("Recorded %s\n", rec.ID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&record, "record", false, "Record the key in the tested-key index")
	cmd.Flags().BoolVar(&usePg, "postgres", false, "Use the database-backed key index")
	cmd.Flags().BoolVar(&quietHB, "no-heartbeat", false, "Skip heartbeat reporting")
	return cmd
}

func newPathsCommand() *cobra.Command {
	flags := &envFlags{}
	cmd := &cobra.Command{
		Use:   "paths <train.csv>",
		Short: "Resolve an environment and print its planned result paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvironment(cmd, args[0], flags)
			if err != nil {
				return err
			}
			defer environment.Deactivate()

			for _, category := range environment.Catalogue() {
				path := env.ResultPaths[category]
				if path == "" {
					path = "-"
				}
				fmt.Printf("%-22s %s\n", category, path)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newLookupCommand() *cobra.Command {
	var (
		testedDir string
		lookupDir string
		usePg     bool
	)
	cmd := &cobra.Command{
		Use:   "lookup <cross-experiment-key>",
		Short: "Look up the recorded attributes of a tested key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				store keyindex.Store
				err   error
			)
			if usePg {
				var cleanup func()
				store, cleanup, err = openPostgresStore(cmd.Context())
				if err != nil {
					return err
				}
				defer cleanup()
			} else {
				store, err = keyindex.NewFileStore(testedDir, lookupDir)
				if err != nil {
					return err
				}
			}
			rec, err := store.LookupAttributes(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, keyindex.ErrNotFound) {
					return fmt.Errorf("key %s has not been tested", args[0])
				}
				return err
			}
			fmt.Printf("key: %s\nrecorded: %s\n", rec.Key, rec.CreatedAt.Format(time.RFC3339))
			for name, value := range rec.Attributes {
				fmt.Printf("  %s: %v\n", name, value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&testedDir, "tested-dir", "", "TestedKeys directory of the assets tree")
	cmd.Flags().StringVar(&lookupDir, "lookup-dir", "", "KeyAttributeLookup directory of the assets tree")
	cmd.Flags().BoolVar(&usePg, "postgres", false, "Use the database-backed key index")
	return cmd
}

func newSyncCommand() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "sync <assets-dir>",
		Short: "Upload a results tree to the configured object store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := objectstore.ConfigFromEnv()
			if err != nil {
				return fmt.Errorf("object store config: %w", err)
			}
			client, err := objectstore.NewMinIOClient(cfg)
			if err != nil {
				return fmt.Errorf("object store client: %w", err)
			}
			ctx := cmd.Context()
			if err := objectstore.EnsureBucket(ctx, client, cfg); err != nil {
				return err
			}
			uploaded, err := objectstore.Sync(ctx, client, cfg, prefix, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded %d files to %s\n", uploaded, cfg.BucketResults)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Object key prefix within the bucket")
	return cmd
}

// openStore picks the key index backing for the key command. The file store
// lives inside the environment's own assets tree; the database store is
// shared across machines.
func openStore(ctx context.Context, env *environment.Environment, usePg bool) (keyindex.Store, func(), error) {
	if usePg {
		return openPostgresStore(ctx)
	}
	testedDir := env.ResultPaths[environment.CategoryTestedKeys]
	lookupDir := env.ResultPaths[environment.CategoryKeyAttributeLookup]
	if testedDir == "" || lookupDir == "" {
		return nil, nil, errors.New("tested-key paths are blacklisted or no results root is set")
	}
	store, err := keyindex.NewFileStore(testedDir, lookupDir)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func openPostgresStore(ctx context.Context) (keyindex.Store, func(), error) {
	cfg, err := postgres.ConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("database config: %w", err)
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database open: %w", err)
	}
	store := pgindex.NewStore(db)
	if store == nil {
		_ = db.Close()
		return nil, nil, errors.New("database store not initialized")
	}
	return store, func() { _ = db.Close() }, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
