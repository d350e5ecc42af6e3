package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Noofbiz/subjectcv/datasets"
	"github.com/Noofbiz/subjectcv/harness"
	"github.com/Noofbiz/subjectcv/store"
)

type options struct {
	configPath string
	seed       int64
	mode       string
	workers    int
	model      string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "subjectcv DATA LABELS OUTDIR",
		Short: "Leave-one-subject-out cross-validation of a P300 classifier",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(3)(cmd, args); err != nil {
				return &harness.ConfigError{Err: err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], args[1], args[2])
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &harness.ConfigError{Err: err}
	})

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	f.Int64Var(&opts.seed, "seed", harness.DefaultSeed, "master seed for fold splits and models")
	f.StringVar(&opts.mode, "mode", harness.ModeTest, "score the held-out subject (test) or the balanced validation subject (validation)")
	f.IntVar(&opts.workers, "workers", 1, "folds evaluated concurrently")
	f.StringVar(&opts.model, "model", harness.ModelMLP, "classifier kind: mlp or logistic")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func run(cmd *cobra.Command, opts *options, dataPath, labelsPath, outDir string) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := harness.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	// explicit flags win over the file
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if flags.Changed("mode") {
		cfg.Mode = opts.mode
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("model") {
		cfg.Model.Kind = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ds, err := datasets.Load(dataPath, labelsPath)
	if err != nil {
		return err
	}
	logger.Info("loaded dataset", "data", dataPath, "labels", labelsPath, "shape", ds.Shape, "positives", positives(ds))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var st *store.Store
	if cfg.Outputs.Database != "" {
		st, err = store.NewStore(filepath.Join(outDir, cfg.Outputs.Database))
		if err != nil {
			return err
		}
		defer st.Close()
	}

	m := harness.NewMetrics()
	agg := &harness.Aggregator{
		Config: cfg,
		Evaluator: &harness.Evaluator{
			Config:  cfg,
			Factory: cfg.Model.Factory(),
			Logger:  logger,
			OutDir:  outDir,
		},
		Logger:     logger,
		Metrics:    m,
		Store:      st,
		DataPath:   dataPath,
		LabelsPath: labelsPath,
	}

	rc, runErr := agg.Run(cmd.Context(), ds)
	if rc != nil {
		if err := agg.Persist(outDir, rc); err != nil {
			return err
		}
		logger.Info("results written", "dir", outDir, "run", rc.RunID)
	}
	return runErr
}

func positives(ds *datasets.Dataset) int {
	n := 0
	for _, y := range ds.Labels.Values {
		if y == 1 {
			n++
		}
	}
	return n
}
