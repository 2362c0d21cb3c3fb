package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"matte/internal/config"
	"matte/internal/discover"
	"matte/internal/journal"
	"matte/internal/logging"
	"matte/internal/notifications"
	"matte/internal/pipeline"
	"matte/internal/runlock"
	"matte/internal/services/rembg"
)

type runFlags struct {
	recursive     bool
	keepStructure bool
	force         bool
	jobs          int
	maxSize       int
	model         string
	backend       string
	serverURL     string
	noProgress    bool
	quiet         bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run INPUT_DIR OUTPUT_DIR",
		Short: "Remove backgrounds from every image under a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, args[0], args[1], flags)
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}

func addRunFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().BoolVarP(&flags.keepStructure, "keep-structure", "k", false, "Mirror the input layout under the output root")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Reprocess images whose output already exists")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "Worker count (0 selects min(8, CPU count))")
	cmd.Flags().IntVar(&flags.maxSize, "max-size", 0, "Bound the longest image dimension before processing (0 disables)")
	cmd.Flags().StringVar(&flags.model, "model", "", "Segmentation model")
	cmd.Flags().StringVar(&flags.backend, "backend", "", `Backend kind ("cli" or "server")`)
	cmd.Flags().StringVar(&flags.serverURL, "server-url", "", "rembg server URL for the server backend")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Only report failures and the final summary")
}

// mergedConfig layers explicitly set flags over the loaded configuration and
// re-validates the result.
func mergedConfig(cmd *cobra.Command, cfg *config.Config, flags runFlags) (*config.Config, error) {
	runCfg := *cfg
	set := cmd.Flags().Changed

	if set("recursive") {
		runCfg.Processing.Recursive = flags.recursive
	}
	if set("keep-structure") {
		runCfg.Processing.KeepStructure = flags.keepStructure
	}
	if set("force") {
		runCfg.Processing.Force = flags.force
	}
	if set("jobs") {
		runCfg.Processing.Jobs = flags.jobs
	}
	if set("max-size") {
		runCfg.Processing.MaxSize = flags.maxSize
	}
	if set("model") {
		runCfg.Backend.Model = strings.TrimSpace(flags.model)
	}
	if set("backend") {
		runCfg.Backend.Kind = strings.ToLower(strings.TrimSpace(flags.backend))
	}
	if set("server-url") {
		runCfg.Backend.ServerURL = strings.TrimRight(strings.TrimSpace(flags.serverURL), "/")
		if !set("backend") {
			runCfg.Backend.Kind = "server"
		}
	}

	if err := runCfg.Validate(); err != nil {
		return nil, err
	}
	return &runCfg, nil
}

func resolveRoots(inputArg, outputArg string) (string, string, error) {
	inputRoot, err := config.ExpandPath(inputArg)
	if err != nil {
		return "", "", fmt.Errorf("resolve input directory: %w", err)
	}
	outputRoot, err := config.ExpandPath(outputArg)
	if err != nil {
		return "", "", fmt.Errorf("resolve output directory: %w", err)
	}
	return inputRoot, outputRoot, nil
}

func runBatch(cmd *cobra.Command, cmdCtx *commandContext, inputArg, outputArg string, flags runFlags) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	runCfg, err := mergedConfig(cmd, cfg, flags)
	if err != nil {
		return err
	}

	inputRoot, outputRoot, err := resolveRoots(inputArg, outputArg)
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(runCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock, err := runlock.Acquire(runCfg, outputRoot)
	if err != nil {
		return err
	}
	defer lock.Release()

	runner, err := newBatchRunner(signalCtx, cmd, runCfg, logger, flags, inputRoot, outputRoot)
	if err != nil {
		return err
	}
	defer runner.close()

	summary, err := runner.execute(signalCtx)
	if err != nil {
		return err
	}
	if summary.Interrupted {
		return context.Canceled
	}
	return nil
}

// batchRunner holds everything a batch needs so watch mode can re-run
// batches without re-opening the backend, journal, or notifier.
type batchRunner struct {
	cfg        *config.Config
	logger     *slog.Logger
	backend    rembg.Client
	store      *journal.Store
	notifier   notifications.Service
	inputRoot  string
	outputRoot string
	opts       pipeline.Options
	out        io.Writer
	errw       io.Writer
	progress   bool
	quiet      bool
}

func newBatchRunner(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, flags runFlags, inputRoot, outputRoot string) (*batchRunner, error) {
	backend := rembg.NewFromConfig(cfg)
	if err := backend.Check(ctx); err != nil {
		return nil, err
	}

	// The journal is best effort: a broken database must never block a run.
	store, err := journal.Open(cfg)
	if err != nil {
		logger.Warn("run journal unavailable", logging.Error(err))
		store = nil
	}

	errw := cmd.ErrOrStderr()
	return &batchRunner{
		cfg:        cfg,
		logger:     logger,
		backend:    backend,
		store:      store,
		notifier:   notifications.NewService(cfg),
		inputRoot:  inputRoot,
		outputRoot: outputRoot,
		opts: pipeline.Options{
			Force:   cfg.Processing.Force,
			MaxSize: cfg.Processing.MaxSize,
			Jobs:    cfg.Processing.Jobs,
		},
		out:      cmd.OutOrStdout(),
		errw:     errw,
		progress: !flags.noProgress && !flags.quiet && isTerminal(errw),
		quiet:    flags.quiet,
	}, nil
}

func (r *batchRunner) close() {
	if r.store != nil {
		r.store.Close()
	}
}

func (r *batchRunner) execute(ctx context.Context) (pipeline.Summary, error) {
	items, err := discover.ResolveAll(r.inputRoot, r.outputRoot, r.cfg.Processing.Recursive, r.cfg.Processing.KeepStructure)
	if err != nil {
		return pipeline.Summary{}, err
	}
	if len(items) == 0 {
		fmt.Fprintf(r.out, "No images found under %s\n", r.inputRoot)
		return pipeline.Summary{}, nil
	}

	if err := os.MkdirAll(r.outputRoot, 0o755); err != nil {
		return pipeline.Summary{}, fmt.Errorf("create output directory %q: %w", r.outputRoot, err)
	}

	var runID string
	if r.store != nil {
		run, err := r.store.BeginRun(ctx, r.inputRoot, r.outputRoot, r.cfg.Backend.Kind, r.cfg.Backend.Model, len(items))
		if err != nil {
			r.logger.Warn("journal begin run", logging.Error(err))
		} else {
			runID = run.ID
		}
	}

	observers := pipeline.MultiObserver{newRunReporter(r.out, r.errw, r.outputRoot, r.progress, r.quiet)}
	if runID != "" {
		observers = append(observers, &journalObserver{store: r.store, runID: runID, logger: r.logger})
	}

	transformer := pipeline.NewTransformer(r.backend, r.opts, r.logger)
	scheduler := pipeline.NewScheduler(transformer, r.opts, observers, r.logger)
	summary := scheduler.Run(ctx, items)

	if runID != "" {
		// The signal context may already be cancelled; finishing the
		// record still matters.
		finishCtx, finishCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.FinishRun(finishCtx, runID, summary.Succeeded, summary.Failed, summary.Skipped, summary.Interrupted); err != nil {
			r.logger.Warn("journal finish run", logging.Error(err))
		}
		finishCancel()
	}

	r.notify(summary, len(items))
	return summary, nil
}

func (r *batchRunner) notify(summary pipeline.Summary, submitted int) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	event := notifications.EventBatchCompleted
	payload := notifications.Payload{
		"succeeded": strconv.Itoa(summary.Succeeded),
		"failed":    strconv.Itoa(summary.Failed),
		"duration":  formatDuration(summary.Duration),
	}
	if summary.Interrupted {
		event = notifications.EventBatchInterrupted
		payload = notifications.Payload{
			"finished": strconv.Itoa(summary.Total()),
			"total":    strconv.Itoa(submitted),
		}
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		r.logger.Warn("publish notification", logging.Error(err))
	}
}
