package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"matte/internal/logging"
	"matte/internal/runlock"
	"matte/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "watch INPUT_DIR OUTPUT_DIR",
		Short: "Process a directory and keep processing as images arrive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, ctx, args[0], args[1], flags)
		},
	}

	addRunFlags(cmd, &flags)
	return cmd
}

func runWatch(cmd *cobra.Command, cmdCtx *commandContext, inputArg, outputArg string, flags runFlags) error {
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

	if rel, err := filepath.Rel(inputRoot, outputRoot); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// Outputs landing inside the watched tree would be rediscovered
		// as sources on the next trigger.
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: output directory %s is inside the watched input tree\n", outputRoot)
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

	debounce := time.Duration(runCfg.Watch.DebounceMS) * time.Millisecond
	watcher, err := watch.New(inputRoot, runCfg.Processing.Recursive, debounce, logger)
	if err != nil {
		return err
	}
	defer watcher.Close()
	go watcher.Run(signalCtx)

	if _, err := runner.execute(signalCtx); err != nil {
		return err
	}

	if !flags.quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for new images (Ctrl-C to stop)\n", inputRoot)
	}

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("watch stopped")
			return nil
		case <-watcher.Triggers():
			if _, err := runner.execute(signalCtx); err != nil {
				// A batch that cannot start leaves the watch alive; the
				// next arrival gets another chance.
				logger.Error("watch batch", logging.Error(err))
				fmt.Fprintf(cmd.ErrOrStderr(), "watch batch failed: %v\n", err)
			}
		}
	}
}
