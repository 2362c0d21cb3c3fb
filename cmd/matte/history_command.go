package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"matte/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded batch runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				return showRunDetail(cmd, store, args[0])
			}
			return listRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d runs\n", removed)
			return nil
		},
	}
}

func listRuns(cmd *cobra.Command, store *journal.Store, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.Time(run.StartedAt),
			run.InputRoot,
			strconv.Itoa(run.Submitted),
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Skipped),
			runStatusLabel(run),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Started", "Input", "Items", "OK", "Failed", "Skipped", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

func showRunDetail(cmd *cobra.Command, store *journal.Store, idArg string) error {
	ctx := cmd.Context()
	run, err := findRun(ctx, store, strings.TrimSpace(idArg))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  Input:    %s\n", run.InputRoot)
	fmt.Fprintf(out, "  Output:   %s\n", run.OutputRoot)
	fmt.Fprintf(out, "  Backend:  %s (%s)\n", run.Backend, run.Model)
	fmt.Fprintf(out, "  Started:  %s\n", run.StartedAt.Local().Format(time.RFC1123))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "  Duration: %s\n", formatDuration(run.FinishedAt.Sub(run.StartedAt)))
	}
	fmt.Fprintf(out, "  Items:    %d submitted, %d succeeded, %d failed, %d skipped\n",
		run.Submitted, run.Succeeded, run.Failed, run.Skipped)
	if run.Interrupted {
		fmt.Fprintln(out, "  Interrupted before completion")
	}

	items, err := store.RunItems(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		size := ""
		if item.Bytes > 0 {
			size = humanize.IBytes(uint64(item.Bytes))
		}
		detail := item.Message
		if item.FailureKind != "" {
			detail = fmt.Sprintf("[%s] %s", item.FailureKind, item.Message)
		}
		rows = append(rows, []string{
			item.Status,
			filepath.Base(item.Source),
			size,
			formatDuration(item.Duration),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Status", "Source", "Size", "Time", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

// findRun resolves an exact run ID or a unique ID prefix.
func findRun(ctx context.Context, store *journal.Store, id string) (*journal.Run, error) {
	if id == "" {
		return nil, errors.New("run id is required")
	}
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		return nil, err
	}
	var match *journal.Run
	for _, candidate := range runs {
		if strings.HasPrefix(candidate.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no run matches %q", id)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runStatusLabel(run *journal.Run) string {
	switch {
	case run.FinishedAt == nil:
		return "running"
	case run.Interrupted:
		return "interrupted"
	case run.Failed > 0:
		return "completed (errors)"
	default:
		return "completed"
	}
}
