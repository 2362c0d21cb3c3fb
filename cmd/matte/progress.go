package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"matte/internal/pipeline"
)

// runReporter renders batch progress on stderr and the final summary on
// stdout. The scheduler delivers all callbacks on one goroutine, so no
// locking is needed.
type runReporter struct {
	out        io.Writer
	errw       io.Writer
	outputRoot string
	progress   bool
	quiet      bool

	bar   *progressbar.ProgressBar
	bytes int64
}

func newRunReporter(out, errw io.Writer, outputRoot string, progress, quiet bool) *runReporter {
	return &runReporter{out: out, errw: errw, outputRoot: outputRoot, progress: progress, quiet: quiet}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (r *runReporter) BatchStarted(total int) {
	if r.progress {
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(r.errw),
			progressbar.OptionSetDescription("processing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
		return
	}
	if !r.quiet {
		fmt.Fprintf(r.errw, "Processing %d images\n", total)
	}
}

func (r *runReporter) ItemFinished(outcome pipeline.Outcome) {
	r.bytes += outcome.Bytes

	switch {
	case outcome.Status == pipeline.StatusFailed:
		if r.bar != nil {
			r.bar.Clear()
		}
		fmt.Fprintf(r.errw, "failed %s: %s\n", outcome.Item.Source, outcome.Message)
	case r.bar == nil && !r.quiet:
		verb := "done"
		if outcome.Status == pipeline.StatusSkipped {
			verb = "skip"
		}
		fmt.Fprintf(r.errw, "%-4s %s\n", verb, outcome.Item.Destination)
	}

	if r.bar != nil {
		r.bar.Add(1)
	}
}

func (r *runReporter) BatchFinished(summary pipeline.Summary) {
	if r.bar != nil {
		r.bar.Finish()
	}

	line := fmt.Sprintf("Processed %d images in %s: %d succeeded, %d failed",
		summary.Total(), formatDuration(summary.Duration), summary.Succeeded, summary.Failed)
	if summary.Skipped > 0 {
		line += fmt.Sprintf(" (%d skipped)", summary.Skipped)
	}
	if summary.Interrupted {
		line += " [interrupted]"
	}
	fmt.Fprintln(r.out, line)

	if r.bytes > 0 {
		fmt.Fprintf(r.out, "Wrote %s to %s\n", humanize.IBytes(uint64(r.bytes)), r.outputRoot)
	} else {
		fmt.Fprintf(r.out, "Output: %s\n", r.outputRoot)
	}
}

func formatDuration(d time.Duration) string {
	if d >= time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
