package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"matte/internal/discover"
	"matte/internal/logging"
)

// Scheduler fans work items out to a fixed pool of workers and aggregates
// outcomes in completion order. A batch always runs to the end of the item
// list; individual failures are recorded, never escalated. Cancelling the
// context stops the batch between items.
type Scheduler struct {
	transformer *Transformer
	opts        Options
	observer    Observer
	logger      *slog.Logger
}

// NewScheduler wires a transformer to the worker pool. A nil observer is
// replaced with NopObserver and a nil logger with the no-op logger.
func NewScheduler(transformer *Transformer, opts Options, observer Observer, logger *slog.Logger) *Scheduler {
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		transformer: transformer,
		opts:        opts,
		observer:    observer,
		logger:      logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Run processes every item and returns the aggregated summary. Outcomes are
// reported to the observer as workers finish them, not in submission order.
// When ctx is cancelled the remaining items are left unprocessed and the
// summary is marked interrupted; items already in flight run to completion.
func (s *Scheduler) Run(ctx context.Context, items []discover.WorkItem) Summary {
	started := time.Now()

	summary := Summary{}
	total := len(items)
	s.observer.BatchStarted(total)
	if total == 0 {
		summary.Duration = time.Since(started)
		s.observer.BatchFinished(summary)
		return summary
	}

	workers := s.opts.Jobs
	if workers <= 0 {
		workers = DefaultJobs()
	}
	if workers > total {
		workers = total
	}

	s.logger.Info("batch started",
		slog.Int("items", total),
		slog.Int("workers", workers),
	)

	jobs := make(chan discover.WorkItem)
	results := make(chan Outcome, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				results <- s.transformer.Process(ctx, item)
			}
		}()
	}

	go func() {
	feed:
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				break feed
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for outcome := range results {
		done++
		switch outcome.Status {
		case StatusSkipped:
			// A skip is a satisfied item: the destination already holds
			// a result.
			summary.Succeeded++
			summary.Skipped++
		case StatusSucceeded:
			summary.Succeeded++
		case StatusFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				Source:  outcome.Item.Source,
				Message: outcome.Message,
			})
		}
		s.observer.ItemFinished(outcome)
	}

	if ctx.Err() != nil && done < total {
		summary.Interrupted = true
	}
	summary.Duration = time.Since(started)

	s.logger.Info("batch finished",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
		slog.Bool("interrupted", summary.Interrupted),
		slog.Duration("duration", summary.Duration),
	)

	s.observer.BatchFinished(summary)
	return summary
}
