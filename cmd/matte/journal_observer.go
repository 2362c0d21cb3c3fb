package main

import (
	"context"
	"log/slog"
	"time"

	"matte/internal/journal"
	"matte/internal/logging"
	"matte/internal/pipeline"
)

// journalObserver records each finished item into the run journal. Failures
// here degrade to log warnings so history never interferes with processing.
type journalObserver struct {
	store  *journal.Store
	runID  string
	logger *slog.Logger
}

func (j *journalObserver) BatchStarted(int) {}

func (j *journalObserver) ItemFinished(outcome pipeline.Outcome) {
	rec := journal.ItemRecord{
		RunID:       j.runID,
		Source:      outcome.Item.Source,
		Destination: outcome.Item.Destination,
		Status:      string(outcome.Status),
		Message:     outcome.Message,
		Bytes:       outcome.Bytes,
		Duration:    outcome.Duration,
	}
	if outcome.Status == pipeline.StatusFailed {
		rec.FailureKind = string(outcome.Kind)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.store.RecordItem(ctx, rec); err != nil {
		j.logger.Warn("journal record item",
			logging.String("source", outcome.Item.Source),
			logging.Error(err))
	}
}

func (j *journalObserver) BatchFinished(pipeline.Summary) {}
