package pipeline

import (
	"runtime"
	"time"

	"matte/internal/discover"
	"matte/internal/services"
)

// Status is the terminal state of one work item.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome records the result of processing one work item. Skips count as
// successes in aggregate totals; the work is already done.
type Outcome struct {
	Item     discover.WorkItem
	Status   Status
	Message  string
	Kind     services.FailureKind
	Bytes    int64
	Duration time.Duration
}

// Failure pairs a source path with the reason it failed.
type Failure struct {
	Source  string
	Message string
}

// Summary aggregates a finished batch. Succeeded includes skipped items.
type Summary struct {
	Succeeded   int
	Failed      int
	Skipped     int
	Failures    []Failure
	Interrupted bool
	Duration    time.Duration
}

// Total returns the number of items that reached a terminal state.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed
}

// Options is the immutable configuration snapshot for one batch run.
type Options struct {
	// Force disables the idempotency skip and reprocesses existing outputs.
	Force bool
	// MaxSize bounds both image dimensions before the transform; zero
	// disables the bound. Never upscales.
	MaxSize int
	// Jobs is the worker count; zero or negative selects DefaultJobs.
	Jobs int
}

// DefaultJobs returns the default worker count: min(8, CPU count), at
// least 1.
func DefaultJobs() int {
	jobs := runtime.NumCPU()
	if jobs > 8 {
		jobs = 8
	}
	if jobs < 1 {
		jobs = 1
	}
	return jobs
}
