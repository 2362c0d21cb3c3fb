package journal

import "time"

// Run is one recorded batch. FinishedAt is nil while the batch is still
// running or when the process died before finishing it.
type Run struct {
	ID          string
	InputRoot   string
	OutputRoot  string
	Backend     string
	Model       string
	Submitted   int
	Succeeded   int
	Failed      int
	Skipped     int
	Interrupted bool
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// ItemRecord is one finished work item within a run.
type ItemRecord struct {
	RunID       string
	Source      string
	Destination string
	Status      string
	FailureKind string
	Message     string
	Bytes       int64
	Duration    time.Duration
	FinishedAt  time.Time
}
