// Package pipeline runs the concurrent batch: a fixed-size worker pool
// applies the background-removal transform to every discovered item and
// aggregates per-item outcomes.
//
// The reliability contract lives here. Each item's processing is wrapped so
// any failure becomes a Failure outcome rather than an error that could
// abort the batch; one corrupt input never cancels the others. Outputs that
// already exist are skipped unless force is set, which makes re-running the
// whole batch the recovery path after partial failures. Every submitted item
// yields exactly one outcome, and succeeded plus failed always equals the
// number submitted.
package pipeline
