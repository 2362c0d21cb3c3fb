// Package journal persists run history in SQLite. Every batch records a run
// row up front, one row per finished item as workers complete them, and the
// final tallies when the batch ends. The history and doctor commands read
// from here; nothing in the pipeline depends on it.
package journal
