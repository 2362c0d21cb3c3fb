// Package services defines shared error utilities consumed by the pipeline
// and external integrations.
//
// It owns the structured error markers plus the Wrap helper that tag failures
// for later classification: configuration errors abort a run before any
// processing, while decode, transform, and write errors stay isolated to the
// item that raised them. Use these helpers when wiring new components so
// error handling stays uniform across the pipeline.
package services
