package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"matte/internal/discover"
	"matte/internal/fileutil"
	"matte/internal/imaging"
	"matte/internal/logging"
	"matte/internal/services"
	"matte/internal/services/rembg"
)

// Transformer processes one work item end to end: skip check, decode,
// optional downscale, RGBA normalization, backend invocation, PNG write.
// It is safe for concurrent use; the backend client is the only shared
// state and is itself concurrency-safe.
type Transformer struct {
	backend rembg.Client
	opts    Options
	logger  *slog.Logger
}

// NewTransformer builds a transformer over the given backend.
func NewTransformer(backend rembg.Client, opts Options, logger *slog.Logger) *Transformer {
	return &Transformer{
		backend: backend,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "transformer"),
	}
}

// Process runs the item through the transform. Failures of any step are
// captured in the returned outcome and never propagate; this isolation is
// what keeps one bad item from aborting the batch.
func (t *Transformer) Process(ctx context.Context, item discover.WorkItem) Outcome {
	start := time.Now()

	if !t.opts.Force && destinationExists(item.Destination) {
		t.logger.Debug("skipping existing output",
			logging.String(logging.FieldSource, item.Source),
			logging.String(logging.FieldDestination, item.Destination))
		return Outcome{Item: item, Status: StatusSkipped, Duration: time.Since(start)}
	}

	bytes, err := t.transform(ctx, item)
	if err != nil {
		return Outcome{
			Item:     item,
			Status:   StatusFailed,
			Message:  err.Error(),
			Kind:     services.Classify(err),
			Duration: time.Since(start),
		}
	}
	return Outcome{Item: item, Status: StatusSucceeded, Bytes: bytes, Duration: time.Since(start)}
}

func (t *Transformer) transform(ctx context.Context, item discover.WorkItem) (int64, error) {
	if err := fileutil.EnsureParentDir(item.Destination); err != nil {
		return 0, services.Wrap(services.ErrWrite, "transformer", "create directory", item.Destination, err)
	}

	img, err := imaging.Decode(item.Source)
	if err != nil {
		return 0, services.Wrap(services.ErrDecode, "transformer", "decode", item.Source, err)
	}

	img = imaging.ResizeWithin(img, t.opts.MaxSize)
	normalized := imaging.ToNRGBA(img)

	result, err := t.backend.Remove(ctx, normalized)
	if err != nil {
		// Clients tag their own errors; anything untagged is a transform
		// failure by definition.
		if services.Classify(err) == services.FailureUnknown {
			err = services.Wrap(services.ErrTransform, "transformer", "remove background", item.Source, err)
		}
		return 0, err
	}
	removed, err := result.Image()
	if err != nil {
		return 0, services.Wrap(services.ErrTransform, "transformer", "normalize result", item.Source, err)
	}
	final := imaging.ToNRGBA(removed)

	bytes, err := fileutil.WriteAtomic(item.Destination, func(w io.Writer) error {
		return imaging.EncodePNG(w, final)
	})
	if err != nil {
		return 0, services.Wrap(services.ErrWrite, "transformer", "write", item.Destination, err)
	}
	return bytes, nil
}

// destinationExists implements the idempotency check: a present output file
// is proof the work was done. The check is deliberately unsynchronized;
// concurrent runs racing it at worst redo identical work.
func destinationExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
