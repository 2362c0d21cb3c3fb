package pipeline_test

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"matte/internal/discover"
	"matte/internal/pipeline"
	"matte/internal/services"
	"matte/internal/testsupport"
)

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s as png: %v", path, err)
	}
	return img
}

func TestProcessWritesPNGOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "portrait.jpg")
	testsupport.WriteImage(t, source, 64, 48)
	item := discover.WorkItem{Source: source, Destination: filepath.Join(dir, "out", "portrait.png")}

	backend := testsupport.NewBackend()
	tr := pipeline.NewTransformer(backend, pipeline.Options{}, nil)

	outcome := tr.Process(context.Background(), item)
	if outcome.Status != pipeline.StatusSucceeded {
		t.Fatalf("Process status = %s (%s), want succeeded", outcome.Status, outcome.Message)
	}
	if backend.Calls() != 1 {
		t.Fatalf("backend calls = %d, want 1", backend.Calls())
	}

	img := decodePNG(t, item.Destination)
	bounds := img.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Fatalf("output dimensions = %dx%d, want 64x48", bounds.Dx(), bounds.Dy())
	}
	info, err := os.Stat(item.Destination)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if outcome.Bytes != info.Size() {
		t.Fatalf("outcome bytes = %d, file size = %d", outcome.Bytes, info.Size())
	}
}

func TestProcessSkipsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.png")
	testsupport.WriteImage(t, source, 10, 10)
	dest := filepath.Join(dir, "out", "photo.png")
	testsupport.WriteImage(t, dest, 10, 10)

	backend := testsupport.NewBackend()
	tr := pipeline.NewTransformer(backend, pipeline.Options{}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusSkipped {
		t.Fatalf("Process status = %s, want skipped", outcome.Status)
	}
	if backend.Calls() != 0 {
		t.Fatalf("backend calls = %d, want 0 on skip", backend.Calls())
	}
}

func TestProcessForceReprocessesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.png")
	testsupport.WriteImage(t, source, 10, 10)
	dest := filepath.Join(dir, "out", "photo.png")
	testsupport.WriteImage(t, dest, 10, 10)

	backend := testsupport.NewBackend()
	tr := pipeline.NewTransformer(backend, pipeline.Options{Force: true}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusSucceeded {
		t.Fatalf("Process status = %s (%s), want succeeded", outcome.Status, outcome.Message)
	}
	if backend.Calls() != 1 {
		t.Fatalf("backend calls = %d, want 1 with force", backend.Calls())
	}
}

func TestProcessReportsDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "broken.jpg")
	testsupport.WriteCorruptImage(t, source)
	dest := filepath.Join(dir, "out", "broken.png")

	backend := testsupport.NewBackend()
	tr := pipeline.NewTransformer(backend, pipeline.Options{}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusFailed {
		t.Fatalf("Process status = %s, want failed", outcome.Status)
	}
	if outcome.Kind != services.FailureDecode {
		t.Fatalf("failure kind = %s, want decode", outcome.Kind)
	}
	if backend.Calls() != 0 {
		t.Fatalf("backend calls = %d, want 0 after decode failure", backend.Calls())
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("destination should not exist after decode failure, stat err = %v", err)
	}
}

func TestProcessReportsBackendFailure(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.png")
	testsupport.WriteImage(t, source, 12, 12)
	dest := filepath.Join(dir, "out", "photo.png")

	backendErr := services.Wrap(services.ErrTransform, "rembg", "invoke", "model blew up", nil)
	backend := testsupport.NewBackend(testsupport.WithRemoveError(backendErr))
	tr := pipeline.NewTransformer(backend, pipeline.Options{}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusFailed {
		t.Fatalf("Process status = %s, want failed", outcome.Status)
	}
	if outcome.Kind != services.FailureTransform {
		t.Fatalf("failure kind = %s, want transform", outcome.Kind)
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("destination should not exist after backend failure, stat err = %v", err)
	}
}

func TestProcessTagsUntaggedBackendErrors(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.png")
	testsupport.WriteImage(t, source, 12, 12)

	backend := testsupport.NewBackend(testsupport.WithRemoveError(errors.New("socket hangup")))
	tr := pipeline.NewTransformer(backend, pipeline.Options{}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{
		Source:      source,
		Destination: filepath.Join(dir, "out", "photo.png"),
	})
	if outcome.Kind != services.FailureTransform {
		t.Fatalf("failure kind = %s, want transform for untagged backend error", outcome.Kind)
	}
}

func TestProcessReportsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.png")
	testsupport.WriteImage(t, source, 12, 12)

	// The destination's parent path is a regular file, so directory
	// creation fails regardless of privileges.
	blocker := filepath.Join(dir, "blocker")
	testsupport.WriteFile(t, blocker, 1)
	dest := filepath.Join(blocker, "photo.png")

	backend := testsupport.NewBackend()
	tr := pipeline.NewTransformer(backend, pipeline.Options{}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusFailed {
		t.Fatalf("Process status = %s, want failed", outcome.Status)
	}
	if outcome.Kind != services.FailureWrite {
		t.Fatalf("failure kind = %s, want write", outcome.Kind)
	}
}

func TestProcessBoundsLargeImages(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "wide.png")
	testsupport.WriteImage(t, source, 500, 300)
	dest := filepath.Join(dir, "out", "wide.png")

	backend := testsupport.NewBackend()
	tr := pipeline.NewTransformer(backend, pipeline.Options{MaxSize: 400}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusSucceeded {
		t.Fatalf("Process status = %s (%s), want succeeded", outcome.Status, outcome.Message)
	}

	bounds := decodePNG(t, dest).Bounds()
	if bounds.Dx() != 400 || bounds.Dy() != 240 {
		t.Fatalf("output dimensions = %dx%d, want 400x240", bounds.Dx(), bounds.Dy())
	}
}

func TestProcessNeverUpscales(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "small.png")
	testsupport.WriteImage(t, source, 300, 200)
	dest := filepath.Join(dir, "out", "small.png")

	backend := testsupport.NewBackend()
	tr := pipeline.NewTransformer(backend, pipeline.Options{MaxSize: 400}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusSucceeded {
		t.Fatalf("Process status = %s (%s), want succeeded", outcome.Status, outcome.Message)
	}

	bounds := decodePNG(t, dest).Bounds()
	if bounds.Dx() != 300 || bounds.Dy() != 200 {
		t.Fatalf("output dimensions = %dx%d, want 300x200 unchanged", bounds.Dx(), bounds.Dy())
	}
}

func TestProcessAcceptsDecodedBackendResults(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.bmp")
	testsupport.WriteImage(t, source, 32, 32)
	dest := filepath.Join(dir, "out", "photo.png")

	backend := testsupport.NewBackend(testsupport.WithDecodedResults())
	tr := pipeline.NewTransformer(backend, pipeline.Options{}, nil)

	outcome := tr.Process(context.Background(), discover.WorkItem{Source: source, Destination: dest})
	if outcome.Status != pipeline.StatusSucceeded {
		t.Fatalf("Process status = %s (%s), want succeeded", outcome.Status, outcome.Message)
	}

	bounds := decodePNG(t, dest).Bounds()
	if bounds.Dx() != 32 || bounds.Dy() != 32 {
		t.Fatalf("output dimensions = %dx%d, want 32x32", bounds.Dx(), bounds.Dy())
	}
}
