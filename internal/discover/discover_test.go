package discover_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"matte/internal/discover"
	"matte/internal/services"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestDiscoverFlatSkipsSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.jpg", "a.png", "notes.txt", "sub/c.jpg")

	got, err := discover.Discover(root, false)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	want := []string{filepath.Join(root, "a.png"), filepath.Join(root, "b.jpg")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDiscoverRecursiveSortsLexicographically(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "z.webp", "a/nested.tif", "m.JPG", "a/deep/leaf.jpeg")

	got, err := discover.Discover(root, true)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 files, got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("results not sorted: %v", got)
		}
	}
}

func TestDiscoverExtensionFilterIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "upper.PNG", "mixed.TiFf", "skip.gif", "skip.raw", "noext")

	got, err := discover.Discover(root, false)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected PNG and TiFf only, got %v", got)
	}
}

func TestDiscoverMissingRootIsConfigurationError(t *testing.T) {
	_, err := discover.Discover(filepath.Join(t.TempDir(), "absent"), true)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDiscoverFileRootIsConfigurationError(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "plain.jpg")

	_, err := discover.Discover(filepath.Join(root, "plain.jpg"), false)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolveDestinationMirror(t *testing.T) {
	in := filepath.FromSlash("/data/in")
	out := filepath.FromSlash("/data/out")
	source := filepath.Join(in, "sub", "deep", "photo.jpeg")

	got, err := discover.ResolveDestination(source, in, out, true)
	if err != nil {
		t.Fatalf("ResolveDestination returned error: %v", err)
	}
	want := filepath.Join(out, "sub", "deep", "photo.png")
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveDestinationFlatten(t *testing.T) {
	in := filepath.FromSlash("/data/in")
	out := filepath.FromSlash("/data/out")
	source := filepath.Join(in, "sub", "deep", "photo.jpeg")

	got, err := discover.ResolveDestination(source, in, out, false)
	if err != nil {
		t.Fatalf("ResolveDestination returned error: %v", err)
	}
	want := filepath.Join(out, "photo.png")
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveAllFlattenCollisionFails(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a/dupe.jpg", "b/dupe.png")

	_, err := discover.ResolveAll(root, t.TempDir(), true, false)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "dupe.jpg") || !strings.Contains(msg, "dupe.png") {
		t.Fatalf("collision error should name both sources: %q", msg)
	}
}

func TestResolveAllMirrorKeepsDuplicateBasenames(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a/dupe.jpg", "b/dupe.png")

	items, err := discover.ResolveAll(root, t.TempDir(), true, true)
	if err != nil {
		t.Fatalf("ResolveAll returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", items)
	}
	if items[0].Destination == items[1].Destination {
		t.Fatalf("mirror mode should keep destinations distinct: %v", items)
	}
}

func TestResolveAllPairsEverySource(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "one.jpg", "two.png", "sub/three.webp")

	items, err := discover.ResolveAll(root, filepath.Join(t.TempDir(), "out"), true, true)
	if err != nil {
		t.Fatalf("ResolveAll returned error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for _, item := range items {
		if item.Source == "" || item.Destination == "" {
			t.Fatalf("incomplete item: %+v", item)
		}
		if filepath.Ext(item.Destination) != ".png" {
			t.Fatalf("destination extension not forced to png: %s", item.Destination)
		}
	}
}
