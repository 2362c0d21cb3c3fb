package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"matte/internal/services"
)

// Supported source extensions (lowercase, with leading dot).
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// WorkItem pairs a source image with its resolved output path. Items are
// immutable once created.
type WorkItem struct {
	Source      string
	Destination string
}

// IsSupported reports whether path carries a supported image extension.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Discover enumerates supported image files under inputRoot and returns them
// sorted lexicographically. With recursive false only the root's immediate
// files are considered.
func Discover(inputRoot string, recursive bool) ([]string, error) {
	info, err := os.Stat(inputRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "scan", fmt.Sprintf("input directory %s", inputRoot), err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "scan", fmt.Sprintf("%s is not a directory", inputRoot), nil)
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(inputRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if d.Type().IsRegular() && IsSupported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "discover", "scan", fmt.Sprintf("walk %s", inputRoot), err)
		}
	} else {
		entries, err := os.ReadDir(inputRoot)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "discover", "scan", fmt.Sprintf("read %s", inputRoot), err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && IsSupported(entry.Name()) {
				files = append(files, filepath.Join(inputRoot, entry.Name()))
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// ResolveDestination computes the output path for source. In mirror mode the
// source's path relative to inputRoot is replicated under outputRoot; in
// flatten mode only the base name is kept. The extension is always forced
// to .png.
func ResolveDestination(source, inputRoot, outputRoot string, mirror bool) (string, error) {
	if mirror {
		rel, err := filepath.Rel(inputRoot, source)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, "discover", "resolve", fmt.Sprintf("relativize %s", source), err)
		}
		return filepath.Join(outputRoot, forcePNG(rel)), nil
	}
	return filepath.Join(outputRoot, forcePNG(filepath.Base(source))), nil
}

// ResolveAll discovers sources and pairs each with its destination. In
// flatten mode, two sources mapping to the same destination are rejected
// up front rather than silently letting the last writer win.
func ResolveAll(inputRoot, outputRoot string, recursive, mirror bool) ([]WorkItem, error) {
	sources, err := Discover(inputRoot, recursive)
	if err != nil {
		return nil, err
	}

	items := make([]WorkItem, 0, len(sources))
	claimed := make(map[string]string, len(sources))
	for _, source := range sources {
		destination, err := ResolveDestination(source, inputRoot, outputRoot, mirror)
		if err != nil {
			return nil, err
		}
		if owner, ok := claimed[destination]; ok {
			return nil, services.Wrap(services.ErrConfiguration, "discover", "resolve",
				fmt.Sprintf("%s and %s both map to %s; use --keep-structure or rename one", owner, source, destination), nil)
		}
		claimed[destination] = source
		items = append(items, WorkItem{Source: source, Destination: destination})
	}
	return items, nil
}

func forcePNG(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
}
