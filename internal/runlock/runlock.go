// Package runlock serializes runs that share an output tree. Concurrent
// matte processes racing the same destinations would redo work and clobber
// each other's partial state, so each run holds a file lock derived from
// its output root for the duration of the batch.
package runlock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"matte/internal/config"
	"matte/internal/services"
)

// Lock is a held run lock. Release it when the batch finishes.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes the lock for outputRoot without blocking. A second run
// against the same output root fails with a configuration error.
func Acquire(cfg *config.Config, outputRoot string) (*Lock, error) {
	lockDir := cfg.Paths.LockDir
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := filepath.Join(lockDir, lockName(outputRoot))
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "runlock", "acquire",
			fmt.Sprintf("another matte run is already processing %s", outputRoot), nil)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Release drops the lock. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func lockName(outputRoot string) string {
	abs, err := filepath.Abs(outputRoot)
	if err != nil {
		abs = outputRoot
	}
	sum := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("matte-%s.lock", hex.EncodeToString(sum[:6]))
}
