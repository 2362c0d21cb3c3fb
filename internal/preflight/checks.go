package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"matte/internal/config"
	"matte/internal/deps"
	"matte/internal/journal"
	"matte/internal/services/rembg"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBackend verifies the configured background-removal backend is usable:
// the rembg binary resolves for the cli backend, the server answers for the
// server backend. It uses a 10-second timeout and a single attempt.
func CheckBackend(ctx context.Context, cfg *config.Config) Result {
	kind := strings.ToLower(strings.TrimSpace(cfg.Backend.Kind))
	name := fmt.Sprintf("Backend (%s)", kind)

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := rembg.NewFromConfig(cfg)
	if err := client.Check(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeBackendError(err)}
	}

	detail := fmt.Sprintf("%s resolves", cfg.Backend.Binary)
	if kind == "server" {
		detail = fmt.Sprintf("%s reachable", cfg.Backend.ServerURL)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckJournal verifies the run journal opens and its schema matches.
func CheckJournal(cfg *config.Config) Result {
	const name = "Journal database"

	store, err := journal.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	return Result{Name: name, Passed: true, Detail: store.Path()}
}

// CheckSystemDeps evaluates the external binaries the current configuration
// needs. The server backend shells out to nothing, so its list is empty.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend.Kind), "server") {
		return nil
	}
	requirements := []deps.Requirement{
		{
			Name:        "rembg",
			Command:     cfg.Backend.Binary,
			Description: "Required for background removal (pip install \"rembg[cli]\")",
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeBackendError produces a human-readable summary for backend check failures.
func summarizeBackendError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (backend unreachable)"
	}
	return err.Error()
}
