package testsupport

import (
	"context"
	"image"
	"sync"
	"time"

	"matte/internal/imaging"
	"matte/internal/services/rembg"
)

// BackendOption customizes the scripted backend.
type BackendOption func(*Backend)

// WithRemoveError makes every Remove call fail with err.
func WithRemoveError(err error) BackendOption {
	return func(b *Backend) {
		b.removeErr = err
	}
}

// WithCheckError makes Check fail with err.
func WithCheckError(err error) BackendOption {
	return func(b *Backend) {
		b.checkErr = err
	}
}

// WithRemoveDelay holds each Remove call for d before returning.
func WithRemoveDelay(d time.Duration) BackendOption {
	return func(b *Backend) {
		b.delay = d
	}
}

// WithDecodedResults switches Remove to hand back decoded images instead of
// raw encoded bytes.
func WithDecodedResults() BackendOption {
	return func(b *Backend) {
		b.decoded = true
	}
}

// Backend is a scripted background-removal client for tests. By default each
// Remove call re-encodes its input as PNG and returns the raw bytes; the
// decoded mode returns the input image directly. Call and concurrency counts
// are tracked for assertions.
type Backend struct {
	removeErr error
	checkErr  error
	delay     time.Duration
	decoded   bool

	mu        sync.Mutex
	calls     int
	active    int
	maxActive int
}

// NewBackend builds a scripted backend with the provided options applied.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Check reports the scripted check error, if any.
func (b *Backend) Check(ctx context.Context) error {
	return b.checkErr
}

// Remove returns the scripted result for img.
func (b *Backend) Remove(ctx context.Context, img image.Image) (rembg.Result, error) {
	b.mu.Lock()
	b.calls++
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	}()

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return rembg.Result{}, ctx.Err()
		}
	}

	if b.removeErr != nil {
		return rembg.Result{}, b.removeErr
	}
	if b.decoded {
		return rembg.Result{Img: img}, nil
	}
	raw, err := imaging.EncodePNGBytes(img)
	if err != nil {
		return rembg.Result{}, err
	}
	return rembg.Result{Raw: raw}, nil
}

// Calls reports how many Remove invocations the backend has seen.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// MaxActive reports the highest number of Remove calls in flight at once.
func (b *Backend) MaxActive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxActive
}

var _ rembg.Client = (*Backend)(nil)
