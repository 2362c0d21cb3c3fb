package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"time"

	"matte/internal/imaging"
	"matte/internal/services"
)

var commandContext = exec.CommandContext

// Result captures the backend's bimodal return: raw encoded image bytes or
// an already-decoded image, whichever the backend produced.
type Result struct {
	Raw []byte
	Img image.Image
}

// Image normalizes the result to a decoded image.
func (r Result) Image() (image.Image, error) {
	if r.Img != nil {
		return r.Img, nil
	}
	if len(r.Raw) == 0 {
		return nil, errors.New("backend returned no image data")
	}
	img, err := imaging.DecodeBytes(r.Raw)
	if err != nil {
		return nil, fmt.Errorf("decode backend output: %w", err)
	}
	return img, nil
}

// Client invokes the background-removal backend. Implementations must be
// safe for concurrent use; all workers of a run share one client.
type Client interface {
	// Check validates that the backend is usable. A failure here is a
	// configuration error that aborts the run before any processing.
	Check(ctx context.Context) error
	// Remove applies background removal to img.
	Remove(ctx context.Context, img image.Image) (Result, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithModel selects the segmentation model.
func WithModel(model string) Option {
	return func(c *CLI) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds a single invocation. Zero imposes no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the rembg command-line tool, piping PNG data through stdin and
// stdout. Each invocation spawns an independent process, so concurrent use
// needs no locking.
type CLI struct {
	binary  string
	model   string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "rembg", model: "isnet-general-use"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Check verifies the binary is resolvable.
func (c *CLI) Check(ctx context.Context) error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return services.Wrap(services.ErrConfiguration, "rembg", "check",
			fmt.Sprintf("%s not found on PATH; install rembg or set backend.binary", c.binary), err)
	}
	return nil
}

// Remove pipes img through "rembg i -m MODEL" and returns the raw PNG bytes
// the tool wrote to stdout.
func (c *CLI) Remove(ctx context.Context, img image.Image) (Result, error) {
	input, err := imaging.EncodePNGBytes(img)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "encode input", "", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := commandContext(ctx, c.binary, "i", "-m", c.model)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "invocation failed"
		}
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "invoke", detail, err)
	}
	if stdout.Len() == 0 {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "invoke", "backend produced no output", nil)
	}
	return Result{Raw: stdout.Bytes()}, nil
}

var _ Client = (*CLI)(nil)
