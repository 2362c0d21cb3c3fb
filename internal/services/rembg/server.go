package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"matte/internal/imaging"
	"matte/internal/services"
)

const userAgent = "matte/0.1"

// ServerOption configures the Server client.
type ServerOption func(*Server)

// WithServerModel selects the segmentation model.
func WithServerModel(model string) ServerOption {
	return func(s *Server) {
		if model != "" {
			s.model = model
		}
	}
}

// WithServerTimeout bounds a single request. Zero imposes no timeout.
func WithServerTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.client.Timeout = timeout
		}
	}
}

// Server talks to a running "rembg s" HTTP endpoint. The shared http.Client
// makes it safe for concurrent use.
type Server struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewServer constructs a Server client for the given base URL.
func NewServer(baseURL string, opts ...ServerOption) *Server {
	srv := &Server{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:   "isnet-general-use",
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Check probes the server root to verify reachability.
func (s *Server) Check(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, s.baseURL+"/", nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "rembg", "check", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "rembg", "check",
			fmt.Sprintf("server %s unreachable", s.baseURL), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return services.Wrap(services.ErrConfiguration, "rembg", "check",
			fmt.Sprintf("server %s returned %d", s.baseURL, resp.StatusCode), nil)
	}
	return nil
}

// Remove uploads img to the server's removal endpoint and returns the raw
// bytes of the response.
func (s *Server) Remove(ctx context.Context, img image.Image) (Result, error) {
	input, err := imaging.EncodePNGBytes(img)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "encode input", "", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "build request", "", err)
	}
	if _, err := part.Write(input); err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "build request", "", err)
	}
	if err := writer.WriteField("model", s.model); err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "build request", "", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "build request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/remove", body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "build request", "", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "invoke", "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "invoke", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(data))
		if len(detail) > 256 {
			detail = detail[:256]
		}
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "invoke",
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, detail), nil)
	}
	if len(data) == 0 {
		return Result{}, services.Wrap(services.ErrTransform, "rembg", "invoke", "backend produced no output", nil)
	}
	return Result{Raw: data}, nil
}

var _ Client = (*Server)(nil)
