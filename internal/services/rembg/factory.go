package rembg

import (
	"time"

	"matte/internal/config"
)

// NewFromConfig builds the backend client selected by the configuration.
func NewFromConfig(cfg *config.Config) Client {
	timeout := time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	if cfg.Backend.Kind == "server" {
		return NewServer(cfg.Backend.ServerURL,
			WithServerModel(cfg.Backend.Model),
			WithServerTimeout(timeout))
	}
	return NewCLI(
		WithBinary(cfg.Backend.Binary),
		WithModel(cfg.Backend.Model),
		WithTimeout(timeout))
}
