package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.Jobs < 0 {
		return errors.New("processing.jobs must be zero or positive")
	}
	if c.Processing.MaxSize < 0 {
		return errors.New("processing.max_size must be zero or positive")
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Kind {
	case "cli":
		if c.Backend.Binary == "" {
			return errors.New("backend.binary must be set when backend.kind is \"cli\"")
		}
	case "server":
		if c.Backend.ServerURL == "" {
			return errors.New("backend.server_url must be set when backend.kind is \"server\"")
		}
	default:
		return fmt.Errorf("backend.kind must be \"cli\" or \"server\", got %q", c.Backend.Kind)
	}
	if c.Backend.Model == "" {
		return errors.New("backend.model must be set")
	}
	if c.Backend.TimeoutSeconds < 0 {
		return errors.New("backend.timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
