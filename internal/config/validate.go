package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateBundles(); err != nil {
		return err
	}
	if err := c.validateSurface(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateService() error {
	if c.Service.Name == "" {
		return errors.New("service.name must be set")
	}
	if c.Service.InstallDir == "" {
		return errors.New("service.install_dir must be set")
	}
	if c.Service.DataDir == "" {
		return errors.New("service.data_dir must be set")
	}
	if err := ValidatePort(c.Service.Port); err != nil {
		return fmt.Errorf("service.port: %w", err)
	}
	switch c.Service.Probe {
	case ProbeMongo, ProbeTCP:
	default:
		return fmt.Errorf("service.probe must be %q or %q, got %q", ProbeMongo, ProbeTCP, c.Service.Probe)
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Module == "" {
		return errors.New("worker.module must be set")
	}
	if c.Worker.DistDir == "" && c.Worker.SrcDir == "" {
		return errors.New("worker.dist_dir or worker.src_dir must be set")
	}
	return nil
}

func (c *Config) validateBundles() error {
	seen := make(map[string]struct{}, len(c.Bundles))
	for _, b := range c.Bundles {
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("bundles: duplicate id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
		if b.URL == "" {
			return fmt.Errorf("bundles.%s.url must be set", b.ID)
		}
	}
	return nil
}

func (c *Config) validateSurface() error {
	if c.Surface.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Surface.Bind); err != nil {
		return fmt.Errorf("surface.bind: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

// ValidatePort reports whether value is a usable TCP port number.
func ValidatePort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port %q", value)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	return nil
}
