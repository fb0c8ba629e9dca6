package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeService()
	c.normalizeWorker()
	c.normalizeBundles()
	c.normalizeDownload()
	c.normalizeShutdown()
	c.normalizeSurface()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Home) == "" {
		c.Paths.Home = defaultHome
	}
	if c.Paths.Home, err = expandPath(strings.TrimSpace(c.Paths.Home)); err != nil {
		return fmt.Errorf("paths.home: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AppDir) == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("paths.app_dir: resolve executable: %w", err)
		}
		c.Paths.AppDir = filepath.Dir(exe)
	}
	if c.Paths.AppDir, err = expandPath(strings.TrimSpace(c.Paths.AppDir)); err != nil {
		return fmt.Errorf("paths.app_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeService() {
	c.Service.Name = strings.TrimSpace(c.Service.Name)
	c.Service.InstallDir = strings.TrimSpace(c.Service.InstallDir)
	c.Service.DataDir = strings.TrimSpace(c.Service.DataDir)
	c.Service.Port = strings.TrimSpace(c.Service.Port)
	if c.Service.Port == "" {
		c.Service.Port = defaultServicePort
	}
	c.Service.Resource = strings.TrimSpace(c.Service.Resource)
	if c.Service.Resource == "" {
		c.Service.Resource = defaultServiceResource
	}
	c.Service.Section = strings.TrimSpace(c.Service.Section)
	if c.Service.Section == "" {
		c.Service.Section = defaultServiceSection
	}
	c.Service.Probe = strings.ToLower(strings.TrimSpace(c.Service.Probe))
	if c.Service.Probe == "" {
		c.Service.Probe = defaultServiceProbe
	}
	if c.Service.VerifyAttempts <= 0 {
		c.Service.VerifyAttempts = 1
	}
	if c.Service.VerifyIntervalMS < 0 {
		c.Service.VerifyIntervalMS = 0
	}
	if c.Service.VerifyTimeoutMS <= 0 {
		c.Service.VerifyTimeoutMS = defaultVerifyTimeoutMS
	}
	normalized := make(map[string]string, len(c.Service.Downloads))
	for goos, url := range c.Service.Downloads {
		goos = strings.ToLower(strings.TrimSpace(goos))
		url = strings.TrimSpace(url)
		if goos == "" || url == "" {
			continue
		}
		normalized[goos] = url
	}
	c.Service.Downloads = normalized
}

func (c *Config) normalizeWorker() {
	c.Worker.DistDir = strings.TrimSpace(c.Worker.DistDir)
	c.Worker.SrcDir = strings.TrimSpace(c.Worker.SrcDir)
	c.Worker.Module = strings.TrimSpace(c.Worker.Module)
	c.Worker.Interpreter = strings.TrimSpace(c.Worker.Interpreter)
	if c.Worker.Interpreter == "" {
		c.Worker.Interpreter = defaultWorkerInterpreter
	}
}

func (c *Config) normalizeBundles() {
	bundles := c.Bundles[:0]
	for _, b := range c.Bundles {
		b.ID = strings.TrimSpace(b.ID)
		if b.ID == "" {
			continue
		}
		b.Suffix = strings.TrimSpace(b.Suffix)
		if b.Suffix == "" {
			b.Suffix = defaultBundleSuffix
		}
		b.URL = strings.TrimSpace(b.URL)
		b.Root = strings.TrimSpace(b.Root)
		bundles = append(bundles, b)
	}
	c.Bundles = bundles
}

func (c *Config) normalizeDownload() {
	if c.Download.TimeoutSeconds < 0 {
		c.Download.TimeoutSeconds = 0
	}
	if c.Download.MaxRedirects <= 0 {
		c.Download.MaxRedirects = defaultMaxRedirects
	}
	if c.Download.Retries < 0 {
		c.Download.Retries = 0
	}
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeShutdown() {
	if c.Shutdown.PollIntervalMS <= 0 {
		c.Shutdown.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Shutdown.GraceMS < 0 {
		c.Shutdown.GraceMS = 0
	}
}

func (c *Config) normalizeSurface() {
	c.Surface.Bind = strings.TrimSpace(c.Surface.Bind)
	c.Surface.AppName = strings.TrimSpace(c.Surface.AppName)
	if c.Surface.AppName == "" {
		c.Surface.AppName = defaultAppName
	}
	c.Frontend.Command = strings.TrimSpace(c.Frontend.Command)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level

	if c.Logging.MaxSizeMB < 0 {
		c.Logging.MaxSizeMB = 0
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
