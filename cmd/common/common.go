// Package common provides shared utilities for Proton CLI commands.
//
// This package contains helpers used across the standalone service
// binaries (feed, directory, shard) to reduce code duplication:
//
//   - Structured logger construction
//   - YAML configuration file loading
//   - BaseServer configuration from shared HTTP settings
package common

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NeutronStarPRO/Proton/api/httpserver"
)

// NewLogger creates a slog logger writing to stderr, JSON-formatted when
// json is true, at debug level when debug is true.
func NewLogger(service string, json, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("service", service)
}

// LoadYAML reads the YAML file at path into out. Unknown fields are
// rejected so typos surface at startup.
func LoadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// HTTPConfig holds the server settings every binary shares.
type HTTPConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	Pprof       bool   `yaml:"pprof"`
	LogJSON     bool   `yaml:"log_json"`
	LogDebug    bool   `yaml:"log_debug"`
}

// ServerConfig builds the BaseServer configuration from shared settings.
func (c *HTTPConfig) ServerConfig(log *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               c.ListenAddr,
		MetricsAddr:              c.MetricsAddr,
		EnablePprof:              c.Pprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}
}
