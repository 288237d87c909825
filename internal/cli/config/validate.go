package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/incidentgraph/internal/cli/output"
)

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	var errs []error

	for _, p := range []struct{ key, value string }{
		{"paths.raw", c.Paths.Raw},
		{"paths.cleaned", c.Paths.Cleaned},
		{"paths.edges", c.Paths.Edges},
		{"paths.degrees", c.Paths.Degrees},
		{"paths.plot", c.Paths.Plot},
	} {
		if strings.TrimSpace(p.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", p.key))
		}
	}

	if _, err := time.LoadLocation(c.Ingest.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("ingest.timezone %q is not a known time zone: %w", c.Ingest.Timezone, err))
	}

	if c.Render.WidthIn <= 0 || c.Render.HeightIn <= 0 {
		errs = append(errs, fmt.Errorf("render size must be positive, got %gx%g in", c.Render.WidthIn, c.Render.HeightIn))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}

	if !output.Mode(c.OutputFormat).Valid() {
		errs = append(errs, fmt.Errorf("output %q must be one of auto, text, markdown, json", c.OutputFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured time zone, UTC when unset or unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ingest.Timezone)
	if err != nil || c.Ingest.Timezone == "" {
		return time.UTC
	}
	return loc
}
