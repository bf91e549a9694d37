package config

import (
	"errors"
	"fmt"

	"github.com/sieveworks/sieve/pkg/core"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := core.ParseSeverity(c.QuarantineThreshold); !ok {
		return fmt.Errorf("invalid quarantine_threshold %q (want low, high or critical)", c.QuarantineThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be in 1..65535, got %d", c.HTTPPort)
	}

	seen := make(map[string]struct{})
	for i, stage := range c.Pipeline {
		if stage.Stage == "" {
			return fmt.Errorf("pipeline[%d]: stage name is required", i)
		}
		if stage.Rules == "" {
			return fmt.Errorf("pipeline[%d] (%s): rules file is required", i, stage.Stage)
		}
		if _, dup := seen[stage.Stage]; dup {
			return fmt.Errorf("pipeline: duplicate stage %q", stage.Stage)
		}
		seen[stage.Stage] = struct{}{}
	}
	return nil
}

// Threshold returns the parsed quarantine threshold. Validate guarantees it
// parses for a loaded config.
func (c *Config) Threshold() core.Severity {
	sev, _ := core.ParseSeverity(c.QuarantineThreshold)
	return sev
}

// RequirePipeline fails when no pipeline stages are configured. Commands
// that actually run records call this; trace and serve-only queries do not
// need a pipeline.
func (c *Config) RequirePipeline() error {
	if len(c.Pipeline) == 0 {
		return errors.New("no pipeline stages configured: add a pipeline section to sieve.yaml")
	}
	return nil
}
