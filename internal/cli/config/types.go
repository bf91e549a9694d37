// Package config provides configuration management for the sieve CLI.
//
// Configuration is layered: defaults, then sieve.yaml, then SIEVE_*
// environment variables, then command-line flags, each overriding the
// previous layer.
package config

// Config holds all CLI configuration options.
type Config struct {
	StatePath           string        `koanf:"state_path"`
	RulesDir            string        `koanf:"rules_dir"`
	SinkPath            string        `koanf:"sink_path"`
	Environment         string        `koanf:"environment"`
	QuarantineThreshold string        `koanf:"quarantine_threshold"`
	Workers             int           `koanf:"workers"`
	HTTPPort            int           `koanf:"http_port"`
	Verbose             bool          `koanf:"verbose"`
	Pipeline            []StageConfig `koanf:"pipeline"`
}

// StageConfig names one pipeline stage and its rules file. Stages run in
// the order they are listed.
type StageConfig struct {
	Stage string `koanf:"stage"`
	Rules string `koanf:"rules"`
}

// Default configuration values.
const (
	DefaultStateFile = ".sieve/state.db"
	DefaultRulesDir  = "rules"
	DefaultSinkFile  = "quarantine.jsonl"
	DefaultEnv       = "dev"
	DefaultThreshold = "high"
	DefaultHTTPPort  = 8787
)
