package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sieveworks/sieve/internal/cli/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a new sieve project",
		Long: `Create sieve.yaml, an example rules file and a sample record batch in
the given directory (default: current directory). Existing files are left
untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir)
		},
	}
}

// scaffoldConfig is the sieve.yaml shape written by init.
type scaffoldConfig struct {
	Environment         string               `yaml:"environment"`
	StatePath           string               `yaml:"state_path"`
	RulesDir            string               `yaml:"rules_dir"`
	SinkPath            string               `yaml:"sink_path"`
	QuarantineThreshold string               `yaml:"quarantine_threshold"`
	Pipeline            []config.StageConfig `yaml:"pipeline"`
}

const scaffoldRules = `stage: pos_transactions
schema: [amount, store_id, quantity]
rules:
  - name: amount_positive
    description: Transaction amount must be positive
    severity: critical
    field: amount
    op: gt
    value: 0
  - name: store_id_known
    description: Store must be in the registered fleet
    severity: high
    field: store_id
    op: in_set
    values: [S1, S2, S3]
  - name: quantity_present
    description: Line quantity should be recorded
    severity: low
    field: quantity
    op: not_null
`

const scaffoldRecords = `{"id": "TXN_1001", "amount": 120.5, "store_id": "S1", "quantity": 2}
{"id": "TXN_1002", "amount": 34.9, "store_id": "S2", "quantity": 1}
{"id": "TXN_LOST", "amount": -500, "store_id": "S1", "quantity": 1}
{"id": "TXN_1003", "amount": 18.0, "store_id": "S9", "quantity": 3}
`

func runInit(cmd *cobra.Command, dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "rules"), 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	cfgYAML, err := yaml.Marshal(scaffoldConfig{
		Environment:         config.DefaultEnv,
		StatePath:           config.DefaultStateFile,
		RulesDir:            config.DefaultRulesDir,
		SinkPath:            config.DefaultSinkFile,
		QuarantineThreshold: config.DefaultThreshold,
		Pipeline: []config.StageConfig{
			{Stage: "pos_transactions", Rules: "pos_transactions.yaml"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	files := []struct {
		path    string
		content []byte
	}{
		{filepath.Join(dir, "sieve.yaml"), cfgYAML},
		{filepath.Join(dir, "rules", "pos_transactions.yaml"), []byte(scaffoldRules)},
		{filepath.Join(dir, "records.jsonl"), []byte(scaffoldRecords)},
	}

	out := cmd.OutOrStdout()
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(out, "Skipped %s (already exists)\n", f.path)
			continue
		}
		if err := os.WriteFile(f.path, f.content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Fprintf(out, "Created %s\n", f.path)
	}

	fmt.Fprintln(out, "\nNext: sieve run records.jsonl && sieve trace TXN_LOST")
	return nil
}
