package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sieveworks/sieve/internal/cli/config"
	"github.com/sieveworks/sieve/internal/engine"
	"github.com/sieveworks/sieve/internal/source"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <records.jsonl>",
		Short: "Run the quality pipeline over a record batch",
		Long: `Read a JSONL record file, push every record through the configured
pipeline stages, quarantine violations at or above the severity threshold,
and persist outcomes and lineage to the state database.`,
		Example: `  # Run the pipeline over a batch
  sieve run records.jsonl

  # Stricter gate for this run only
  sieve run records.jsonl --threshold critical`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0])
		},
	}
}

func runRun(cmd *cobra.Command, recordsPath string) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	if err := cfg.RequirePipeline(); err != nil {
		return err
	}

	records, err := source.NewFileReader(recordsPath).Read()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s contains no records", recordsPath)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := buildPipeline(cfg, logger, store)
	if err != nil {
		return err
	}

	start := time.Now()
	result, runErr := pipeline.Run(cmd.Context(), records)
	if runErr != nil {
		if result != nil && result.Run != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s\n", result.Run.ID, result.Run.Status)
		}
		return fmt.Errorf("run failed: %w", runErr)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", result.Run.ID, result.Run.Status)
	renderStageTable(out, result)

	if len(result.Quarantined) > 0 {
		fmt.Fprintf(out, "\nQuarantined records (written to %s):\n", cfg.SinkPath)
		renderQuarantineTable(out, result)
	}

	fmt.Fprintf(out, "\n%d delivered, %d quarantined in %s\n",
		len(result.Delivered), len(result.Quarantined), time.Since(start).Round(time.Millisecond))
	return nil
}

func renderStageTable(w io.Writer, result *engine.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Records", "Passed", "Quarantined"})
	for _, sr := range result.Stages {
		t.AppendRow(table.Row{sr.Stage, sr.Records, sr.Passed, sr.Quarantined})
	}
	t.Render()
}

func renderQuarantineTable(w io.Writer, result *engine.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Record", "Stage", "Rule", "Severity", "Reason"})
	for _, q := range result.Quarantined {
		for _, f := range q.FailedRules {
			t.AppendRow(table.Row{q.Record.ID, q.Stage, f.Name, f.Severity, f.Reason})
		}
	}
	t.Render()
}
