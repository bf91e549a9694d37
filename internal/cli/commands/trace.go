package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sieveworks/sieve/internal/cli/config"
	"github.com/sieveworks/sieve/internal/lineage"
	"github.com/sieveworks/sieve/pkg/core"
)

// NewTraceCommand creates the trace command.
func NewTraceCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "trace <record-id>",
		Short: "Show the provenance trail for a record",
		Long: `Print every stage a record passed through, the verdict at each step,
and for quarantined records the rule and reason that stopped them.`,
		Example: `  sieve trace TXN_1023

  # Fail when the record has no history
  sieve trace TXN_1023 --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, args[0], strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat a record without history as an error")
	return cmd
}

func runTrace(cmd *cobra.Command, recordID string, strict bool) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	tracer := lineage.NewTracer(store)

	if strict {
		result, err := tracer.MustTrace(recordID)
		if err != nil {
			return err
		}
		renderTrace(cmd, result)
		return nil
	}

	result, err := tracer.Trace(recordID)
	if err != nil {
		return err
	}
	if !result.Found {
		fmt.Fprintf(cmd.OutOrStdout(), "No history for record %s\n", recordID)
		return nil
	}
	renderTrace(cmd, result)
	return nil
}

func renderTrace(cmd *cobra.Command, result core.TraceResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Record %s: %s\n", result.RecordID, result.FinalVerdict)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Time", "Stage", "Verdict", "Rule", "Reason"})
	for _, s := range result.Steps {
		t.AppendRow(table.Row{
			s.Timestamp.UTC().Format(time.RFC3339),
			s.Stage,
			s.Verdict,
			s.RuleName,
			s.Reason,
		})
	}
	t.Render()
}
