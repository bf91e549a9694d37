package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewRulesCommand creates the rules command and its check subcommand.
func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List compiled rules per pipeline stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRulesList(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Compile all rule files and report errors without running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRulesCheck(cmd)
		},
	})

	return cmd
}

func runRulesList(cmd *cobra.Command) error {
	cfg := getConfig()
	if err := cfg.RequirePipeline(); err != nil {
		return err
	}

	stages, err := loadStages(cfg)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Rule", "Severity", "Fields", "Description"})
	total := 0
	for _, set := range stages {
		for _, r := range set.Rules() {
			t.AppendRow(table.Row{set.Stage(), r.Name, r.Severity, strings.Join(r.Fields, ", "), r.Description})
			total++
		}
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d rules across %d stages\n", total, len(stages))
	return nil
}

func runRulesCheck(cmd *cobra.Command) error {
	cfg := getConfig()
	if err := cfg.RequirePipeline(); err != nil {
		return err
	}

	stages, err := loadStages(cfg)
	if err != nil {
		return fmt.Errorf("rule compilation failed:\n%w", err)
	}

	total := 0
	for _, set := range stages {
		total += set.Len()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d rules across %d stages compile\n", total, len(stages))
	return nil
}
