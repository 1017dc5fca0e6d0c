package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/pipeline"

	// Register available backends
	_ "github.com/compound-sh/compound/internal/agent/claude"
	_ "github.com/compound-sh/compound/internal/agent/codex"
	_ "github.com/compound-sh/compound/internal/agent/pi"
	_ "github.com/compound-sh/compound/internal/agent/script"
)

var analyzeToolFlag string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [report-path]",
	Short: "Analyze a report and print the priority decision as JSON",
	Long: `Analyze a report to identify the single highest priority item.

By default the most recently modified file in the configured reports
directory is analyzed. A specific report file can be given as an argument.

The decision is printed as JSON on stdout:

  {
    "priorityItem": "...",
    "description": "...",
    "rationale": "...",
    "acceptanceCriteria": ["..."],
    "estimatedTasks": 4,
    "branchName": "compound/..."
  }

Examples:
  compound analyze                   # Analyze the latest report
  compound analyze reports/w34.md    # Analyze a specific file
  compound analyze --tool codex      # Use a specific backend`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyzeCmd,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeToolFlag, "tool", "t", "", "Agent backend (overrides config)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	var reportPath string
	if len(args) > 0 {
		reportPath = args[0]
		if _, err := os.Stat(reportPath); err != nil {
			return fmt.Errorf("report file not found: %s", reportPath)
		}
	} else {
		reportPath, err = pipeline.FindLatestReport(cfg.ReportsDir)
		if err != nil {
			return err
		}
	}

	var decision *pipeline.Decision
	if cfg.AnalyzeCommand != "" {
		decision, err = pipeline.AnalyzeWithCommand(ctx, cfg.AnalyzeCommand, reportPath)
	} else {
		tool := cfg.Tool
		if analyzeToolFlag != "" {
			tool = analyzeToolFlag
		}
		var ag agent.Agent
		ag, err = agent.New(tool, agent.Config{Model: cfg.Model, Command: cfg.AnalyzeCommand})
		if err != nil {
			return err
		}

		var recent []pipeline.CompletedItem
		recent, err = pipeline.FindRecentlyCompleted(cfg.OutputDir, pipeline.RecentWindowDays)
		if err != nil {
			return err
		}
		decision, err = pipeline.Analyze(ctx, ag, reportPath, recent, nil)
	}
	if err != nil {
		return err
	}

	decision.BranchName = pipeline.NormalizeBranch(decision.BranchName, cfg.BranchPrefix)

	data, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
