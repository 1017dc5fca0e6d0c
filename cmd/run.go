package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/pipeline"
	"github.com/compound-sh/compound/internal/template"
	"github.com/compound-sh/compound/internal/ui"

	// Register available backends
	_ "github.com/compound-sh/compound/internal/agent/claude"
	_ "github.com/compound-sh/compound/internal/agent/codex"
	_ "github.com/compound-sh/compound/internal/agent/pi"
	_ "github.com/compound-sh/compound/internal/agent/script"
)

var (
	runDryRunFlag bool
	runResumeFlag bool
	runSkipPRFlag bool
	runReportFlag string
	runToolFlag   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline",
	Long: `Execute the complete pipeline against the latest report.

Steps:
  1. analyze      - Pick the highest priority item from the latest report
  2. branch       - Create and check out a work branch
  3. materialize  - Generate the PRD and the task manifest
  4. loop         - Drive the agent until every task passes or the cap is hit
  5. publish      - Commit, push and open a draft pull request

State is saved after each step. An interrupted run continues with --resume.

Examples:
  compound run                      # Full pipeline with the latest report
  compound run --report w34.md      # Use a specific report file
  compound run --dry-run            # Stop after analysis, print the decision
  compound run --resume             # Continue from the last saved state
  compound run --skip-pr            # Skip publication at the end`,
	RunE: runRunCmd,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRunFlag, "dry-run", false, "Stop after analysis and print the decision")
	runCmd.Flags().BoolVar(&runResumeFlag, "resume", false, "Continue from the last saved state")
	runCmd.Flags().BoolVar(&runSkipPRFlag, "skip-pr", false, "Skip publication at the end")
	runCmd.Flags().StringVar(&runReportFlag, "report", "", "Specific report file (skips find-latest)")
	runCmd.Flags().StringVarP(&runToolFlag, "tool", "t", "", "Agent backend (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	tool := cfg.Tool
	if runToolFlag != "" {
		tool = runToolFlag
	}
	ag, err := agent.New(tool, agent.Config{Model: cfg.Model, Command: cfg.AnalyzeCommand})
	if err != nil {
		return err
	}

	display := ui.NewDisplay(os.Stdout)
	display.ShowHeader("run", "pipeline", ag.Name())

	transcript, closeTranscript := openTranscript(cfg)
	defer closeTranscript()

	p := pipeline.NewPipeline(cfg, ag, display, transcript)

	if runResumeFlag {
		if !p.HasState() {
			return errNoSavedState
		}
	} else if p.HasState() {
		display.ShowWarning("previous state exists; use --resume to continue, or delete " + cfg.StatePath() + " to start fresh")
	}

	opts := pipeline.RunOptions{
		Resume:     runResumeFlag,
		DryRun:     runDryRunFlag,
		SkipPR:     runSkipPRFlag,
		ReportPath: runReportFlag,
	}

	if err := p.Run(ctx, opts); err != nil {
		return err
	}

	if !runDryRunFlag {
		display.ShowSuccess("pipeline complete")
	}
	return nil
}

// openTranscript opens the agent exchange audit log under the output
// directory. The transcript is best-effort: if it cannot be opened the run
// proceeds without one.
func openTranscript(cfg *config.Config) (io.Writer, func()) {
	path := filepath.Join(cfg.OutputDir, template.TranscriptFile)
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Warn().Err(err).Msg("transcript disabled")
		return nil, func() {}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warn().Err(err).Msg("transcript disabled")
		return nil, func() {}
	}
	return f, func() { f.Close() }
}
