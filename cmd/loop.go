package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/loop"
	"github.com/compound-sh/compound/internal/ui"

	// Register available backends
	_ "github.com/compound-sh/compound/internal/agent/claude"
	_ "github.com/compound-sh/compound/internal/agent/codex"
	_ "github.com/compound-sh/compound/internal/agent/pi"
	_ "github.com/compound-sh/compound/internal/agent/script"
)

var errNoSavedState = errors.New("no saved state to resume from")

var loopToolFlag string

var loopCmd = &cobra.Command{
	Use:   "loop [max_iterations]",
	Short: "Run only the execution loop against an existing task manifest",
	Long: `Run the bounded execution loop against an existing task manifest.

Each iteration invokes the agent with the operating prompt and scans the
output for the completion marker. The loop stops the moment a completion
claim survives the manifest cross-check, or when the iteration cap is
reached.

Exit code 0 means every task passed; exit code 1 means the cap was reached
with tasks still pending (all artifacts are left in place for inspection).

Examples:
  compound loop                # Up to 10 iterations with the configured tool
  compound loop 25             # Raise the iteration cap
  compound loop --tool codex   # Use a specific backend`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoopCmd,
}

func init() {
	loopCmd.Flags().StringVarP(&loopToolFlag, "tool", "t", "", "Agent backend (overrides config)")
	rootCmd.AddCommand(loopCmd)
}

func runLoopCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	// The bare loop entry point defaults to a tighter cap than the full
	// pipeline; an explicit argument wins over both.
	maxIterations := config.DefaultLoopIterations
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid max_iterations: %q", args[0])
		}
		maxIterations = n
	}

	tool := cfg.Tool
	if loopToolFlag != "" {
		tool = loopToolFlag
	}
	ag, err := agent.New(tool, agent.Config{Model: cfg.Model})
	if err != nil {
		return err
	}

	display := ui.NewDisplay(os.Stdout)
	display.ShowHeader("loop", fmt.Sprintf("up to %d iterations", maxIterations), ag.Name())

	ctrl := loop.New(loop.Config{
		MaxIterations: maxIterations,
		ManifestPath:  cfg.ManifestPath(),
		ProgressPath:  cfg.ProgressPath(),
	}, ag, display)

	_, err = ctrl.Run(ctx)
	return err
}
