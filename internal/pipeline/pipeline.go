package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/gitops"
	"github.com/compound-sh/compound/internal/loop"
	"github.com/compound-sh/compound/internal/ui"
)

// RecentWindowDays is the trailing window for the recently-completed
// exclusion list fed into analysis.
const RecentWindowDays = 7

// Pipeline sequences the stages: analyze, branch, materialize, loop,
// publish. Each stage's persisted output is the next stage's input; state is
// saved to disk after every step so an interrupted run can be inspected or
// resumed. Data flows forward only.
//
// One pipeline instance per working tree at a time. Nothing enforces this;
// the manifest and working tree are shared with the external agent and there
// is no locking.
type Pipeline struct {
	cfg        *config.Config
	agent      agent.Agent
	display    *ui.Display
	transcript io.Writer
}

// NewPipeline creates a pipeline instance.
func NewPipeline(cfg *config.Config, ag agent.Agent, display *ui.Display, transcript io.Writer) *Pipeline {
	return &Pipeline{cfg: cfg, agent: ag, display: display, transcript: transcript}
}

// RunOptions controls a pipeline run.
type RunOptions struct {
	Resume     bool   // Continue from the last saved state
	DryRun     bool   // Stop after analysis and print the decision
	SkipPR     bool   // Skip publication at the end
	ReportPath string // Specific report file (skips find-latest)
}

// HasState reports whether there is saved state to resume from.
func (p *Pipeline) HasState() bool {
	return p.loadState() != nil
}

// loadState reads persisted state. Returns nil when there is none or it is
// unreadable; a fresh run starts in that case.
func (p *Pipeline) loadState() *State {
	data, err := os.ReadFile(p.cfg.StatePath())
	if err != nil {
		return nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	return &state
}

// saveState persists state atomically: write to a temp file, then rename.
func (p *Pipeline) saveState(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	path := p.cfg.StatePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// clearState removes the state file once the run is done.
func (p *Pipeline) clearState() error {
	err := os.Remove(p.cfg.StatePath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Run executes the pipeline from the saved state or from the beginning.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) error {
	var state *State
	if opts.Resume {
		state = p.loadState()
		if state == nil {
			return fmt.Errorf("no saved state to resume from")
		}
		p.display.ShowInfo("   resuming from step: %s\n", state.Step)
	} else {
		state = &State{Step: StepAnalyze, StartedAt: time.Now()}
	}

	for {
		select {
		case <-ctx.Done():
			if err := p.saveState(state); err != nil {
				return fmt.Errorf("failed to save state on cancellation: %w", err)
			}
			return ctx.Err()
		default:
		}

		var err error
		switch state.Step {
		case StepAnalyze:
			err = p.runAnalyzeStep(ctx, state, opts)
			if err == nil && opts.DryRun {
				return nil
			}
		case StepBranch:
			err = p.runBranchStep(state)
		case StepMaterialize:
			err = p.runMaterializeStep(ctx, state)
		case StepLoop:
			err = p.runLoopStep(ctx, state)
		case StepPublish:
			err = p.runPublishStep(state, opts)
		case StepDone:
			if err := p.clearState(); err != nil {
				return fmt.Errorf("failed to clear state: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("unknown pipeline step: %s", state.Step)
		}

		if err != nil {
			if saveErr := p.saveState(state); saveErr != nil {
				return fmt.Errorf("step %s failed: %w (also failed to save state: %v)", state.Step, err, saveErr)
			}
			return fmt.Errorf("step %s failed: %w", state.Step, err)
		}

		if err := p.saveState(state); err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
	}
}

// runAnalyzeStep selects the report, derives the exclusion list and produces
// the run's decision.
func (p *Pipeline) runAnalyzeStep(ctx context.Context, state *State, opts RunOptions) error {
	p.display.ShowStep("analyze")

	reportPath := opts.ReportPath
	if reportPath == "" {
		var err error
		reportPath, err = FindLatestReport(p.cfg.ReportsDir)
		if err != nil {
			return err
		}
	}
	state.ReportPath = reportPath
	p.display.ShowInfo("   report: %s\n", filepath.Base(reportPath))

	recent, err := FindRecentlyCompleted(p.cfg.OutputDir, RecentWindowDays)
	if err != nil {
		return fmt.Errorf("failed to scan recently completed items: %w", err)
	}

	var decision *Decision
	if p.cfg.AnalyzeCommand != "" {
		decision, err = AnalyzeWithCommand(ctx, p.cfg.AnalyzeCommand, reportPath)
	} else {
		decision, err = Analyze(ctx, p.agent, reportPath, recent, p.transcript)
	}
	if err != nil {
		return err
	}

	state.Decision = decision
	state.BranchName = NormalizeBranch(decision.BranchName, p.cfg.BranchPrefix)

	p.display.ShowInfo("   priority: %s\n", decision.PriorityItem)
	p.display.ShowInfo("   branch:   %s\n", state.BranchName)
	p.display.ShowInfo("   tasks:    ~%d estimated\n", decision.EstimatedTasks)

	if opts.DryRun {
		data, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return err
		}
		p.display.ShowInfo("%s\n", string(data))
		p.display.ShowSuccess("dry run: stopping after analysis")
		return nil
	}

	state.Step = StepBranch
	return nil
}

// runBranchStep creates and checks out the work branch.
func (p *Pipeline) runBranchStep(state *State) error {
	p.display.ShowStep("branch")

	if state.BranchName == "" {
		return fmt.Errorf("no branch name set in state")
	}

	p.display.ShowInfo("   creating branch: %s\n", state.BranchName)
	if err := gitops.CreateBranch(state.BranchName); err != nil {
		return err
	}

	state.Step = StepMaterialize
	return nil
}

// runMaterializeStep produces the PRD and the task manifest.
func (p *Pipeline) runMaterializeStep(ctx context.Context, state *State) error {
	p.display.ShowStep("materialize")

	if state.Decision == nil {
		return fmt.Errorf("no decision in state")
	}

	prdPath, err := NewMaterializer(p.cfg, p.agent, p.transcript).Run(ctx, state.Decision, state.BranchName)
	if err != nil {
		return err
	}

	state.PRDPath = prdPath
	p.display.ShowInfo("   prd:      %s\n", prdPath)
	p.display.ShowInfo("   manifest: %s\n", p.cfg.ManifestPath())

	state.Step = StepLoop
	return nil
}

// runLoopStep drives the execution loop against the manifest.
func (p *Pipeline) runLoopStep(ctx context.Context, state *State) error {
	p.display.ShowStep("loop")

	ctrl := loop.New(loop.Config{
		MaxIterations: p.cfg.MaxIterations,
		ManifestPath:  p.cfg.ManifestPath(),
		ProgressPath:  p.cfg.ProgressPath(),
		Transcript:    p.transcript,
	}, p.agent, p.display)

	result, err := ctrl.Run(ctx)
	if err != nil {
		// Exhaustion leaves everything on disk; a later run may resume the
		// loop step directly.
		return err
	}

	p.display.ShowInfo("   complete after %d iteration(s)\n", result.Iterations)
	state.Step = StepPublish
	return nil
}

// runPublishStep commits, pushes and opens the pull request.
func (p *Pipeline) runPublishStep(state *State, opts RunOptions) error {
	p.display.ShowStep("publish")

	if opts.SkipPR {
		p.display.ShowInfo("   skipping publication (--skip-pr)\n")
		state.Step = StepDone
		return nil
	}

	url, err := Publish(p.cfg, state)
	if err != nil {
		return err
	}

	p.display.ShowSuccess(fmt.Sprintf("opened %s", url))
	state.Step = StepDone
	return nil
}
