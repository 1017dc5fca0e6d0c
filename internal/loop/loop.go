package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/manifest"
	"github.com/compound-sh/compound/internal/template"
	"github.com/compound-sh/compound/internal/ui"
)

// ErrIterationExhausted is returned when the iteration cap is reached
// without an accepted completion marker. Artifacts are left in place for
// inspection or resumption.
var ErrIterationExhausted = errors.New("iteration cap reached without completion")

// State is the controller's terminal state machine.
type State string

const (
	StateRunning   State = "running"
	StateComplete  State = "complete"
	StateExhausted State = "exhausted"
)

// defaultDelay is the pause between iterations. It keeps the controller from
// hammering the backend and lets background file writes settle.
const defaultDelay = 2 * time.Second

// Config holds loop configuration.
type Config struct {
	MaxIterations int           // Iteration cap; must be positive
	ManifestPath  string        // Active task manifest
	ProgressPath  string        // Append-only run log
	Prompt        string        // Operating prompt; empty means the embedded default rendered for ManifestPath
	Delay         time.Duration // Between iterations; zero means defaultDelay
	Transcript    io.Writer     // Optional audit sink for agent exchanges
}

// Result is the outcome of a loop run.
type Result struct {
	Iterations int   // Iterations actually performed
	State      State // Terminal state
}

// Controller drives the bounded execution loop: invoke the agent with a
// fixed operating prompt, scan the output for the completion marker, stop at
// the cap. It reads the manifest but never writes it; the external agent
// owns task status.
type Controller struct {
	cfg     Config
	agent   agent.Agent
	display *ui.Display
}

// New creates a loop controller.
func New(cfg Config, ag agent.Agent, display *ui.Display) *Controller {
	if cfg.Prompt == "" {
		cfg.Prompt = template.Prompt(cfg.ManifestPath)
	}
	if cfg.Delay <= 0 {
		cfg.Delay = defaultDelay
	}
	return &Controller{cfg: cfg, agent: ag, display: display}
}

// Run executes iterations until the completion marker is accepted or the
// cap is reached. A failed invocation counts as a no-progress iteration; the
// loop continues. Only exhaustion is an error.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if c.cfg.MaxIterations <= 0 {
		return Result{State: StateRunning}, fmt.Errorf("maxIterations must be positive, got %d", c.cfg.MaxIterations)
	}
	if _, err := os.Stat(c.cfg.ManifestPath); err != nil {
		return Result{State: StateRunning}, fmt.Errorf("no task manifest at %s: %w", c.cfg.ManifestPath, err)
	}

	for i := 1; i <= c.cfg.MaxIterations; i++ {
		c.display.ShowIteration(i, c.cfg.MaxIterations)

		res := c.agent.Invoke(ctx, c.cfg.Prompt, c.cfg.Transcript)
		if ctx.Err() != nil {
			return Result{Iterations: i, State: StateRunning}, ctx.Err()
		}

		if !res.OK {
			// No usable output this round; the loop absorbs the failure and
			// spends an iteration on it.
			log.Warn().Err(res.Err).Int("iteration", i).Msg("agent invocation failed")
			c.display.ShowWarning(fmt.Sprintf("iteration %d produced no usable output", i))
		} else if c.accepted(res.Output, i) {
			c.display.ShowIterationDone(i, res.Duration)
			c.display.ShowSuccess("all tasks complete")
			c.logRun(StateComplete, i)
			return Result{Iterations: i, State: StateComplete}, nil
		} else {
			c.display.ShowIterationDone(i, res.Duration)
		}

		if i == c.cfg.MaxIterations {
			break
		}

		select {
		case <-ctx.Done():
			return Result{Iterations: i, State: StateRunning}, ctx.Err()
		case <-time.After(c.cfg.Delay):
		}
	}

	c.display.ShowError(fmt.Sprintf("no completion after %d iterations", c.cfg.MaxIterations))
	c.logRun(StateExhausted, c.cfg.MaxIterations)
	return Result{Iterations: c.cfg.MaxIterations, State: StateExhausted}, ErrIterationExhausted
}

// accepted reports whether output carries a completion claim that survives
// the manifest cross-check. The agent's own marker is not trusted blindly:
// if the manifest still lists a pending task, the claim is rejected and the
// loop keeps going. A manifest that cannot be read leaves the marker as the
// only signal available.
func (c *Controller) accepted(output string, iteration int) bool {
	if !strings.Contains(output, template.CompletionMarker) {
		return false
	}

	m, err := manifest.Load(c.cfg.ManifestPath)
	if err != nil {
		log.Warn().Err(err).Msg("cannot verify completion against manifest; accepting marker")
		return true
	}

	if pending := m.Pending(); pending != nil {
		log.Warn().
			Int("iteration", iteration).
			Str("task", pending.ID).
			Msg("agent signaled completion but manifest has pending tasks; rejecting")
		c.display.ShowWarning(fmt.Sprintf("completion claimed but %s is still pending", pending.ID))
		return false
	}
	return true
}

// logRun appends this run's entry to the progress log. The log is
// append-only and never truncated; one entry per run.
func (c *Controller) logRun(state State, iterations int) {
	if c.cfg.ProgressPath == "" {
		return
	}

	branch := "unknown"
	if m, err := manifest.Load(c.cfg.ManifestPath); err == nil {
		branch = m.BranchName
	}

	entry := fmt.Sprintf("%s branch=%s state=%s iterations=%d/%d\n",
		time.Now().Format(time.RFC3339), branch, state, iterations, c.cfg.MaxIterations)

	f, err := os.OpenFile(c.cfg.ProgressPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open progress log")
		return
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		log.Warn().Err(err).Msg("failed to append progress entry")
	}
}
