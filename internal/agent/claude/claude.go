package claude

import (
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/compound-sh/compound/internal/agent"
)

func init() {
	agent.Register("claude", func(cfg agent.Config) agent.Agent {
		return New(cfg)
	})
}

// Backend executes prompts using the Claude Code CLI. The prompt is passed
// as a trailing CLI argument.
type Backend struct {
	Model   string
	Timeout time.Duration
}

// New creates a new Claude backend.
func New(cfg agent.Config) *Backend {
	return &Backend{
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "claude"
}

// BuildArgs returns the CLI arguments for execution.
func (b *Backend) BuildArgs(prompt string) []string {
	args := []string{
		"-p",
		"--dangerously-skip-permissions",
		"--output-format", "text",
	}
	if b.Model != "" {
		args = append(args, "--model", b.Model)
	}
	return append(args, prompt)
}

// Invoke runs the prompt and captures the textual output.
func (b *Backend) Invoke(ctx context.Context, prompt string, transcript io.Writer) agent.Result {
	res := agent.Exec(ctx, b.Timeout, func(ctx context.Context) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "claude", b.BuildArgs(prompt)...)
		// No controlling terminal: keeps the CLI from printing interactive
		// hints that would pollute the captured output.
		cmd.Stdin = nil
		return cmd
	})
	agent.WriteTranscript(transcript, b.Name(), prompt, res)
	return res
}
