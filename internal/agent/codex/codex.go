package codex

import (
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/compound-sh/compound/internal/agent"
)

func init() {
	agent.Register("codex", func(cfg agent.Config) agent.Agent {
		return New(cfg)
	})
}

// Backend executes prompts using the OpenAI Codex CLI. Codex takes a
// structured run command: an `exec` subcommand with the prompt as the final
// argument.
type Backend struct {
	Model   string
	Timeout time.Duration
}

// New creates a new Codex backend.
func New(cfg agent.Config) *Backend {
	return &Backend{
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "codex"
}

// BuildArgs returns the CLI arguments for execution.
func (b *Backend) BuildArgs(prompt string) []string {
	args := []string{
		"exec",
		"--dangerously-bypass-approvals-and-sandbox",
	}
	if b.Model != "" {
		args = append(args, "--model", b.Model)
	}
	return append(args, prompt)
}

// Invoke runs the prompt and captures the textual output.
func (b *Backend) Invoke(ctx context.Context, prompt string, transcript io.Writer) agent.Result {
	res := agent.Exec(ctx, b.Timeout, func(ctx context.Context) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "codex", b.BuildArgs(prompt)...)
		// Detach from the controlling TTY so the CLI skips its interactive
		// hints and emits clean output.
		cmd.Stdin = nil
		cmd.SysProcAttr = newSysProcAttr()
		return cmd
	})
	agent.WriteTranscript(transcript, b.Name(), prompt, res)
	return res
}
