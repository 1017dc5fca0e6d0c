package pi

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/compound-sh/compound/internal/agent"
)

func init() {
	agent.Register("pi", func(cfg agent.Config) agent.Agent {
		return New(cfg)
	})
}

// Backend executes prompts using the pi CLI. The prompt is piped via stdin,
// not as a CLI argument, to avoid OS argument length limits and pi's silent
// truncation of long args.
type Backend struct {
	Model   string
	Timeout time.Duration
}

// New creates a new pi backend.
func New(cfg agent.Config) *Backend {
	return &Backend{
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "pi"
}

// BuildArgs returns the CLI arguments for execution. The prompt itself is
// not among them; it arrives on stdin.
func (b *Backend) BuildArgs() []string {
	args := []string{
		"-p",
		"--no-session",
	}
	if b.Model != "" {
		args = append(args, "--model", b.Model)
	}
	return args
}

// Invoke runs the prompt and captures the textual output.
func (b *Backend) Invoke(ctx context.Context, prompt string, transcript io.Writer) agent.Result {
	res := agent.Exec(ctx, b.Timeout, func(ctx context.Context) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "pi", b.BuildArgs()...)
		cmd.Stdin = strings.NewReader(prompt)
		return cmd
	})
	agent.WriteTranscript(transcript, b.Name(), prompt, res)
	return res
}
