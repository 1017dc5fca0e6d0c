package script

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/compound-sh/compound/internal/agent"
)

var errEmptyCommand = errors.New("script backend requires a command")

func init() {
	agent.Register("script", func(cfg agent.Config) agent.Agent {
		return New(cfg)
	})
}

// Backend delegates to a user-supplied command, typically set through the
// analyzeCommand config key. The prompt is written to a temporary file and
// the file path is appended to the command's arguments; the command's
// stdout is the captured output.
type Backend struct {
	Command string
	Timeout time.Duration
}

// New creates a new script backend.
func New(cfg agent.Config) *Backend {
	return &Backend{
		Command: cfg.Command,
		Timeout: cfg.Timeout,
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "script"
}

// Invoke writes the prompt to a temp file and runs the configured command
// with the file path as its final argument.
func (b *Backend) Invoke(ctx context.Context, prompt string, transcript io.Writer) agent.Result {
	fields := strings.Fields(b.Command)
	if len(fields) == 0 {
		res := agent.Result{Err: errEmptyCommand}
		agent.WriteTranscript(transcript, b.Name(), prompt, res)
		return res
	}

	tmp, err := os.CreateTemp("", "compound-prompt-*.md")
	if err != nil {
		res := agent.Result{Err: err}
		agent.WriteTranscript(transcript, b.Name(), prompt, res)
		return res
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(prompt); err != nil {
		tmp.Close()
		res := agent.Result{Err: err}
		agent.WriteTranscript(transcript, b.Name(), prompt, res)
		return res
	}
	tmp.Close()

	args := append(fields[1:], tmp.Name())
	res := agent.Exec(ctx, b.Timeout, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, fields[0], args...)
	})
	agent.WriteTranscript(transcript, b.Name(), prompt, res)
	return res
}
