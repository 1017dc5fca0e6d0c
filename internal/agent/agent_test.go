package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"
)

type stubAgent struct{ name string }

func (s *stubAgent) Name() string { return s.name }
func (s *stubAgent) Invoke(ctx context.Context, prompt string, transcript io.Writer) Result {
	return Result{Output: "stub", OK: true}
}

func TestRegistry(t *testing.T) {
	Register("stub-test", func(cfg Config) Agent {
		return &stubAgent{name: "stub-test"}
	})

	ag, err := New("stub-test", Config{})
	if err != nil {
		t.Fatalf("New(stub-test): %v", err)
	}
	if ag.Name() != "stub-test" {
		t.Errorf("Name() = %q, want stub-test", ag.Name())
	}

	// Lookup is case-insensitive.
	if _, err := New("STUB-Test", Config{}); err != nil {
		t.Errorf("New(STUB-Test): %v", err)
	}
}

func TestNewUnknownTool(t *testing.T) {
	_, err := New("no-such-tool", Config{})
	if err == nil {
		t.Fatal("New() expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("error = %v, want mention of unknown tool", err)
	}
}

func TestExecCapturesOutput(t *testing.T) {
	res := Exec(context.Background(), 0, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo hello")
	})

	if !res.OK {
		t.Fatalf("Exec() OK = false, err = %v", res.Err)
	}
	if strings.TrimSpace(res.Output) != "hello" {
		t.Errorf("Output = %q, want hello", res.Output)
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", res.Duration)
	}
}

func TestExecNonZeroExit(t *testing.T) {
	res := Exec(context.Background(), 0, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo partial; echo oops >&2; exit 3")
	})

	if res.OK {
		t.Fatal("Exec() OK = true for non-zero exit")
	}
	if res.Err == nil {
		t.Fatal("Exec() Err = nil for non-zero exit")
	}
	if !strings.Contains(res.Err.Error(), "oops") {
		t.Errorf("Err = %v, want stderr included", res.Err)
	}
	// Output produced before the failure is still captured.
	if !strings.Contains(res.Output, "partial") {
		t.Errorf("Output = %q, want partial output preserved", res.Output)
	}
}

func TestExecTimeout(t *testing.T) {
	res := Exec(context.Background(), 50*time.Millisecond, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "sleep 5")
	})

	if res.OK {
		t.Fatal("Exec() OK = true for timed-out command")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "timed out") {
		t.Errorf("Err = %v, want timeout error", res.Err)
	}
}

func TestExecTimeoutKillsProcessGroup(t *testing.T) {
	// The shell spawns a background child that inherits the stdout pipe.
	// Killing only the shell would leave that child holding the pipe and
	// block Run until it exits on its own.
	start := time.Now()
	res := Exec(context.Background(), 200*time.Millisecond, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "sleep 10 & sleep 10")
	})
	elapsed := time.Since(start)

	if res.OK {
		t.Fatal("Exec() OK = true for timed-out command")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "timed out") {
		t.Errorf("Err = %v, want timeout error", res.Err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("Exec returned after %v; a descendant held the invocation past its deadline", elapsed)
	}
}

func TestWriteTranscript(t *testing.T) {
	var buf bytes.Buffer
	res := Result{Output: "some output", OK: true, Duration: 125 * time.Millisecond}

	WriteTranscript(&buf, "claude", "the prompt", res)

	got := buf.String()
	for _, want := range []string{"claude", "the prompt", "some output", "ok=true"} {
		if !strings.Contains(got, want) {
			t.Errorf("transcript missing %q:\n%s", want, got)
		}
	}
}

func TestWriteTranscriptNilAndFailing(t *testing.T) {
	// A nil sink is a no-op.
	WriteTranscript(nil, "claude", "p", Result{})

	// A failing sink must not panic or affect anything.
	WriteTranscript(failWriter{}, "claude", "p", Result{Err: errors.New("x")})
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("sink closed") }
