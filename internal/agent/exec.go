package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Exec runs a backend command built by build and captures its output.
// The command is bounded by timeout (DefaultTimeout when zero); on expiry
// the whole process group is killed so descendants cannot keep the output
// pipes open. Non-zero exit and deadline expiry both produce OK=false
// results, never an error escaping to the caller.
func Exec(ctx context.Context, timeout time.Duration, build func(context.Context) *exec.Cmd) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := build(ctx)
	setupProcessCleanup(cmd)

	var stdout, stderr bytes.Buffer
	if cmd.Stdout == nil {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{
				Output:   output,
				Duration: duration,
				Err:      fmt.Errorf("invocation timed out after %s", timeout),
			}
		}
		return Result{
			Output:   output,
			Duration: duration,
			Err:      fmt.Errorf("invocation failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String())),
		}
	}

	return Result{Output: output, OK: true, Duration: duration}
}
