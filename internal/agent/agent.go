package agent

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// DefaultTimeout bounds a single backend invocation when the configuration
// sets no timeout of its own.
const DefaultTimeout = 30 * time.Minute

// Config carries backend settings resolved from configuration.
type Config struct {
	Model   string        // Backend-specific model identifier (optional)
	Command string        // External command, used only by the script backend
	Timeout time.Duration // Zero means DefaultTimeout
}

// Result is the outcome of a single invocation. A backend that exits
// non-zero or times out reports OK=false; it never panics. Callers treat
// OK=false as "no usable output".
type Result struct {
	Output   string        // Captured text output
	OK       bool          // Whether the backend exited cleanly
	Duration time.Duration // Wall time of the invocation
	Err      error         // Cause when OK is false
}

// Agent is a uniform interface over interchangeable coding-agent backends.
// Prompt delivery (inline argument, stdin, file path) is a backend detail;
// callers pass only the logical prompt string.
//
// transcript, when non-nil, receives an audit copy of the exchange. Writes
// to it are best-effort and never affect the returned Result.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, prompt string, transcript io.Writer) Result
}

// constructors maps backend names to their constructors.
// Backends register themselves via Register in their init functions.
var constructors = make(map[string]func(Config) Agent)

// Register registers a backend constructor by name.
func Register(name string, fn func(Config) Agent) {
	constructors[strings.ToLower(name)] = fn
}

// New creates a backend by name.
func New(name string, cfg Config) (Agent, error) {
	fn, ok := constructors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s (supported: %s)", name, strings.Join(Available(), ", "))
	}
	return fn(cfg), nil
}

// Available returns the registered backend names, sorted.
func Available() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTranscript appends an exchange to the audit sink. Failures are
// swallowed; the transcript must not block the invocation result.
func WriteTranscript(w io.Writer, tool, prompt string, res Result) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "=== %s invocation (%s, ok=%t) ===\n", tool, res.Duration.Round(time.Millisecond), res.OK)
	fmt.Fprintf(w, "--- prompt ---\n%s\n--- output ---\n%s\n", prompt, res.Output)
	if res.Err != nil {
		fmt.Fprintf(w, "--- error ---\n%v\n", res.Err)
	}
}
