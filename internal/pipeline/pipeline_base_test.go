package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/config"
)

// fakeAgent is a scripted backend for tests. Each Invoke consumes the next
// result; onInvoke, when set, runs first and can produce side effects such
// as writing artifacts.
type fakeAgent struct {
	results  []agent.Result
	onInvoke func(call int, prompt string)
	calls    int
	prompts  []string
}

func (f *fakeAgent) Name() string { return "fake" }

func (f *fakeAgent) Invoke(ctx context.Context, prompt string, transcript io.Writer) agent.Result {
	call := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)

	if f.onInvoke != nil {
		f.onInvoke(call, prompt)
	}

	if call < len(f.results) {
		res := f.results[call]
		agent.WriteTranscript(transcript, f.Name(), prompt, res)
		return res
	}
	return agent.Result{Output: "", OK: true}
}

func okResult(output string) agent.Result {
	return agent.Result{Output: output, OK: true}
}

// testConfig returns a resolved config rooted in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load(): %v", err)
	}
	for _, d := range []string{cfg.ReportsDir, cfg.OutputDir, cfg.TasksDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
