package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/ui"
)

func TestStateSaveLoadRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(cfg, &fakeAgent{}, ui.NewDisplay(bytes.NewBuffer(nil)), nil)

	if p.HasState() {
		t.Fatal("HasState() = true before any save")
	}

	state := &State{
		Step:       StepLoop,
		BranchName: "compound/fix-report-dates",
		ReportPath: "/reports/latest.md",
		PRDPath:    "/tasks/prd-fix-report-dates.md",
		StartedAt:  time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
		Decision:   testDecision(),
	}
	if err := p.saveState(state); err != nil {
		t.Fatalf("saveState(): %v", err)
	}

	if !p.HasState() {
		t.Error("HasState() = false after save")
	}

	got := p.loadState()
	if got == nil {
		t.Fatal("loadState() = nil after save")
	}
	if got.Step != StepLoop {
		t.Errorf("Step = %q, want %q", got.Step, StepLoop)
	}
	if got.BranchName != state.BranchName {
		t.Errorf("BranchName = %q", got.BranchName)
	}
	if got.Decision == nil || got.Decision.PriorityItem != "Fix report date parsing" {
		t.Errorf("Decision = %+v", got.Decision)
	}

	if err := p.clearState(); err != nil {
		t.Fatalf("clearState(): %v", err)
	}
	if p.HasState() {
		t.Error("HasState() = true after clear")
	}
	// Clearing twice is fine.
	if err := p.clearState(); err != nil {
		t.Errorf("second clearState(): %v", err)
	}
}

func TestLoadStateCorrupt(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.StatePath(), "{broken")

	p := NewPipeline(cfg, &fakeAgent{}, ui.NewDisplay(bytes.NewBuffer(nil)), nil)
	if p.loadState() != nil {
		t.Error("loadState() != nil for corrupt state file")
	}
}

func TestRunResumeWithoutState(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(cfg, &fakeAgent{}, ui.NewDisplay(bytes.NewBuffer(nil)), nil)

	err := p.Run(context.Background(), RunOptions{Resume: true})
	if err == nil {
		t.Fatal("Run() expected error when resuming without state")
	}
	if !strings.Contains(err.Error(), "no saved state") {
		t.Errorf("error = %v", err)
	}
}

func TestRunUnknownStep(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.StatePath(), `{"step":"teleport"}`)

	p := NewPipeline(cfg, &fakeAgent{}, ui.NewDisplay(bytes.NewBuffer(nil)), nil)
	err := p.Run(context.Background(), RunOptions{Resume: true})
	if err == nil || !strings.Contains(err.Error(), "unknown pipeline step") {
		t.Errorf("error = %v, want unknown step", err)
	}
}

func TestRunDryRunStopsAfterAnalysis(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.ReportsDir, "report.md"), "## Report\n\nDates are broken.\n")

	ag := &fakeAgent{results: []agent.Result{okResult(decisionJSON)}}
	var out bytes.Buffer
	p := NewPipeline(cfg, ag, ui.NewDisplay(&out), nil)

	if err := p.Run(context.Background(), RunOptions{DryRun: true}); err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if ag.calls != 1 {
		t.Errorf("agent invoked %d times, want 1 (analysis only)", ag.calls)
	}
	if p.HasState() {
		t.Error("dry run persisted state")
	}
	for _, want := range []string{"Fix report date parsing", "compound/fix-report-dates", "dry run"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunAnalysisFailureSavesState(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.ReportsDir, "report.md"), "content")

	// Unparsable output fails the analyze step.
	ag := &fakeAgent{results: []agent.Result{okResult("no json here")}}
	p := NewPipeline(cfg, ag, ui.NewDisplay(bytes.NewBuffer(nil)), nil)

	err := p.Run(context.Background(), RunOptions{})
	if err == nil {
		t.Fatal("Run() expected error for unparsable analysis")
	}
	if !p.HasState() {
		t.Error("failed run left no state to resume from")
	}
	if got := p.loadState(); got != nil && got.Step != StepAnalyze {
		t.Errorf("Step = %q, want %q", got.Step, StepAnalyze)
	}
}

func TestRunCanceledContextSavesState(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(cfg, &fakeAgent{}, ui.NewDisplay(bytes.NewBuffer(nil)), nil)
	err := p.Run(ctx, RunOptions{})
	if err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !p.HasState() {
		t.Error("canceled run left no state")
	}
}

func TestPublishRefusesWrongBranch(t *testing.T) {
	// A repository checked out on its default branch, while the run expects
	// its own work branch. Publication must stop before committing anything.
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit(): %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg := testConfig(t)
	_, err = Publish(cfg, &State{BranchName: "compound/expected", Decision: testDecision()})
	if !errors.Is(err, ErrPublicationFailed) {
		t.Fatalf("error = %v, want ErrPublicationFailed", err)
	}
	if !strings.Contains(err.Error(), "compound/expected") {
		t.Errorf("error does not name the expected branch: %v", err)
	}
}

func TestPublishOutsideRepository(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := testConfig(t)
	_, err := Publish(cfg, &State{BranchName: "compound/x"})
	if !errors.Is(err, ErrPublicationFailed) {
		t.Fatalf("error = %v, want ErrPublicationFailed", err)
	}
}

func TestBuildPRBody(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.ManifestPath(), `{"branchName":"compound/fix-report-dates","tasks":[{"id":"T-001","title":"Parse dates","passes":true},{"id":"T-002","title":"Render dates","passes":false}]}`)
	writeFile(t, cfg.ProgressPath(), "2026-08-22T10:00:00Z branch=compound/fix-report-dates state=exhausted iterations=10/10\n")

	state := &State{BranchName: "compound/fix-report-dates", Decision: testDecision()}
	body := buildPRBody(cfg, state)

	for _, want := range []string{
		"Dates render as epoch zero.",
		"**Why now:** Breaks every consumer.",
		"## Tasks (1/2 passing)",
		"- [x] T-001: Parse dates",
		"- [ ] T-002: Render dates",
		"state=exhausted",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("PR body missing %q:\n%s", want, body)
		}
	}
}

func TestBuildPRBodyNoArtifacts(t *testing.T) {
	cfg := testConfig(t)
	body := buildPRBody(cfg, &State{BranchName: "compound/x"})

	if strings.Contains(body, "## Tasks") {
		t.Error("PR body includes task section without a manifest")
	}
	if strings.Contains(body, "## Recent runs") {
		t.Error("PR body includes runs section without a progress log")
	}
}

func TestProgressTail(t *testing.T) {
	cfg := testConfig(t)

	var sb strings.Builder
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	writeFile(t, cfg.ProgressPath(), sb.String())

	tail := progressTail(cfg.ProgressPath(), 20)
	if strings.Contains(tail, "line 10\n") {
		t.Error("tail includes lines beyond the cap")
	}
	if !strings.Contains(tail, "line 11\n") || !strings.Contains(tail, "line 30\n") {
		t.Errorf("tail missing expected range:\n%s", tail)
	}
}
