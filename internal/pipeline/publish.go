package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/gitops"
	"github.com/compound-sh/compound/internal/manifest"
)

// progressTailLines bounds how much of the progress log ends up in a PR body.
const progressTailLines = 20

// Publish commits the run's artifacts, pushes the branch and opens a draft
// pull request carrying the task-status summary and the progress-log tail.
// None of these operations are retried; the first failure halts the run with
// ErrPublicationFailed. A commit that finds a clean tree is not a failure.
func Publish(cfg *config.Config, state *State) (string, error) {
	title := fmt.Sprintf("compound: %s", state.BranchName)
	if state.Decision != nil && state.Decision.PriorityItem != "" {
		title = state.Decision.PriorityItem
	}

	// The working tree is shared with the external agent; make sure nothing
	// switched branches under us before committing.
	branch, err := gitops.CurrentBranch(".")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}
	if branch != state.BranchName {
		return "", fmt.Errorf("%w: working tree is on %q, expected %q", ErrPublicationFailed, branch, state.BranchName)
	}

	commit, err := gitops.CommitAll(".", title)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}
	_ = commit // A clean tree is fine; push what exists.

	if err := gitops.PushBranch(state.BranchName); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}

	url, err := gitops.CreatePR(title, buildPRBody(cfg, state))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}
	return url, nil
}

// buildPRBody assembles the request-for-review body: what was decided, the
// per-task status, and the tail of the progress log.
func buildPRBody(cfg *config.Config, state *State) string {
	var sb strings.Builder

	if state.Decision != nil {
		sb.WriteString(state.Decision.Description)
		sb.WriteString("\n\n")
		if state.Decision.Rationale != "" {
			fmt.Fprintf(&sb, "**Why now:** %s\n\n", state.Decision.Rationale)
		}
	}

	if m, err := manifest.Load(cfg.ManifestPath()); err == nil {
		passing, total := m.Progress()
		fmt.Fprintf(&sb, "## Tasks (%d/%d passing)\n\n%s\n", passing, total, m.Summary())
	}

	if tail := progressTail(cfg.ProgressPath(), progressTailLines); tail != "" {
		fmt.Fprintf(&sb, "## Recent runs\n\n```\n%s```\n", tail)
	}

	return sb.String()
}

// progressTail returns the last n lines of the progress log, or "" when the
// log is missing.
func progressTail(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n") + "\n"
}
