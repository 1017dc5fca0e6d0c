package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compound-sh/compound/internal/agent"
	"github.com/compound-sh/compound/internal/archive"
	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/manifest"
)

// Materializer converts an analysis decision into persisted artifacts: a PRD
// document and a task manifest. Generation is delegated to the agent; each
// step is verified by checking that the expected artifact now exists on
// disk, because a clean agent exit alone proves nothing.
type Materializer struct {
	cfg        *config.Config
	agent      agent.Agent
	transcript io.Writer
}

// NewMaterializer creates a materializer.
func NewMaterializer(cfg *config.Config, ag agent.Agent, transcript io.Writer) *Materializer {
	return &Materializer{cfg: cfg, agent: ag, transcript: transcript}
}

// Run materializes the decision under branchName. It returns the PRD path.
//
// If a manifest from an unrelated prior run exists (different branch name),
// it is archived first — copied, not moved. Archival failure is logged and
// the run proceeds; losing an archive is recoverable, clobbering the
// pipeline is not.
func (m *Materializer) Run(ctx context.Context, decision *Decision, branchName string) (string, error) {
	if err := os.MkdirAll(m.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.MkdirAll(m.cfg.TasksDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create tasks directory: %w", err)
	}

	m.archiveIfBranchChanged(branchName)

	prdPath := m.prdPath(branchName)
	if err := m.generatePRD(ctx, decision, branchName, prdPath); err != nil {
		return "", err
	}

	if err := m.generateManifest(ctx, prdPath, branchName); err != nil {
		return "", err
	}

	return prdPath, nil
}

// archiveIfBranchChanged snapshots the previous run's state when the branch
// name differs from the recorded one. Same branch means same priority item;
// re-running is idempotent and creates no archive.
func (m *Materializer) archiveIfBranchChanged(branchName string) {
	prev, err := manifest.Load(m.cfg.ManifestPath())
	if err != nil {
		return // No prior manifest, nothing to archive
	}
	if prev.BranchName == branchName {
		return
	}

	dir, err := archive.Create(m.cfg.OutputDir, prev.BranchName, time.Now())
	if err != nil {
		log.Warn().Err(err).Str("branch", prev.BranchName).Msg("failed to archive prior run; continuing")
		return
	}
	log.Info().Str("archive", dir).Msg("archived prior run")
}

// prdPath places the PRD document under the tasks directory, named from the
// branch without its prefix.
func (m *Materializer) prdPath(branchName string) string {
	slug := strings.TrimPrefix(branchName, m.cfg.BranchPrefix)
	slug = strings.ReplaceAll(slug, "/", "-")
	return filepath.Join(m.cfg.TasksDir, fmt.Sprintf("prd-%s.md", slug))
}

// generatePRD delegates PRD writing to the agent and verifies the artifact.
func (m *Materializer) generatePRD(ctx context.Context, decision *Decision, branchName, prdPath string) error {
	pre := modTime(prdPath)

	res := m.agent.Invoke(ctx, buildPRDPrompt(decision, branchName, prdPath), m.transcript)
	if !res.OK {
		return fmt.Errorf("PRD generation failed: %w", res.Err)
	}

	if !artifactProduced(prdPath, pre) {
		return fmt.Errorf("%w: expected PRD at %s", ErrArtifactNotProduced, prdPath)
	}
	return nil
}

// generateManifest delegates manifest writing to the agent, verifies the
// artifact and validates its structure.
func (m *Materializer) generateManifest(ctx context.Context, prdPath, branchName string) error {
	prdContent, err := os.ReadFile(prdPath)
	if err != nil {
		return fmt.Errorf("failed to read PRD: %w", err)
	}

	outPath := m.cfg.ManifestPath()
	pre := modTime(outPath)

	res := m.agent.Invoke(ctx, buildManifestPrompt(string(prdContent), branchName, outPath), m.transcript)
	if !res.OK {
		return fmt.Errorf("manifest generation failed: %w", res.Err)
	}

	if !artifactProduced(outPath, pre) {
		return fmt.Errorf("%w: expected task manifest at %s", ErrArtifactNotProduced, outPath)
	}

	// Validate and re-save with stable formatting.
	mf, err := manifest.Load(outPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactNotProduced, err)
	}
	if len(mf.Tasks) == 0 {
		return fmt.Errorf("%w: manifest has no tasks", ErrArtifactNotProduced)
	}
	if mf.BranchName == "" {
		mf.BranchName = branchName
	}
	return manifest.Save(outPath, mf)
}

func buildPRDPrompt(decision *Decision, branchName, prdPath string) string {
	var sb strings.Builder

	sb.WriteString("Write a Product Requirements Document for the following priority item.\n\n")
	fmt.Fprintf(&sb, "Priority item: %s\n", decision.PriorityItem)
	fmt.Fprintf(&sb, "Description: %s\n", decision.Description)
	fmt.Fprintf(&sb, "Rationale: %s\n", decision.Rationale)
	fmt.Fprintf(&sb, "Branch: %s\n", branchName)

	if len(decision.AcceptanceCriteria) > 0 {
		sb.WriteString("\nAcceptance criteria:\n")
		for _, c := range decision.AcceptanceCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}

	sb.WriteString(`
## Scope constraints

- No database schema changes and no migrations
- Sized for 2-4 hours of implementation work
- Break the work into 3-5 small verifiable tasks
- Proceed without asking clarifying questions; make reasonable assumptions

## Output

Write the PRD as markdown to exactly this path, creating directories as needed:

`)
	sb.WriteString(prdPath)
	sb.WriteString("\n\nDo not write any other files.\n")

	return sb.String()
}

func buildManifestPrompt(prdContent, branchName, outPath string) string {
	var sb strings.Builder

	sb.WriteString("Convert the following PRD into a task manifest.\n\n## PRD\n\n")
	sb.WriteString(prdContent)
	fmt.Fprintf(&sb, `

## Output

Write a JSON file to exactly this path, creating directories as needed:

%s

The file must have this exact shape:

{
  "branchName": %q,
  "tasks": [
    {"id": "T-001", "title": "First verifiable task", "passes": false},
    {"id": "T-002", "title": "Second verifiable task", "passes": false}
  ]
}

Rules:
- 3-5 tasks, each completable and verifiable on its own
- ids are sequential: T-001, T-002, ...
- every task starts with "passes": false
- Do not write any other files.
`, outPath, branchName)

	return sb.String()
}

// modTime returns the file's mtime, or the zero time when it doesn't exist.
func modTime(path string) time.Time {
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

// artifactProduced reports whether path exists and, when it pre-existed, was
// rewritten since pre.
func artifactProduced(path string, pre time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if pre.IsZero() {
		return true
	}
	return info.ModTime().After(pre)
}
