package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/compound-sh/compound/internal/agent"
)

// Analyze sends the report plus the recently-completed exclusions to the
// agent and decodes a Decision from its free-text output. The response is an
// untrusted boundary: a raw JSON parse is attempted first, then a
// brace-matched extraction, and when both fail the stage fails with
// ErrUnparsableAnalysis. No default decision is ever fabricated.
func Analyze(ctx context.Context, ag agent.Agent, reportPath string, recent []CompletedItem, transcript io.Writer) (*Decision, error) {
	content, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, fmt.Errorf("report is empty: %s", reportPath)
	}

	prompt := buildAnalysisPrompt(string(content), recent)

	res := ag.Invoke(ctx, prompt, transcript)
	if !res.OK {
		return nil, fmt.Errorf("analysis invocation produced no usable output: %w", res.Err)
	}

	return ParseDecision(res.Output)
}

// AnalyzeWithCommand shells out to a user-configured analysis command
// instead of the built-in prompt. The command receives the report path as
// its final argument and must print the decision JSON on stdout; the output
// goes through the same decode path as agent output.
func AnalyzeWithCommand(ctx context.Context, command, reportPath string) (*Decision, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("analyzeCommand is empty")
	}

	res := agent.Exec(ctx, 0, func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, fields[0], append(fields[1:], reportPath)...)
	})
	if !res.OK {
		return nil, fmt.Errorf("analyzeCommand produced no usable output: %w", res.Err)
	}

	return ParseDecision(res.Output)
}

// buildAnalysisPrompt constructs the single analysis prompt: framing, hard
// constraints, the exclusion list, the report, and a strict output format.
func buildAnalysisPrompt(reportContent string, recent []CompletedItem) string {
	var sb strings.Builder

	sb.WriteString(`You are analyzing a product/engineering report to identify the single highest priority item to work on next.

## Instructions

1. Read the report carefully
2. Identify the highest priority actionable item
3. Hard constraints on the item you pick:
   - No database schema changes and no migrations
   - Completable in a few hours of focused work
   - Concrete and well-defined, not vague
   - Prefer fixes and improvements over new features
   - Must not duplicate a recently completed item (see list below)

## Recently completed (do NOT pick these again)
`)

	if len(recent) == 0 {
		sb.WriteString("None\n")
	} else {
		for _, item := range recent {
			fmt.Fprintf(&sb, "- %s (%s)\n", item.Title, item.Date.Format("2006-01-02"))
		}
	}

	sb.WriteString(`
## Report Content

`)
	sb.WriteString(reportContent)

	sb.WriteString(`

## Required JSON Response Format

Return ONLY a valid JSON object (no markdown code fences, no prose):

{
  "priorityItem": "Short title of the priority item",
  "description": "2-3 sentence description of what needs to be built",
  "rationale": "Why this is the highest priority item",
  "acceptanceCriteria": ["Criterion 1", "Criterion 2"],
  "estimatedTasks": 4,
  "branchName": "feature-name-kebab-case"
}

Notes:
- estimatedTasks should be 3-5 for a reasonable scope
- branchName should be kebab-case without any prefix (a prefix is added later)
- acceptanceCriteria should be verifiable boolean statements
`)

	return sb.String()
}

// ParseDecision decodes a Decision from free-text agent output.
func ParseDecision(response string) (*Decision, error) {
	trimmed := strings.TrimSpace(response)

	var d Decision
	if err := json.Unmarshal([]byte(trimmed), &d); err != nil {
		// The response may wrap the JSON in prose or markdown fencing; fall
		// back to the first balanced top-level object.
		block, ok := extractBraceBlock(trimmed)
		if !ok {
			return nil, fmt.Errorf("%w: no JSON object in response", ErrUnparsableAnalysis)
		}
		if err := json.Unmarshal([]byte(block), &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnparsableAnalysis, err)
		}
	}

	if err := validateDecision(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// validateDecision rejects partially-populated decisions.
func validateDecision(d *Decision) error {
	if strings.TrimSpace(d.PriorityItem) == "" {
		return fmt.Errorf("%w: missing required field: priorityItem", ErrUnparsableAnalysis)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: missing required field: description", ErrUnparsableAnalysis)
	}
	if strings.TrimSpace(d.BranchName) == "" {
		return fmt.Errorf("%w: missing required field: branchName", ErrUnparsableAnalysis)
	}
	return nil
}

// extractBraceBlock returns the first top-level {...} block in s, found by
// brace matching. Braces inside JSON strings are ignored.
func extractBraceBlock(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// NormalizeBranch ensures name carries prefix exactly once.
func NormalizeBranch(name, prefix string) string {
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}
