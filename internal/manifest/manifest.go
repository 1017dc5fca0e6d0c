package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Task is a single verifiable unit of work. The external agent flips Passes
// to true as it completes tasks; the loop controller only reads it.
type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Passes bool   `json:"passes"`
}

// Manifest is the structured task list derived from a PRD. Exactly one
// active manifest exists per working tree; starting an unrelated priority
// item requires archiving the prior one.
type Manifest struct {
	BranchName string `json:"branchName"`
	Tasks      []Task `json:"tasks"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the manifest with stable formatting.
func Save(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AllPass reports whether every task is marked passing. An empty task list
// does not count as passing.
func (m *Manifest) AllPass() bool {
	if len(m.Tasks) == 0 {
		return false
	}
	for _, t := range m.Tasks {
		if !t.Passes {
			return false
		}
	}
	return true
}

// Pending returns the first task not yet passing, or nil.
func (m *Manifest) Pending() *Task {
	for i := range m.Tasks {
		if !m.Tasks[i].Passes {
			return &m.Tasks[i]
		}
	}
	return nil
}

// Progress returns (passing, total) task counts.
func (m *Manifest) Progress() (int, int) {
	passing := 0
	for _, t := range m.Tasks {
		if t.Passes {
			passing++
		}
	}
	return passing, len(m.Tasks)
}

// Summary renders a per-task status list suitable for a PR body.
func (m *Manifest) Summary() string {
	var sb strings.Builder
	for _, t := range m.Tasks {
		mark := " "
		if t.Passes {
			mark = "x"
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", mark, t.ID, t.Title)
	}
	return sb.String()
}
