package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/template"
)

func TestInitWorkspace(t *testing.T) {
	dir := t.TempDir()

	if err := initWorkspace(dir); err != nil {
		t.Fatalf("initWorkspace(): %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, template.ConfigFile)); err != nil {
		t.Fatalf("starter config missing: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, "reports")); err != nil || !info.IsDir() {
		t.Errorf("reports directory missing: %v", err)
	}

	// The starter config must load cleanly and carry the defaults.
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load() on starter config: %v", err)
	}
	if cfg.Tool != "claude" {
		t.Errorf("Tool = %q, want claude", cfg.Tool)
	}
	if cfg.MaxIterations != config.DefaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", cfg.MaxIterations, config.DefaultMaxIterations)
	}
}

func TestInitWorkspaceRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, template.ConfigFile), []byte("tool: codex\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := initWorkspace(dir); err == nil {
		t.Fatal("initWorkspace() expected error for existing config")
	}

	// The existing config is untouched.
	data, err := os.ReadFile(filepath.Join(dir, template.ConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "tool: codex\n" {
		t.Errorf("existing config was modified: %q", data)
	}
}
