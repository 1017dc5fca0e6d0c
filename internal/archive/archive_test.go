package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/compound-sh/compound/internal/template"
)

func writeState(t *testing.T, dir string) {
	t.Helper()
	for name, content := range map[string]string{
		template.ManifestFile: `{"branchName":"compound/old","tasks":[]}`,
		template.ProgressFile: "2026-08-20T10:00:00Z branch=compound/old state=complete iterations=2/10\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCreateCopiesNotMoves(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	archDir, err := Create(dir, "compound/old", now)
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	if want := filepath.Join(dir, "archive", "2026-08-23-compound-old"); archDir != want {
		t.Errorf("archive dir = %q, want %q", archDir, want)
	}

	// Copies exist in the archive.
	for _, f := range []string{template.ManifestFile, template.ProgressFile} {
		if _, err := os.Stat(filepath.Join(archDir, f)); err != nil {
			t.Errorf("archive missing %s: %v", f, err)
		}
		// Originals remain in place.
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("original %s was moved: %v", f, err)
		}
	}
}

func TestCreateNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir)
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	first, err := Create(dir, "compound/old", now)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Create(dir, "compound/old", now)
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatalf("second archive reused %q", first)
	}
	if !strings.HasSuffix(second, "-2") {
		t.Errorf("second archive = %q, want -2 suffix", second)
	}
}

func TestCreateNoState(t *testing.T) {
	dir := t.TempDir()

	if _, err := Create(dir, "compound/old", time.Now()); err == nil {
		t.Fatal("Create() expected error when no state files exist")
	}

	// A failed archive must not leave an empty directory behind.
	entries, _ := os.ReadDir(filepath.Join(dir, template.ArchiveDir))
	if len(entries) != 0 {
		t.Errorf("archive dir not cleaned up: %v", entries)
	}
}

func TestSanitizeBranchName(t *testing.T) {
	if got := sanitize("compound/nested/branch"); got != "compound-nested-branch" {
		t.Errorf("sanitize() = %q", got)
	}
}
