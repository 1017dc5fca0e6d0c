package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/compound-sh/compound/internal/template"
)

// stateFiles are the run artifacts snapshotted into an archive. Archives
// copy rather than move: the originals stay in place for inspection until
// the new run overwrites them.
var stateFiles = []string{
	template.ManifestFile,
	template.ProgressFile,
	template.StateFile,
}

// Create copies the previous run's state from outputDir into
// outputDir/archive/<date>-<branch>/. An existing archive directory is
// never overwritten; collisions get a numeric suffix. Returns the archive
// directory path.
func Create(outputDir, branchName string, now time.Time) (string, error) {
	name := fmt.Sprintf("%s-%s", now.Format("2006-01-02"), sanitize(branchName))
	dir := resolveCollision(filepath.Join(outputDir, template.ArchiveDir, name))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	copied := 0
	for _, f := range stateFiles {
		src := filepath.Join(outputDir, f)
		if !fileExists(src) {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, f)); err != nil {
			return "", fmt.Errorf("failed to archive %s: %w", f, err)
		}
		copied++
	}

	if copied == 0 {
		os.Remove(dir)
		return "", fmt.Errorf("no run state found to archive in %s", outputDir)
	}

	return dir, nil
}

// sanitize makes a branch name usable as a directory component.
func sanitize(branchName string) string {
	return strings.ReplaceAll(branchName, "/", "-")
}

// resolveCollision appends -2, -3, etc. if the directory already exists.
func resolveCollision(dir string) string {
	if !dirExists(dir) {
		return dir
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", dir, i)
		if !dirExists(candidate) {
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
