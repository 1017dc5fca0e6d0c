package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/compound-sh/compound/internal/manifest"
	"github.com/compound-sh/compound/internal/template"
)

// FindLatestReport returns the most recently modified regular file in the
// reports directory. Hidden files are skipped. When several files share the
// max timestamp any one of them may win; callers must not depend on the tie
// resolution.
func FindLatestReport(reportsDir string) (string, error) {
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: reports directory does not exist: %s", ErrNoReportFound, reportsDir)
		}
		return "", fmt.Errorf("failed to read reports directory: %w", err)
	}

	var latestPath string
	var latestTime time.Time

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if latestPath == "" || info.ModTime().After(latestTime) {
			latestPath = filepath.Join(reportsDir, entry.Name())
			latestTime = info.ModTime()
		}
	}

	if latestPath == "" {
		return "", fmt.Errorf("%w: no reports in %s", ErrNoReportFound, reportsDir)
	}

	return latestPath, nil
}

// FindRecentlyCompleted collects items finished within the trailing window,
// derived from task manifests (the active one plus archived copies) modified
// in the last days days. The result is only ever used as an exclusion list
// for analysis.
func FindRecentlyCompleted(outputDir string, days int) ([]CompletedItem, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	var items []CompletedItem

	paths := []string{filepath.Join(outputDir, template.ManifestFile)}
	archived, _ := filepath.Glob(filepath.Join(outputDir, template.ArchiveDir, "*", template.ManifestFile))
	paths = append(paths, archived...)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().Before(cutoff) {
			continue
		}

		m, err := manifest.Load(path)
		if err != nil {
			continue
		}

		items = append(items, CompletedItem{
			Title: titleFromBranch(m.BranchName),
			Date:  info.ModTime(),
		})
	}

	return items, nil
}

// titleFromBranch turns "compound/fix-report-dates" into "fix report dates".
func titleFromBranch(branchName string) string {
	name := branchName
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.ReplaceAll(name, "-", " ")
}
