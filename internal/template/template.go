package template

import (
	_ "embed"
	"strings"
)

//go:embed prompt.md
var promptTemplate string

//go:embed config.yaml
var DefaultConfig string

// manifestPathToken marks where the manifest path is rendered into the
// operating prompt.
const manifestPathToken = "{{MANIFEST_PATH}}"

// Prompt renders the default operating prompt against the manifest at
// manifestPath. The agent must read and update the same file the loop
// controller verifies against.
func Prompt(manifestPath string) string {
	return strings.ReplaceAll(promptTemplate, manifestPathToken, manifestPath)
}

// ConfigFile is the name of the configuration file in the working directory.
const ConfigFile = "compound.yaml"

// File name constants for state kept under the output directory.
const (
	ManifestFile   = "tasks.json"     // Active task manifest
	ProgressFile   = "progress.log"   // Append-only run log
	StateFile      = "state.json"     // Pipeline step state
	TranscriptFile = "transcript.log" // Agent exchange audit log
	ArchiveDir     = "archive"        // Archived prior runs
)

// CompletionMarker is the literal string an agent emits when every task in
// the manifest is satisfied. Presence anywhere in the captured output counts.
const CompletionMarker = "<promise>COMPLETE</promise>"
