package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/compound-sh/compound/internal/template"
)

// ErrConfigMissing indicates a required derived path could not be resolved.
// Absence of the config file itself is not an error; defaults apply.
var ErrConfigMissing = errors.New("config missing")

// DefaultMaxIterations is the iteration cap used by the full pipeline.
const DefaultMaxIterations = 25

// DefaultLoopIterations is the iteration cap when running only the loop.
const DefaultLoopIterations = 10

// Config holds resolved run parameters. Immutable once resolved.
type Config struct {
	Tool           string `yaml:"tool"`
	Model          string `yaml:"model"`
	ReportsDir     string `yaml:"reportsDir"`
	OutputDir      string `yaml:"outputDir"`
	TasksDir       string `yaml:"tasksDir"`
	MaxIterations  int    `yaml:"maxIterations"`
	BranchPrefix   string `yaml:"branchPrefix"`
	AnalyzeCommand string `yaml:"analyzeCommand"`
}

// rawConfig is used for YAML unmarshaling to distinguish missing keys from
// explicit empty values. Pointer fields are nil when the key was absent.
type rawConfig struct {
	Tool           *string `yaml:"tool"`
	Model          *string `yaml:"model"`
	ReportsDir     *string `yaml:"reportsDir"`
	OutputDir      *string `yaml:"outputDir"`
	TasksDir       *string `yaml:"tasksDir"`
	MaxIterations  *int    `yaml:"maxIterations"`
	BranchPrefix   *string `yaml:"branchPrefix"`
	AnalyzeCommand *string `yaml:"analyzeCommand"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Tool:          "claude",
		ReportsDir:    "./reports",
		OutputDir:     "./scripts/compound",
		TasksDir:      "./tasks",
		MaxIterations: DefaultMaxIterations,
		BranchPrefix:  "compound/",
	}
}

// Load resolves configuration for a run rooted at dir.
//
// A .env file in dir is loaded best-effort first so config values can lean
// on environment-provided credentials. compound.yaml is then read if it
// exists; missing keys fall back to defaults field by field. Directory
// paths are resolved to absolute paths relative to dir.
func Load(dir string) (*Config, error) {
	// Best-effort env overlay; a missing .env is normal.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, template.ConfigFile))
	if err == nil {
		var raw rawConfig
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", template.ConfigFile, err)
		}
		applyRaw(&cfg, raw)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", template.ConfigFile, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := resolvePaths(&cfg, dir); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyRaw merges keys that were present in the YAML onto the defaults.
func applyRaw(cfg *Config, raw rawConfig) {
	if raw.Tool != nil {
		cfg.Tool = *raw.Tool
	}
	if raw.Model != nil {
		cfg.Model = *raw.Model
	}
	if raw.ReportsDir != nil {
		cfg.ReportsDir = *raw.ReportsDir
	}
	if raw.OutputDir != nil {
		cfg.OutputDir = *raw.OutputDir
	}
	if raw.TasksDir != nil {
		cfg.TasksDir = *raw.TasksDir
	}
	if raw.MaxIterations != nil {
		cfg.MaxIterations = *raw.MaxIterations
	}
	if raw.BranchPrefix != nil {
		cfg.BranchPrefix = *raw.BranchPrefix
	}
	if raw.AnalyzeCommand != nil {
		cfg.AnalyzeCommand = *raw.AnalyzeCommand
	}
}

// Validate checks that resolved values are usable.
func (c *Config) Validate() error {
	if c.Tool == "" {
		return fmt.Errorf("%w: tool must not be empty", ErrConfigMissing)
	}
	if c.ReportsDir == "" {
		return fmt.Errorf("%w: reportsDir must not be empty", ErrConfigMissing)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: outputDir must not be empty", ErrConfigMissing)
	}
	if c.TasksDir == "" {
		return fmt.Errorf("%w: tasksDir must not be empty", ErrConfigMissing)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: maxIterations must be greater than 0", ErrConfigMissing)
	}
	if c.BranchPrefix == "" {
		return fmt.Errorf("%w: branchPrefix must not be empty", ErrConfigMissing)
	}
	return nil
}

// resolvePaths makes directory paths absolute relative to dir. An
// unresolvable base directory is fatal.
func resolvePaths(cfg *Config, dir string) error {
	base, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve base directory %q: %v", ErrConfigMissing, dir, err)
	}

	for _, p := range []*string{&cfg.ReportsDir, &cfg.OutputDir, &cfg.TasksDir} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return nil
}

// ManifestPath returns the fixed path of the active task manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.OutputDir, template.ManifestFile)
}

// ProgressPath returns the path of the append-only progress log.
func (c *Config) ProgressPath() string {
	return filepath.Join(c.OutputDir, template.ProgressFile)
}

// StatePath returns the path of the persisted pipeline state.
func (c *Config) StatePath() string {
	return filepath.Join(c.OutputDir, template.StateFile)
}

// ArchivePath returns the directory archived runs are copied into.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.OutputDir, template.ArchiveDir)
}
