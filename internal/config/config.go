// Package config handles the .planseal workspace directory and its
// config.yaml. Every project that runs attested plans gets a .planseal/
// folder holding artifacts, the audit log, and generator definitions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkspaceDir is the name of the directory created in each project.
const WorkspaceDir = ".planseal"

const defaultConfigYAML = `# planseal workspace configuration
version: 1

# All paths are relative to the .planseal directory.
paths:
  artifacts: artifacts
  audit_log: logs/audit.log
  generators: generators
`

// Paths declares where a workspace keeps its state, relative to .planseal.
type Paths struct {
	Artifacts  string `yaml:"artifacts"`
	AuditLog   string `yaml:"audit_log"`
	Generators string `yaml:"generators"`
}

// WorkspaceConfig models .planseal/config.yaml.
type WorkspaceConfig struct {
	Version int   `yaml:"version"`
	Paths   Paths `yaml:"paths"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// ProjectDir is the directory the tool was invoked for.
	ProjectDir string

	// WorkspacePath is ProjectDir/.planseal.
	WorkspacePath string

	Workspace WorkspaceConfig
}

// InitWorkspace creates the .planseal directory structure. Idempotent:
// existing directories and an existing config.yaml are left untouched.
//
// Structure created:
//
//	.planseal/
//	├── artifacts/    <- one subdirectory per executed plan
//	├── logs/         <- audit.log, shared across runs
//	└── generators/   <- YAML and Go generator definitions
func InitWorkspace(projectDir string) error {
	workspace := filepath.Join(projectDir, WorkspaceDir)
	dirs := []string{
		filepath.Join(workspace, "artifacts"),
		filepath.Join(workspace, "logs"),
		filepath.Join(workspace, "generators"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return ensureConfigFile(filepath.Join(workspace, "config.yaml"))
}

// NewConfig loads the workspace configuration for a project directory,
// falling back to defaults when config.yaml is absent.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:    projectDir,
		WorkspacePath: filepath.Join(projectDir, WorkspaceDir),
		Workspace:     defaultWorkspaceConfig(),
	}
	if err := cfg.loadWorkspaceConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ArtifactsDir returns the absolute artifacts root.
func (c *Config) ArtifactsDir() string {
	return c.resolve(c.Workspace.Paths.Artifacts)
}

// AuditLogPath returns the absolute path of the shared audit log file.
func (c *Config) AuditLogPath() string {
	return c.resolve(c.Workspace.Paths.AuditLog)
}

// GeneratorsDir returns the absolute generator definitions directory.
func (c *Config) GeneratorsDir() string {
	return c.resolve(c.Workspace.Paths.Generators)
}

func (c *Config) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.WorkspacePath, rel)
}

func (c *Config) loadWorkspaceConfig() error {
	path := filepath.Join(c.WorkspacePath, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed WorkspaceConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if parsed.Version != 0 && parsed.Version != 1 {
		return fmt.Errorf("config: %s: unsupported version %d", path, parsed.Version)
	}
	merged := defaultWorkspaceConfig()
	if strings.TrimSpace(parsed.Paths.Artifacts) != "" {
		merged.Paths.Artifacts = parsed.Paths.Artifacts
	}
	if strings.TrimSpace(parsed.Paths.AuditLog) != "" {
		merged.Paths.AuditLog = parsed.Paths.AuditLog
	}
	if strings.TrimSpace(parsed.Paths.Generators) != "" {
		merged.Paths.Generators = parsed.Paths.Generators
	}
	c.Workspace = merged
	return nil
}

func defaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Version: 1,
		Paths: Paths{
			Artifacts:  "artifacts",
			AuditLog:   filepath.Join("logs", "audit.log"),
			Generators: "generators",
		},
	}
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}
