// Package config loads the hierarchical autodev configuration: built-in
// defaults, deep-merged with the user config and then the project config,
// followed by environment overrides.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// UserConfigPath returns the user-level config file path
// (~/.config/autodev/config.yaml).
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, "autodev", "config.yaml"), nil
}

// ProjectConfigPath returns the project-level config path (.auto/config.yaml
// under the repository root), or "" when not inside a repository.
func ProjectConfigPath() string {
	root := RepoRoot()
	if root == "" {
		return ""
	}
	return filepath.Join(root, ".auto", "config.yaml")
}

// Load reads and merges configuration from user-level and project-level
// YAML files over the built-in defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if userPath, err := UserConfigPath(); err == nil {
		if userMap, err := loadYAML(userPath); err == nil {
			if err := mergeIntoConfig(&cfg, userMap); err != nil {
				return nil, fmt.Errorf("merging user config: %w", err)
			}
		}
	}

	if projPath := ProjectConfigPath(); projPath != "" {
		if projMap, err := loadYAML(projPath); err == nil {
			if err := mergeIntoConfig(&cfg, projMap); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// loadYAML reads a YAML file and returns it as a map.
func loadYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig marshals the config to a map, deep-merges the source map
// over it, then unmarshals back to the Config struct.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := yaml.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := yaml.Marshal(dst)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(merged, cfg)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Authentication stays delegated to the environment or the gh CLI; no
// secrets live in config files.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
}

// findRepoRoot finds the git repository root via git rev-parse.
func findRepoRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// RepoRoot returns the detected git repository root, or empty string when
// not in a repository.
func RepoRoot() string {
	return findRepoRoot()
}

// StateDir returns the workflow state directory (.auto/state under the
// repository root, or the working directory when outside a repository).
func StateDir() string {
	root := RepoRoot()
	if root == "" {
		root = "."
	}
	return filepath.Join(root, ".auto", "state")
}
