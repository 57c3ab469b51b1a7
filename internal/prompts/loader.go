// Package prompts resolves the text sent to the code generator for each
// stage. Built-in templates are embedded; users can override them by name
// under ~/.config/autodev/prompts/ or per invocation via the resolver.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed *.md
var builtinFS embed.FS

// Load returns the raw prompt template for the given name ("implement.md").
// Checks a user override at ~/.config/autodev/prompts/<name> first.
func Load(name string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err == nil {
		userPath := filepath.Join(configDir, "autodev", "prompts", name)
		if data, err := os.ReadFile(userPath); err == nil {
			return string(data), nil
		}
	}

	data, err := builtinFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("loading prompt template %s: %w", name, err)
	}
	return string(data), nil
}

// List returns the names of all built-in prompt templates.
func List() ([]string, error) {
	entries, err := builtinFS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
