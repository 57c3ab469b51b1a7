// Package ai invokes the external code-generating assistant and parses
// its textual output. The generator is a subprocess; its stdout is the
// contract.
package ai

import (
	"context"
	"errors"
)

// ErrGeneratorFailed indicates the generator exited non-zero or produced
// no usable output.
var ErrGeneratorFailed = errors.New("code generator failed")

// FileAction classifies a reported file change.
type FileAction string

const (
	ActionCreate FileAction = "create"
	ActionModify FileAction = "modify"
	ActionDelete FileAction = "delete"
)

// FileChange is one entry from the generator's "Files Modified" report.
type FileChange struct {
	Path        string     `yaml:"path"`
	Action      FileAction `yaml:"action"`
	Description string     `yaml:"description,omitempty"`
}

// Response is the parsed result of one generator invocation. Raw always
// preserves the unmodified output so a human can inspect it when parsing
// found nothing useful.
type Response struct {
	Success     bool         `yaml:"success"`
	Summary     string       `yaml:"summary,omitempty"`
	FileChanges []FileChange `yaml:"file_changes,omitempty"`
	Commands    []string     `yaml:"commands,omitempty"`
	Notes       string       `yaml:"notes,omitempty"`
	Raw         string       `yaml:"raw,omitempty"`
}

// ChangedPaths returns the paths of all reported file changes.
func (r *Response) ChangedPaths() []string {
	paths := make([]string, 0, len(r.FileChanges))
	for _, fc := range r.FileChanges {
		paths = append(paths, fc.Path)
	}
	return paths
}

// Request describes one generator invocation.
type Request struct {
	// Prompt is the fully resolved prompt text, sent on stdin.
	Prompt string
	// Agent is passed as --agent when non-empty.
	Agent string
	// WorkDir is the working directory the generator runs in.
	WorkDir string
}

// Client abstracts the generator for testability.
type Client interface {
	// Available reports whether the generator executable can be invoked.
	Available() error

	// Generate runs the generator and parses its output. Transient
	// failures are retried internally with exponential backoff.
	Generate(ctx context.Context, req Request) (*Response, error)
}
