package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WorktreeInfo describes an isolated working copy owned by one workflow.
type WorktreeInfo struct {
	Path       string `yaml:"path"`
	Branch     string `yaml:"branch"`
	BaseBranch string `yaml:"base_branch"`
}

// Exists reports whether the worktree directory is present on disk.
func (w WorktreeInfo) Exists() bool {
	if w.Path == "" {
		return false
	}
	info, err := os.Stat(w.Path)
	return err == nil && info.IsDir()
}

// WorktreeManager creates and destroys isolated working copies under a
// configured base directory. A worktree is never shared across issues.
type WorktreeManager struct {
	primaryDir string // the main checkout git commands run from
	baseDir    string // where worktrees are created
}

// NewWorktreeManager creates a manager rooted at primaryDir. When baseDir
// is empty, worktrees land in a sibling "worktrees" directory of the
// primary checkout.
func NewWorktreeManager(primaryDir, baseDir string) *WorktreeManager {
	if baseDir == "" {
		baseDir = filepath.Join(filepath.Dir(primaryDir), "worktrees")
	}
	return &WorktreeManager{primaryDir: primaryDir, baseDir: baseDir}
}

// PathFor returns the deterministic worktree path for an issue id.
func (m *WorktreeManager) PathFor(issueID string) string {
	return filepath.Join(m.baseDir, sanitizePathComponent(issueID))
}

// Create adds a worktree for the issue on a new branch cut from baseBranch.
func (m *WorktreeManager) Create(ctx context.Context, issueID, branch, baseBranch string) (*WorktreeInfo, error) {
	path := m.PathFor(issueID)

	args := []string{"worktree", "add", path, "-b", branch}
	if baseBranch != "" {
		args = append(args, baseBranch)
	}
	if _, err := git(ctx, m.primaryDir, args...); err != nil {
		return nil, fmt.Errorf("creating worktree for %s: %w", issueID, err)
	}

	return &WorktreeInfo{Path: path, Branch: branch, BaseBranch: baseBranch}, nil
}

// Remove destroys the worktree for an issue. Idempotent: a missing
// worktree is not an error.
func (m *WorktreeManager) Remove(ctx context.Context, issueID string, force bool) error {
	path := m.PathFor(issueID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Still prune any stale registration.
		_, _ = git(ctx, m.primaryDir, "worktree", "prune")
		return nil
	}

	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}
	if _, err := git(ctx, m.primaryDir, args...); err != nil {
		return fmt.Errorf("removing worktree for %s: %w", issueID, err)
	}
	return nil
}

// sanitizePathComponent makes an issue id safe as a directory name
// ("#123" → "123", "PROJ-45" stays as-is).
func sanitizePathComponent(id string) string {
	id = strings.TrimPrefix(id, "#")
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
