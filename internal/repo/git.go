// Package repo wraps the local version-control toolchain: repository
// detection, staging, commits, pushes, and isolated worktrees. All
// operations shell out to git; the textual output is the contract.
package repo

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// git runs a git command in dir and returns trimmed stdout.
func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RemoteURL returns the origin remote URL for a directory.
func RemoteURL(ctx context.Context, dir string) (string, error) {
	return git(ctx, dir, "remote", "get-url", "origin")
}

// CurrentBranch returns the checked-out branch name.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	return git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// IsDirty reports whether the working directory has uncommitted changes.
func IsDirty(ctx context.Context, dir string) (bool, error) {
	out, err := git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// Stage adds the given paths to the index. An empty list stages everything.
func Stage(ctx context.Context, dir string, paths []string) error {
	args := []string{"add"}
	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, paths...)
	}
	_, err := git(ctx, dir, args...)
	return err
}

// Commit records the staged changes and returns the short commit hash.
func Commit(ctx context.Context, dir, message string) (string, error) {
	if _, err := git(ctx, dir, "commit", "-m", message); err != nil {
		return "", err
	}
	hash, err := git(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return hash, nil
}

// Push pushes the branch to origin. Uses an explicit refspec so it works
// regardless of HEAD state (on-branch or detached).
func Push(ctx context.Context, dir, branch string) error {
	short := strings.TrimPrefix(branch, "refs/heads/")
	refspec := fmt.Sprintf("HEAD:refs/heads/%s", short)
	_, err := git(ctx, dir, "push", "-u", "origin", refspec)
	return err
}

// CommitsAhead counts commits on HEAD not reachable from origin/<base>.
// The base branch is always the detected repository default, never a
// hard-coded name.
func CommitsAhead(ctx context.Context, dir, base string) (int, error) {
	base = strings.TrimPrefix(base, "refs/heads/")
	out, err := git(ctx, dir, "rev-list", "--count", "origin/"+base+"..HEAD")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parsing rev-list count %q: %w", out, err)
	}
	return n, nil
}

// ParseOwnerRepo extracts "owner" and "repo" from a git remote URL.
// Handles SSH (git@host:owner/repo.git) and HTTPS forms.
func ParseOwnerRepo(remoteURL string) (owner, repo string, err error) {
	url := strings.TrimSpace(remoteURL)
	url = strings.TrimSuffix(url, ".git")

	if strings.HasPrefix(url, "git@") {
		url = strings.TrimPrefix(url, "git@")
		url = strings.Replace(url, ":", "/", 1)
	}
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimSuffix(url, "/")

	parts := strings.Split(url, "/")
	if len(parts) < 3 {
		return "", "", fmt.Errorf("cannot parse owner/repo from remote URL %q", remoteURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
