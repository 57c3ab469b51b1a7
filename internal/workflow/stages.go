package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/config"
	"github.com/alanmeadows/autodev/internal/issue"
	"github.com/alanmeadows/autodev/internal/prompts"
	"github.com/alanmeadows/autodev/internal/provider"
	"github.com/alanmeadows/autodev/internal/repo"
)

// ErrPrecondition indicates a stage's prerequisites were not met.
var ErrPrecondition = errors.New("precondition failed")

// Runner executes individual workflow stages. Each stage mutates the
// record, persists it, and either returns or fails the record; stages
// inspect the record on entry and skip work already completed.
type Runner struct {
	Store     *Store
	Provider  provider.Client
	Worktrees *repo.WorktreeManager
	AI        ai.Client
	Config    config.Config
}

// fail marks the record failed, persists it, and wraps the stage error.
// Cancellation is not a failure: the record keeps its last status.
func (r *Runner) fail(rec *WorkflowRecord, stage string, err error) error {
	if errors.Is(err, context.Canceled) {
		if saveErr := r.Store.Save(rec); saveErr != nil {
			slog.Warn("persisting record on cancellation", "issue", rec.IssueID, "error", saveErr)
		}
		return err
	}
	rec.Fail(err)
	if saveErr := r.Store.Save(rec); saveErr != nil {
		slog.Warn("persisting failed record", "issue", rec.IssueID, "error", saveErr)
	}
	return fmt.Errorf("%s stage for %s: %w", stage, rec.IssueID, err)
}

// Fetch validates provider access, detects the repository, and caches the
// issue on the record. Re-running replaces the cached issue.
func (r *Runner) Fetch(ctx context.Context, rec *WorkflowRecord) error {
	if err := r.Provider.ValidateAccess(ctx); err != nil {
		return r.fail(rec, "fetch", err)
	}

	rec.Status = StatusFetching
	if err := r.Store.Save(rec); err != nil {
		return err
	}

	if rec.Repository == nil {
		repository, err := r.Provider.DetectRepo(ctx)
		if err != nil {
			return r.fail(rec, "fetch", err)
		}
		rec.Repository = repository
		slog.Info("detected repository", "repo", repository.Slug(), "default_branch", repository.DefaultBranch)
	}

	ref, err := issue.ParseRef(rec.IssueID)
	if err != nil {
		return r.fail(rec, "fetch", err)
	}
	iss, err := r.Provider.FetchIssue(ctx, ref)
	if err != nil {
		return r.fail(rec, "fetch", err)
	}
	rec.Issue = iss
	rec.Status = StatusImplementing
	if err := r.Store.Save(rec); err != nil {
		return err
	}
	slog.Info("fetched issue", "issue", rec.IssueID, "title", iss.Title, "type", iss.Type)
	return nil
}

// ImplementOptions tune the implement stage.
type ImplementOptions struct {
	// PromptOverride replaces the resolved prompt entirely.
	PromptOverride string
	// PromptFile reads the prompt from a file.
	PromptFile string
	// Append is concatenated after the resolved prompt.
	Append string
}

// ResolveImplementPrompt resolves the implementation prompt for a record
// without invoking the generator. Used by the show-prompt CLI mode.
func (r *Runner) ResolveImplementPrompt(rec *WorkflowRecord, opts ImplementOptions) (string, error) {
	if rec.Issue == nil {
		return "", fmt.Errorf("%w: issue not fetched", ErrPrecondition)
	}
	ctx := map[string]string{
		"id":          rec.IssueID,
		"title":       rec.Issue.Title,
		"description": rec.Issue.Description,
		"issue_type":  string(rec.Issue.Type),
		"branch":      rec.Branch,
	}
	if rec.Repository != nil {
		ctx["repository"] = rec.Repository.Slug()
		ctx["base_branch"] = rec.Repository.DefaultBranch
	}
	return prompts.Resolve(prompts.Request{
		Base:     r.Config.AI.ImplementationPrompt,
		Override: opts.PromptOverride,
		File:     opts.PromptFile,
		Template: "implement.md",
		Append:   opts.Append,
		Context:  ctx,
	})
}

// EnsureWorktree creates the record's worktree and branch if absent. The
// branch name comes from the workflows.branch_naming template; the base
// branch is the detected repository default unless overridden.
func (r *Runner) EnsureWorktree(ctx context.Context, rec *WorkflowRecord) error {
	if rec.Worktree != nil && rec.Worktree.Exists() {
		return nil
	}
	if rec.Issue == nil {
		return fmt.Errorf("%w: issue not fetched", ErrPrecondition)
	}

	branch := prompts.Interpolate(r.Config.Workflows.BranchNaming, map[string]string{
		"issue_type": string(rec.Issue.Type),
		"id":         rec.IssueID,
	})
	base := r.Config.GitHub.DefaultBranch
	if rec.Repository != nil && rec.Repository.DefaultBranch != "" {
		base = rec.Repository.DefaultBranch
	}

	wt, err := r.Worktrees.Create(ctx, rec.IssueID, branch, base)
	if err != nil {
		return err
	}
	rec.Worktree = wt
	rec.Branch = branch
	slog.Info("created worktree", "issue", rec.IssueID, "path", wt.Path, "branch", branch)
	return r.Store.Save(rec)
}

// Implement resolves the prompt and runs the code generator inside the
// worktree. ai-status moves not-started → in-progress → implemented or
// failed; the pipeline status stays at implementing.
func (r *Runner) Implement(ctx context.Context, rec *WorkflowRecord, opts ImplementOptions) error {
	if err := r.AI.Available(); err != nil {
		return r.fail(rec, "implement", err)
	}
	if err := r.EnsureWorktree(ctx, rec); err != nil {
		return r.fail(rec, "implement", err)
	}

	prompt, err := r.ResolveImplementPrompt(rec, opts)
	if err != nil {
		return r.fail(rec, "implement", err)
	}

	rec.AIStatus = AIInProgress
	if err := r.Store.Save(rec); err != nil {
		return err
	}

	resp, err := r.AI.Generate(ctx, ai.Request{
		Prompt:  prompt,
		Agent:   r.Config.AI.ImplementationAgent,
		WorkDir: rec.Worktree.Path,
	})
	if err != nil {
		rec.AIStatus = AIFailed
		return r.fail(rec, "implement", err)
	}

	rec.AIResponse = resp
	if resp.Success {
		rec.AIStatus = AIImplemented
		slog.Info("implementation complete", "issue", rec.IssueID, "files", len(resp.FileChanges))
	} else {
		// Raw output is preserved on the record for inspection.
		rec.AIStatus = AIFailed
		slog.Warn("generator produced no usable output", "issue", rec.IssueID)
	}
	return r.Store.Save(rec)
}

// OpenPR commits and pushes the worktree's changes, then opens a pull
// request with the resolved metadata.
func (r *Runner) OpenPR(ctx context.Context, rec *WorkflowRecord) error {
	if rec.PRNumber != 0 {
		slog.Info("pull request already open", "issue", rec.IssueID, "pr", rec.PRNumber)
		return nil
	}
	if rec.Worktree == nil || !rec.Worktree.Exists() {
		return r.fail(rec, "open-pr", fmt.Errorf("%w: no worktree", ErrPrecondition))
	}

	rec.Status = StatusCreatingPR
	if err := r.Store.Save(rec); err != nil {
		return err
	}

	if err := r.commitImplementation(ctx, rec); err != nil {
		return r.fail(rec, "open-pr", err)
	}
	if err := repo.Push(ctx, rec.Worktree.Path, rec.Branch); err != nil {
		return r.fail(rec, "open-pr", err)
	}

	meta, err := BuildPRMetadata(rec, r.Config)
	if err != nil {
		return r.fail(rec, "open-pr", err)
	}
	rec.PRMetadata = meta

	base := rec.Worktree.BaseBranch
	if base == "" && rec.Repository != nil {
		base = rec.Repository.DefaultBranch
	}
	handle, err := r.Provider.CreatePR(ctx, provider.CreatePRRequest{
		Title: meta.Title,
		Body:  meta.Body,
		Head:  rec.Branch,
		Base:  base,
		Draft: meta.Draft,
	})
	if err != nil {
		return r.fail(rec, "open-pr", err)
	}
	rec.PRNumber = handle.Number
	rec.PRURL = handle.URL
	slog.Info("opened pull request", "issue", rec.IssueID, "pr", handle.Number, "url", handle.URL)

	r.applyPRMetadata(ctx, rec, meta)

	rec.Status = StatusInReview
	return r.Store.Save(rec)
}

// commitImplementation stages and commits outstanding worktree changes.
// A clean worktree with commits already ahead of base means the generator
// committed itself; a clean worktree with nothing ahead is an error.
func (r *Runner) commitImplementation(ctx context.Context, rec *WorkflowRecord) error {
	dir := rec.Worktree.Path
	dirty, err := repo.IsDirty(ctx, dir)
	if err != nil {
		return err
	}
	if !dirty {
		base := rec.Worktree.BaseBranch
		ahead, err := repo.CommitsAhead(ctx, dir, base)
		if err == nil && ahead > 0 {
			return nil
		}
		return fmt.Errorf("%w: no changes to commit", ErrPrecondition)
	}

	if err := repo.Stage(ctx, dir, nil); err != nil {
		return err
	}
	message := prompts.Interpolate(r.Config.Workflows.ImplementationCommitMessage, map[string]string{
		"prefix": rec.Issue.Type.CommitPrefix(),
		"title":  rec.Issue.Title,
		"id":     rec.IssueID,
	})
	hash, err := repo.Commit(ctx, dir, message)
	if err != nil {
		return err
	}
	rec.SetMeta("implementation_commit", hash)
	slog.Debug("committed implementation", "issue", rec.IssueID, "commit", hash)
	return nil
}

// applyPRMetadata sets labels, assignees, and reviewers. These are
// best-effort; a failure is logged but does not fail the stage.
func (r *Runner) applyPRMetadata(ctx context.Context, rec *WorkflowRecord, meta *PRMetadata) {
	if len(meta.Labels) > 0 {
		if err := r.Provider.SetLabels(ctx, rec.PRNumber, meta.Labels); err != nil {
			slog.Warn("setting PR labels", "pr", rec.PRNumber, "error", err)
		}
	}
	if len(meta.Assignees) > 0 {
		if err := r.Provider.SetAssignees(ctx, rec.PRNumber, meta.Assignees); err != nil {
			slog.Warn("setting PR assignees", "pr", rec.PRNumber, "error", err)
		}
	}
	if len(meta.Reviewers) > 0 {
		if err := r.Provider.RequestReviewers(ctx, rec.PRNumber, meta.Reviewers); err != nil {
			slog.Warn("requesting PR reviewers", "pr", rec.PRNumber, "error", err)
		}
	}
}

// Merge merges the PR when it is approved and checks are green. Force
// bypasses both gates but never the hosting service's own protections.
func (r *Runner) Merge(ctx context.Context, rec *WorkflowRecord, force bool) error {
	if rec.PRNumber == 0 {
		return r.fail(rec, "merge", fmt.Errorf("%w: no pull request", ErrPrecondition))
	}

	status, err := r.Provider.GetPRStatus(ctx, rec.PRNumber)
	if err != nil {
		return r.fail(rec, "merge", err)
	}
	if !force {
		if status.ReviewDecision != "approved" {
			return r.fail(rec, "merge", fmt.Errorf("%w: PR #%d is not approved (decision: %s)", ErrPrecondition, rec.PRNumber, status.ReviewDecision))
		}
		if !status.ChecksPassing {
			return r.fail(rec, "merge", fmt.Errorf("%w: PR #%d has failing checks", ErrPrecondition, rec.PRNumber))
		}
	}

	rec.Status = StatusReadyToMerge
	if err := r.Store.Save(rec); err != nil {
		return err
	}

	method := r.Config.GitHub.MergeMethod
	if method == "" {
		method = "squash"
	}
	if err := r.Provider.MergePR(ctx, rec.PRNumber, method); err != nil {
		return r.fail(rec, "merge", err)
	}
	slog.Info("merged pull request", "issue", rec.IssueID, "pr", rec.PRNumber, "method", method)

	rec.Status = StatusCompleted
	return r.Store.Save(rec)
}

// CleanupOptions tune the cleanup stage.
type CleanupOptions struct {
	KeepWorktree bool
	DeleteBranch bool
	Force        bool
}

// Cleanup removes the worktree and, when configured, the remote branch.
// A failed record stays failed; anything else is marked completed.
func (r *Runner) Cleanup(ctx context.Context, rec *WorkflowRecord, opts CleanupOptions) error {
	if !opts.KeepWorktree && rec.Worktree != nil {
		if err := r.Worktrees.Remove(ctx, rec.IssueID, opts.Force); err != nil {
			return r.fail(rec, "cleanup", err)
		}
		rec.Worktree = nil
		slog.Info("removed worktree", "issue", rec.IssueID)
	}

	if opts.DeleteBranch && rec.Branch != "" {
		if err := r.Provider.DeleteBranch(ctx, rec.Branch); err != nil {
			slog.Warn("deleting remote branch", "branch", rec.Branch, "error", err)
		}
	}

	if rec.Status != StatusFailed {
		rec.Status = StatusCompleted
	}
	return r.Store.Save(rec)
}
