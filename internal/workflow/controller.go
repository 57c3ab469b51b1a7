package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanmeadows/autodev/internal/issue"
)

// CycleEngine drives the review cycle between opening and merging a PR.
// Implemented by internal/review.
type CycleEngine interface {
	// Run drives the cycle until a terminal status, a polling timeout, or
	// cancellation. The record's ReviewCycle is updated and persisted.
	Run(ctx context.Context, rec *WorkflowRecord) error
}

// Updater executes one review-feedback update pass on a PR.
// Implemented by internal/review.
type Updater interface {
	Update(ctx context.Context, rec *WorkflowRecord) error
}

// ProcessOptions tune a full pipeline run.
type ProcessOptions struct {
	SkipImplement bool
	SkipPR        bool
	SkipReview    bool
	Resume        bool
	AutoMerge     bool
	Implement     ImplementOptions
}

// Controller is the top-level state machine linking the stage runners and
// the review cycle engine. One controller instance processes one issue at
// a time; concurrent controllers coordinate through the state store.
type Controller struct {
	Runner *Runner
	Cycle  CycleEngine
	Update Updater
}

// Process drives an issue through the full pipeline: fetch, implement,
// open PR, review cycle, and optionally merge and cleanup. Stages whose
// target status is already reached are skipped, which makes re-running
// after an interruption a resume.
func (c *Controller) Process(ctx context.Context, rawID string, opts ProcessOptions) (*WorkflowRecord, error) {
	ref, err := issue.ParseRef(rawID)
	if err != nil {
		return nil, err
	}

	rec, err := c.loadOrCreate(ref.ID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() && !opts.Resume {
		return rec, fmt.Errorf("workflow for %s already %s; use cleanup to start over", ref.ID, rec.Status)
	}

	if !rec.Status.AtLeast(StatusImplementing) || rec.Issue == nil {
		if err := c.Runner.Fetch(ctx, rec); err != nil {
			return rec, err
		}
	}
	if err := ctx.Err(); err != nil {
		return rec, err
	}

	if !opts.SkipImplement && rec.AIStatus != AIImplemented && !rec.Status.AtLeast(StatusCreatingPR) {
		if err := c.Runner.Implement(ctx, rec, opts.Implement); err != nil {
			return rec, err
		}
		if rec.AIStatus != AIImplemented {
			return rec, fmt.Errorf("implementation did not succeed for %s", ref.ID)
		}
	}
	if err := ctx.Err(); err != nil {
		return rec, err
	}

	if !opts.SkipPR && rec.PRNumber == 0 {
		if err := c.Runner.OpenPR(ctx, rec); err != nil {
			return rec, err
		}
	}
	if err := ctx.Err(); err != nil {
		return rec, err
	}

	if !opts.SkipReview && rec.PRNumber != 0 && c.Cycle != nil {
		if err := c.Cycle.Run(ctx, rec); err != nil {
			return rec, err
		}
	}

	if opts.AutoMerge && rec.ReviewCycle != nil && rec.ReviewCycle.Status == CycleApproved {
		if err := c.Runner.Merge(ctx, rec, false); err != nil {
			return rec, err
		}
		if err := c.Runner.Cleanup(ctx, rec, CleanupOptions{}); err != nil {
			return rec, err
		}
	}

	slog.Info("pipeline finished", "issue", ref.ID, "status", rec.Status)
	return rec, nil
}

// Review runs the review cycle for a PR, constructing a minimal record if
// the PR was not opened by this tool.
func (c *Controller) Review(ctx context.Context, pr int) (*WorkflowRecord, error) {
	if c.Cycle == nil {
		return nil, fmt.Errorf("no review cycle engine configured")
	}
	rec, err := c.recordForPR(ctx, pr)
	if err != nil {
		return nil, err
	}
	if err := c.Cycle.Run(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// RunUpdate executes one review-feedback update pass on a PR.
func (c *Controller) RunUpdate(ctx context.Context, pr int) (*WorkflowRecord, error) {
	if c.Update == nil {
		return nil, fmt.Errorf("no updater configured")
	}
	rec, err := c.recordForPR(ctx, pr)
	if err != nil {
		return nil, err
	}
	if err := c.Update.Update(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (c *Controller) loadOrCreate(issueID string) (*WorkflowRecord, error) {
	rec, err := c.Runner.Store.Load(issueID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	rec = NewRecord(issueID)
	if err := c.Runner.Store.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// recordForPR finds the record owning a PR, or synthesizes one so the
// review entry points work on PRs opened outside this tool.
func (c *Controller) recordForPR(ctx context.Context, pr int) (*WorkflowRecord, error) {
	rec, err := c.Runner.Store.FindByPR(pr)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	slog.Debug("no workflow record for PR, synthesizing one", "pr", pr)
	rec = NewRecord(fmt.Sprintf("#pr-%d", pr))
	rec.PRNumber = pr
	rec.Status = StatusInReview
	repository, err := c.Runner.Provider.DetectRepo(ctx)
	if err != nil {
		return nil, err
	}
	rec.Repository = repository
	if err := c.Runner.Store.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
