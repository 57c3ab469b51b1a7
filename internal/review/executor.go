package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/config"
	"github.com/alanmeadows/autodev/internal/prompts"
	"github.com/alanmeadows/autodev/internal/provider"
	"github.com/alanmeadows/autodev/internal/repo"
	"github.com/alanmeadows/autodev/internal/workflow"
)

// UpdateStatus is the outcome of executing one update plan.
type UpdateStatus string

const (
	UpdatePending        UpdateStatus = "pending"
	UpdateInProgress     UpdateStatus = "in-progress"
	UpdateCompleted      UpdateStatus = "completed"
	UpdateFailed         UpdateStatus = "failed"
	UpdateSkipped        UpdateStatus = "skipped"
	UpdateRequiresManual UpdateStatus = "requires-manual"
)

// UpdateResult records what happened to one plan.
type UpdateResult struct {
	PlanID            string
	Status            UpdateStatus
	FilesModified     []string
	CommandsExecuted  []string
	ExecutionTime     time.Duration
	Error             string
	ValidationResults map[string]bool
	CommitID          string
}

// Validator checks one aspect of a plan's output in the worktree.
// Returns pass/fail; an error means the check itself could not run.
type Validator func(ctx context.Context, dir string, files []string) (bool, error)

// Executor turns unresolved review comments into committed updates on
// the PR branch.
type Executor struct {
	Store    *workflow.Store
	Provider provider.Client
	AI       ai.Client
	Config   config.Config

	// Validators maps validation tags to checkers. Unknown tags pass
	// vacuously with a warning.
	Validators map[string]Validator
}

var _ workflow.Updater = (*Executor)(nil)

// Update runs one full review-feedback pass: fetch unresolved comments,
// analyze, plan, execute in dependency batches, commit per the
// configured strategy, push, and optionally post a summary comment.
func (e *Executor) Update(ctx context.Context, rec *workflow.WorkflowRecord) error {
	if rec.PRNumber == 0 {
		return fmt.Errorf("%w: no pull request", workflow.ErrPrecondition)
	}
	if rec.Worktree == nil || !rec.Worktree.Exists() {
		return fmt.Errorf("%w: no worktree to apply updates in", workflow.ErrPrecondition)
	}

	comments, err := e.Provider.GetPRComments(ctx, rec.PRNumber)
	if err != nil {
		return fmt.Errorf("fetching PR comments: %w", err)
	}
	var unresolved []provider.ReviewComment
	for _, c := range comments {
		if !c.Resolved {
			unresolved = append(unresolved, c)
		}
	}
	if len(unresolved) == 0 {
		slog.Info("no unresolved comments to address", "pr", rec.PRNumber)
		return nil
	}

	processed := Analyze(unresolved)
	plans := Plan(OrderActionable(processed))
	if len(plans) == 0 {
		slog.Info("no actionable comments", "pr", rec.PRNumber, "unresolved", len(unresolved))
		return nil
	}
	batches := BuildBatches(plans)
	slog.Info("executing update plans", "pr", rec.PRNumber, "plans", len(plans), "batches", len(batches))

	results, execErr := e.executeBatches(ctx, rec, batches, byID(processed))
	if execErr != nil {
		return execErr
	}

	completed := completedPlans(plans, results)
	if anyFailed(results) {
		// Validation failures leave the work uncommitted for inspection.
		return fmt.Errorf("review update for PR #%d failed validation", rec.PRNumber)
	}
	if len(completed) > 0 {
		if err := e.commitAndPush(ctx, rec, completed, results); err != nil {
			return err
		}
	}

	if e.Config.Workflows.PostUpdateSummary {
		if err := e.Provider.AddPRComment(ctx, rec.PRNumber, summaryComment(plans, results)); err != nil {
			slog.Warn("posting update summary", "pr", rec.PRNumber, "error", err)
		}
	}
	return e.Store.Save(rec)
}

func byID(processed []ProcessedComment) map[string]ProcessedComment {
	m := make(map[string]ProcessedComment, len(processed))
	for _, pc := range processed {
		m[pc.Comment.ID] = pc
	}
	return m
}

// executeBatches runs every batch in order. A critical plan failure
// (code or security fix) halts its batch; remaining plans in that batch
// are skipped.
func (e *Executor) executeBatches(ctx context.Context, rec *workflow.WorkflowRecord, batches []Batch, comments map[string]ProcessedComment) (map[string]*UpdateResult, error) {
	results := map[string]*UpdateResult{}
	for _, batch := range batches {
		halted := false
		for _, plan := range batch.Plans {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			if halted {
				results[plan.ID] = &UpdateResult{PlanID: plan.ID, Status: UpdateSkipped}
				continue
			}
			res := e.executePlan(ctx, rec, plan, comments)
			results[plan.ID] = res
			if res.Status == UpdateFailed && plan.Type.Critical() {
				slog.Warn("critical plan failed, halting batch", "plan", plan.ID, "error", res.Error)
				halted = true
			}
		}
	}
	return results, nil
}

// executePlan runs one plan through the generator and its validation
// steps.
func (e *Executor) executePlan(ctx context.Context, rec *workflow.WorkflowRecord, plan UpdatePlan, comments map[string]ProcessedComment) *UpdateResult {
	res := &UpdateResult{PlanID: plan.ID, Status: UpdateInProgress, ValidationResults: map[string]bool{}}
	start := time.Now()
	defer func() { res.ExecutionTime = time.Since(start) }()

	if !plan.Automated {
		res.Status = UpdateRequiresManual
		return res
	}

	prompt, err := e.updatePrompt(rec, plan, comments)
	if err != nil {
		res.Status = UpdateFailed
		res.Error = err.Error()
		return res
	}

	resp, err := e.AI.Generate(ctx, ai.Request{
		Prompt:  prompt,
		Agent:   e.Config.AI.UpdateAgent,
		WorkDir: rec.Worktree.Path,
	})
	if err != nil {
		res.Status = UpdateFailed
		res.Error = err.Error()
		return res
	}
	res.FilesModified = resp.ChangedPaths()
	res.CommandsExecuted = resp.Commands

	allPassed := true
	for _, tag := range plan.ValidationSteps {
		passed := e.validate(ctx, tag, rec.Worktree.Path, res.FilesModified)
		res.ValidationResults[tag] = passed
		if !passed {
			allPassed = false
		}
	}
	if allPassed {
		res.Status = UpdateCompleted
	} else {
		res.Status = UpdateFailed
		res.Error = "validation failed"
	}
	return res
}

func (e *Executor) validate(ctx context.Context, tag, dir string, files []string) bool {
	v, ok := e.Validators[tag]
	if !ok {
		slog.Warn("unknown validation tag, passing vacuously", "tag", tag)
		return true
	}
	passed, err := v(ctx, dir, files)
	if err != nil {
		slog.Warn("validator errored", "tag", tag, "error", err)
		return false
	}
	return passed
}

func (e *Executor) updatePrompt(rec *workflow.WorkflowRecord, plan UpdatePlan, comments map[string]ProcessedComment) (string, error) {
	var b strings.Builder
	for _, id := range plan.CommentIDs {
		pc, ok := comments[id]
		if !ok {
			continue
		}
		loc := pc.Comment.Path
		if pc.Comment.Line > 0 {
			loc = fmt.Sprintf("%s:%d", pc.Comment.Path, pc.Comment.Line)
		}
		fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", pc.Category, pc.Priority, loc, pc.Comment.Body)
		if pc.SuggestedChange != "" {
			fmt.Fprintf(&b, "  suggested change:\n```\n%s\n```\n", pc.SuggestedChange)
		}
	}

	return prompts.Resolve(prompts.Request{
		Base:     e.Config.AI.UpdatePrompt,
		Template: "update.md",
		Context: map[string]string{
			"pr":               fmt.Sprintf("%d", rec.PRNumber),
			"branch":           rec.Branch,
			"plan_description": plan.Description,
			"comments":         b.String(),
		},
	})
}

// commitAndPush commits completed plans per the configured strategy and
// pushes the PR branch.
func (e *Executor) commitAndPush(ctx context.Context, rec *workflow.WorkflowRecord, completed []UpdatePlan, results map[string]*UpdateResult) error {
	dir := rec.Worktree.Path
	for _, group := range commitGroups(e.Config.Workflows.CommitStrategy, completed) {
		var files []string
		seen := map[string]bool{}
		for _, plan := range group {
			for _, f := range results[plan.ID].FilesModified {
				if !seen[f] {
					seen[f] = true
					files = append(files, f)
				}
			}
		}

		dirty, err := repo.IsDirty(ctx, dir)
		if err != nil {
			return err
		}
		if !dirty {
			continue
		}
		if err := repo.Stage(ctx, dir, files); err != nil {
			return err
		}
		hash, err := repo.Commit(ctx, dir, commitMessage(group, rec.PRNumber))
		if err != nil {
			return err
		}
		for _, plan := range group {
			results[plan.ID].CommitID = hash
		}
		slog.Info("committed review updates", "pr", rec.PRNumber, "commit", hash, "plans", len(group))
	}

	if err := repo.Push(ctx, dir, rec.Branch); err != nil {
		return fmt.Errorf("pushing review updates: %w", err)
	}
	return nil
}

// commitGroups splits completed plans per the commit strategy: single
// (one commit for all), per-comment (one per plan), or grouped by
// update type (the default).
func commitGroups(strategy string, plans []UpdatePlan) [][]UpdatePlan {
	switch strategy {
	case "single":
		return [][]UpdatePlan{plans}
	case "per-comment":
		out := make([][]UpdatePlan, 0, len(plans))
		for _, p := range plans {
			out = append(out, []UpdatePlan{p})
		}
		return out
	default: // grouped
		byType := map[UpdateType][]UpdatePlan{}
		var order []UpdateType
		for _, p := range plans {
			if _, ok := byType[p.Type]; !ok {
				order = append(order, p.Type)
			}
			byType[p.Type] = append(byType[p.Type], p)
		}
		out := make([][]UpdatePlan, 0, len(order))
		for _, t := range order {
			out = append(out, byType[t])
		}
		return out
	}
}

// commitMessage composes the commit message for a group of plans.
func commitMessage(group []UpdatePlan, pr int) string {
	types := map[UpdateType]bool{}
	var order []UpdateType
	for _, p := range group {
		if !types[p.Type] {
			types[p.Type] = true
			order = append(order, p.Type)
		}
	}
	if len(order) == 1 {
		return fmt.Sprintf("fix: address %s feedback in PR #%d", order[0], pr)
	}
	names := make([]string, len(order))
	for i, t := range order {
		names[i] = string(t)
	}
	sort.Strings(names)
	return fmt.Sprintf("fix: address review feedback (%s) in PR #%d", strings.Join(names, ", "), pr)
}

func completedPlans(plans []UpdatePlan, results map[string]*UpdateResult) []UpdatePlan {
	var out []UpdatePlan
	for _, p := range plans {
		if r, ok := results[p.ID]; ok && r.Status == UpdateCompleted {
			out = append(out, p)
		}
	}
	return out
}

func anyFailed(results map[string]*UpdateResult) bool {
	for _, r := range results {
		if r.Status == UpdateFailed {
			return true
		}
	}
	return false
}

// summaryComment enumerates what was completed and what needs a human.
func summaryComment(plans []UpdatePlan, results map[string]*UpdateResult) string {
	var b strings.Builder
	b.WriteString("## Automated Review Updates\n\n")
	for _, p := range plans {
		r, ok := results[p.ID]
		if !ok {
			continue
		}
		switch r.Status {
		case UpdateCompleted:
			fmt.Fprintf(&b, "- ✅ %s", p.Description)
			if r.CommitID != "" {
				fmt.Fprintf(&b, " (%s)", r.CommitID)
			}
			b.WriteString("\n")
		case UpdateRequiresManual:
			fmt.Fprintf(&b, "- ⚠️ %s — needs manual attention\n", p.Description)
		case UpdateFailed:
			fmt.Fprintf(&b, "- ❌ %s — %s\n", p.Description, r.Error)
		case UpdateSkipped:
			fmt.Fprintf(&b, "- ⏭ %s — skipped\n", p.Description)
		}
	}
	return b.String()
}
