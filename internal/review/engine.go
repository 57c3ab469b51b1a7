package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/config"
	"github.com/alanmeadows/autodev/internal/prompts"
	"github.com/alanmeadows/autodev/internal/provider"
	"github.com/alanmeadows/autodev/internal/workflow"
)

// BotSuffix marks hosting-service app accounts; their reviews never count
// as human.
const BotSuffix = "[bot]"

// Engine drives the bounded review cycle for one PR: post a machine
// review, wait for humans, classify the verdict, and dispatch updates
// until the PR is approved or the iteration bound is hit.
type Engine struct {
	Store    *workflow.Store
	Provider provider.Client
	AI       ai.Client
	Config   config.Config
	Updater  workflow.Updater

	// now and sleep are test seams.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var _ workflow.CycleEngine = (*Engine)(nil)

// NewEngine wires an engine with real clock and sleep.
func NewEngine(store *workflow.Store, client provider.Client, gen ai.Client, cfg config.Config, updater workflow.Updater) *Engine {
	return &Engine{
		Store:    store,
		Provider: client,
		AI:       gen,
		Config:   cfg,
		Updater:  updater,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the cycle until a terminal status, a polling timeout, or
// cancellation. The record's ReviewCycle is created on first entry and
// persisted after every transition; re-entry resumes from the stored
// iteration and posts no duplicate side effects.
func (e *Engine) Run(ctx context.Context, rec *workflow.WorkflowRecord) error {
	if rec.PRNumber == 0 {
		return fmt.Errorf("%w: no pull request to review", workflow.ErrPrecondition)
	}
	state := e.ensureState(rec)
	if state.Status.Terminal() {
		slog.Info("review cycle already terminal", "pr", state.PRNumber, "status", state.Status)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return e.suspend(rec, err)
		}
		if state.Iteration+1 > state.MaxIterations {
			state.Status = workflow.CycleMaxIterations
			state.LastActivity = e.now()
			slog.Warn("review cycle hit iteration bound", "pr", state.PRNumber, "iterations", state.Iteration)
			return e.Store.Save(rec)
		}
		state.Iteration++
		slog.Info("review iteration", "pr", state.PRNumber, "iteration", state.Iteration, "max", state.MaxIterations)

		if e.Config.Workflows.AIReviewFirst || state.Iteration == 1 {
			if err := e.machineReview(ctx, rec, state); err != nil {
				return e.suspend(rec, err)
			}
		}

		verdict, err := e.awaitVerdict(ctx, rec, state)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return e.suspend(rec, err)
			}
			state.Status = workflow.CycleFailed
			state.LastActivity = e.now()
			return e.suspend(rec, err)
		}
		switch verdict {
		case workflow.CycleApproved:
			state.Status = workflow.CycleApproved
			state.LastActivity = e.now()
			slog.Info("pull request approved", "pr", state.PRNumber, "iteration", state.Iteration)
			return e.Store.Save(rec)
		case workflow.CycleWaitingForHuman:
			// Polling timed out; hand control back to the caller.
			return e.Store.Save(rec)
		case workflow.CycleChangesRequested:
			if err := e.machineUpdate(ctx, rec, state); err != nil {
				state.Status = workflow.CycleFailed
				state.LastActivity = e.now()
				if saveErr := e.Store.Save(rec); saveErr != nil {
					slog.Warn("persisting failed cycle", "pr", state.PRNumber, "error", saveErr)
				}
				return err
			}
			// Loop into the next iteration.
		}
	}
}

func (e *Engine) ensureState(rec *workflow.WorkflowRecord) *workflow.ReviewCycleState {
	if rec.ReviewCycle == nil {
		max := e.Config.Workflows.MaxReviewIterations
		if max <= 0 {
			max = 10
		}
		rec.ReviewCycle = &workflow.ReviewCycleState{
			PRNumber:      rec.PRNumber,
			MaxIterations: max,
			Status:        workflow.CyclePending,
			LastActivity:  e.now(),
		}
	}
	return rec.ReviewCycle
}

// suspend persists state on cancellation or transient exit without
// marking the cycle failed.
func (e *Engine) suspend(rec *workflow.WorkflowRecord, err error) error {
	if saveErr := e.Store.Save(rec); saveErr != nil {
		slog.Warn("persisting cycle state on exit", "error", saveErr)
	}
	return err
}

// machineReview posts an AI review for the current iteration. Gated on
// the iteration's machine-review entry being absent, so re-entry never
// posts twice. A review failure is recorded but does not fail the cycle.
func (e *Engine) machineReview(ctx context.Context, rec *workflow.WorkflowRecord, state *workflow.ReviewCycleState) error {
	if state.MachineReviewFor(state.Iteration) != nil {
		return nil
	}
	state.Status = workflow.CycleMachineReview
	state.LastActivity = e.now()
	if err := e.Store.Save(rec); err != nil {
		return err
	}

	entry := workflow.MachineReview{Iteration: state.Iteration, Timestamp: e.now()}
	body, err := e.generateReview(ctx, rec)
	if err == nil {
		_, err = e.Provider.PostReview(ctx, state.PRNumber, body, nil, provider.EventComment)
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
		slog.Warn("machine review failed", "pr", state.PRNumber, "iteration", state.Iteration, "error", err)
	} else {
		entry.Status = "posted"
		slog.Info("posted machine review", "pr", state.PRNumber, "iteration", state.Iteration)
	}
	state.MachineReviews = append(state.MachineReviews, entry)
	return e.Store.Save(rec)
}

func (e *Engine) generateReview(ctx context.Context, rec *workflow.WorkflowRecord) (string, error) {
	ctxMap := map[string]string{
		"pr":     fmt.Sprintf("%d", rec.PRNumber),
		"branch": rec.Branch,
		"id":     rec.IssueID,
	}
	if rec.Issue != nil {
		ctxMap["title"] = rec.Issue.Title
		ctxMap["description"] = rec.Issue.Description
	}
	if rec.Repository != nil {
		ctxMap["repository"] = rec.Repository.Slug()
		ctxMap["base_branch"] = rec.Repository.DefaultBranch
	}
	prompt, err := prompts.Resolve(prompts.Request{
		Base:     e.Config.AI.ReviewPrompt,
		Template: "review.md",
		Context:  ctxMap,
	})
	if err != nil {
		return "", err
	}

	var workDir string
	if rec.Worktree != nil {
		workDir = rec.Worktree.Path
	}
	resp, err := e.AI.Generate(ctx, ai.Request{
		Prompt:  prompt,
		Agent:   e.Config.AI.ReviewAgent,
		WorkDir: workDir,
	})
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(resp.Raw)
	if body == "" {
		body = resp.Summary
	}
	if body == "" {
		return "", fmt.Errorf("%w: empty review", ai.ErrGeneratorFailed)
	}
	return body, nil
}

// awaitVerdict polls for new human reviews, then classifies the approval
// state. Classification fires only after a review this call has not seen
// before: a standing changes-requested review is acted on once, and the
// next iteration waits for the human to respond to the pushed update
// instead of re-triggering on the same review. Even with human approval
// not required, a verdict still needs at least one human review to react
// to; a PR nobody has looked at keeps waiting. Returns
// CycleWaitingForHuman when the wall-clock timeout elapses with no
// verdict.
func (e *Engine) awaitVerdict(ctx context.Context, rec *workflow.WorkflowRecord, state *workflow.ReviewCycleState) (workflow.CycleStatus, error) {
	state.Status = workflow.CycleWaitingForHuman
	state.LastActivity = e.now()
	if err := e.Store.Save(rec); err != nil {
		return "", err
	}

	interval := e.Config.Workflows.PollInterval()
	deadline := e.now().Add(e.Config.Workflows.WaitTimeout())
	received := false

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reviews, err := e.Provider.GetPRReviews(ctx, state.PRNumber)
		if err != nil {
			return "", fmt.Errorf("fetching PR reviews: %w", err)
		}
		human := e.filterHuman(reviews)

		if newOnes := e.recordNewReviews(state, human); newOnes > 0 {
			received = true
			state.Status = workflow.CycleHumanReviewReceived
			state.LastActivity = e.now()
			if err := e.Store.Save(rec); err != nil {
				return "", err
			}
			slog.Info("human review received", "pr", state.PRNumber, "new", newOnes)
		}

		if received && len(human) > 0 {
			verdict, err := e.classify(ctx, state, human)
			if err != nil {
				return "", err
			}
			if verdict != "" {
				state.Status = verdict
				state.LastActivity = e.now()
				return verdict, e.Store.Save(rec)
			}
			// No clear signal (comment-only reviews): keep polling.
			state.Status = workflow.CycleWaitingForHuman
		}

		if e.now().After(deadline) {
			slog.Warn("timed out waiting for human review", "pr", state.PRNumber)
			state.Status = workflow.CycleWaitingForHuman
			return workflow.CycleWaitingForHuman, nil
		}
		if err := e.sleep(ctx, interval); err != nil {
			return "", err
		}
	}
}

// filterHuman drops bot-authored reviews: logins ending in the bot
// suffix plus the configured allowlist.
func (e *Engine) filterHuman(reviews []provider.Review) []provider.Review {
	var out []provider.Review
	for _, r := range reviews {
		if e.isBot(r.Author) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) isBot(login string) bool {
	if strings.HasSuffix(login, BotSuffix) {
		return true
	}
	for _, b := range e.Config.Workflows.BotReviewers {
		if strings.EqualFold(b, login) {
			return true
		}
	}
	return false
}

// recordNewReviews appends reviews not yet in state and returns how many
// were new.
func (e *Engine) recordNewReviews(state *workflow.ReviewCycleState, reviews []provider.Review) int {
	known := map[string]bool{}
	for _, hr := range state.HumanReviews {
		known[hr.ReviewID] = true
	}
	count := 0
	for _, r := range reviews {
		if known[r.ID] {
			continue
		}
		state.HumanReviews = append(state.HumanReviews, workflow.HumanReview{
			Iteration: state.Iteration,
			Timestamp: e.now(),
			Author:    r.Author,
			State:     r.State,
			Body:      r.Body,
			ReviewID:  r.ID,
		})
		count++
	}
	return count
}

// classify computes the approval verdict from the latest review per
// author. Unresolved comments veto approval even when reviews are green.
// An empty verdict means no clear signal yet.
func (e *Engine) classify(ctx context.Context, state *workflow.ReviewCycleState, human []provider.Review) (workflow.CycleStatus, error) {
	latest := map[string]provider.Review{}
	for _, r := range human {
		prev, ok := latest[r.Author]
		if !ok || r.SubmittedAt.After(prev.SubmittedAt) {
			latest[r.Author] = r
		}
	}

	approvals, changesRequested := 0, 0
	for _, r := range latest {
		switch r.State {
		case provider.ReviewApproved:
			approvals++
		case provider.ReviewChangesRequested:
			changesRequested++
		}
	}

	comments, err := e.Provider.GetPRComments(ctx, state.PRNumber)
	if err != nil {
		return "", fmt.Errorf("fetching PR comments: %w", err)
	}
	state.UnresolvedComments = nil
	for _, c := range comments {
		if !c.Resolved {
			state.UnresolvedComments = append(state.UnresolvedComments, c)
		}
	}

	if changesRequested > 0 || len(state.UnresolvedComments) > 0 {
		return workflow.CycleChangesRequested, nil
	}
	// With approval not required, a clean slate counts as approved.
	if approvals > 0 || !e.Config.Workflows.RequireHumanApproval {
		return workflow.CycleApproved, nil
	}
	return "", nil
}

// machineUpdate dispatches one update pass to the planner/executor.
func (e *Engine) machineUpdate(ctx context.Context, rec *workflow.WorkflowRecord, state *workflow.ReviewCycleState) error {
	if e.Updater == nil {
		return fmt.Errorf("changes requested on PR #%d but no updater configured", state.PRNumber)
	}
	state.Status = workflow.CycleMachineUpdate
	state.LastActivity = e.now()
	if err := e.Store.Save(rec); err != nil {
		return err
	}
	if err := e.Updater.Update(ctx, rec); err != nil {
		return fmt.Errorf("machine update for PR #%d: %w", state.PRNumber, err)
	}
	return nil
}
