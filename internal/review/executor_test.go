package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/config"
	"github.com/alanmeadows/autodev/internal/provider"
	"github.com/alanmeadows/autodev/internal/repo"
	"github.com/alanmeadows/autodev/internal/workflow"
)

func testExecutor(t *testing.T) (*Executor, *provider.MockClient, *ai.MockClient, *workflow.WorkflowRecord) {
	t.Helper()
	mock := provider.NewMockClient()
	gen := ai.NewMockClient()
	e := &Executor{
		Store:      workflow.NewStore(t.TempDir()),
		Provider:   mock,
		AI:         gen,
		Config:     config.DefaultConfig(),
		Validators: map[string]Validator{},
	}

	rec := workflow.NewRecord("#42")
	rec.PRNumber = 7
	rec.Branch = "auto/feature/42"
	rec.Status = workflow.StatusInReview
	rec.Worktree = &repo.WorktreeInfo{Path: t.TempDir(), Branch: rec.Branch, BaseBranch: "main"}
	require.NoError(t, e.Store.Save(rec))
	return e, mock, gen, rec
}

func TestUpdateRequiresPR(t *testing.T) {
	e, _, _, _ := testExecutor(t)
	rec := workflow.NewRecord("#1")
	err := e.Update(context.Background(), rec)
	assert.ErrorIs(t, err, workflow.ErrPrecondition)
}

func TestUpdateNoUnresolvedComments(t *testing.T) {
	e, mock, gen, rec := testExecutor(t)
	mock.Comments = []provider.ReviewComment{
		{ID: "1", Body: "fix this", Path: "a.go", Line: 5, Resolved: true},
	}
	require.NoError(t, e.Update(context.Background(), rec))
	assert.Equal(t, 0, gen.CallCount())
}

func TestUpdateNoActionableComments(t *testing.T) {
	e, mock, gen, rec := testExecutor(t)
	mock.Comments = []provider.ReviewComment{
		{ID: "1", Body: "looks good, nice", Author: "alice"},
	}
	require.NoError(t, e.Update(context.Background(), rec))
	assert.Equal(t, 0, gen.CallCount())
}

func TestExecutePlanNotAutomated(t *testing.T) {
	e, _, gen, rec := testExecutor(t)
	plan := UpdatePlan{ID: "performance_opt-1", Type: UpdatePerformance, Automated: false}

	res := e.executePlan(context.Background(), rec, plan, nil)
	assert.Equal(t, UpdateRequiresManual, res.Status)
	assert.Equal(t, 0, gen.CallCount())
}

func TestExecutePlanGeneratorFailure(t *testing.T) {
	e, _, gen, rec := testExecutor(t)
	gen.GenerateErr = ai.ErrGeneratorFailed
	plan := UpdatePlan{ID: "code_fix-1", Type: UpdateCodeFix, Automated: true}

	res := e.executePlan(context.Background(), rec, plan, map[string]ProcessedComment{})
	assert.Equal(t, UpdateFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestExecutePlanValidationGates(t *testing.T) {
	e, _, gen, rec := testExecutor(t)
	gen.Responses = []*ai.Response{{
		Success:     true,
		FileChanges: []ai.FileChange{{Path: "a.go", Action: ai.ActionModify}},
		Commands:    []string{"go test ./..."},
	}}
	e.Validators["syntax-check"] = func(context.Context, string, []string) (bool, error) { return true, nil }
	e.Validators["test-execution"] = func(context.Context, string, []string) (bool, error) { return false, nil }

	plan := UpdatePlan{
		ID: "code_fix-1", Type: UpdateCodeFix, Automated: true,
		ValidationSteps: []string{"syntax-check", "test-execution"},
	}
	res := e.executePlan(context.Background(), rec, plan, map[string]ProcessedComment{})

	assert.Equal(t, UpdateFailed, res.Status)
	assert.True(t, res.ValidationResults["syntax-check"])
	assert.False(t, res.ValidationResults["test-execution"])
	assert.Equal(t, []string{"a.go"}, res.FilesModified)
	assert.Equal(t, []string{"go test ./..."}, res.CommandsExecuted)
}

func TestExecutePlanUnknownValidationTagPassesVacuously(t *testing.T) {
	e, _, gen, rec := testExecutor(t)
	gen.Responses = []*ai.Response{{Success: true}}

	plan := UpdatePlan{
		ID: "documentation-1", Type: UpdateDocumentation, Automated: true,
		ValidationSteps: []string{"no-such-check"},
	}
	res := e.executePlan(context.Background(), rec, plan, map[string]ProcessedComment{})
	assert.Equal(t, UpdateCompleted, res.Status)
	assert.True(t, res.ValidationResults["no-such-check"])
}

func TestExecuteBatchesCriticalFailureHaltsBatch(t *testing.T) {
	e, _, gen, rec := testExecutor(t)
	gen.GenerateErr = ai.ErrGeneratorFailed

	batches := []Batch{{Plans: []UpdatePlan{
		{ID: "code_fix-1", Type: UpdateCodeFix, Automated: true},
		{ID: "style_improvement-2", Type: UpdateStyle, Automated: true},
	}}}
	results, err := e.executeBatches(context.Background(), rec, batches, map[string]ProcessedComment{})
	require.NoError(t, err)

	assert.Equal(t, UpdateFailed, results["code_fix-1"].Status)
	assert.Equal(t, UpdateSkipped, results["style_improvement-2"].Status)
}

func TestExecuteBatchesNonCriticalFailureContinues(t *testing.T) {
	e, _, gen, rec := testExecutor(t)
	gen.Responses = []*ai.Response{{Success: true}}
	e.Validators["formatting-check"] = func(context.Context, string, []string) (bool, error) { return false, nil }

	batches := []Batch{{Plans: []UpdatePlan{
		{ID: "style_improvement-1", Type: UpdateStyle, Automated: true, ValidationSteps: []string{"formatting-check"}},
		{ID: "documentation-2", Type: UpdateDocumentation, Automated: true},
	}}}
	results, err := e.executeBatches(context.Background(), rec, batches, map[string]ProcessedComment{})
	require.NoError(t, err)

	assert.Equal(t, UpdateFailed, results["style_improvement-1"].Status)
	assert.Equal(t, UpdateCompleted, results["documentation-2"].Status)
}

func TestUpdatePromptIncludesComments(t *testing.T) {
	e, _, _, rec := testExecutor(t)
	pc := analyzeOne(provider.ReviewComment{ID: "1", Body: "fix the null deref", Path: "a.go", Line: 15})
	plan := UpdatePlan{ID: "code_fix-1", Type: UpdateCodeFix, CommentIDs: []string{"1"}, Description: "address 1 code fix comment(s) on a.go"}

	prompt, err := e.updatePrompt(rec, plan, map[string]ProcessedComment{"1": pc})
	require.NoError(t, err)
	assert.Contains(t, prompt, "fix the null deref")
	assert.Contains(t, prompt, "a.go:15")
	assert.Contains(t, prompt, "address 1 code fix comment(s) on a.go")
}

func TestSummaryComment(t *testing.T) {
	plans := []UpdatePlan{
		{ID: "code_fix-1", Type: UpdateCodeFix, Description: "fix a.go"},
		{ID: "performance_opt-2", Type: UpdatePerformance, Description: "optimize b.go"},
	}
	results := map[string]*UpdateResult{
		"code_fix-1":        {PlanID: "code_fix-1", Status: UpdateCompleted, CommitID: "abc123"},
		"performance_opt-2": {PlanID: "performance_opt-2", Status: UpdateRequiresManual},
	}

	body := summaryComment(plans, results)
	assert.Contains(t, body, "fix a.go")
	assert.Contains(t, body, "abc123")
	assert.Contains(t, body, "needs manual attention")
}
