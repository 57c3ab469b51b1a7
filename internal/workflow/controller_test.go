package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/issue"
	"github.com/alanmeadows/autodev/internal/provider"
)

// stubCycle is a scripted CycleEngine.
type stubCycle struct {
	result CycleStatus
	err    error
	runs   int
}

func (s *stubCycle) Run(_ context.Context, rec *WorkflowRecord) error {
	s.runs++
	if s.err != nil {
		return s.err
	}
	if rec.ReviewCycle == nil {
		rec.ReviewCycle = &ReviewCycleState{PRNumber: rec.PRNumber, MaxIterations: 10}
	}
	rec.ReviewCycle.Status = s.result
	return nil
}

func testController(t *testing.T) (*Controller, *provider.MockClient, *ai.MockClient, *stubCycle) {
	t.Helper()
	r, mock, gen := testRunner(t)
	cycle := &stubCycle{result: CycleApproved}
	return &Controller{Runner: r, Cycle: cycle}, mock, gen, cycle
}

func TestProcessInvalidIdentifier(t *testing.T) {
	c, _, _, _ := testController(t)
	_, err := c.Process(context.Background(), "not an id", ProcessOptions{})
	assert.ErrorIs(t, err, issue.ErrInvalidIdentifier)
}

func TestProcessSkipFlags(t *testing.T) {
	c, mock, gen, cycle := testController(t)
	mock.Issues["#42"] = &issue.Issue{ID: "#42", Title: "Add retries", Type: issue.TypeFeature}

	rec, err := c.Process(context.Background(), "42", ProcessOptions{
		SkipImplement: true,
		SkipPR:        true,
		SkipReview:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusImplementing, rec.Status)
	assert.Equal(t, "Add retries", rec.Issue.Title)
	assert.Equal(t, 0, gen.CallCount())
	assert.Empty(t, mock.CreatedPRs)
	assert.Equal(t, 0, cycle.runs)
}

func TestProcessResumeSkipsCompletedStages(t *testing.T) {
	c, mock, gen, cycle := testController(t)

	// Simulate an interruption after implement finished: status is
	// implementing, generator succeeded, no PR yet.
	rec := NewRecord("#42")
	rec.Status = StatusImplementing
	rec.Issue = &issue.Issue{ID: "#42", Title: "Add retries", Type: issue.TypeFeature}
	rec.Repository = &provider.Repository{Owner: "acme", Name: "widgets", DefaultBranch: "main"}
	rec.AIStatus = AIImplemented
	rec.AIResponse = &ai.Response{Success: true, Summary: "done"}
	fakeWorktree(t, rec)
	require.NoError(t, c.Runner.Store.Save(rec))

	// OpenPR will fail on git operations in the fake worktree, but the
	// relevant behavior is observable before that: no re-fetch, no
	// second generator run.
	_, _ = c.Process(context.Background(), "#42", ProcessOptions{Resume: true, SkipPR: true})

	assert.Equal(t, 0, gen.CallCount())
	assert.Empty(t, mock.CreatedPRs)
	_ = cycle
}

func TestProcessTerminalRecordRejected(t *testing.T) {
	c, _, _, _ := testController(t)
	rec := NewRecord("#42")
	rec.Status = StatusCompleted
	require.NoError(t, c.Runner.Store.Save(rec))

	_, err := c.Process(context.Background(), "#42", ProcessOptions{})
	assert.Error(t, err)
}

func TestProcessCancelledBetweenStages(t *testing.T) {
	c, mock, _, _ := testController(t)
	mock.Issues["#42"] = &issue.Issue{ID: "#42", Title: "x", Type: issue.TypeTask}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := c.Process(ctx, "#42", ProcessOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// Cancellation never marks the record failed.
	if rec != nil {
		assert.NotEqual(t, StatusFailed, rec.Status)
	}
}

func TestReviewSynthesizesRecordForUnknownPR(t *testing.T) {
	c, _, _, cycle := testController(t)

	rec, err := c.Review(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, 55, rec.PRNumber)
	assert.Equal(t, StatusInReview, rec.Status)
	assert.Equal(t, "acme/widgets", rec.Repository.Slug())
	assert.Equal(t, 1, cycle.runs)
	assert.Equal(t, CycleApproved, rec.ReviewCycle.Status)
}

func TestReviewUsesExistingRecord(t *testing.T) {
	c, _, _, _ := testController(t)
	rec := NewRecord("#42")
	rec.PRNumber = 7
	rec.Status = StatusInReview
	require.NoError(t, c.Runner.Store.Save(rec))

	got, err := c.Review(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "#42", got.IssueID)
}
