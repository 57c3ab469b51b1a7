package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanGroupsByFileAndType(t *testing.T) {
	comments := Analyze(nil)
	_ = comments

	processed := []ProcessedComment{
		analyzeOne(lineComment("1", "fix the null deref here", "a.go", 10)),
		analyzeOne(lineComment("2", "this crashes on empty input", "a.go", 12)),
		analyzeOne(lineComment("3", "inconsistent naming convention", "a.go", 30)),
		analyzeOne(lineComment("4", "this loop is slow, optimize it", "b.go", 5)),
	}

	plans := Plan(processed)
	require.Len(t, plans, 3)

	byType := map[UpdateType]UpdatePlan{}
	for _, p := range plans {
		byType[p.Type] = p
	}

	fix := byType[UpdateCodeFix]
	assert.Equal(t, []string{"a.go"}, fix.TargetFiles)
	assert.ElementsMatch(t, []string{"1", "2"}, fix.CommentIDs)
	assert.True(t, fix.Automated)
	assert.Contains(t, fix.ValidationSteps, "syntax-check")

	style := byType[UpdateStyle]
	assert.Equal(t, []string{"a.go"}, style.TargetFiles)
	// Style polish waits for the fix on the same file.
	assert.Equal(t, []string{fix.ID}, style.Dependencies)

	perf := byType[UpdatePerformance]
	assert.Equal(t, []string{"b.go"}, perf.TargetFiles)
	assert.Empty(t, perf.Dependencies)
}

func TestPlanGeneralCommentsBecomeDocPlans(t *testing.T) {
	processed := []ProcessedComment{
		analyzeOne(comment("1", "you should handle the edge case somewhere")),
	}
	plans := Plan(processed)
	require.Len(t, plans, 1)
	assert.Equal(t, UpdateDocumentation, plans[0].Type)
	assert.Empty(t, plans[0].TargetFiles)
}

func TestPlanGeneralTestingComment(t *testing.T) {
	processed := []ProcessedComment{
		analyzeOne(comment("1", "add a test for the retry path")),
	}
	plans := Plan(processed)
	require.Len(t, plans, 1)
	assert.Equal(t, UpdateTestAddition, plans[0].Type)
}

func TestPlanSkipsNonActionable(t *testing.T) {
	processed := []ProcessedComment{
		analyzeOne(comment("1", "looks good, nice")),
		analyzeOne(comment("2", "nit: spacing")),
	}
	assert.Empty(t, Plan(processed))
}

func TestPlanRefactoringNotAutomated(t *testing.T) {
	processed := []ProcessedComment{
		analyzeOne(lineComment("1", "this needs a full refactor", "a.go", 1)),
	}
	plans := Plan(processed)
	require.Len(t, plans, 1)
	assert.False(t, plans[0].Automated)
}

func TestPlanComplexPerformanceNotAutomated(t *testing.T) {
	processed := []ProcessedComment{
		analyzeOne(lineComment("1", "this allocation is slow", "a.go", 1)),
		analyzeOne(lineComment("2", "memory usage is too high here", "a.go", 3)),
		analyzeOne(lineComment("3", "optimize this inner loop", "a.go", 5)),
	}
	plans := Plan(processed)
	require.Len(t, plans, 1)
	assert.Equal(t, UpdatePerformance, plans[0].Type)
	assert.False(t, plans[0].Automated)
}

func TestBuildBatchesDependencyOrder(t *testing.T) {
	plans := []UpdatePlan{
		{ID: "code_fix-1", Type: UpdateCodeFix},
		{ID: "style_improvement-2", Type: UpdateStyle, Dependencies: []string{"code_fix-1"}},
		{ID: "documentation-3", Type: UpdateDocumentation},
	}

	batches := BuildBatches(plans)
	require.Len(t, batches, 2)
	assert.False(t, batches[0].Forced)
	assert.Len(t, batches[0].Plans, 2) // the two independent plans
	assert.Equal(t, "style_improvement-2", batches[1].Plans[0].ID)

	// Every plan's dependencies land in strictly earlier batches.
	seen := map[string]bool{}
	for _, b := range batches {
		for _, p := range b.Plans {
			for _, d := range p.Dependencies {
				assert.True(t, seen[d], "dependency %s of %s not in earlier batch", d, p.ID)
			}
		}
		for _, p := range b.Plans {
			seen[p.ID] = true
		}
	}
}

func TestBuildBatchesBreaksCycle(t *testing.T) {
	plans := []UpdatePlan{
		{ID: "a", Type: UpdateCodeFix, Dependencies: []string{"b"}},
		{ID: "b", Type: UpdateStyle, Dependencies: []string{"a"}},
	}

	batches := BuildBatches(plans)
	require.Len(t, batches, 2)
	assert.True(t, batches[0].Forced)
	assert.Empty(t, batches[0].Plans[0].Dependencies)
	assert.False(t, batches[1].Forced)
}

func TestCommitGroups(t *testing.T) {
	plans := []UpdatePlan{
		{ID: "code_fix-1", Type: UpdateCodeFix},
		{ID: "code_fix-2", Type: UpdateCodeFix},
		{ID: "style_improvement-3", Type: UpdateStyle},
	}

	assert.Len(t, commitGroups("single", plans), 1)
	assert.Len(t, commitGroups("per-comment", plans), 3)

	grouped := commitGroups("grouped", plans)
	require.Len(t, grouped, 2)
	assert.Len(t, grouped[0], 2)
	assert.Len(t, grouped[1], 1)
}

func TestCommitMessage(t *testing.T) {
	single := []UpdatePlan{{ID: "code_fix-1", Type: UpdateCodeFix}}
	assert.Equal(t, "fix: address code_fix feedback in PR #7", commitMessage(single, 7))

	mixed := []UpdatePlan{
		{ID: "code_fix-1", Type: UpdateCodeFix},
		{ID: "style_improvement-2", Type: UpdateStyle},
	}
	assert.Equal(t, "fix: address review feedback (code_fix, style_improvement) in PR #7", commitMessage(mixed, 7))
}
