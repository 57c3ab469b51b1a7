package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/autodev/internal/provider"
)

func comment(id, body string) provider.ReviewComment {
	return provider.ReviewComment{ID: id, Body: body, Author: "alice"}
}

func lineComment(id, body, path string, line int) provider.ReviewComment {
	c := comment(id, body)
	c.Path = path
	c.Line = line
	return c
}

func TestCategorizePrecedence(t *testing.T) {
	cases := []struct {
		body string
		want Category
	}{
		{"this has a security vulnerability", CategorySecurity},
		{"sanitize this input before use", CategorySecurity},
		{"why is this done twice?", CategoryQuestion},
		{"needs a test for the error path", CategoryTesting},
		{"please update the README", CategoryDocumentation},
		{"needs documentation", CategoryDocumentation},
		{"nit: extra space", CategoryNitpick},
		{"bug that breaks performance", CategoryBug},
		{"this error makes memory usage slow", CategoryPerformance},
		{"this crashes on empty input", CategoryBug},
		{"this loop is slow, optimize it", CategoryPerformance},
		{"inconsistent naming convention here", CategoryStyle},
		{"consider extracting a helper", CategorySuggestion},
		{"this could be cleaner", CategorySuggestion},
		{"hmm", CategoryCodeQuality},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, categorize(tc.body), "body: %q", tc.body)
	}
}

func TestSecurityBeatsQuestion(t *testing.T) {
	// Security is checked before the question rule.
	assert.Equal(t, CategorySecurity, categorize("is this an XSS vector?"))
}

func TestPrioritize(t *testing.T) {
	assert.Equal(t, PriorityCritical, prioritize("security vulnerability here", CategorySecurity))
	assert.Equal(t, PriorityCritical, prioritize("this is broken", CategoryCodeQuality))
	assert.Equal(t, PriorityCritical, prioritize("null deref", CategoryBug))
	assert.Equal(t, PriorityHigh, prioritize("this must be validated", CategoryCodeQuality))
	assert.Equal(t, PriorityHigh, prioritize("slow path", CategoryPerformance))
	assert.Equal(t, PriorityLow, prioritize("nit: spacing", CategoryNitpick))
	assert.Equal(t, PriorityLow, prioritize("just curious", CategoryQuestion))
	assert.Equal(t, PriorityMedium, prioritize("rename this", CategoryCodeQuality))
}

func TestClassifyType(t *testing.T) {
	sugg := comment("1", "```suggestion\nreturn nil\n```")
	assert.Equal(t, TypeSuggestion, classifyType(sugg))

	assert.Equal(t, TypeLineComment, classifyType(lineComment("2", "fix this", "a.go", 10)))

	fc := comment("3", "whole file needs work")
	fc.Path = "a.go"
	assert.Equal(t, TypeFileComment, classifyType(fc))

	assert.Equal(t, TypeChangeRequest, classifyType(comment("4", "this must be handled")))
	assert.Equal(t, TypeGeneralComment, classifyType(comment("5", "interesting approach")))
}

func TestActionable(t *testing.T) {
	pc := analyzeOne(comment("1", "looks good to me, nice work"))
	assert.False(t, pc.Actionable)

	pc = analyzeOne(comment("2", "nice work, but you should handle the error"))
	assert.True(t, pc.Actionable)

	pc = analyzeOne(comment("3", "why is this a pointer?"))
	assert.False(t, pc.Actionable)

	pc = analyzeOne(comment("4", "nit: extra space"))
	assert.False(t, pc.Actionable)
	assert.Equal(t, PriorityLow, pc.Priority)
	assert.Equal(t, CategoryNitpick, pc.Category)

	pc = analyzeOne(comment("5", "fix the null deref at line 15"))
	assert.True(t, pc.Actionable)
	assert.True(t, pc.RequiresCodeChange)
}

func TestRequiresCodeChangePraiseContext(t *testing.T) {
	pc := analyzeOne(comment("1", "great, love the added helper"))
	assert.False(t, pc.RequiresCodeChange)
}

func TestExtractSuggestion(t *testing.T) {
	body := "try this:\n```suggestion\nreturn fmt.Errorf(\"x\")\n```"
	assert.Equal(t, "return fmt.Errorf(\"x\")", extractSuggestion(body))

	body = "like so:\n```go\nx := 1\n```"
	assert.Equal(t, "x := 1", extractSuggestion(body))

	assert.Empty(t, extractSuggestion("no code here"))
}

func TestComplexityAndEffort(t *testing.T) {
	pc := analyzeOne(comment("1", "nit: typo"))
	assert.Equal(t, 1, pc.Complexity) // 5 - 3 nitpick - 2 typo, clamped
	assert.Equal(t, EffortQuick, pc.Effort)

	pc = analyzeOne(comment("2", "security issue, needs a refactor of the auth flow"))
	assert.Equal(t, CategorySecurity, pc.Category)
	assert.GreaterOrEqual(t, pc.Complexity, 7)
	assert.Equal(t, EffortSignificant, pc.Effort)

	pc = analyzeOne(comment("3", "rename this variable"))
	assert.Equal(t, 5, pc.Complexity)
	assert.Equal(t, EffortMedium, pc.Effort)
}

func TestGroupThreads(t *testing.T) {
	comments := []ProcessedComment{
		analyzeOne(lineComment("1", "fix a", "a.go", 10)),
		analyzeOne(lineComment("2", "fix b", "a.go", 15)),
		analyzeOne(lineComment("3", "fix c", "a.go", 40)),
		analyzeOne(lineComment("4", "fix d", "b.go", 5)),
		analyzeOne(comment("5", "general note about naming")),
	}

	threads := GroupThreads(comments)
	require.Len(t, threads, 4)

	// a.go lines 10 and 15 merge; line 40 is its own thread.
	assert.Equal(t, "a.go", threads[0].Path)
	assert.Len(t, threads[0].Comments, 2)
	assert.Equal(t, "a.go", threads[1].Path)
	assert.Len(t, threads[1].Comments, 1)
	assert.Equal(t, "b.go", threads[2].Path)
	assert.Empty(t, threads[3].Path)
}

func TestAnalyzeThreadDependencies(t *testing.T) {
	out := Analyze([]provider.ReviewComment{
		lineComment("1", "fix a", "a.go", 10),
		lineComment("2", "fix b", "a.go", 12),
	})
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Dependencies)
	assert.Equal(t, []string{"1"}, out[1].Dependencies)
}

func TestOrderActionable(t *testing.T) {
	comments := []ProcessedComment{
		analyzeOne(comment("style", "inconsistent naming convention")),
		analyzeOne(comment("sec", "security vulnerability in token handling")),
		analyzeOne(comment("praise", "looks good, nice")),
		analyzeOne(comment("bug", "this crashes on nil input")),
	}

	ordered := OrderActionable(comments)
	require.Len(t, ordered, 3)
	assert.Equal(t, CategorySecurity, ordered[0].Category)
	assert.Equal(t, CategoryBug, ordered[1].Category)
	assert.Equal(t, CategoryStyle, ordered[2].Category)
}
