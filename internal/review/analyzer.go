// Package review implements the bounded review cycle: analyzing review
// comments, planning and executing machine-authored updates, and driving
// the machine-review / human-review loop until a PR is approved or the
// iteration bound is hit.
package review

import (
	"regexp"
	"sort"
	"strings"

	"github.com/alanmeadows/autodev/internal/provider"
)

// Category classifies the subject of a review comment.
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryQuestion      Category = "question"
	CategoryTesting       Category = "testing"
	CategoryDocumentation Category = "documentation"
	CategoryNitpick       Category = "nitpick"
	CategoryBug           Category = "bug"
	CategoryPerformance   Category = "performance"
	CategoryStyle         Category = "style"
	CategorySuggestion    Category = "suggestion"
	CategoryCodeQuality   Category = "code-quality"
)

// Priority ranks how urgently a comment needs addressing.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

var categoryRank = map[Category]int{
	CategorySecurity:      0,
	CategoryBug:           1,
	CategoryPerformance:   2,
	CategoryTesting:       3,
	CategoryCodeQuality:   4,
	CategorySuggestion:    5,
	CategoryDocumentation: 6,
	CategoryStyle:         7,
	CategoryQuestion:      8,
	CategoryNitpick:       9,
}

// CommentType classifies the mechanical form of a comment.
type CommentType string

const (
	TypeSuggestion     CommentType = "suggestion"
	TypeLineComment    CommentType = "line-comment"
	TypeFileComment    CommentType = "file-comment"
	TypeChangeRequest  CommentType = "change-request"
	TypeGeneralComment CommentType = "general-comment"
)

// Effort buckets the expected work to address a comment.
type Effort string

const (
	EffortQuick       Effort = "quick"
	EffortMedium      Effort = "medium"
	EffortSignificant Effort = "significant"
)

// ProcessedComment is the analyzer's enriched view of one review comment.
type ProcessedComment struct {
	Comment            provider.ReviewComment
	Category           Category
	Priority           Priority
	Type               CommentType
	Actionable         bool
	RequiresCodeChange bool
	SuggestedChange    string
	Keywords           []string
	Complexity         int
	Effort             Effort
	RelatedFiles       []string
	Dependencies       []string
}

var (
	securityRe    = regexp.MustCompile(`(?i)\b(security|vulnerab\w*|xss|csrf|auth(?:entication|oriz\w*|enticat\w*)?|sanitiz\w*|injection|credential\w*|exploit\w*)\b`)
	whWordRe      = regexp.MustCompile(`(?i)\b(what|why|how|where|when|which|who)\b`)
	testingRe     = regexp.MustCompile(`(?i)\b(tests?|spec|coverage|mocks?)\b`)
	docExplicitRe = regexp.MustCompile(`(?i)\b(readme|docs|docstring)\b`)
	docIndicatRe  = regexp.MustCompile(`(?i)\b(add|update|missing|needs?|improve)\b`)
	documentRe    = regexp.MustCompile(`(?i)\bdocument(ation)?\b`)
	nitpickRe     = regexp.MustCompile(`(?i)\b(nits?|nitpick\w*|minor|tiny)\b`)
	bugRe         = regexp.MustCompile(`(?i)\b(bugs?|errors?|crash\w*|fail\w*|broken|breaks?|defects?|wrong|incorrect|panics?|null|nil)\b`)
	performanceRe = regexp.MustCompile(`(?i)\b(performance|slow\w*|optimi\w*|latency|memory|leaks?|inefficien\w*|speed)\b`)
	breakageRe    = regexp.MustCompile(`(?i)(\bbreaks?\b|\bbroken\b|\bfail\w*\b|\bcrash\w*\b|doesn'?t work|does not work)`)
	styleRe       = regexp.MustCompile(`(?i)\b(style|format\w*|indent\w*|naming|convention\w*|whitespace|lint\w*)\b`)
	suggestRe     = regexp.MustCompile(`(?i)\b(suggest\w*|recommend\w*|consider|maybe|could)\b`)

	criticalRe = regexp.MustCompile(`(?i)\b(critical|urgent|blocking|broken|security)\b`)
	highRe     = regexp.MustCompile(`(?i)\b(important|should|must|required)\b`)
	lowRe      = regexp.MustCompile(`(?i)\b(nits?|minor|optional)\b`)

	changeRequestRe = regexp.MustCompile(`(?i)\b(must|required|needs?|should fix)\b`)
	imperativeRe    = regexp.MustCompile(`(?i)\b(fix|change|update|modify|refactor|remove|add|replace|correct|adjust)\b`)
	praiseRe        = regexp.MustCompile(`(?i)\b(lgtm|nice|great|perfect|awesome|well done|looks good)\b`)
	contrastiveRe   = regexp.MustCompile(`(?i)\b(but|however|should|could|might|consider)\b`)

	refactorRe = regexp.MustCompile(`(?i)\b(refactor\w*|redesign\w*|architecture)\b`)
	trivialRe  = regexp.MustCompile(`(?i)\b(typo|spacing|format\w*)\b`)

	suggestionBlockRe = regexp.MustCompile("(?s)```suggestion\\n(.*?)```")
	codeBlockRe       = regexp.MustCompile("(?s)```(?:\\w+)?\\n(.*?)```")
)

// Analyze enriches each review comment and computes intra-thread
// dependencies: a comment depends on earlier comments in its thread.
func Analyze(comments []provider.ReviewComment) []ProcessedComment {
	out := make([]ProcessedComment, 0, len(comments))
	for _, c := range comments {
		out = append(out, analyzeOne(c))
	}

	for _, thread := range GroupThreads(out) {
		for i := 1; i < len(thread.Comments); i++ {
			id := thread.Comments[i].Comment.ID
			prior := thread.Comments[:i]
			for j := range out {
				if out[j].Comment.ID != id {
					continue
				}
				for _, p := range prior {
					out[j].Dependencies = append(out[j].Dependencies, p.Comment.ID)
				}
			}
		}
	}
	return out
}

func analyzeOne(c provider.ReviewComment) ProcessedComment {
	pc := ProcessedComment{Comment: c}
	body := c.Body

	pc.Category = categorize(body)
	pc.Priority = prioritize(body, pc.Category)
	pc.Type = classifyType(c)
	pc.Actionable = actionable(body, pc.Category, pc.Type)
	pc.RequiresCodeChange = requiresCodeChange(body, pc.Type)
	pc.SuggestedChange = extractSuggestion(body)
	pc.Keywords = keywords(body)
	pc.Complexity = complexity(body, pc.Category)
	pc.Effort = effortFor(pc.Complexity)
	if c.Path != "" {
		pc.RelatedFiles = []string{c.Path}
	}
	return pc
}

// categorize applies the classification rules in strict precedence order;
// the first match wins.
func categorize(body string) Category {
	switch {
	case securityRe.MatchString(body):
		return CategorySecurity
	case isQuestion(body):
		return CategoryQuestion
	case testingRe.MatchString(body):
		return CategoryTesting
	case docExplicitRe.MatchString(body),
		docIndicatRe.MatchString(body) && documentRe.MatchString(body):
		return CategoryDocumentation
	case nitpickRe.MatchString(body):
		return CategoryNitpick
	case bugRe.MatchString(body) && performanceRe.MatchString(body):
		// Breakage wording wins the tie; otherwise it reads as a
		// performance concern.
		if breakageRe.MatchString(body) {
			return CategoryBug
		}
		return CategoryPerformance
	case bugRe.MatchString(body):
		return CategoryBug
	case performanceRe.MatchString(body):
		return CategoryPerformance
	case styleRe.MatchString(body):
		return CategoryStyle
	case documentRe.MatchString(body):
		return CategoryDocumentation
	case suggestRe.MatchString(body):
		return CategorySuggestion
	default:
		return CategoryCodeQuality
	}
}

func isQuestion(body string) bool {
	trimmed := strings.TrimSpace(body)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	return whWordRe.MatchString(body) && strings.Contains(body, "?")
}

func prioritize(body string, cat Category) Priority {
	switch {
	case criticalRe.MatchString(body), cat == CategoryBug, cat == CategorySecurity:
		return PriorityCritical
	case highRe.MatchString(body), cat == CategoryPerformance:
		return PriorityHigh
	case lowRe.MatchString(body), cat == CategoryNitpick, cat == CategoryQuestion:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

func classifyType(c provider.ReviewComment) CommentType {
	switch {
	case suggestionBlockRe.MatchString(c.Body):
		return TypeSuggestion
	case c.Line > 0:
		return TypeLineComment
	case c.Path != "":
		return TypeFileComment
	case changeRequestRe.MatchString(c.Body):
		return TypeChangeRequest
	default:
		return TypeGeneralComment
	}
}

func actionable(body string, cat Category, typ CommentType) bool {
	if praiseRe.MatchString(body) && !contrastiveRe.MatchString(body) {
		return false
	}
	if cat == CategoryQuestion && !imperativeRe.MatchString(body) {
		return false
	}
	if cat == CategoryNitpick {
		return false
	}
	_ = typ
	return true
}

func requiresCodeChange(body string, typ CommentType) bool {
	if typ == TypeSuggestion || typ == TypeChangeRequest {
		return true
	}
	if praiseRe.MatchString(body) && !contrastiveRe.MatchString(body) {
		return false
	}
	return imperativeRe.MatchString(body)
}

// extractSuggestion returns the fenced suggestion block, or the first
// fenced code block when no suggestion block exists.
func extractSuggestion(body string) string {
	if m := suggestionBlockRe.FindStringSubmatch(body); m != nil {
		return strings.TrimRight(m[1], "\n")
	}
	if m := codeBlockRe.FindStringSubmatch(body); m != nil {
		return strings.TrimRight(m[1], "\n")
	}
	return ""
}

func keywords(body string) []string {
	var out []string
	seen := map[string]bool{}
	for _, re := range []*regexp.Regexp{securityRe, testingRe, nitpickRe, bugRe, performanceRe, styleRe, suggestRe, refactorRe} {
		for _, m := range re.FindAllString(body, -1) {
			k := strings.ToLower(m)
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

func complexity(body string, cat Category) int {
	score := 5
	switch cat {
	case CategoryBug:
		score += 2
	case CategorySecurity:
		score += 3
	case CategoryPerformance:
		score += 2
	case CategoryStyle:
		score -= 2
	case CategoryNitpick:
		score -= 3
	}
	if refactorRe.MatchString(body) {
		score += 3
	}
	if testingRe.MatchString(body) {
		score++
	}
	if trivialRe.MatchString(body) {
		score -= 2
	}
	if len(body) > 200 {
		score++
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

func effortFor(complexity int) Effort {
	switch {
	case complexity <= 3:
		return EffortQuick
	case complexity <= 6:
		return EffortMedium
	default:
		return EffortSignificant
	}
}

// Thread is a group of comments that discuss the same region of a file,
// or a single general comment with no file context.
type Thread struct {
	Path     string
	Comments []ProcessedComment
}

// GroupThreads clusters comments by file; within a file, comments whose
// lines fall within 10 of the previous sorted line merge into one thread.
// Comments without a path each form their own general thread.
func GroupThreads(comments []ProcessedComment) []Thread {
	byPath := map[string][]ProcessedComment{}
	var paths []string
	var general []ProcessedComment

	for _, pc := range comments {
		path := pc.Comment.Path
		if path == "" {
			general = append(general, pc)
			continue
		}
		if _, ok := byPath[path]; !ok {
			paths = append(paths, path)
		}
		byPath[path] = append(byPath[path], pc)
	}
	sort.Strings(paths)

	var threads []Thread
	for _, path := range paths {
		group := byPath[path]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Comment.Line < group[j].Comment.Line
		})

		current := Thread{Path: path}
		lastLine := -1
		for _, pc := range group {
			if lastLine >= 0 && pc.Comment.Line-lastLine > 10 {
				threads = append(threads, current)
				current = Thread{Path: path}
			}
			current.Comments = append(current.Comments, pc)
			lastLine = pc.Comment.Line
		}
		threads = append(threads, current)
	}

	for _, pc := range general {
		threads = append(threads, Thread{Comments: []ProcessedComment{pc}})
	}
	return threads
}

// OrderActionable returns only the actionable comments, sorted by
// priority, then category, then ascending complexity.
func OrderActionable(comments []ProcessedComment) []ProcessedComment {
	var out []ProcessedComment
	for _, pc := range comments {
		if pc.Actionable {
			out = append(out, pc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if priorityRank[out[i].Priority] != priorityRank[out[j].Priority] {
			return priorityRank[out[i].Priority] < priorityRank[out[j].Priority]
		}
		if categoryRank[out[i].Category] != categoryRank[out[j].Category] {
			return categoryRank[out[i].Category] < categoryRank[out[j].Category]
		}
		return out[i].Complexity < out[j].Complexity
	})
	return out
}
