package review

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// UpdateType is the kind of change an update plan makes. The values
// double as the {type} token in commit messages.
type UpdateType string

const (
	UpdateCodeFix       UpdateType = "code_fix"
	UpdateStyle         UpdateType = "style_improvement"
	UpdatePerformance   UpdateType = "performance_opt"
	UpdateSecurityFix   UpdateType = "security_fix"
	UpdateDocumentation UpdateType = "documentation"
	UpdateTestAddition  UpdateType = "test_addition"
)

// Critical reports whether a failed plan of this type halts its batch.
func (t UpdateType) Critical() bool {
	return t == UpdateCodeFix || t == UpdateSecurityFix
}

// UpdatePlan is one planned unit of change addressing review comments.
type UpdatePlan struct {
	ID              string
	Type            UpdateType
	Description     string
	TargetFiles     []string
	CommentIDs      []string
	Effort          Effort
	Dependencies    []string
	Automated       bool
	ValidationSteps []string
}

var updateTypeFor = map[Category]UpdateType{
	CategorySecurity:      UpdateSecurityFix,
	CategoryBug:           UpdateCodeFix,
	CategoryCodeQuality:   UpdateCodeFix,
	CategorySuggestion:    UpdateCodeFix,
	CategoryQuestion:      UpdateCodeFix,
	CategoryPerformance:   UpdatePerformance,
	CategoryStyle:         UpdateStyle,
	CategoryTesting:       UpdateTestAddition,
	CategoryDocumentation: UpdateDocumentation,
	CategoryNitpick:       UpdateStyle,
}

var validationStepsFor = map[UpdateType][]string{
	UpdateCodeFix:       {"syntax-check", "basic-functionality", "test-execution"},
	UpdateSecurityFix:   {"syntax-check", "security-scan", "test-execution"},
	UpdateStyle:         {"syntax-check", "formatting-check"},
	UpdatePerformance:   {"syntax-check", "performance-test"},
	UpdateDocumentation: {"markdown-syntax", "link-check"},
	UpdateTestAddition:  {"syntax-check", "test-execution"},
}

// Plan converts actionable comments into update plans: one plan per
// (file, update-type) pair, plus documentation or test plans for general
// comments with no file context. Within a file, non-fix plans depend on
// the file's code-fix plan so fixes land before polish.
func Plan(comments []ProcessedComment) []UpdatePlan {
	type key struct {
		file string
		typ  UpdateType
	}
	grouped := map[key][]ProcessedComment{}
	var order []key

	for _, pc := range comments {
		if !pc.Actionable {
			continue
		}
		typ := updateTypeFor[pc.Category]
		file := ""
		if len(pc.RelatedFiles) > 0 {
			file = pc.RelatedFiles[0]
		} else if typ != UpdateTestAddition && typ != UpdateDocumentation {
			// General comments can only produce doc or test work.
			typ = UpdateDocumentation
		}
		k := key{file: file, typ: typ}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], pc)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].file != order[j].file {
			return order[i].file < order[j].file
		}
		return order[i].typ < order[j].typ
	})

	plans := make([]UpdatePlan, 0, len(order))
	seq := 0
	planIDByKey := map[key]string{}
	for _, k := range order {
		seq++
		group := grouped[k]
		plan := UpdatePlan{
			ID:              fmt.Sprintf("%s-%d", k.typ, seq),
			Type:            k.typ,
			Description:     describePlan(k.typ, k.file, group),
			Effort:          maxEffort(group),
			Automated:       isAutomated(k.typ, group),
			ValidationSteps: append([]string(nil), validationStepsFor[k.typ]...),
		}
		if k.file != "" {
			plan.TargetFiles = []string{k.file}
		}
		for _, pc := range group {
			plan.CommentIDs = append(plan.CommentIDs, pc.Comment.ID)
		}
		planIDByKey[k] = plan.ID
		plans = append(plans, plan)
	}

	// Fix-before-polish ordering within a file.
	for i := range plans {
		if plans[i].Type == UpdateCodeFix || plans[i].Type == UpdateSecurityFix || len(plans[i].TargetFiles) == 0 {
			continue
		}
		file := plans[i].TargetFiles[0]
		for _, fixType := range []UpdateType{UpdateSecurityFix, UpdateCodeFix} {
			if dep, ok := planIDByKey[key{file: file, typ: fixType}]; ok {
				plans[i].Dependencies = append(plans[i].Dependencies, dep)
			}
		}
	}
	return plans
}

func describePlan(typ UpdateType, file string, group []ProcessedComment) string {
	subject := "review feedback"
	if file != "" {
		subject = file
	}
	return fmt.Sprintf("address %d %s comment(s) on %s", len(group), strings.ReplaceAll(string(typ), "_", " "), subject)
}

func maxEffort(group []ProcessedComment) Effort {
	rank := map[Effort]int{EffortQuick: 0, EffortMedium: 1, EffortSignificant: 2}
	out := EffortQuick
	for _, pc := range group {
		if rank[pc.Effort] > rank[out] {
			out = pc.Effort
		}
	}
	return out
}

// isAutomated rules out complex performance work (more than two
// performance comments on one file) and anything asking for a
// refactoring.
func isAutomated(typ UpdateType, group []ProcessedComment) bool {
	if typ == UpdatePerformance && len(group) > 2 {
		return false
	}
	for _, pc := range group {
		if refactorRe.MatchString(pc.Comment.Body) {
			return false
		}
	}
	return true
}

// Batch is a set of plans whose dependencies are all satisfied by
// earlier batches. Forced marks a batch created to break a dependency
// cycle.
type Batch struct {
	Plans  []UpdatePlan
	Forced bool
}

// BuildBatches orders plans into dependency-satisfying batches. Plans
// without dependencies form the first batch; each subsequent batch holds
// every plan whose dependencies are satisfied by the union of prior
// batches. When no plan becomes ready, one plan's dependencies are
// cleared and it is placed in a forced batch, guaranteeing progress.
func BuildBatches(plans []UpdatePlan) []Batch {
	remaining := append([]UpdatePlan(nil), plans...)
	satisfied := map[string]bool{}
	var batches []Batch

	for len(remaining) > 0 {
		var ready, blocked []UpdatePlan
		for _, p := range remaining {
			if depsSatisfied(p, satisfied) {
				ready = append(ready, p)
			} else {
				blocked = append(blocked, p)
			}
		}

		if len(ready) == 0 {
			// Dependency cycle or dangling reference: force progress.
			forced := blocked[0]
			slog.Warn("forcing update plan with unsatisfiable dependencies",
				"plan", forced.ID, "dependencies", forced.Dependencies)
			forced.Dependencies = nil
			satisfied[forced.ID] = true
			batches = append(batches, Batch{Plans: []UpdatePlan{forced}, Forced: true})
			remaining = blocked[1:]
			continue
		}

		for _, p := range ready {
			satisfied[p.ID] = true
		}
		batches = append(batches, Batch{Plans: ready})
		remaining = blocked
	}
	return batches
}

func depsSatisfied(p UpdatePlan, satisfied map[string]bool) bool {
	for _, dep := range p.Dependencies {
		if !satisfied[dep] {
			return false
		}
	}
	return true
}
