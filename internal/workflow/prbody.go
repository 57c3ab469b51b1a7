package workflow

import (
	"fmt"
	"os"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/alanmeadows/autodev/internal/config"
	"github.com/alanmeadows/autodev/internal/prompts"
	"github.com/alanmeadows/autodev/internal/provider"
)

// TruncationNotice is appended when a PR body had to be cut at the
// hosting service's length cap.
const TruncationNotice = "\n\n---\n*Description truncated to fit the pull request body limit.*"

// prTemplateMeta is the frontmatter a PR description template may carry.
type prTemplateMeta struct {
	Labels    []string `yaml:"labels"`
	Assignees []string `yaml:"assignees"`
	Reviewers []string `yaml:"reviewers"`
	Draft     bool     `yaml:"draft"`
}

// BuildPRMetadata composes the title, body, and metadata a PR is opened
// with. A configured template file overrides the built-in body layout and
// may contribute labels, assignees, reviewers and draft state via
// frontmatter.
func BuildPRMetadata(rec *WorkflowRecord, cfg config.Config) (*PRMetadata, error) {
	if rec.Issue == nil {
		return nil, fmt.Errorf("%w: record has no cached issue", ErrPrecondition)
	}

	meta := &PRMetadata{
		Title: fmt.Sprintf("%s: %s", rec.Issue.Type.CommitPrefix(), rec.Issue.Title),
	}
	if cfg.GitHub.DefaultReviewer != "" {
		meta.Reviewers = append(meta.Reviewers, cfg.GitHub.DefaultReviewer)
	}
	if rec.Issue.Assignee != "" {
		meta.Assignees = append(meta.Assignees, rec.Issue.Assignee)
	}

	body, err := renderPRBody(rec, cfg, meta)
	if err != nil {
		return nil, err
	}
	meta.Body = TruncateBody(body, provider.MaxPRBodyLength)
	return meta, nil
}

func renderPRBody(rec *WorkflowRecord, cfg config.Config, meta *PRMetadata) (string, error) {
	if cfg.GitHub.PRTemplate != "" {
		return renderTemplateBody(rec, cfg.GitHub.PRTemplate, meta)
	}
	return defaultPRBody(rec, cfg), nil
}

// renderTemplateBody loads the configured template file, splits off its
// frontmatter into the PR metadata, and interpolates the remainder.
func renderTemplateBody(rec *WorkflowRecord, path string, meta *PRMetadata) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PR template %s: %w", path, err)
	}
	defer f.Close()

	var tmplMeta prTemplateMeta
	rest, err := frontmatter.Parse(f, &tmplMeta)
	if err != nil {
		return "", fmt.Errorf("parsing PR template %s: %w", path, err)
	}

	meta.Labels = append(meta.Labels, tmplMeta.Labels...)
	meta.Assignees = append(meta.Assignees, tmplMeta.Assignees...)
	meta.Reviewers = append(meta.Reviewers, tmplMeta.Reviewers...)
	meta.Draft = meta.Draft || tmplMeta.Draft

	return prompts.Interpolate(string(rest), prBodyContext(rec)), nil
}

func prBodyContext(rec *WorkflowRecord) map[string]string {
	ctx := map[string]string{
		"id":          rec.IssueID,
		"title":       rec.Issue.Title,
		"description": rec.Issue.Description,
		"issue_type":  string(rec.Issue.Type),
		"branch":      rec.Branch,
		"url":         rec.Issue.URL,
	}
	if rec.AIResponse != nil {
		ctx["summary"] = rec.AIResponse.Summary
	}
	return ctx
}

// defaultPRBody renders the built-in body: summary, change list, testing
// checklist, and the closing reference.
func defaultPRBody(rec *WorkflowRecord, cfg config.Config) string {
	var b strings.Builder

	b.WriteString("## Summary\n\n")
	if rec.AIResponse != nil && rec.AIResponse.Summary != "" {
		b.WriteString(rec.AIResponse.Summary)
	} else {
		b.WriteString(rec.Issue.Description)
	}
	b.WriteString("\n")

	if rec.AIResponse != nil && len(rec.AIResponse.FileChanges) > 0 {
		b.WriteString("\n## Changes\n\n")
		for _, fc := range rec.AIResponse.FileChanges {
			line := fmt.Sprintf("- `%s` (%s)", fc.Path, fc.Action)
			if fc.Description != "" {
				line += ": " + fc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n## Testing\n\n")
	if cfg.Workflows.TestCommand != "" {
		fmt.Fprintf(&b, "- [ ] `%s` passes\n", cfg.Workflows.TestCommand)
	}
	if rec.AIResponse != nil {
		for _, cmd := range rec.AIResponse.Commands {
			fmt.Fprintf(&b, "- [ ] `%s`\n", cmd)
		}
	}
	b.WriteString("- [ ] Manual verification of the change\n")

	if n := issueNumber(rec.IssueID); n != "" {
		fmt.Fprintf(&b, "\nCloses #%s\n", n)
	} else {
		fmt.Fprintf(&b, "\nRefs %s\n", rec.IssueID)
	}
	return b.String()
}

func issueNumber(id string) string {
	n := strings.TrimPrefix(id, "#")
	for _, r := range n {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return n
}

// TruncateBody cuts body at the last paragraph boundary before max,
// appending the truncation notice. Bodies within the cap pass through
// unchanged.
func TruncateBody(body string, max int) string {
	if len(body) <= max {
		return body
	}
	limit := max - len(TruncationNotice)
	if limit < 0 {
		limit = 0
	}
	cut := body[:limit]
	if idx := strings.LastIndex(cut, "\n\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut + TruncationNotice
}
