// Package issue defines the tracked work-item model and the identifier
// grammar that binds user-supplied tokens to a provider.
package issue

import "time"

// Provider identifies the tracker hosting an issue.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderLinear Provider = "linear"
)

// Type classifies an issue for branch naming and commit prefixes.
type Type string

const (
	TypeFeature     Type = "feature"
	TypeBug         Type = "bug"
	TypeEnhancement Type = "enhancement"
	TypeHotfix      Type = "hotfix"
	TypeTask        Type = "task"
	TypeUnknown     Type = "unknown"
)

// Issue is a read-only snapshot of a tracked work item.
type Issue struct {
	ID          string    `yaml:"id"`
	Provider    Provider  `yaml:"provider"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Status      string    `yaml:"status"` // open, closed
	Type        Type      `yaml:"type"`
	Assignee    string    `yaml:"assignee,omitempty"`
	Labels      []string  `yaml:"labels,omitempty"`
	URL         string    `yaml:"url,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// TypeFromLabels infers the issue type from tracker labels. The first label
// matching a known type wins; unrecognized label sets map to TypeUnknown.
func TypeFromLabels(labels []string) Type {
	for _, l := range labels {
		switch normalizeLabel(l) {
		case "feature", "feat":
			return TypeFeature
		case "bug", "defect":
			return TypeBug
		case "enhancement", "improvement":
			return TypeEnhancement
		case "hotfix":
			return TypeHotfix
		case "task", "chore":
			return TypeTask
		}
	}
	return TypeUnknown
}

// CommitPrefix returns the conventional-commit prefix for an issue type.
func (t Type) CommitPrefix() string {
	switch t {
	case TypeBug, TypeHotfix:
		return "fix"
	case TypeFeature, TypeEnhancement:
		return "feat"
	default:
		return "chore"
	}
}

func normalizeLabel(l string) string {
	out := make([]rune, 0, len(l))
	for _, r := range l {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}
