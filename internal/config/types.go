package config

import "time"

// Config is the top-level autodev configuration.
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	AI        AIConfig        `yaml:"ai"`
	Workflows WorkflowsConfig `yaml:"workflows"`
}

// GitHubConfig holds hosting-service settings.
type GitHubConfig struct {
	// DefaultBranch is the base branch for new PRs when repo detection fails.
	DefaultBranch string `yaml:"default_branch"`
	// DefaultReviewer is requested on every opened PR when set.
	DefaultReviewer string `yaml:"default_reviewer"`
	// PRTemplate is a filesystem path to a PR description template.
	// The template may carry YAML frontmatter (labels, reviewers, draft).
	PRTemplate string `yaml:"pr_template"`
	// MergeMethod is one of merge, squash, rebase.
	MergeMethod string `yaml:"merge_method"`
	// Token authenticates API calls. Usually left empty and supplied via
	// GITHUB_TOKEN or the gh CLI.
	Token string `yaml:"token,omitempty"`
}

// AIConfig controls the external code generator.
type AIConfig struct {
	// Command is the executable name of the code generator.
	Command string `yaml:"command"`

	ImplementationAgent string `yaml:"implementation_agent"`
	ReviewAgent         string `yaml:"review_agent"`
	UpdateAgent         string `yaml:"update_agent"`

	ImplementationPrompt string `yaml:"implementation_prompt"`
	ReviewPrompt         string `yaml:"review_prompt"`
	UpdatePrompt         string `yaml:"update_prompt"`

	// Timeout bounds a single generator invocation ("300s", "10m").
	Timeout string `yaml:"timeout"`
	// MaxRetries bounds retries of transient generator failures.
	MaxRetries int `yaml:"max_retries"`
	// ResponseFormat selects the parser mode: structured or freeform.
	ResponseFormat string `yaml:"response_format"`
}

// ParseTimeout returns the generator timeout as a time.Duration.
func (a AIConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// WorkflowsConfig holds workflow orchestration settings.
type WorkflowsConfig struct {
	// BranchNaming is the branch name template, interpolated with
	// {issue_type} and {id}.
	BranchNaming string `yaml:"branch_naming"`
	// WorktreeDir is the base directory for isolated working copies.
	// Defaults to a sibling "worktrees" directory of the repository.
	WorktreeDir string `yaml:"worktree_dir"`

	MaxReviewIterations int `yaml:"max_review_iterations"`
	// ReviewCheckInterval is the human-review poll interval in seconds.
	ReviewCheckInterval int `yaml:"review_check_interval"`
	// ReviewWaitTimeout is the wall-clock bound on waiting for a human
	// review, in minutes.
	ReviewWaitTimeout int `yaml:"review_wait_timeout"`

	AIReviewFirst        bool `yaml:"ai_review_first"`
	RequireHumanApproval bool `yaml:"require_human_approval"`
	PostUpdateSummary    bool `yaml:"post_update_summary"`

	// BotReviewers lists reviewer logins treated as bots in addition to
	// the standard "[bot]" login suffix.
	BotReviewers []string `yaml:"bot_reviewers"`

	// TestCommand is inserted into the PR body's testing checklist.
	TestCommand string `yaml:"test_command"`
	// ImplementationCommitMessage is the commit-message template for the
	// initial implementation commit.
	ImplementationCommitMessage string `yaml:"implementation_commit_message"`
	// CommitStrategy for review updates: single, per-comment, grouped.
	CommitStrategy string `yaml:"commit_strategy"`
}

// PollInterval returns the review poll interval as a duration.
func (w WorkflowsConfig) PollInterval() time.Duration {
	if w.ReviewCheckInterval <= 0 {
		return 60 * time.Second
	}
	return time.Duration(w.ReviewCheckInterval) * time.Second
}

// WaitTimeout returns the wall-clock bound on waiting for human review.
func (w WorkflowsConfig) WaitTimeout() time.Duration {
	if w.ReviewWaitTimeout <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(w.ReviewWaitTimeout) * time.Minute
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitHub: GitHubConfig{
			DefaultBranch: "",
			MergeMethod:   "squash",
		},
		AI: AIConfig{
			Command:        "claude",
			Timeout:        "300s",
			MaxRetries:     3,
			ResponseFormat: "structured",
		},
		Workflows: WorkflowsConfig{
			BranchNaming:                "auto/{issue_type}/{id}",
			MaxReviewIterations:         10,
			ReviewCheckInterval:         60,
			ReviewWaitTimeout:           60,
			AIReviewFirst:               true,
			RequireHumanApproval:        true,
			PostUpdateSummary:           true,
			ImplementationCommitMessage: "{prefix}: {title}",
			CommitStrategy:              "grouped",
		},
	}
}
