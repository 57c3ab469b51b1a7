// Package provider abstracts the version-control hosting service. The
// workflow engine talks only to the Client interface; provider-specific
// API calls live in subpackages.
package provider

import (
	"context"
	"time"

	"github.com/alanmeadows/autodev/internal/issue"
)

// Repository identifies the repository a workflow operates on. Detected
// once per workflow and treated as immutable afterwards.
type Repository struct {
	Owner         string `yaml:"owner"`
	Name          string `yaml:"name"`
	DefaultBranch string `yaml:"default_branch"`
	RemoteURL     string `yaml:"remote_url"`
}

// Slug returns "owner/name".
func (r Repository) Slug() string {
	return r.Owner + "/" + r.Name
}

// ReviewComment is an immutable snapshot of a review comment on a PR.
type ReviewComment struct {
	ID        string    `yaml:"id"`
	Body      string    `yaml:"body"`
	Path      string    `yaml:"path,omitempty"`
	Line      int       `yaml:"line,omitempty"`
	StartLine int       `yaml:"start_line,omitempty"`
	Side      string    `yaml:"side,omitempty"` // left, right
	Author    string    `yaml:"author"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Resolved  bool      `yaml:"resolved"`
}

// ReviewState classifies a submitted PR review.
type ReviewState string

const (
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes-requested"
	ReviewCommented        ReviewState = "commented"
	ReviewDismissed        ReviewState = "dismissed"
)

// Review is a submitted pull-request review.
type Review struct {
	ID          string      `yaml:"id"`
	State       ReviewState `yaml:"state"`
	Body        string      `yaml:"body"`
	Author      string      `yaml:"author"`
	SubmittedAt time.Time   `yaml:"submitted_at"`
}

// ReviewEvent selects how PostReview submits a review.
type ReviewEvent string

const (
	EventComment        ReviewEvent = "comment"
	EventApprove        ReviewEvent = "approve"
	EventRequestChanges ReviewEvent = "request-changes"
)

// DraftComment is an inline comment attached to a posted review.
type DraftComment struct {
	Path string
	Line int
	Body string
}

// CreatePRRequest carries everything needed to open a pull request.
type CreatePRRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// PRHandle identifies an opened pull request.
type PRHandle struct {
	Number int
	URL    string
}

// PRStatus summarizes the merge-readiness of a pull request.
type PRStatus struct {
	State          string // open, closed, merged
	Mergeable      bool
	ReviewDecision string // approved, changes_requested, review_required, ""
	ChecksPassing  bool
}

// IssueFilter narrows ListIssues results.
type IssueFilter struct {
	Assignee string
	Labels   []string
	State    string // open, closed, all
}

// MaxPRBodyLength is the hosting service's cap on PR body length.
const MaxPRBodyLength = 65536

// Client is the hosting-service surface the workflow engine depends on.
type Client interface {
	// Name returns the short provider identifier ("github", "linear").
	Name() string

	// ValidateAccess verifies authentication and repository access.
	ValidateAccess(ctx context.Context) error

	// DetectRepo resolves the repository for the current working directory.
	DetectRepo(ctx context.Context) (*Repository, error)

	// FetchIssue loads a single issue by parsed reference.
	FetchIssue(ctx context.Context, ref issue.Ref) (*issue.Issue, error)

	// ListIssues returns issues matching the filter.
	ListIssues(ctx context.Context, filter IssueFilter) ([]issue.Issue, error)

	// CreatePR opens a pull request.
	CreatePR(ctx context.Context, req CreatePRRequest) (*PRHandle, error)

	// SetLabels, SetAssignees and RequestReviewers set PR metadata.
	SetLabels(ctx context.Context, pr int, labels []string) error
	SetAssignees(ctx context.Context, pr int, users []string) error
	RequestReviewers(ctx context.Context, pr int, users []string) error

	// GetPRReviews returns all submitted reviews on a PR.
	GetPRReviews(ctx context.Context, pr int) ([]Review, error)

	// GetPRComments returns all review comments on a PR, with thread
	// resolution state.
	GetPRComments(ctx context.Context, pr int) ([]ReviewComment, error)

	// PostReview submits a review with optional inline comments.
	PostReview(ctx context.Context, pr int, body string, comments []DraftComment, event ReviewEvent) (*Review, error)

	// UpdatePRBody replaces the PR description.
	UpdatePRBody(ctx context.Context, pr int, body string) error

	// AddPRComment posts a general comment on the PR conversation.
	AddPRComment(ctx context.Context, pr int, body string) error

	// GetPRStatus returns the PR's merge-readiness summary.
	GetPRStatus(ctx context.Context, pr int) (*PRStatus, error)

	// MergePR merges with the given method: merge, squash, or rebase.
	MergePR(ctx context.Context, pr int, method string) error

	// DeleteBranch removes a remote branch after merge.
	DeleteBranch(ctx context.Context, branch string) error
}
