// Package workflow holds the durable per-issue workflow record, its state
// store, and the stage runners that advance a record from fetched issue to
// merged pull request.
package workflow

import (
	"time"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/issue"
	"github.com/alanmeadows/autodev/internal/provider"
	"github.com/alanmeadows/autodev/internal/repo"
)

// Status is the pipeline position of a workflow record.
type Status string

const (
	StatusPending      Status = "pending"
	StatusFetching     Status = "fetching"
	StatusImplementing Status = "implementing"
	StatusCreatingPR   Status = "creating-pr"
	StatusInReview     Status = "in-review"
	StatusReadyToMerge Status = "ready-to-merge"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:      0,
	StatusFetching:     1,
	StatusImplementing: 2,
	StatusCreatingPR:   3,
	StatusInReview:     4,
	StatusReadyToMerge: 5,
	StatusCompleted:    6,
	StatusFailed:       7,
}

// Rank orders statuses along the pipeline; failed sorts last.
func (s Status) Rank() int { return statusRank[s] }

// AtLeast reports whether s has reached other on the pipeline.
func (s Status) AtLeast(other Status) bool {
	return s != StatusFailed && s.Rank() >= other.Rank()
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AIStatus tracks the code generator's progress independently of the
// pipeline status.
type AIStatus string

const (
	AINotStarted  AIStatus = "not-started"
	AIInProgress  AIStatus = "in-progress"
	AIImplemented AIStatus = "implemented"
	AIFailed      AIStatus = "failed"
)

// PRMetadata is the resolved metadata a PR is opened with.
type PRMetadata struct {
	Title     string   `yaml:"title"`
	Body      string   `yaml:"body"`
	Labels    []string `yaml:"labels,omitempty"`
	Assignees []string `yaml:"assignees,omitempty"`
	Reviewers []string `yaml:"reviewers,omitempty"`
	Draft     bool     `yaml:"draft,omitempty"`
}

// CycleStatus is the review cycle engine's position.
type CycleStatus string

const (
	CyclePending             CycleStatus = "pending"
	CycleMachineReview       CycleStatus = "machine-review-in-progress"
	CycleWaitingForHuman     CycleStatus = "waiting-for-human"
	CycleHumanReviewReceived CycleStatus = "human-review-received"
	CycleMachineUpdate       CycleStatus = "machine-update-in-progress"
	CycleChangesRequested    CycleStatus = "changes-requested"
	CycleApproved            CycleStatus = "approved"
	CycleMaxIterations       CycleStatus = "max-iterations-reached"
	CycleFailed              CycleStatus = "failed"
)

// Terminal reports whether the cycle can transition no further.
func (s CycleStatus) Terminal() bool {
	return s == CycleApproved || s == CycleFailed || s == CycleMaxIterations
}

// MachineReview records one posted machine review.
type MachineReview struct {
	Iteration     int       `yaml:"iteration"`
	Timestamp     time.Time `yaml:"timestamp"`
	Status        string    `yaml:"status"`
	CommentsCount int       `yaml:"comments_count"`
	Error         string    `yaml:"error,omitempty"`
}

// HumanReview records one observed human review.
type HumanReview struct {
	Iteration int                  `yaml:"iteration"`
	Timestamp time.Time            `yaml:"timestamp"`
	Author    string               `yaml:"author"`
	State     provider.ReviewState `yaml:"state"`
	Body      string               `yaml:"body,omitempty"`
	ReviewID  string               `yaml:"review_id"`
}

// ReviewCycleState is embedded in the record while a PR is under review.
// The machine-reviews and human-reviews lists are append-only.
type ReviewCycleState struct {
	PRNumber           int                      `yaml:"pr_number"`
	Iteration          int                      `yaml:"iteration"`
	MaxIterations      int                      `yaml:"max_iterations"`
	Status             CycleStatus              `yaml:"status"`
	MachineReviews     []MachineReview          `yaml:"machine_reviews,omitempty"`
	HumanReviews       []HumanReview            `yaml:"human_reviews,omitempty"`
	UnresolvedComments []provider.ReviewComment `yaml:"unresolved_comments,omitempty"`
	LastActivity       time.Time                `yaml:"last_activity"`
}

// MachineReviewFor returns the machine review posted for an iteration, if
// any. Re-entry gates on this to avoid posting twice.
func (s *ReviewCycleState) MachineReviewFor(iteration int) *MachineReview {
	for i := range s.MachineReviews {
		if s.MachineReviews[i].Iteration == iteration {
			return &s.MachineReviews[i]
		}
	}
	return nil
}

// WorkflowRecord is the central entity: one durable record per issue.
type WorkflowRecord struct {
	IssueID    string               `yaml:"issue_id"`
	Repository *provider.Repository `yaml:"repository,omitempty"`
	Issue      *issue.Issue         `yaml:"issue,omitempty"`

	Status   Status   `yaml:"status"`
	AIStatus AIStatus `yaml:"ai_status"`

	Worktree *repo.WorktreeInfo `yaml:"worktree,omitempty"`
	Branch   string             `yaml:"branch,omitempty"`
	PRNumber int                `yaml:"pr_number,omitempty"`
	PRURL    string             `yaml:"pr_url,omitempty"`

	AIResponse *ai.Response `yaml:"ai_response,omitempty"`
	PRMetadata *PRMetadata  `yaml:"pr_metadata,omitempty"`

	ReviewCycle *ReviewCycleState `yaml:"review_cycle,omitempty"`

	CreatedAt time.Time         `yaml:"created_at"`
	UpdatedAt time.Time         `yaml:"updated_at"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
}

// NewRecord creates a pending record for an issue.
func NewRecord(issueID string) *WorkflowRecord {
	now := time.Now().UTC()
	return &WorkflowRecord{
		IssueID:   issueID,
		Status:    StatusPending,
		AIStatus:  AINotStarted,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]string{},
	}
}

// SetMeta sets a free-form metadata entry, allocating the map if needed.
func (r *WorkflowRecord) SetMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	r.Metadata[key] = value
}

// Fail marks the record failed and records the error message.
func (r *WorkflowRecord) Fail(err error) {
	r.Status = StatusFailed
	if err != nil {
		r.SetMeta("error", err.Error())
	}
}
