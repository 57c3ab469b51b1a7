package provider

import (
	"context"
	"sync"

	"github.com/alanmeadows/autodev/internal/issue"
)

// MockClient is a test double for Client. Zero values behave like an empty
// but healthy provider; error fields force specific failures.
type MockClient struct {
	mu sync.Mutex

	Repo    Repository
	Issues  map[string]*issue.Issue
	Reviews []Review
	// ReviewsByCall overrides Reviews per GetPRReviews call index, letting
	// tests script a polling sequence.
	ReviewsByCall [][]Review
	Comments      []ReviewComment
	Status        *PRStatus
	NextPRNumber  int

	ValidateErr error
	FetchErr    error
	CreateErr   error
	ReviewsErr  error
	MergeErr    error

	CreatedPRs      []CreatePRRequest
	PostedReviews   []Review
	PostedComments  []string
	UpdatedBodies   []string
	MergedPRs       []int
	DeletedBranches []string
	LabelCalls      [][]string
	AssigneeCalls   [][]string
	ReviewerCalls   [][]string

	reviewCalls int
}

// NewMockClient creates a MockClient with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Repo: Repository{
			Owner:         "acme",
			Name:          "widgets",
			DefaultBranch: "main",
			RemoteURL:     "https://github.com/acme/widgets.git",
		},
		Issues:       make(map[string]*issue.Issue),
		NextPRNumber: 7,
		Status:       &PRStatus{State: "open", Mergeable: true, ChecksPassing: true},
	}
}

func (m *MockClient) Name() string { return "github" }

func (m *MockClient) ValidateAccess(context.Context) error { return m.ValidateErr }

func (m *MockClient) DetectRepo(context.Context) (*Repository, error) {
	repo := m.Repo
	return &repo, nil
}

func (m *MockClient) FetchIssue(_ context.Context, ref issue.Ref) (*issue.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	is, ok := m.Issues[ref.ID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *is
	return &cp, nil
}

func (m *MockClient) ListIssues(context.Context, IssueFilter) ([]issue.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []issue.Issue
	for _, is := range m.Issues {
		out = append(out, *is)
	}
	return out, nil
}

func (m *MockClient) CreatePR(_ context.Context, req CreatePRRequest) (*PRHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.CreatedPRs = append(m.CreatedPRs, req)
	return &PRHandle{Number: m.NextPRNumber, URL: "https://github.com/acme/widgets/pull/7"}, nil
}

func (m *MockClient) SetLabels(_ context.Context, _ int, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LabelCalls = append(m.LabelCalls, labels)
	return nil
}

func (m *MockClient) SetAssignees(_ context.Context, _ int, users []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AssigneeCalls = append(m.AssigneeCalls, users)
	return nil
}

func (m *MockClient) RequestReviewers(_ context.Context, _ int, users []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReviewerCalls = append(m.ReviewerCalls, users)
	return nil
}

func (m *MockClient) GetPRReviews(context.Context, int) ([]Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReviewsErr != nil {
		return nil, m.ReviewsErr
	}
	if len(m.ReviewsByCall) > 0 {
		idx := m.reviewCalls
		if idx >= len(m.ReviewsByCall) {
			idx = len(m.ReviewsByCall) - 1
		}
		m.reviewCalls++
		return append([]Review(nil), m.ReviewsByCall[idx]...), nil
	}
	return append([]Review(nil), m.Reviews...), nil
}

func (m *MockClient) GetPRComments(context.Context, int) ([]ReviewComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReviewComment(nil), m.Comments...), nil
}

func (m *MockClient) PostReview(_ context.Context, _ int, body string, _ []DraftComment, event ReviewEvent) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review := Review{
		ID:     "posted",
		State:  ReviewCommented,
		Body:   body,
		Author: "autodev[bot]",
	}
	if event == EventApprove {
		review.State = ReviewApproved
	}
	m.PostedReviews = append(m.PostedReviews, review)
	return &review, nil
}

func (m *MockClient) UpdatePRBody(_ context.Context, _ int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdatedBodies = append(m.UpdatedBodies, body)
	return nil
}

func (m *MockClient) AddPRComment(_ context.Context, _ int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostedComments = append(m.PostedComments, body)
	return nil
}

func (m *MockClient) GetPRStatus(context.Context, int) (*PRStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := *m.Status
	return &status, nil
}

func (m *MockClient) MergePR(_ context.Context, pr int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MergeErr != nil {
		return m.MergeErr
	}
	m.MergedPRs = append(m.MergedPRs, pr)
	return nil
}

func (m *MockClient) DeleteBranch(_ context.Context, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeletedBranches = append(m.DeletedBranches, branch)
	return nil
}

// Verify MockClient implements Client at compile time.
var _ Client = (*MockClient)(nil)
