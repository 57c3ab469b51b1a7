// Package github implements provider.Client against the GitHub REST and
// GraphQL APIs. Thread resolution state is only available over GraphQL, so
// the client lazily constructs a githubv4 client alongside go-github.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/alanmeadows/autodev/internal/issue"
	"github.com/alanmeadows/autodev/internal/provider"
)

// Client implements provider.Client for GitHub.
type Client struct {
	rest      *gh.Client
	gqlOnce   sync.Once
	gqlClient *githubv4.Client
	owner     string
	repo      string
	token     string
}

// NewClient creates a GitHub client for the given owner/repo. Uses the
// go-github-ratelimit middleware for automatic rate limit handling.
func NewClient(owner, repo, token string) *Client {
	rateLimiter := github_ratelimit.NewClient(nil)
	rest := gh.NewClient(rateLimiter).WithAuthToken(token)
	return &Client{
		rest:  rest,
		owner: owner,
		repo:  repo,
		token: token,
	}
}

// graphQL returns (and lazily creates) the GitHub GraphQL client.
// Thread-safe via sync.Once.
func (c *Client) graphQL(ctx context.Context) *githubv4.Client {
	c.gqlOnce.Do(func() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
		httpClient := oauth2.NewClient(ctx, ts)
		c.gqlClient = githubv4.NewClient(httpClient)
	})
	return c.gqlClient
}

// ResolveToken returns the first usable token: the configured one, or the
// gh CLI's stored credential. Authentication stays delegated to gh when no
// token is configured.
func ResolveToken(configured string) string {
	if configured != "" {
		return configured
	}
	if out, err := exec.Command("gh", "auth", "token").Output(); err == nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}

// Name returns "github".
func (c *Client) Name() string {
	return "github"
}

// ValidateAccess verifies the token can reach the repository.
func (c *Client) ValidateAccess(ctx context.Context) error {
	if c.token == "" {
		return fmt.Errorf("%w: set GITHUB_TOKEN or run 'gh auth login'", provider.ErrAuthRequired)
	}
	_, _, err := c.rest.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return wrapErr("validate access", err)
	}
	return nil
}

// DetectRepo resolves repository metadata (default branch, clone URL).
func (c *Client) DetectRepo(ctx context.Context) (*provider.Repository, error) {
	repo, _, err := c.rest.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return nil, wrapErr("detect repo", err)
	}
	return &provider.Repository{
		Owner:         c.owner,
		Name:          c.repo,
		DefaultBranch: repo.GetDefaultBranch(),
		RemoteURL:     repo.GetCloneURL(),
	}, nil
}

// FetchIssue loads a single issue.
func (c *Client) FetchIssue(ctx context.Context, ref issue.Ref) (*issue.Issue, error) {
	num, err := strconv.Atoi(ref.Number())
	if err != nil {
		return nil, fmt.Errorf("invalid issue number %q: %w", ref.ID, err)
	}

	ghIssue, _, err := c.rest.Issues.Get(ctx, c.owner, c.repo, num)
	if err != nil {
		return nil, wrapErr("fetch issue", err)
	}
	if ghIssue.IsPullRequest() {
		return nil, fmt.Errorf("%w: %s is a pull request, not an issue", provider.ErrNotFound, ref.ID)
	}

	return c.mapIssue(ghIssue), nil
}

// ListIssues returns issues matching the filter.
func (c *Client) ListIssues(ctx context.Context, filter provider.IssueFilter) ([]issue.Issue, error) {
	state := filter.State
	if state == "" {
		state = "open"
	}
	opts := &gh.IssueListByRepoOptions{
		State:       state,
		Assignee:    filter.Assignee,
		Labels:      filter.Labels,
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var issues []issue.Issue
	for {
		page, resp, err := c.rest.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, wrapErr("list issues", err)
		}
		for _, gi := range page {
			if gi.IsPullRequest() {
				continue
			}
			issues = append(issues, *c.mapIssue(gi))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return issues, nil
}

// CreatePR opens a pull request.
func (c *Client) CreatePR(ctx context.Context, req provider.CreatePRRequest) (*provider.PRHandle, error) {
	pr, _, err := c.rest.PullRequests.Create(ctx, c.owner, c.repo, &gh.NewPullRequest{
		Title: gh.Ptr(req.Title),
		Body:  gh.Ptr(req.Body),
		Head:  gh.Ptr(req.Head),
		Base:  gh.Ptr(req.Base),
		Draft: gh.Ptr(req.Draft),
	})
	if err != nil {
		return nil, wrapErr("create PR", err)
	}
	return &provider.PRHandle{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

// SetLabels replaces the PR's labels.
func (c *Client) SetLabels(ctx context.Context, pr int, labels []string) error {
	_, _, err := c.rest.Issues.ReplaceLabelsForIssue(ctx, c.owner, c.repo, pr, labels)
	if err != nil {
		return wrapErr("set labels", err)
	}
	return nil
}

// SetAssignees adds assignees to the PR.
func (c *Client) SetAssignees(ctx context.Context, pr int, users []string) error {
	_, _, err := c.rest.Issues.AddAssignees(ctx, c.owner, c.repo, pr, users)
	if err != nil {
		return wrapErr("set assignees", err)
	}
	return nil
}

// RequestReviewers requests reviews from the given users.
func (c *Client) RequestReviewers(ctx context.Context, pr int, users []string) error {
	_, _, err := c.rest.PullRequests.RequestReviewers(ctx, c.owner, c.repo, pr, gh.ReviewersRequest{
		Reviewers: users,
	})
	if err != nil {
		return wrapErr("request reviewers", err)
	}
	return nil
}

// GetPRReviews returns all submitted reviews on the PR.
func (c *Client) GetPRReviews(ctx context.Context, pr int) ([]provider.Review, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var reviews []provider.Review
	for {
		page, resp, err := c.rest.PullRequests.ListReviews(ctx, c.owner, c.repo, pr, opts)
		if err != nil {
			return nil, wrapErr("list reviews", err)
		}
		for _, r := range page {
			state := mapReviewState(r.GetState())
			if state == "" {
				// PENDING reviews are drafts, not submissions.
				continue
			}
			reviews = append(reviews, provider.Review{
				ID:          strconv.FormatInt(r.GetID(), 10),
				State:       state,
				Body:        r.GetBody(),
				Author:      r.GetUser().GetLogin(),
				SubmittedAt: r.GetSubmittedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

// GetPRComments returns review comments with thread resolution state.
// Resolution is only exposed over GraphQL, so the whole read goes through
// the reviewThreads connection.
func (c *Client) GetPRComments(ctx context.Context, pr int) ([]provider.ReviewComment, error) {
	gql := c.graphQL(ctx)

	var q struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					Nodes []struct {
						IsResolved githubv4.Boolean
						Comments   struct {
							Nodes []reviewCommentNode
						} `graphql:"comments(first: 50)"`
					}
					PageInfo struct {
						HasNextPage githubv4.Boolean
						EndCursor   githubv4.String
					}
				} `graphql:"reviewThreads(first: 100, after: $cursor)"`
			} `graphql:"pullRequest(number: $pr)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]interface{}{
		"owner":  githubv4.String(c.owner),
		"name":   githubv4.String(c.repo),
		"pr":     githubv4.Int(pr),
		"cursor": (*githubv4.String)(nil),
	}

	var comments []provider.ReviewComment
	for {
		if err := gql.Query(ctx, &q, vars); err != nil {
			return nil, wrapErr("list review threads", err)
		}
		for _, thread := range q.Repository.PullRequest.ReviewThreads.Nodes {
			for _, node := range thread.Comments.Nodes {
				comments = append(comments, node.toComment(bool(thread.IsResolved)))
			}
		}
		if !q.Repository.PullRequest.ReviewThreads.PageInfo.HasNextPage {
			break
		}
		vars["cursor"] = githubv4.NewString(q.Repository.PullRequest.ReviewThreads.PageInfo.EndCursor)
	}
	return comments, nil
}

// PostReview submits a review with optional inline comments.
func (c *Client) PostReview(ctx context.Context, pr int, body string, comments []provider.DraftComment, event provider.ReviewEvent) (*provider.Review, error) {
	drafts := make([]*gh.DraftReviewComment, 0, len(comments))
	for _, dc := range comments {
		drafts = append(drafts, &gh.DraftReviewComment{
			Path: gh.Ptr(dc.Path),
			Line: gh.Ptr(dc.Line),
			Side: gh.Ptr("RIGHT"),
			Body: gh.Ptr(dc.Body),
		})
	}

	review, _, err := c.rest.PullRequests.CreateReview(ctx, c.owner, c.repo, pr, &gh.PullRequestReviewRequest{
		Body:     gh.Ptr(body),
		Event:    gh.Ptr(mapReviewEvent(event)),
		Comments: drafts,
	})
	if err != nil {
		return nil, wrapErr("post review", err)
	}

	return &provider.Review{
		ID:          strconv.FormatInt(review.GetID(), 10),
		State:       mapReviewState(review.GetState()),
		Body:        review.GetBody(),
		Author:      review.GetUser().GetLogin(),
		SubmittedAt: review.GetSubmittedAt().Time,
	}, nil
}

// UpdatePRBody replaces the PR description.
func (c *Client) UpdatePRBody(ctx context.Context, pr int, body string) error {
	_, _, err := c.rest.PullRequests.Edit(ctx, c.owner, c.repo, pr, &gh.PullRequest{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return wrapErr("update PR body", err)
	}
	return nil
}

// AddPRComment posts a general comment on the PR conversation.
func (c *Client) AddPRComment(ctx context.Context, pr int, body string) error {
	_, _, err := c.rest.Issues.CreateComment(ctx, c.owner, c.repo, pr, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return wrapErr("add PR comment", err)
	}
	return nil
}

// GetPRStatus returns the PR's merge-readiness summary.
func (c *Client) GetPRStatus(ctx context.Context, pr int) (*provider.PRStatus, error) {
	ghPR, _, err := c.rest.PullRequests.Get(ctx, c.owner, c.repo, pr)
	if err != nil {
		return nil, wrapErr("get PR", err)
	}

	status := &provider.PRStatus{
		State:     ghPR.GetState(),
		Mergeable: ghPR.GetMergeable(),
	}
	if ghPR.GetMerged() {
		status.State = "merged"
	}

	status.ReviewDecision, err = c.reviewDecision(ctx, pr)
	if err != nil {
		return nil, err
	}

	status.ChecksPassing, err = c.checksPassing(ctx, ghPR.GetHead().GetSHA())
	if err != nil {
		return nil, err
	}

	return status, nil
}

// MergePR merges with the given method: merge, squash, or rebase.
func (c *Client) MergePR(ctx context.Context, pr int, method string) error {
	switch method {
	case "merge", "squash", "rebase":
	default:
		return fmt.Errorf("invalid merge method %q", method)
	}
	_, _, err := c.rest.PullRequests.Merge(ctx, c.owner, c.repo, pr, "", &gh.PullRequestOptions{
		MergeMethod: method,
	})
	if err != nil {
		return wrapErr("merge PR", err)
	}
	return nil
}

// DeleteBranch removes a remote branch.
func (c *Client) DeleteBranch(ctx context.Context, branch string) error {
	_, err := c.rest.Git.DeleteRef(ctx, c.owner, c.repo, "heads/"+branch)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
			// Already deleted.
			return nil
		}
		return wrapErr("delete branch", err)
	}
	return nil
}

// --- Internal helpers ---

type reviewCommentNode struct {
	DatabaseID githubv4.Int
	Body       githubv4.String
	Path       githubv4.String
	Line       *githubv4.Int
	StartLine  *githubv4.Int
	DiffSide   githubv4.String
	CreatedAt  githubv4.DateTime
	UpdatedAt  githubv4.DateTime
	Author     struct {
		Login githubv4.String
	}
}

func (n reviewCommentNode) toComment(resolved bool) provider.ReviewComment {
	rc := provider.ReviewComment{
		ID:        strconv.FormatInt(int64(n.DatabaseID), 10),
		Body:      string(n.Body),
		Path:      string(n.Path),
		Side:      strings.ToLower(string(n.DiffSide)),
		Author:    string(n.Author.Login),
		CreatedAt: n.CreatedAt.Time,
		UpdatedAt: n.UpdatedAt.Time,
		Resolved:  resolved,
	}
	if n.Line != nil {
		rc.Line = int(*n.Line)
	}
	if n.StartLine != nil {
		rc.StartLine = int(*n.StartLine)
	}
	return rc
}

// reviewDecision fetches the aggregate review decision over GraphQL.
func (c *Client) reviewDecision(ctx context.Context, pr int) (string, error) {
	gql := c.graphQL(ctx)

	var q struct {
		Repository struct {
			PullRequest struct {
				ReviewDecision githubv4.String
			} `graphql:"pullRequest(number: $pr)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]interface{}{
		"owner": githubv4.String(c.owner),
		"name":  githubv4.String(c.repo),
		"pr":    githubv4.Int(pr),
	}
	if err := gql.Query(ctx, &q, vars); err != nil {
		return "", wrapErr("get review decision", err)
	}
	return strings.ToLower(string(q.Repository.PullRequest.ReviewDecision)), nil
}

// checksPassing reports whether all check runs on the head SHA concluded
// successfully. No checks at all counts as passing.
func (c *Client) checksPassing(ctx context.Context, headSHA string) (bool, error) {
	if headSHA == "" {
		return true, nil
	}
	opts := &gh.ListCheckRunsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		result, resp, err := c.rest.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, headSHA, opts)
		if err != nil {
			return false, wrapErr("list check runs", err)
		}
		for _, cr := range result.CheckRuns {
			if cr.GetStatus() != "completed" {
				return false, nil
			}
			switch cr.GetConclusion() {
			case "success", "neutral", "skipped":
			default:
				return false, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return true, nil
}

func (c *Client) mapIssue(gi *gh.Issue) *issue.Issue {
	labels := make([]string, 0, len(gi.Labels))
	for _, l := range gi.Labels {
		labels = append(labels, l.GetName())
	}
	return &issue.Issue{
		ID:          "#" + strconv.Itoa(gi.GetNumber()),
		Provider:    issue.ProviderGitHub,
		Title:       gi.GetTitle(),
		Description: gi.GetBody(),
		Status:      gi.GetState(),
		Type:        issue.TypeFromLabels(labels),
		Assignee:    gi.GetAssignee().GetLogin(),
		Labels:      labels,
		URL:         gi.GetHTMLURL(),
		CreatedAt:   gi.GetCreatedAt().Time,
		UpdatedAt:   gi.GetUpdatedAt().Time,
	}
}

func mapReviewState(s string) provider.ReviewState {
	switch strings.ToUpper(s) {
	case "APPROVED":
		return provider.ReviewApproved
	case "CHANGES_REQUESTED":
		return provider.ReviewChangesRequested
	case "COMMENTED":
		return provider.ReviewCommented
	case "DISMISSED":
		return provider.ReviewDismissed
	default:
		return ""
	}
}

func mapReviewEvent(e provider.ReviewEvent) string {
	switch e {
	case provider.EventApprove:
		return "APPROVE"
	case provider.EventRequestChanges:
		return "REQUEST_CHANGES"
	default:
		return "COMMENT"
	}
}

// wrapErr classifies a go-github error into the provider error taxonomy.
func wrapErr(op string, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return &provider.ExternalError{Op: op, Transient: true, Err: err}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch code := ghErr.Response.StatusCode; {
		case code == http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: run 'gh auth login' or set GITHUB_TOKEN", op, provider.ErrAuthRequired)
		case code == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, provider.ErrNotFound)
		case code == http.StatusTooManyRequests || code >= 500:
			return &provider.ExternalError{Op: op, Transient: true, Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &provider.ExternalError{Op: op, Transient: true, Err: err}
	}

	return &provider.ExternalError{Op: op, Transient: false, Err: err}
}

// Verify Client implements provider.Client at compile time.
var _ provider.Client = (*Client)(nil)
