package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/config"
	"github.com/alanmeadows/autodev/internal/issue"
	"github.com/alanmeadows/autodev/internal/provider"
	"github.com/alanmeadows/autodev/internal/provider/github"
	"github.com/alanmeadows/autodev/internal/repo"
	"github.com/alanmeadows/autodev/internal/review"
	"github.com/alanmeadows/autodev/internal/workflow"
)

// app bundles the wired application for one CLI invocation.
type app struct {
	Config     config.Config
	Store      *workflow.Store
	Registry   *provider.Registry
	Runner     *workflow.Runner
	Controller *workflow.Controller
}

// newApp loads configuration, detects the repository, and wires the
// provider client, stage runner, review engine, and controller.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	root := config.RepoRoot()
	if root == "" {
		return nil, fmt.Errorf("not inside a git repository")
	}

	remote, err := repo.RemoteURL(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("reading origin remote: %w", err)
	}
	owner, name, err := repo.ParseOwnerRepo(remote)
	if err != nil {
		return nil, err
	}

	registry := provider.NewRegistry()
	ghClient := github.NewClient(owner, name, github.ResolveToken(cfg.GitHub.Token))
	registry.Register(ghClient)

	store := workflow.NewStore(config.StateDir())
	gen := ai.NewCommandClient(cfg.AI)
	runner := &workflow.Runner{
		Store:     store,
		Provider:  ghClient,
		Worktrees: repo.NewWorktreeManager(root, cfg.Workflows.WorktreeDir),
		AI:        gen,
		Config:    *cfg,
	}

	executor := &review.Executor{
		Store:      store,
		Provider:   ghClient,
		AI:         gen,
		Config:     *cfg,
		Validators: review.DefaultValidators(*cfg),
	}
	engine := review.NewEngine(store, ghClient, gen, *cfg, executor)

	return &app{
		Config:   *cfg,
		Store:    store,
		Registry: registry,
		Runner:   runner,
		Controller: &workflow.Controller{
			Runner: runner,
			Cycle:  engine,
			Update: executor,
		},
	}, nil
}

// loadRecord fetches an existing workflow record for a raw identifier.
func (a *app) loadRecord(rawID string) (*workflow.WorkflowRecord, error) {
	rec, err := a.Store.Load(normalizeID(rawID))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// normalizeID maps a raw token to its provider-qualified form when it
// parses; unparseable tokens pass through so lookups fail with a clear
// not-found error.
func normalizeID(raw string) string {
	if ref, err := issue.ParseRef(raw); err == nil {
		return ref.ID
	}
	return raw
}

// failure prints a handled error with a remediation hint where one
// exists, and maps it to exit code 1.
func failure(err error) error {
	if errors.Is(err, provider.ErrAuthRequired) {
		fmt.Fprintln(os.Stderr, "authentication required: set GITHUB_TOKEN or run 'gh auth login'")
	}
	return err
}
