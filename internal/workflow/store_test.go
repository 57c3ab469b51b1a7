package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/autodev/internal/ai"
	"github.com/alanmeadows/autodev/internal/issue"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	rec := NewRecord("#42")
	rec.Status = StatusInReview
	rec.AIStatus = AIImplemented
	rec.Branch = "auto/feature/42"
	rec.PRNumber = 7
	rec.Issue = &issue.Issue{ID: "#42", Provider: issue.ProviderGitHub, Title: "Add retries", Type: issue.TypeFeature}
	rec.SetMeta("implementation_commit", "abc1234")
	require.NoError(t, s.Save(rec))

	loaded, err := s.Load("#42")
	require.NoError(t, err)
	assert.Equal(t, rec.IssueID, loaded.IssueID)
	assert.Equal(t, StatusInReview, loaded.Status)
	assert.Equal(t, AIImplemented, loaded.AIStatus)
	assert.Equal(t, 7, loaded.PRNumber)
	assert.Equal(t, "Add retries", loaded.Issue.Title)
	assert.Equal(t, "abc1234", loaded.Metadata["implementation_commit"])
	assert.False(t, loaded.UpdatedAt.Before(loaded.CreatedAt))
}

func TestStorePersistsRawGeneratorOutput(t *testing.T) {
	s := NewStore(t.TempDir())

	rec := NewRecord("#8")
	rec.AIStatus = AIFailed
	rec.AIResponse = &ai.Response{Success: false, Raw: "stack trace from the generator"}
	require.NoError(t, s.Save(rec))

	loaded, err := s.Load("#8")
	require.NoError(t, err)
	require.NotNil(t, loaded.AIResponse)
	assert.Equal(t, "stack trace from the generator", loaded.AIResponse.Raw)
}

func TestStoreSaveRefreshesUpdatedAt(t *testing.T) {
	s := NewStore(t.TempDir())
	rec := NewRecord("#1")
	require.NoError(t, s.Save(rec))
	first := rec.UpdatedAt

	require.NoError(t, s.Save(rec))
	assert.False(t, rec.UpdatedAt.Before(first))
}

func TestStoreSaveRejectsStaleCopy(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save(NewRecord("#6")))

	first, err := s.Load("#6")
	require.NoError(t, err)
	second, err := s.Load("#6")
	require.NoError(t, err)

	first.Status = StatusImplementing
	require.NoError(t, s.Save(first))

	second.Status = StatusFailed
	err = s.Save(second)
	assert.ErrorIs(t, err, ErrStale)

	// The newer write survives.
	loaded, err := s.Load("#6")
	require.NoError(t, err)
	assert.Equal(t, StatusImplementing, loaded.Status)
}

func TestStoreLoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load("#99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListSkipsUnparseable(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Save(NewRecord("#1")))
	require.NoError(t, s.Save(NewRecord("#2")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.yaml"), []byte(":\n  - not valid"), 0644))

	records, err := s.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStoreListMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreDeleteIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save(NewRecord("#3")))
	require.NoError(t, s.Delete("#3"))
	require.NoError(t, s.Delete("#3"))

	_, err := s.Load("#3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorePurgeTerminal(t *testing.T) {
	s := NewStore(t.TempDir())

	done := NewRecord("#1")
	done.Status = StatusCompleted
	failed := NewRecord("#2")
	failed.Status = StatusFailed
	live := NewRecord("#3")
	live.Status = StatusInReview
	for _, rec := range []*WorkflowRecord{done, failed, live} {
		require.NoError(t, s.Save(rec))
	}

	count, err := s.PurgeTerminal()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "#3", records[0].IssueID)
}

func TestStoreFindByPR(t *testing.T) {
	s := NewStore(t.TempDir())
	rec := NewRecord("#5")
	rec.PRNumber = 12
	require.NoError(t, s.Save(rec))

	found, err := s.FindByPR(12)
	require.NoError(t, err)
	assert.Equal(t, "#5", found.IssueID)

	_, err = s.FindByPR(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusOrdering(t *testing.T) {
	assert.True(t, StatusInReview.AtLeast(StatusImplementing))
	assert.False(t, StatusFetching.AtLeast(StatusCreatingPR))
	assert.False(t, StatusFailed.AtLeast(StatusPending))
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusInReview.Terminal())
}

func TestCycleStatusTerminal(t *testing.T) {
	assert.True(t, CycleApproved.Terminal())
	assert.True(t, CycleMaxIterations.Terminal())
	assert.True(t, CycleFailed.Terminal())
	assert.False(t, CycleWaitingForHuman.Terminal())
}
