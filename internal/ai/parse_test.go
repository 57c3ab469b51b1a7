package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructured(t *testing.T) {
	raw := `## Summary
Added retry logic to the HTTP client.

## Files Modified
- internal/client/retry.go - create - backoff helper
- internal/client/client.go - modify - wire retries
- internal/client/legacy.go - delete

## Commands to Run
- ` + "`go test ./...`" + `
- go vet ./...

## Notes
Consider a circuit breaker later.
`
	resp := Parse(raw, ModeStructured)
	require.True(t, resp.Success)
	assert.Equal(t, "Added retry logic to the HTTP client.", resp.Summary)
	assert.Equal(t, "Consider a circuit breaker later.", resp.Notes)
	assert.Equal(t, raw, resp.Raw)

	require.Len(t, resp.FileChanges, 3)
	assert.Equal(t, FileChange{Path: "internal/client/retry.go", Action: ActionCreate, Description: "backoff helper"}, resp.FileChanges[0])
	assert.Equal(t, ActionModify, resp.FileChanges[1].Action)
	assert.Equal(t, ActionDelete, resp.FileChanges[2].Action)

	assert.Equal(t, []string{"go test ./...", "go vet ./..."}, resp.Commands)
}

func TestParseActionNormalization(t *testing.T) {
	raw := "## Files Modified\n- a.go - added\n- b.go - removed\n- c.go - touched\n"
	resp := Parse(raw, ModeStructured)
	require.Len(t, resp.FileChanges, 3)
	assert.Equal(t, ActionCreate, resp.FileChanges[0].Action)
	assert.Equal(t, ActionDelete, resp.FileChanges[1].Action)
	assert.Equal(t, ActionModify, resp.FileChanges[2].Action)
}

func TestParseStructuredFallsBackToFreeform(t *testing.T) {
	raw := "I updated internal/server/handler.go and added handler_test.go.\nRun `go test ./internal/server` to verify."
	resp := Parse(raw, ModeStructured)
	require.True(t, resp.Success)

	paths := resp.ChangedPaths()
	assert.Contains(t, paths, "internal/server/handler.go")
	assert.Contains(t, paths, "handler_test.go")
	assert.Equal(t, []string{"go test ./internal/server"}, resp.Commands)
	assert.NotEmpty(t, resp.Summary)
}

func TestParseFreeformIgnoresNonCommands(t *testing.T) {
	raw := "Changed main.go. The value `x` is now `42`."
	resp := Parse(raw, ModeFreeform)
	assert.Empty(t, resp.Commands)
	assert.Equal(t, []string{"main.go"}, resp.ChangedPaths())
}

func TestParseEmptyOutput(t *testing.T) {
	resp := Parse("  \n\t\n", ModeStructured)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.FileChanges)
}

func TestParseDeduplicatesFreeformPaths(t *testing.T) {
	raw := "edited foo.go then foo.go again, plus bar.py"
	resp := Parse(raw, ModeFreeform)
	assert.Equal(t, []string{"foo.go", "bar.py"}, resp.ChangedPaths())
}

func TestParseBoldSectionHeaders(t *testing.T) {
	raw := "**Summary**\nDid the thing.\n\n**Files Modified**\n- pkg/x.go - modify\n"
	resp := Parse(raw, ModeStructured)
	assert.Equal(t, "Did the thing.", resp.Summary)
	require.Len(t, resp.FileChanges, 1)
	assert.Equal(t, "pkg/x.go", resp.FileChanges[0].Path)
}
