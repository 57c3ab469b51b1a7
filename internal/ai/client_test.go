package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/autodev/internal/config"
)

func testClient(command string) *CommandClient {
	c := NewCommandClient(config.AIConfig{
		Command:        command,
		Timeout:        "10s",
		MaxRetries:     2,
		ResponseFormat: "structured",
	})
	c.backoffBase = time.Millisecond
	return c
}

func TestAvailable(t *testing.T) {
	assert.NoError(t, testClient("sh").Available())
	assert.Error(t, testClient("no-such-generator-xyz").Available())
	assert.Error(t, testClient("").Available())
}

func TestGenerateEchoesPromptFromStdin(t *testing.T) {
	c := testClient("cat")
	resp, err := c.Generate(context.Background(), Request{
		Prompt: "## Summary\nhello from prompt\n",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "hello from prompt", resp.Summary)
}

func TestGenerateNonZeroExit(t *testing.T) {
	c := testClient("false")
	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneratorFailed))
	// "false" fails fast and permanently; no retries should fire.
}

func TestGenerateTimeout(t *testing.T) {
	c := NewCommandClient(config.AIConfig{Command: "sh", Timeout: "50ms", MaxRetries: 0})
	c.backoffBase = time.Millisecond

	start := time.Now()
	// sh reads the "script" from stdin, so the prompt can stall on purpose.
	_, err := c.Generate(context.Background(), Request{Prompt: "sleep 5"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestGenerateRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient("cat")
	c.maxRetries = 5
	// A cancelled context should surface promptly even with retries configured.
	_, err := c.Generate(ctx, Request{Prompt: "x"})
	assert.Error(t, err)
}

func TestTransientGeneratorError(t *testing.T) {
	assert.True(t, transientGeneratorError(errors.New("429 too many requests"), ""))
	assert.True(t, transientGeneratorError(errors.New("generator timed out after 10s"), ""))
	assert.True(t, transientGeneratorError(errors.New("exit status 1"), "API rate limit exceeded"))
	assert.False(t, transientGeneratorError(errors.New("exit status 1"), "syntax error"))
	assert.False(t, transientGeneratorError(nil, "rate limit"))
}

func TestMockClientScriptedResponses(t *testing.T) {
	m := NewMockClient()
	m.Responses = []*Response{
		{Success: true, Summary: "first"},
		{Success: true, Summary: "second"},
	}

	r1, err := m.Generate(context.Background(), Request{Prompt: "a"})
	require.NoError(t, err)
	r2, _ := m.Generate(context.Background(), Request{Prompt: "b"})
	r3, _ := m.Generate(context.Background(), Request{Prompt: "c"})

	assert.Equal(t, "first", r1.Summary)
	assert.Equal(t, "second", r2.Summary)
	assert.Equal(t, "second", r3.Summary)
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, "a", m.Requests[0].Prompt)
}
