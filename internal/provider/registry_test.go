package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/autodev/internal/issue"
)

func TestRegistryGetAndFor(t *testing.T) {
	reg := NewRegistry()
	mock := NewMockClient()
	reg.Register(mock)

	got, err := reg.Get("github")
	require.NoError(t, err)
	assert.Same(t, Client(mock), got)

	ref, err := issue.ParseRef("#12")
	require.NoError(t, err)
	got, err = reg.For(ref)
	require.NoError(t, err)
	assert.Same(t, Client(mock), got)
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("linear")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "linear")
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMockClient())
	assert.Equal(t, []string{"github"}, reg.Names())
}

func TestExternalErrorTransience(t *testing.T) {
	transient := &ExternalError{Op: "get PR", Transient: true, Err: errors.New("503")}
	permanent := &ExternalError{Op: "get PR", Transient: false, Err: errors.New("422")}

	assert.True(t, IsTransient(transient))
	assert.False(t, IsTransient(permanent))
	assert.False(t, IsTransient(errors.New("plain")))

	// Wrapping preserves classification.
	wrapped := errors.Join(errors.New("outer"), transient)
	assert.True(t, IsTransient(wrapped))

	assert.Contains(t, transient.Error(), "transient")
	assert.Contains(t, permanent.Error(), "permanent")
}
