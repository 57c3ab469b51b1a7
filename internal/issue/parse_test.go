package issue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRefGitHub(t *testing.T) {
	for _, token := range []string{"123", "#123"} {
		ref, err := ParseRef(token)
		require.NoError(t, err, token)
		assert.Equal(t, ProviderGitHub, ref.Provider)
		assert.Equal(t, "#123", ref.ID)
		assert.Equal(t, "123", ref.Number())
	}
}

func TestParseRefLinear(t *testing.T) {
	ref, err := ParseRef("PROJ-45")
	require.NoError(t, err)
	assert.Equal(t, ProviderLinear, ref.Provider)
	assert.Equal(t, "PROJ-45", ref.ID)
	assert.Equal(t, "PROJ-45", ref.Number())
}

func TestParseRefLowercaseTeamKey(t *testing.T) {
	ref, err := ParseRef("eng-7")
	require.NoError(t, err)
	assert.Equal(t, ProviderLinear, ref.Provider)
	assert.Equal(t, "eng-7", ref.ID)
}

func TestParseRefInvalid(t *testing.T) {
	for _, token := range []string{"", "abc", "#", "PROJ-", "-45", "12a", "PROJ-45-6", "#12 3"} {
		_, err := ParseRef(token)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, token)
	}
}

func TestTypeFromLabels(t *testing.T) {
	assert.Equal(t, TypeFeature, TypeFromLabels([]string{"docs", "Feature"}))
	assert.Equal(t, TypeBug, TypeFromLabels([]string{"bug", "feature"}))
	assert.Equal(t, TypeEnhancement, TypeFromLabels([]string{"improvement"}))
	assert.Equal(t, TypeHotfix, TypeFromLabels([]string{"hotfix"}))
	assert.Equal(t, TypeTask, TypeFromLabels([]string{"chore"}))
	assert.Equal(t, TypeUnknown, TypeFromLabels(nil))
	assert.Equal(t, TypeUnknown, TypeFromLabels([]string{"question"}))
}

func TestCommitPrefix(t *testing.T) {
	assert.Equal(t, "feat", TypeFeature.CommitPrefix())
	assert.Equal(t, "feat", TypeEnhancement.CommitPrefix())
	assert.Equal(t, "fix", TypeBug.CommitPrefix())
	assert.Equal(t, "fix", TypeHotfix.CommitPrefix())
	assert.Equal(t, "chore", TypeTask.CommitPrefix())
	assert.Equal(t, "chore", TypeUnknown.CommitPrefix())
}
