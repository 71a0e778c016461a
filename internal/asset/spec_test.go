package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/policy"
)

func TestNewSpecNormalizesDeps(t *testing.T) {
	s := NewSpec("c", "b", "a", "b")
	assert.Equal(t, []Key{"a", "b"}, s.Deps)
	assert.Equal(t, DefaultGroup, s.GroupName)
	assert.Nil(t, s.Policy)
	assert.False(t, s.IsPartitioned())
}

func TestSpecWithReplacesOnlySetFields(t *testing.T) {
	orig := NewSpec("b", "a")
	orig.CodeVersion = "1"

	changed := orig.With(Changes().Group("g"))

	assert.Equal(t, "g", changed.GroupName)
	assert.Equal(t, orig.CodeVersion, changed.CodeVersion)
	assert.Equal(t, orig.Deps, changed.Deps)
	assert.Equal(t, DefaultGroup, orig.GroupName, "original must be untouched")
}

func TestSpecWithEmptyChangesIsIdentity(t *testing.T) {
	orig := NewSpec("b", "a")
	assert.Equal(t, orig, orig.With(Changes()))
}

func TestSpecWithPolicy(t *testing.T) {
	s := NewSpec("a").With(Changes().Policy(policy.Eager()))
	require.NotNil(t, s.Policy)
	assert.True(t, s.Policy.Has(policy.KindMaterializeOnMissing))

	cleared := s.With(Changes().NoPolicy())
	assert.Nil(t, cleared.Policy)
	assert.NotNil(t, s.Policy)
}

func TestSpecWithPartitionsAndFailing(t *testing.T) {
	def := MustDailyPartitions("2023-01-01")
	s := NewSpec("a").With(Changes().Partitions(def).Failing(true).CodeVersion("2").Deps("z"))

	assert.True(t, s.IsPartitioned())
	assert.True(t, s.Failing)
	assert.Equal(t, "2", s.CodeVersion)
	assert.Equal(t, []Key{"z"}, s.Deps)
}

func TestSpecChangesFields(t *testing.T) {
	c := Changes().Failing(false).Group("g")
	assert.Equal(t, []string{"group_name", "failing"}, c.Fields())
	assert.False(t, c.IsEmpty())
	assert.True(t, Changes().IsEmpty())
}
