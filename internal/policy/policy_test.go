package policy

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEagerPolicy(t *testing.T) {
	p := Eager()

	assert.True(t, p.Has(KindMaterializeOnMissing))
	assert.True(t, p.Has(KindMaterializeOnParentUpdated))
	assert.True(t, p.Has(KindSkipOnParentMissing))
	assert.False(t, p.Has(KindSkipOnNotAllParentsUpdated))
	assert.Len(t, p.MaterializeRules(), 2)
	assert.Len(t, p.SkipRules(), 3)

	d, ok := p.DiscardRule()
	require.True(t, ok)
	assert.Equal(t, "exceeds 1 materialization(s) per minute", d.Description())
	assert.Equal(t, DecisionDiscard, d.Decision())
}

func TestLazyPolicyHasNoMaterializeRules(t *testing.T) {
	assert.Empty(t, Lazy().MaterializeRules())
}

func TestWithRulesDeduplicates(t *testing.T) {
	p := New(0, MaterializeOnMissing()).WithRules(MaterializeOnMissing(), SkipOnNotAllParentsUpdated())
	assert.Len(t, p.Rules(), 2)

	_, ok := p.DiscardRule()
	assert.False(t, ok)

	p = p.WithRules(DiscardOnMaxMaterializationsExceeded(3))
	assert.Equal(t, 3, p.MaxMaterializationsPerMinute())
}

func TestWithoutRulesDoesNotMutate(t *testing.T) {
	eager := Eager()
	trimmed := eager.WithoutRules(KindMaterializeOnMissing, KindDiscardOnMaxMaterializationsExceeded)

	assert.False(t, trimmed.Has(KindMaterializeOnMissing))
	assert.Zero(t, trimmed.MaxMaterializationsPerMinute())
	assert.True(t, eager.Has(KindMaterializeOnMissing))
	assert.Equal(t, 1, eager.MaxMaterializationsPerMinute())
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule("materialize_on_parent_updated", 0)
	require.NoError(t, err)
	assert.Equal(t, MaterializeOnParentUpdated(), r)

	r, err = ParseRule("discard_on_max_materializations_exceeded", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Limit())

	_, err = ParseRule("discard_on_max_materializations_exceeded", 0)
	assert.Error(t, err)

	_, err = ParseRule("materialize_on_cron", 0)
	assert.ErrorContains(t, err, "unknown rule")
}

func TestRuleSnapshotOrdering(t *testing.T) {
	snaps := []RuleSnapshot{
		DiscardOnMaxMaterializationsExceeded(1).Snapshot(),
		SkipOnParentOutdated().Snapshot(),
		MaterializeOnParentUpdated().Snapshot(),
		SkipOnParentMissing().Snapshot(),
		MaterializeOnMissing().Snapshot(),
	}
	slices.SortFunc(snaps, RuleSnapshot.Compare)

	names := make([]string, len(snaps))
	for i, s := range snaps {
		names[i] = s.ClassName
	}
	assert.Equal(t, []string{
		"MaterializeOnMissingRule",
		"MaterializeOnParentUpdatedRule",
		"SkipOnParentMissingRule",
		"SkipOnParentOutdatedRule",
		"DiscardOnMaxMaterializationsExceededRule",
	}, names)
}

func TestRuleSnapshotEquality(t *testing.T) {
	assert.Equal(t, SkipOnParentMissing().Snapshot(), SkipOnParentMissing().Snapshot())
	assert.NotEqual(t,
		DiscardOnMaxMaterializationsExceeded(1).Snapshot(),
		DiscardOnMaxMaterializationsExceeded(2).Snapshot())
	assert.Zero(t, MaterializeOnMissing().Snapshot().Compare(MaterializeOnMissing().Snapshot()))
}
