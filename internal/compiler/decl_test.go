package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/policy"
)

func intPtr(n int) *int { return &n }

func TestBuildPolicy(t *testing.T) {
	p, err := BuildPolicy("", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = BuildPolicy(PolicyNone, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = BuildPolicy(PolicyNone, []string{"materialize_on_missing"}, nil)
	assert.Error(t, err)

	p, err = BuildPolicy(PolicyCustom, []string{"materialize_on_parent_updated", "skip_on_not_all_parents_updated"}, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Len(t, p.Rules(), 2)
	_, hasDiscard := p.DiscardRule()
	assert.False(t, hasDiscard)

	p, err = BuildPolicy(PolicyEager, nil, intPtr(5))
	require.NoError(t, err)
	assert.Equal(t, 5, p.MaxMaterializationsPerMinute())

	_, err = BuildPolicy(PolicyEager, nil, intPtr(0))
	assert.Error(t, err)

	_, err = BuildPolicy(PolicyEager, []string{"materialize_sometimes"}, nil)
	assert.Error(t, err)
}

func TestValidateReportsAll(t *testing.T) {
	errs := Validate([]AssetDecl{
		{Key: ""},
		{Key: "A", Policy: "weird"},
		{Key: "A", Rules: []string{"nope"}, MaxPerMinute: intPtr(-1)},
		{Key: "B", Partitions: &PartitionsDecl{}},
	})
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{
		ErrEmptyKey,
		ErrUnknownPolicy,
		ErrDuplicateAsset,
		ErrUnknownRule,
		ErrInvalidLimit,
		ErrInvalidPartitions,
	}, codes)
	assert.Equal(t, "[E103] assets.A.policy: unknown policy \"weird\" (want eager, lazy, custom or none)", errs[1].Error())
}

func TestBuildAll(t *testing.T) {
	specs, err := BuildAll([]AssetDecl{
		{Key: "A", Policy: PolicyEager},
		{Key: "B", Deps: []string{"A"}, Partitions: &PartitionsDecl{Static: []string{"x", "y"}}},
	})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.True(t, specs[1].IsPartitioned())
	assert.True(t, specs[0].Policy.Has(policy.KindMaterializeOnMissing))

	_, err = BuildAll([]AssetDecl{{Key: "A", Policy: "weird"}})
	assert.ErrorContains(t, err, ErrUnknownPolicy)
}
