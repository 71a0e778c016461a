package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/asset"
)

func TestCursorRoundTrip(t *testing.T) {
	assert.True(t, EmptyCursor().IsEmpty())

	st, err := decodeCursor(EmptyCursor())
	require.NoError(t, err)
	st.EvaluationID = 3
	st.LatestStorageID = 17
	st.markHandled("B", []string{"2023-01-02", "2023-01-01"})
	st.markHandled("B", []string{"2023-01-01"})
	st.markHandled("A", []string{""})

	c, err := st.encode()
	require.NoError(t, err)
	assert.Equal(t,
		`{"evaluation_id":3,"handled":{"A":[""],"B":["2023-01-01","2023-01-02"]},"latest_storage_id":17}`,
		c.String())

	back, err := decodeCursor(CursorFromString(c.String()))
	require.NoError(t, err)
	assert.Equal(t, st, back)
	assert.True(t, back.isHandled("A", ""))
	assert.False(t, back.isHandled("A", "x"))
}

func TestQuotaApply(t *testing.T) {
	keep, discard := newMaterializationQuota(2).Apply([]string{"a", "b", "c"})
	assert.Equal(t, []string{"b", "c"}, keep)
	assert.Equal(t, []string{"a"}, discard)

	keep, discard = newMaterializationQuota(0).Apply([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, keep)
	assert.Nil(t, discard)
}

func TestDataEqual(t *testing.T) {
	assert.True(t, DataEqual(nil, nil))
	assert.False(t, DataEqual(nil, NewWaitingOnAssetsData("A")))
	assert.True(t, DataEqual(
		NewParentUpdatedData([]asset.Key{"B", "A"}, nil),
		ParentUpdatedData{UpdatedAssetKeys: []asset.Key{"A", "B", "A"}},
	))
	assert.False(t, DataEqual(
		NewParentUpdatedData(asset.Keys("A"), nil),
		NewParentUpdatedData(nil, asset.Keys("A")),
	))
	assert.False(t, DataEqual(NewWaitingOnAssetsData("A"), NewParentUpdatedData(asset.Keys("A"), nil)))
}
