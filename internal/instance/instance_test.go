package instance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/simulate"
	"github.com/CiderSlime/dagster/internal/testutil"
	"github.com/CiderSlime/dagster/internal/vclock"
)

func TestEphemeralInstancesDoNotShareHistory(t *testing.T) {
	a, err := Ephemeral()
	require.NoError(t, err)
	defer a.Close()
	b, err := Ephemeral()
	require.NoError(t, err)
	defer b.Close()

	g := testutil.MustGraph(t, testutil.ChainSpecs()...)
	_, err = a.Simulator(nil).Materialize(t.Context(), simulate.Request{Graph: g})
	require.NoError(t, err)

	idA, err := a.Store().MaxStorageID(t.Context())
	require.NoError(t, err)
	idB, err := b.Store().MaxStorageID(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), idA)
	assert.Zero(t, idB)
}

func TestSimulatorUsesFrozenClock(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	inst, err := Ephemeral(WithAmbientClock(testutil.NewStepClock(start, time.Hour)))
	require.NoError(t, err)
	defer inst.Close()

	g := testutil.MustGraph(t, asset.NewSpec("A"))
	frozen := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	err = inst.Clock().Do(frozen, func(vclock.Clock) error {
		_, err := inst.Simulator(nil).Materialize(t.Context(), simulate.Request{Graph: g})
		return err
	})
	require.NoError(t, err)

	ev, ok, err := inst.Store().LatestMaterialization(t.Context(), "A", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, frozen, ev.Timestamp)
}

func TestRunIDsOption(t *testing.T) {
	inst, err := Ephemeral(WithRunIDs(simulate.NewFixedRunIDs("run-a")))
	require.NoError(t, err)
	defer inst.Close()

	g := testutil.MustGraph(t, asset.NewSpec("A"))
	res, err := inst.Simulator(nil).Materialize(t.Context(), simulate.Request{Graph: g})
	require.NoError(t, err)
	assert.Equal(t, "run-a", res.RunID)

	snap, err := inst.Metrics().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["amp_runs_total{status=SUCCESS}"])
}

func TestOpenFileAndCloseTwice(t *testing.T) {
	inst, err := Open(filepath.Join(t.TempDir(), "instance.db"))
	require.NoError(t, err)
	assert.NotNil(t, inst.RunIDs())
	assert.NoError(t, inst.Close())
	assert.NoError(t, inst.Close())
}
