package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/metrics"
	"github.com/CiderSlime/dagster/internal/simulate"
	"github.com/CiderSlime/dagster/internal/store"
	"github.com/CiderSlime/dagster/internal/testutil"
	"github.com/CiderSlime/dagster/internal/vclock"
)

var now = time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)

// fixture carries a store, a simulator and the cursor across ticks.
type fixture struct {
	t       *testing.T
	store   *store.Store
	sim     *simulate.Simulator
	graph   *asset.Graph
	metrics *metrics.Recorder
	cursor  Cursor
}

func newFixture(t *testing.T, specs ...asset.Spec) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &fixture{
		t:       t,
		store:   st,
		sim:     simulate.New(st, vclock.Fixed(now), simulate.WithRunIDs(simulate.NewSequentialRunIDs(t.Name()))),
		graph:   testutil.MustGraph(t, specs...),
		metrics: metrics.New(),
		cursor:  EmptyCursor(),
	}
}

func (f *fixture) options() Options {
	return Options{
		Graph:   f.graph,
		Store:   f.store,
		Cursor:  f.cursor,
		Clock:   vclock.Fixed(now),
		Metrics: f.metrics,
	}
}

// tick evaluates with the fixture's cursor and advances it.
func (f *fixture) tick(mutate ...func(*Options)) TickResult {
	f.t.Helper()
	opts := f.options()
	for _, m := range mutate {
		m(&opts)
	}
	res, err := Evaluate(f.t.Context(), opts)
	require.NoError(f.t, err)
	f.cursor = res.Cursor
	return res
}

func (f *fixture) run(partition string, keys ...asset.Key) {
	f.t.Helper()
	_, err := f.sim.Materialize(f.t.Context(), simulate.Request{
		Graph:        f.graph,
		PartitionKey: partition,
		Selection:    keys,
		RaiseOnError: true,
	})
	require.NoError(f.t, err)
}

func respectDataVersions(o *Options) { o.RespectMaterializationDataVersions = true }
