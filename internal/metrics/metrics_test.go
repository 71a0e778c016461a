package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.ObserveTick(2)
	r.ObserveTick(0)
	r.ObserveRuleEvaluation("MATERIALIZE", 3)
	r.ObserveRuleEvaluation("SKIP", 0)
	r.ObserveRun("SUCCESS", 2)
	r.ObserveRun("FAILURE", 1)
	r.ObserveEvent("ASSET_MATERIALIZATION")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.runRequests))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.ruleEvaluations.WithLabelValues("MATERIALIZE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("FAILURE")))
}

func TestRecordersAreIsolated(t *testing.T) {
	a, b := New(), New()
	a.ObserveTick(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ticks))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ticks))
}

func TestSnapshot(t *testing.T) {
	r := New()
	r.ObserveTick(1)
	r.ObserveRun("SUCCESS", 3)
	r.ObserveEvent("STEP_FAILURE")

	snap, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["amp_ticks_total"])
	assert.Equal(t, 1.0, snap["amp_runs_total{status=SUCCESS}"])
	assert.Equal(t, 1.0, snap["amp_events_total{event_type=STEP_FAILURE}"])
	assert.Equal(t, 1.0, snap["amp_run_selection_size_count"])
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveTick(1)
	r.ObserveRun("SUCCESS", 1)
	r.ObserveEvent("x")
	r.ObserveRuleEvaluation("SKIP", 1)
	assert.Nil(t, r.Registry())

	snap, err := r.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap)
}
