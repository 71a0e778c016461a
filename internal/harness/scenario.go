package harness

import (
	"strings"
	"testing"

	"github.com/CiderSlime/dagster/internal/instance"
	"github.com/CiderSlime/dagster/internal/logging"
	"github.com/CiderSlime/dagster/internal/simulate"
)

// Scenario is an initial state plus the script that drives it.
type Scenario struct {
	ID      string
	Initial ScenarioState
	Execute func(ScenarioState) ScenarioState
}

// Evaluate runs the scenario once under t with a fresh ephemeral instance.
// Logs go at trace level to the initial state's log output, or to t when it
// has none; the instance is closed on cleanup.
func (sc Scenario) Evaluate(t testing.TB, opts ...instance.Option) ScenarioState {
	t.Helper()
	w := sc.Initial.logWriter(testLogWriter{t})
	logger := logging.New(w, logging.LevelTrace).With("scenario", sc.ID)

	opts = append([]instance.Option{
		instance.WithRunIDs(simulate.NewSequentialRunIDs(sc.ID)),
		instance.WithLogger(logger),
	}, opts...)
	inst, err := instance.Ephemeral(opts...)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.ID, err)
	}
	t.Cleanup(func() { inst.Close() })

	return sc.Execute(sc.Initial.attach(inst, t, logger))
}

// testLogWriter forwards log lines to t.Log.
type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
