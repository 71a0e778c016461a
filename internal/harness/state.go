package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/daemon"
	"github.com/CiderSlime/dagster/internal/instance"
	"github.com/CiderSlime/dagster/internal/logging"
	"github.com/CiderSlime/dagster/internal/policy"
	"github.com/CiderSlime/dagster/internal/simulate"
	"github.com/CiderSlime/dagster/internal/vclock"
)

// PreconditionError is raised (as a panic) when a state is used before the
// driver attached a backing instance.
type PreconditionError struct {
	Op string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: no backing instance attached; run the scenario through Evaluate or Run", e.Op)
}

// timeLayouts are accepted by WithCurrentTime, tried in order. Layouts
// without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses a scenario timestamp literal.
func ParseTime(literal string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, literal, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", literal)
}

// ScenarioState is one immutable step of a scenario. Every transition
// returns a new value; the receiver is never modified.
type ScenarioState struct {
	specs       []asset.Spec
	currentTime time.Time
	runRequests []daemon.RunRequest
	cursor      daemon.Cursor
	evaluations []daemon.AssetEvaluation
	ticks       []daemon.TickResult

	respectDataVersions bool

	logger    *slog.Logger
	logOutput io.Writer
	instance  *instance.Instance
	reporter  Reporter
}

// NewState starts a scenario over specs at the current wall-clock time.
func NewState(specs ...asset.Spec) ScenarioState {
	return ScenarioState{
		specs:       slices.Clone(specs),
		currentTime: time.Now().UTC(),
		cursor:      daemon.EmptyCursor(),
		logger:      logging.NewNop(),
	}
}

func (s ScenarioState) Specs() []asset.Spec                   { return slices.Clone(s.specs) }
func (s ScenarioState) CurrentTime() time.Time                { return s.currentTime }
func (s ScenarioState) RunRequests() []daemon.RunRequest      { return slices.Clone(s.runRequests) }
func (s ScenarioState) Cursor() daemon.Cursor                 { return s.cursor }
func (s ScenarioState) Evaluations() []daemon.AssetEvaluation { return slices.Clone(s.evaluations) }
func (s ScenarioState) Ticks() []daemon.TickResult            { return slices.Clone(s.ticks) }
func (s ScenarioState) Logger() *slog.Logger                  { return s.logger }

// Instance returns the backing instance. It panics with *PreconditionError
// before the driver attached one.
func (s ScenarioState) Instance() *instance.Instance {
	if s.instance == nil {
		panic(&PreconditionError{Op: "instance"})
	}
	return s.instance
}

// AssetGraph builds the graph of the current specs.
func (s ScenarioState) AssetGraph() (*asset.Graph, error) {
	return asset.NewGraph(s.specs)
}

// attach binds the state to a driver's resources.
func (s ScenarioState) attach(inst *instance.Instance, r Reporter, logger *slog.Logger) ScenarioState {
	s.instance = inst
	s.reporter = r
	s.logger = logger
	return s
}

// WithLogOutput returns a copy logging to w at level. A driver keeps w but
// raises the level to LevelTrace.
func (s ScenarioState) WithLogOutput(w io.Writer, level slog.Leveler) ScenarioState {
	s.logger = logging.New(w, level)
	s.logOutput = w
	return s
}

// logWriter returns the output set by WithLogOutput, or fallback.
func (s ScenarioState) logWriter(fallback io.Writer) io.Writer {
	if s.logOutput == nil {
		return fallback
	}
	return s.logOutput
}

// WithAssetProperties applies changes to the specs whose key is in keys, or
// to every spec when keys is nil. Other specs are kept as they are.
func (s ScenarioState) WithAssetProperties(keys []asset.Key, changes asset.SpecChanges) ScenarioState {
	next := make([]asset.Spec, len(s.specs))
	for i, spec := range s.specs {
		if keys == nil || slices.Contains(keys, spec.Key) {
			spec = spec.With(changes)
		}
		next[i] = spec
	}
	s.specs = next
	return s
}

// WithAllEager puts every asset under the eager policy.
func (s ScenarioState) WithAllEager() ScenarioState {
	return s.WithAssetProperties(nil, asset.Changes().Policy(policy.Eager()))
}

// WithCurrentTime moves virtual time to the instant named by literal.
func (s ScenarioState) WithCurrentTime(literal string) ScenarioState {
	t, err := ParseTime(literal)
	if err != nil {
		return s.fatalf("with current time: %v", err)
	}
	return s.WithTime(t)
}

// WithTime moves virtual time to t.
func (s ScenarioState) WithTime(t time.Time) ScenarioState {
	s.currentTime = t.UTC()
	return s
}

// WithRespectDataVersions sets the flag passed to subsequent ticks.
func (s ScenarioState) WithRespectDataVersions(respect bool) ScenarioState {
	s.respectDataVersions = respect
	return s
}

// WithRuns simulates each request at the current time. Failed steps are
// logged and end up in the history; malformed requests are fatal. The
// returned state equals the receiver since history lives in the instance.
func (s ScenarioState) WithRuns(reqs ...daemon.RunRequest) ScenarioState {
	inst := s.Instance()
	g, err := s.AssetGraph()
	if err != nil {
		return s.fatalf("with runs: %v", err)
	}
	sim := inst.Simulator(s.logger)
	err = inst.Clock().Do(s.currentTime, func(vclock.Clock) error {
		for _, rr := range reqs {
			res, err := sim.Materialize(context.Background(), simulate.Request{
				Graph:        g,
				PartitionKey: rr.PartitionKey,
				Tags:         rr.Tags,
				Selection:    rr.AssetSelection,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", rr, err)
			}
			if !res.Success() {
				s.logger.Info("run failed; continuing", "run_id", res.RunID, "failed", len(res.Failed))
			}
		}
		return nil
	})
	if err != nil {
		return s.fatalf("with runs: %v", err)
	}
	return s
}

// WithRequestedRuns simulates the run requests of the last tick.
func (s ScenarioState) WithRequestedRuns() ScenarioState {
	return s.WithRuns(s.runRequests...)
}

// EvaluateTick runs the scheduler once at the current time, threading the
// cursor, and records its run requests and evaluations.
func (s ScenarioState) EvaluateTick() ScenarioState {
	inst := s.Instance()
	g, err := s.AssetGraph()
	if err != nil {
		return s.fatalf("evaluate tick: %v", err)
	}
	var res daemon.TickResult
	err = inst.Clock().Do(s.currentTime, func(clock vclock.Clock) error {
		var err error
		res, err = daemon.Evaluate(context.Background(), daemon.Options{
			Graph:                              g,
			Store:                              inst.Store(),
			MaterializeRunTags:                 map[string]string{},
			ObserveRunTags:                     map[string]string{},
			Cursor:                             s.cursor,
			AutoObserve:                        true,
			RespectMaterializationDataVersions: s.respectDataVersions,
			Logger:                             s.logger,
			Clock:                              clock,
			Metrics:                            inst.Metrics(),
		})
		return err
	})
	if err != nil {
		return s.fatalf("evaluate tick: %v", err)
	}
	s.runRequests = res.RunRequests
	s.cursor = res.Cursor
	s.evaluations = res.Evaluations
	s.ticks = append(slices.Clone(s.ticks), res)
	return s
}

// AssertRequestedRuns fails the scenario unless the last tick requested
// exactly expected, ignoring order.
func (s ScenarioState) AssertRequestedRuns(expected ...daemon.RunRequest) ScenarioState {
	if err := CompareRunRequests(expected, s.runRequests); err != nil {
		return s.fail(err)
	}
	return s
}

// AssertEvaluation fails the scenario unless the last tick's evaluation of
// key matches specs and the given counts.
func (s ScenarioState) AssertEvaluation(key asset.Key, specs []RuleSpec, counts ...CountOption) ScenarioState {
	g, err := s.AssetGraph()
	if err != nil {
		return s.fatalf("assert evaluation: %v", err)
	}
	if err := CompareEvaluation(g, key, s.evaluations, specs, buildCounts(counts)); err != nil {
		return s.fail(err)
	}
	return s
}

func (s ScenarioState) fail(err error) ScenarioState {
	var ae *AssertionError
	if errors.As(err, &ae) {
		s.logger.Error(ae.Dump())
	}
	return s.fatalf("%v", err)
}

func (s ScenarioState) fatalf(format string, args ...any) ScenarioState {
	r := s.reporter
	if r == nil {
		r = abortReporter{}
	}
	r.Helper()
	r.Fatalf(format, args...)
	return s
}
