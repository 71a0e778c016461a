// Package simulate executes run requests against a backing store.
//
// Assets are stand-ins: running one writes a materialization event whose
// data version is derived from its code version and its inputs' data
// versions, or a step failure when the spec is marked Failing. No user code
// runs, so a run's outcome is fully determined by the specs and history.
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/canon"
	"github.com/CiderSlime/dagster/internal/logging"
	"github.com/CiderSlime/dagster/internal/metrics"
	"github.com/CiderSlime/dagster/internal/store"
	"github.com/CiderSlime/dagster/internal/vclock"
)

// Request describes one run.
type Request struct {
	Graph *asset.Graph
	// PartitionKey is "" for unpartitioned runs.
	PartitionKey string
	Tags         map[string]string
	// Selection restricts which graph assets run; nil runs all of them.
	Selection []asset.Key
	// RaiseOnError turns step failures into an *ExecutionError. When false
	// failures are logged and only visible in the Result.
	RaiseOnError bool
}

// Result is the outcome of a run.
type Result struct {
	RunID        string
	Status       store.RunStatus
	Materialized []asset.Key
	Failed       []StepFailure
	// Skipped lists selected assets downstream of a failure.
	Skipped []asset.Key
}

// Success reports whether every selected asset materialized.
func (r Result) Success() bool { return r.Status == store.RunSuccess }

// Simulator runs requests against one store.
type Simulator struct {
	store   *store.Store
	clock   vclock.Clock
	runIDs  RunIDGenerator
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option configures a Simulator.
type Option func(*Simulator)

func WithRunIDs(g RunIDGenerator) Option     { return func(s *Simulator) { s.runIDs = g } }
func WithLogger(l *slog.Logger) Option       { return func(s *Simulator) { s.logger = l } }
func WithMetrics(m *metrics.Recorder) Option { return func(s *Simulator) { s.metrics = m } }

// New creates a Simulator. clock stamps runs and events; pass a frozen
// vclock.Virtual to pin them to the scenario's current time.
func New(st *store.Store, clock vclock.Clock, opts ...Option) *Simulator {
	s := &Simulator{
		store:  st,
		clock:  clock,
		runIDs: UUIDv7RunIDs{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Materialize executes req as one run.
func (s *Simulator) Materialize(ctx context.Context, req Request) (Result, error) {
	selection, err := s.resolveSelection(req)
	if err != nil {
		return Result{}, err
	}

	now := s.clock.Now()
	runID := s.runIDs.Generate()
	if err := s.store.CreateRun(ctx, store.Run{
		RunID:          runID,
		PartitionKey:   req.PartitionKey,
		AssetSelection: selection,
		Tags:           maps.Clone(req.Tags),
		CreatedAt:      now,
	}); err != nil {
		return Result{}, err
	}
	s.logger.Info("run started",
		"run_id", runID,
		"partition", req.PartitionKey,
		"selection", asset.Strings(selection))

	res := Result{RunID: runID, Status: store.RunSuccess}
	blocked := make(map[asset.Key]bool)
	selected := make(map[asset.Key]bool, len(selection))
	for _, k := range selection {
		selected[k] = true
	}

	for _, key := range req.Graph.TopologicalOrder() {
		if !selected[key] {
			continue
		}
		if slices.ContainsFunc(req.Graph.Parents(key), func(p asset.Key) bool { return blocked[p] }) {
			blocked[key] = true
			res.Skipped = append(res.Skipped, key)
			s.logger.Debug("step skipped", "run_id", runID, "asset", key)
			continue
		}

		spec, _ := req.Graph.Spec(key)
		partition := req.PartitionKey
		if !spec.IsPartitioned() {
			partition = ""
		}

		if spec.Failing {
			msg := fmt.Sprintf("simulated failure in %s", key)
			if _, err := s.store.RecordEvent(ctx, store.Event{
				RunID:        runID,
				Type:         store.EventStepFailure,
				AssetKey:     key,
				PartitionKey: partition,
				CodeVersion:  spec.CodeVersion,
				Message:      msg,
				Timestamp:    now,
			}); err != nil {
				return res, err
			}
			s.metrics.ObserveEvent(string(store.EventStepFailure))
			blocked[key] = true
			res.Failed = append(res.Failed, StepFailure{Key: key, Message: msg})
			s.logger.Debug("step failed", "run_id", runID, "asset", key, "partition", partition)
			continue
		}

		dataVersion, err := s.dataVersion(ctx, req.Graph, spec, partition, now)
		if err != nil {
			return res, err
		}
		if _, err := s.store.RecordEvent(ctx, store.Event{
			RunID:        runID,
			Type:         store.EventMaterialization,
			AssetKey:     key,
			PartitionKey: partition,
			CodeVersion:  spec.CodeVersion,
			DataVersion:  dataVersion,
			Timestamp:    now,
		}); err != nil {
			return res, err
		}
		s.metrics.ObserveEvent(string(store.EventMaterialization))
		res.Materialized = append(res.Materialized, key)
		s.logger.Log(ctx, logging.LevelTrace, "step materialized",
			"run_id", runID, "asset", key, "partition", partition, "data_version", dataVersion)
	}

	if len(res.Failed) > 0 || len(res.Skipped) > 0 {
		res.Status = store.RunFailure
	}
	if err := s.store.FinishRun(ctx, runID, res.Status, now); err != nil {
		return res, err
	}
	s.metrics.ObserveRun(string(res.Status), len(selection))

	if res.Status == store.RunFailure {
		execErr := &ExecutionError{RunID: runID, Failures: res.Failed}
		if req.RaiseOnError {
			return res, execErr
		}
		s.logger.Warn("run failed", "run_id", runID, "error", execErr)
		return res, nil
	}
	s.logger.Info("run succeeded", "run_id", runID, "materialized", len(res.Materialized))
	return res, nil
}

func (s *Simulator) resolveSelection(req Request) ([]asset.Key, error) {
	if req.Graph == nil {
		return nil, fmt.Errorf("%w: no asset graph", ErrInvalidRequest)
	}
	selection := req.Selection
	if selection == nil {
		selection = req.Graph.Keys()
	}
	selection = asset.SortKeys(selection)
	if len(selection) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrInvalidRequest)
	}

	now := s.clock.Now()
	for _, k := range selection {
		spec, ok := req.Graph.Spec(k)
		if !ok {
			return nil, fmt.Errorf("%w: asset %q is not in the graph", ErrInvalidRequest, k)
		}
		switch {
		case spec.IsPartitioned() && req.PartitionKey == "":
			return nil, fmt.Errorf("%w: asset %q is partitioned and needs a partition key", ErrInvalidRequest, k)
		case spec.IsPartitioned() && !spec.Partitions.Has(req.PartitionKey, now):
			return nil, fmt.Errorf("%w: partition %q is not a partition of %q (%s)",
				ErrInvalidRequest, req.PartitionKey, k, spec.Partitions)
		}
	}
	return selection, nil
}

// dataVersion hashes the code version and the latest data version of
// every input partition.
func (s *Simulator) dataVersion(ctx context.Context, g *asset.Graph, spec asset.Spec, partition string, now time.Time) (string, error) {
	inputs := map[string]any{}
	for _, parent := range g.Parents(spec.Key) {
		mapped, _ := g.ParentPartitions(spec.Key, partition, parent, now)
		for _, pp := range mapped {
			ev, ok, err := s.store.LatestMaterialization(ctx, parent, pp)
			if err != nil {
				return "", err
			}
			dv := ""
			if ok {
				dv = ev.DataVersion
			}
			inputs[string(parent)+"["+pp+"]"] = dv
		}
	}
	return canon.Hash(canon.DomainDataVersion, map[string]any{
		"asset_key":    string(spec.Key),
		"partition":    partition,
		"code_version": spec.CodeVersion,
		"inputs":       inputs,
	})
}
