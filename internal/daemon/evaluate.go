package daemon

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/logging"
	"github.com/CiderSlime/dagster/internal/policy"
	"github.com/CiderSlime/dagster/internal/store"
)

// tick is the working state of one Evaluate call.
type tick struct {
	ctx    context.Context
	opts   Options
	graph  *asset.Graph
	now    time.Time
	state  cursorState
	logger *slog.Logger

	latest    map[asset.Key]map[string]store.Event
	requested map[asset.Key][]string
}

// Evaluate runs one tick. It reads the store and never writes to it.
func Evaluate(ctx context.Context, opts Options) (TickResult, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return TickResult{}, err
	}

	state, err := decodeCursor(opts.Cursor)
	if err != nil {
		return TickResult{}, &EvaluationError{Code: ErrCodeInvalidCursor, Message: "decode cursor", Err: err}
	}
	maxID, err := opts.Store.MaxStorageID(ctx)
	if err != nil {
		return TickResult{}, &EvaluationError{Code: ErrCodeStore, Message: "read max storage id", Err: err}
	}

	evaluationID := state.EvaluationID + 1
	t := &tick{
		ctx:       ctx,
		opts:      opts,
		graph:     opts.Graph,
		now:       opts.Clock.Now(),
		state:     state,
		logger:    opts.Logger.With("evaluation_id", evaluationID),
		latest:    make(map[asset.Key]map[string]store.Event),
		requested: make(map[asset.Key][]string),
	}

	if opts.AutoObserve {
		t.logger.Debug("auto-observe requested; no observable source assets",
			"observe_tags", len(opts.ObserveRunTags))
	}

	var evaluations []AssetEvaluation
	for _, key := range t.graph.TopologicalOrder() {
		if err := ctx.Err(); err != nil {
			return TickResult{}, err
		}
		if opts.TargetKeys != nil && !slices.Contains(opts.TargetKeys, key) {
			continue
		}
		spec, _ := t.graph.Spec(key)
		if spec.Policy == nil {
			continue
		}
		eval, requested, err := t.evaluateAsset(key, *spec.Policy)
		if err != nil {
			return TickResult{}, err
		}
		if len(requested) > 0 {
			t.requested[key] = requested
		}
		if eval != nil {
			evaluations = append(evaluations, *eval)
			t.observe(*eval)
		}
	}

	next := cursorState{
		EvaluationID:    evaluationID,
		LatestStorageID: max(maxID, state.LatestStorageID),
		Handled:         state.Handled,
	}
	for key, parts := range t.requested {
		next.markHandled(key, parts)
	}
	cursor, err := next.encode()
	if err != nil {
		return TickResult{}, &EvaluationError{Code: ErrCodeInvalidCursor, Message: "encode cursor", Err: err}
	}

	result := TickResult{
		RunRequests:  t.runRequests(evaluationID),
		Cursor:       cursor,
		Evaluations:  evaluations,
		EvaluationID: evaluationID,
	}
	opts.Metrics.ObserveTick(len(result.RunRequests))
	t.logger.Info("tick evaluated",
		"run_requests", len(result.RunRequests),
		"evaluations", len(result.Evaluations),
		"latest_storage_id", next.LatestStorageID)
	return result, nil
}

// record is a firing attributed to the rule that produced it.
type record struct {
	rule policy.Rule
	firing
}

// evaluateAsset applies pol to key. It returns nil when no rule fired, and
// the partitions finally requested in definition order.
func (t *tick) evaluateAsset(key asset.Key, pol policy.Policy) (*AssetEvaluation, []string, error) {
	partitions := t.graph.PartitionKeys(key, t.now)
	if len(partitions) == 0 {
		return nil, nil, nil
	}

	var records []record
	candidates := map[string]bool{}
	for _, rule := range pol.MaterializeRules() {
		fired, err := t.apply(rule, key, partitions)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range fired {
			records = append(records, record{rule, f})
			candidates[f.partition] = true
		}
	}
	materialize := filterPartitions(partitions, func(p string) bool { return candidates[p] })

	skipped := map[string]bool{}
	if len(materialize) > 0 {
		for _, rule := range pol.SkipRules() {
			fired, err := t.apply(rule, key, materialize)
			if err != nil {
				return nil, nil, err
			}
			for _, f := range fired {
				records = append(records, record{rule, f})
				skipped[f.partition] = true
			}
		}
	}
	requested := filterPartitions(materialize, func(p string) bool { return !skipped[p] })

	var discarded []string
	if rule, ok := pol.DiscardRule(); ok {
		quota := newMaterializationQuota(rule.Limit())
		total := len(requested)
		requested, discarded = quota.Apply(requested)
		for _, p := range discarded {
			records = append(records, record{rule, firing{partition: p}})
		}
		if len(discarded) > 0 {
			t.logger.Debug("discarding partitions over limit", "asset", key,
				"detail", quotaExceeded{Requested: total, Limit: quota.Limit()}.String())
		}
	}

	if len(records) == 0 {
		return nil, nil, nil
	}
	conds, err := t.group(key, records)
	if err != nil {
		return nil, nil, err
	}
	eval := &AssetEvaluation{
		AssetKey:                    key,
		NumRequested:                len(requested),
		NumSkipped:                  len(skipped),
		NumDiscarded:                len(discarded),
		PartitionSubsetsByCondition: conds,
	}
	t.logger.Debug("asset evaluated", "asset", key,
		"requested", eval.NumRequested, "skipped", eval.NumSkipped, "discarded", eval.NumDiscarded)
	return eval, requested, nil
}

func (t *tick) apply(rule policy.Rule, key asset.Key, partitions []string) ([]firing, error) {
	fn, ok := ruleFuncs[rule.Kind()]
	if !ok {
		return nil, nil
	}
	fired, err := fn(t, key, partitions)
	if err != nil {
		return nil, err
	}
	for _, f := range fired {
		t.logger.Log(t.ctx, logging.LevelTrace, "rule fired",
			"asset", key, "partition", f.partition, "rule", rule.String())
	}
	return fired, nil
}

// group merges records with the same rule and equal data, keeping first
// appearance order. Partitioned assets get a subset per group.
func (t *tick) group(key asset.Key, records []record) ([]ConditionEvaluation, error) {
	type bucket struct {
		eval       RuleEvaluation
		partitions []string
	}
	var order []*bucket
	index := map[string]*bucket{}
	for _, r := range records {
		id := r.rule.String() + "\x00" + dataKey(r.data)
		b, ok := index[id]
		if !ok {
			b = &bucket{eval: RuleEvaluation{RuleSnapshot: r.rule.Snapshot(), EvaluationData: r.data}}
			index[id] = b
			order = append(order, b)
		}
		b.partitions = append(b.partitions, r.partition)
	}

	def, partitioned := t.graph.PartitionsDef(key)
	out := make([]ConditionEvaluation, 0, len(order))
	for _, b := range order {
		cond := ConditionEvaluation{RuleEvaluation: b.eval}
		if partitioned {
			sub, err := asset.NewSubset(def, b.partitions...)
			if err != nil {
				return nil, &EvaluationError{Code: ErrCodeSubset, Asset: key, Message: "build subset", Err: err}
			}
			ser, err := sub.Serialize()
			if err != nil {
				return nil, &EvaluationError{Code: ErrCodeSubset, Asset: key, Message: "serialize subset", Err: err}
			}
			cond.PartitionSubset = &ser
		}
		out = append(out, cond)
	}
	return out, nil
}

// runRequests groups requested assets by partition key, "" first, with
// assets in topological order.
func (t *tick) runRequests(evaluationID int64) []RunRequest {
	byPartition := map[string][]asset.Key{}
	for _, key := range t.graph.TopologicalOrder() {
		for _, p := range t.requested[key] {
			byPartition[p] = append(byPartition[p], key)
		}
	}
	var out []RunRequest
	for _, p := range slices.Sorted(maps.Keys(byPartition)) {
		tags := maps.Clone(t.opts.MaterializeRunTags)
		if tags == nil {
			tags = map[string]string{}
		}
		tags[TagAutoMaterialize] = "true"
		tags[TagEvaluationID] = strconv.FormatInt(evaluationID, 10)
		if p != "" {
			tags[TagPartition] = p
		}
		out = append(out, RunRequest{AssetSelection: byPartition[p], PartitionKey: p, Tags: tags})
	}
	return out
}

func (t *tick) materializations(key asset.Key) (map[string]store.Event, error) {
	if m, ok := t.latest[key]; ok {
		return m, nil
	}
	m, err := t.opts.Store.LatestMaterializations(t.ctx, key)
	if err != nil {
		return nil, &EvaluationError{Code: ErrCodeStore, Asset: key, Message: "read materializations", Err: err}
	}
	t.latest[key] = m
	return m, nil
}

func (t *tick) isRequested(key asset.Key, partition string) bool {
	return slices.Contains(t.requested[key], partition)
}

func (t *tick) observe(e AssetEvaluation) {
	m := t.opts.Metrics
	m.ObserveRuleEvaluation(string(policy.DecisionMaterialize), e.NumRequested)
	m.ObserveRuleEvaluation(string(policy.DecisionSkip), e.NumSkipped)
	m.ObserveRuleEvaluation(string(policy.DecisionDiscard), e.NumDiscarded)
}

func filterPartitions(partitions []string, keep func(string) bool) []string {
	var out []string
	for _, p := range partitions {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
