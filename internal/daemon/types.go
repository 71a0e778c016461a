package daemon

import (
	"fmt"
	"maps"
	"strings"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/canon"
	"github.com/CiderSlime/dagster/internal/policy"
)

// Tags attached to every auto-materialize run request.
const (
	TagAutoMaterialize = "dagster/auto_materialize"
	TagEvaluationID    = "dagster/asset_evaluation_id"
	TagPartition       = "dagster/partition"
)

// RunRequest is a request to execute a set of assets.
type RunRequest struct {
	AssetSelection []asset.Key
	// PartitionKey is "" for unpartitioned requests.
	PartitionKey string
	Tags         map[string]string
}

func (r RunRequest) String() string {
	if r.PartitionKey == "" {
		return fmt.Sprintf("RunRequest([%s])", joinKeys(r.AssetSelection))
	}
	return fmt.Sprintf("RunRequest([%s], partition=%s)", joinKeys(r.AssetSelection), r.PartitionKey)
}

// CanonicalValue implements canon.Valuer.
func (r RunRequest) CanonicalValue() any {
	tags := map[string]string{}
	maps.Copy(tags, r.Tags)
	return map[string]any{
		"asset_selection": asset.Strings(r.AssetSelection),
		"partition_key":   r.PartitionKey,
		"tags":            tags,
	}
}

// RuleEvaluation is one fired rule and its supporting data.
type RuleEvaluation struct {
	RuleSnapshot policy.RuleSnapshot
	// EvaluationData is nil for rules without supporting data.
	EvaluationData EvaluationData
}

// CanonicalValue implements canon.Valuer.
func (e RuleEvaluation) CanonicalValue() any {
	out := map[string]any{"rule_snapshot": e.RuleSnapshot}
	if e.EvaluationData != nil {
		out["evaluation_data"] = e.EvaluationData
	}
	return out
}

func (e RuleEvaluation) String() string {
	if e.EvaluationData == nil {
		return e.RuleSnapshot.String()
	}
	return e.RuleSnapshot.String() + " " + e.EvaluationData.String()
}

// ConditionEvaluation pairs a rule evaluation with the partitions it
// applied to. PartitionSubset is nil for unpartitioned assets.
type ConditionEvaluation struct {
	RuleEvaluation  RuleEvaluation
	PartitionSubset *asset.SerializedSubset
}

// CanonicalValue implements canon.Valuer.
func (c ConditionEvaluation) CanonicalValue() any {
	out := map[string]any{"rule_evaluation": c.RuleEvaluation}
	if c.PartitionSubset != nil {
		out["partition_subset"] = c.PartitionSubset.String()
	}
	return out
}

// AssetEvaluation records what happened to one asset in one tick.
type AssetEvaluation struct {
	AssetKey                    asset.Key
	NumRequested                int
	NumSkipped                  int
	NumDiscarded                int
	PartitionSubsetsByCondition []ConditionEvaluation
}

// CanonicalValue implements canon.Valuer.
func (a AssetEvaluation) CanonicalValue() any {
	conds := make([]any, len(a.PartitionSubsetsByCondition))
	for i, c := range a.PartitionSubsetsByCondition {
		conds[i] = c
	}
	return map[string]any{
		"asset_key":                      string(a.AssetKey),
		"num_requested":                  a.NumRequested,
		"num_skipped":                    a.NumSkipped,
		"num_discarded":                  a.NumDiscarded,
		"partition_subsets_by_condition": conds,
	}
}

func (a AssetEvaluation) String() string {
	parts := make([]string, len(a.PartitionSubsetsByCondition))
	for i, c := range a.PartitionSubsetsByCondition {
		parts[i] = c.RuleEvaluation.String()
	}
	return fmt.Sprintf("%s(requested=%d, skipped=%d, discarded=%d) [%s]",
		a.AssetKey, a.NumRequested, a.NumSkipped, a.NumDiscarded, strings.Join(parts, "; "))
}

// TickResult is the output of one Evaluate call.
type TickResult struct {
	RunRequests  []RunRequest
	Cursor       Cursor
	Evaluations  []AssetEvaluation
	EvaluationID int64
}

// Evaluation returns the evaluation recorded for key, if any.
func (r TickResult) Evaluation(key asset.Key) (AssetEvaluation, bool) {
	for _, e := range r.Evaluations {
		if e.AssetKey == key {
			return e, true
		}
	}
	return AssetEvaluation{}, false
}

// CanonicalValue implements canon.Valuer. The cursor is omitted so
// snapshots stay stable when its encoding changes.
func (r TickResult) CanonicalValue() any {
	reqs := make([]any, len(r.RunRequests))
	for i, rr := range r.RunRequests {
		reqs[i] = rr
	}
	evals := make([]any, len(r.Evaluations))
	for i, e := range r.Evaluations {
		evals[i] = e
	}
	return map[string]any{
		"evaluation_id": r.EvaluationID,
		"run_requests":  reqs,
		"evaluations":   evals,
	}
}

var _ canon.Valuer = TickResult{}
