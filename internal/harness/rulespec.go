package harness

import (
	"slices"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/daemon"
	"github.com/CiderSlime/dagster/internal/policy"
)

// RuleSpec is an expected rule evaluation. Nil Partitions expects an
// unpartitioned evaluation; nil Data matches any evaluation data.
type RuleSpec struct {
	Rule       policy.Rule
	Partitions []string
	Data       daemon.EvaluationData
}

// Expect starts a RuleSpec for rule.
func Expect(rule policy.Rule) RuleSpec { return RuleSpec{Rule: rule} }

// WithPartitions returns a copy applying to keys.
func (s RuleSpec) WithPartitions(keys ...string) RuleSpec {
	s.Partitions = slices.Clone(keys)
	if s.Partitions == nil {
		s.Partitions = []string{}
	}
	return s
}

// WithData returns a copy expecting exactly d.
func (s RuleSpec) WithData(d daemon.EvaluationData) RuleSpec {
	s.Data = d
	return s
}

// WithParentUpdated expects ParentUpdatedData with the given key sets.
func (s RuleSpec) WithParentUpdated(updated, willUpdate []asset.Key) RuleSpec {
	return s.WithData(daemon.NewParentUpdatedData(updated, willUpdate))
}

// WithWaitingOn expects WaitingOnAssetsData for keys.
func (s RuleSpec) WithWaitingOn(keys ...asset.Key) RuleSpec {
	return s.WithData(daemon.NewWaitingOnAssetsData(keys...))
}

// Resolve returns the rule evaluation and partitions this spec expects.
func (s RuleSpec) Resolve() (daemon.RuleEvaluation, []string) {
	return daemon.RuleEvaluation{
		RuleSnapshot:   s.Rule.Snapshot(),
		EvaluationData: s.Data,
	}, s.Partitions
}

// Request builds an expected unpartitioned run request.
func Request(keys ...asset.Key) daemon.RunRequest {
	return daemon.RunRequest{AssetSelection: slices.Clone(keys)}
}

// PartitionRequest builds an expected run request for partition.
func PartitionRequest(partition string, keys ...asset.Key) daemon.RunRequest {
	return daemon.RunRequest{AssetSelection: slices.Clone(keys), PartitionKey: partition}
}

// Counts are optional expectations on an asset evaluation. Nil fields are
// not checked.
type Counts struct {
	Requested *int
	Skipped   *int
	Discarded *int
}

// IsEmpty reports whether no count is expected.
func (c Counts) IsEmpty() bool {
	return c.Requested == nil && c.Skipped == nil && c.Discarded == nil
}

// CountOption sets one expected count.
type CountOption func(*Counts)

func NumRequested(n int) CountOption { return func(c *Counts) { c.Requested = &n } }
func NumSkipped(n int) CountOption   { return func(c *Counts) { c.Skipped = &n } }
func NumDiscarded(n int) CountOption { return func(c *Counts) { c.Discarded = &n } }

func buildCounts(opts []CountOption) Counts {
	var c Counts
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
