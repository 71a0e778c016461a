package harness

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/canon"
	"github.com/CiderSlime/dagster/internal/daemon"
)

// Assertion types.
const (
	AssertRequestedRuns = "requested_runs"
	AssertEvaluation    = "evaluation"
)

// AssertionError is a mismatch between expected and actual scheduler output.
// Expected and Actual hold one rendered line per item, in comparison order.
type AssertionError struct {
	Type     string
	Asset    asset.Key
	Reason   string
	Expected []string
	Actual   []string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s", e.Type)
	if e.Asset != "" {
		fmt.Fprintf(&buf, " for %s", e.Asset)
	}
	fmt.Fprintf(&buf, ": %s\n", e.Reason)
	buf.WriteString(e.Dump())
	return buf.String()
}

// Dump renders both sides the way they are logged on failure.
func (e *AssertionError) Dump() string {
	return fmt.Sprintf("\nExpected: \n\n%s\n\nActual: \n\n%s\n", renderLines(e.Expected), renderLines(e.Actual))
}

func renderLines(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "\t" + l
	}
	return strings.Join(out, "\n\n")
}

// DecodeError means a serialized partition subset could not be read back.
// It indicates a broken catalog, not a scheduling mismatch.
type DecodeError struct {
	Asset  asset.Key
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode partition subset of %s: %s", e.Asset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsAssertionError reports whether err is an *AssertionError.
func IsAssertionError(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// CompareRunRequests matches actual against expected as multisets. Each pair
// must have the same selection set and the same partition key; tags are
// ignored.
func CompareRunRequests(expected, actual []daemon.RunRequest) error {
	exp := sortRunRequests(expected)
	act := sortRunRequests(actual)

	fail := func(format string, args ...any) error {
		return &AssertionError{
			Type:     AssertRequestedRuns,
			Reason:   fmt.Sprintf(format, args...),
			Expected: renderRunRequests(exp),
			Actual:   renderRunRequests(act),
		}
	}
	if len(exp) != len(act) {
		return fail("expected %d run requests, got %d", len(exp), len(act))
	}
	for i := range exp {
		if !slices.Equal(asset.SortKeys(exp[i].AssetSelection), asset.SortKeys(act[i].AssetSelection)) {
			return fail("run request %d: selection differs", i)
		}
		if exp[i].PartitionKey != act[i].PartitionKey {
			return fail("run request %d: partition %q, got %q", i, exp[i].PartitionKey, act[i].PartitionKey)
		}
	}
	return nil
}

// sortRunRequests orders by smallest selected key, then partition key with
// "" first, then the full sorted selection.
func sortRunRequests(reqs []daemon.RunRequest) []daemon.RunRequest {
	out := slices.Clone(reqs)
	slices.SortStableFunc(out, func(a, b daemon.RunRequest) int {
		if c := minKey(a.AssetSelection).Compare(minKey(b.AssetSelection)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.PartitionKey, b.PartitionKey); c != 0 {
			return c
		}
		return slices.CompareFunc(asset.SortKeys(a.AssetSelection), asset.SortKeys(b.AssetSelection), asset.Key.Compare)
	})
	return out
}

func minKey(keys []asset.Key) asset.Key {
	if len(keys) == 0 {
		return ""
	}
	return slices.MinFunc(keys, asset.Key.Compare)
}

func renderRunRequests(reqs []daemon.RunRequest) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.String()
	}
	return out
}

// resolved is a rule evaluation with its decoded partitions.
type resolved struct {
	eval       daemon.RuleEvaluation
	partitions []string
}

func (r resolved) String() string {
	if r.partitions == nil {
		return r.eval.String()
	}
	return fmt.Sprintf("%s partitions=[%s]", r.eval, strings.Join(r.partitions, ", "))
}

// CompareEvaluation checks the evaluation for key among evals.
//
// With no evaluation for key, only an empty spec list without count
// expectations passes. Otherwise counts are checked when set, and the
// decoded rule evaluations must pair up one to one with specs: unlike a
// positional zip, an extra or missing rule evaluation on either side is a
// mismatch. Expected partitions are compared against the sorted decoded
// subset, so specs list them in sorted order.
func CompareEvaluation(
	graph *asset.Graph,
	key asset.Key,
	evals []daemon.AssetEvaluation,
	specs []RuleSpec,
	counts Counts,
) error {
	idx := slices.IndexFunc(evals, func(e daemon.AssetEvaluation) bool { return e.AssetKey == key })
	if idx < 0 {
		if len(specs) == 0 && counts.IsEmpty() {
			return nil
		}
		all := make([]string, len(evals))
		for i, e := range evals {
			all[i] = e.String()
		}
		return &AssertionError{
			Type:     AssertEvaluation,
			Asset:    key,
			Reason:   "no evaluation recorded",
			Expected: renderSpecs(specs),
			Actual:   all,
		}
	}
	actualEval := evals[idx]

	actual, err := decodeEvaluation(graph, actualEval)
	if err != nil {
		return err
	}
	expected := make([]resolved, len(specs))
	for i, s := range specs {
		ev, parts := s.Resolve()
		expected[i] = resolved{eval: ev, partitions: parts}
	}
	sortResolved(actual)
	sortResolved(expected)

	fail := func(format string, args ...any) error {
		return &AssertionError{
			Type:     AssertEvaluation,
			Asset:    key,
			Reason:   fmt.Sprintf(format, args...),
			Expected: renderResolved(expected),
			Actual:   renderResolved(actual),
		}
	}
	for _, c := range []struct {
		name   string
		want   *int
		actual int
	}{
		{"num_requested", counts.Requested, actualEval.NumRequested},
		{"num_skipped", counts.Skipped, actualEval.NumSkipped},
		{"num_discarded", counts.Discarded, actualEval.NumDiscarded},
	} {
		if c.want != nil && *c.want != c.actual {
			return fail("%s: expected %d, got %d", c.name, *c.want, c.actual)
		}
	}

	if len(expected) != len(actual) {
		return fail("expected %d rule evaluations, got %d", len(expected), len(actual))
	}
	for i := range expected {
		e, a := expected[i], actual[i]
		if e.eval.RuleSnapshot != a.eval.RuleSnapshot {
			return fail("rule evaluation %d: rule %s, got %s", i, e.eval.RuleSnapshot, a.eval.RuleSnapshot)
		}
		if !equalPartitions(e.partitions, a.partitions) {
			return fail("rule evaluation %d: partitions %v, got %v", i, e.partitions, a.partitions)
		}
		if e.eval.EvaluationData != nil && !daemon.DataEqual(e.eval.EvaluationData, a.eval.EvaluationData) {
			return fail("rule evaluation %d: evaluation data %s, got %s", i, e.eval.EvaluationData, dataString(a.eval.EvaluationData))
		}
	}
	return nil
}

func decodeEvaluation(graph *asset.Graph, e daemon.AssetEvaluation) ([]resolved, error) {
	out := make([]resolved, 0, len(e.PartitionSubsetsByCondition))
	for _, cond := range e.PartitionSubsetsByCondition {
		r := resolved{eval: cond.RuleEvaluation}
		if cond.PartitionSubset != nil {
			def, ok := graph.PartitionsDef(e.AssetKey)
			if !ok {
				return nil, &DecodeError{Asset: e.AssetKey, Reason: "asset has no partitions definition"}
			}
			sub, err := asset.DeserializeSubset(*cond.PartitionSubset, def)
			if err != nil {
				return nil, &DecodeError{Asset: e.AssetKey, Reason: "deserialize", Err: err}
			}
			r.partitions = sub.Keys()
			slices.Sort(r.partitions)
		}
		out = append(out, r)
	}
	return out, nil
}

// sortResolved orders by rule snapshot, then partitions (nil first), then
// canonical evaluation data.
func sortResolved(rs []resolved) {
	slices.SortStableFunc(rs, func(a, b resolved) int {
		if c := a.eval.RuleSnapshot.Compare(b.eval.RuleSnapshot); c != 0 {
			return c
		}
		if c := comparePartitions(a.partitions, b.partitions); c != 0 {
			return c
		}
		return cmp.Compare(dataKey(a.eval.EvaluationData), dataKey(b.eval.EvaluationData))
	})
}

func comparePartitions(a, b []string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return slices.Compare(a, b)
}

func equalPartitions(a, b []string) bool {
	return (a == nil) == (b == nil) && slices.Equal(a, b)
}

func dataKey(d daemon.EvaluationData) string {
	if d == nil {
		return ""
	}
	return string(canon.MustMarshal(d))
}

func dataString(d daemon.EvaluationData) string {
	if d == nil {
		return "<none>"
	}
	return d.String()
}

func renderResolved(rs []resolved) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

func renderSpecs(specs []RuleSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		ev, parts := s.Resolve()
		out[i] = resolved{eval: ev, partitions: parts}.String()
	}
	return out
}
