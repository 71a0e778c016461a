package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/policy"
)

// MustTime parses an RFC 3339 timestamp or fails the test.
func MustTime(t testing.TB, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err, "parse time %q", s)
	return ts
}

// ChainSpecs returns A -> B with both assets under the eager policy.
func ChainSpecs() []asset.Spec {
	eager := asset.Changes().Policy(policy.Eager())
	return []asset.Spec{
		asset.NewSpec("A").With(eager),
		asset.NewSpec("B", "A").With(eager),
	}
}

// MustGraph builds a graph or fails the test.
func MustGraph(t testing.TB, specs ...asset.Spec) *asset.Graph {
	t.Helper()
	g, err := asset.NewGraph(specs)
	require.NoError(t, err, "build asset graph")
	return g
}
