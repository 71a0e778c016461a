package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphDiamond(t *testing.T) {
	g, err := NewGraph([]Spec{
		NewSpec("d", "b", "c"),
		NewSpec("c", "a"),
		NewSpec("b", "a"),
		NewSpec("a"),
	})
	require.NoError(t, err)

	assert.Equal(t, []Key{"a", "b", "c", "d"}, g.Keys())
	assert.Equal(t, []Key{"a", "b", "c", "d"}, g.TopologicalOrder())
	assert.Equal(t, []Key{"b", "c"}, g.Parents("d"))
	assert.Equal(t, []Key{"b", "c"}, g.Children("a"))
	assert.Equal(t, []Key{"b", "c", "d"}, g.Descendants("a"))
	assert.Empty(t, g.Parents("a"))
	assert.True(t, g.Has("c"))
	assert.False(t, g.Has("z"))
}

func TestTopologicalOrderPutsParentsFirst(t *testing.T) {
	g, err := NewGraph([]Spec{NewSpec("a", "z"), NewSpec("z")})
	require.NoError(t, err)
	assert.Equal(t, []Key{"z", "a"}, g.TopologicalOrder())
}

func TestNewGraphErrors(t *testing.T) {
	tests := []struct {
		name  string
		specs []Spec
		code  string
	}{
		{"invalid key", []Spec{NewSpec("")}, ErrInvalidKey},
		{"duplicate", []Spec{NewSpec("a"), NewSpec("a")}, ErrDuplicateKey},
		{"dangling", []Spec{NewSpec("b", "a")}, ErrDanglingDep},
		{"self loop", []Spec{NewSpec("a", "a")}, ErrCycleDetected},
		{"cycle", []Spec{NewSpec("a", "c"), NewSpec("b", "a"), NewSpec("c", "b")}, ErrCycleDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.specs)
			require.Error(t, err)
			assert.True(t, IsGraphError(err, tt.code), "got %v", err)
		})
	}
}

func TestCycleErrorPath(t *testing.T) {
	_, err := NewGraph([]Spec{NewSpec("a", "b"), NewSpec("b", "a"), NewSpec("c")})
	require.Error(t, err)

	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, []Key{"a", "b", "a"}, ge.Path)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestParentPartitions(t *testing.T) {
	daily := MustDailyPartitions("2023-01-01")
	lateDaily := MustDailyPartitions("2023-01-02")
	now := utc("2023-01-04T00:00:00Z")

	g, err := NewGraph([]Spec{
		NewSpec("raw"),
		NewSpec("events").With(Changes().Partitions(daily)),
		NewSpec("late").With(Changes().Partitions(lateDaily)),
		NewSpec("daily_rollup", "events", "raw", "late").With(Changes().Partitions(daily)),
		NewSpec("summary", "events"),
	})
	require.NoError(t, err)

	mapped, missing := g.ParentPartitions("daily_rollup", "2023-01-02", "events", now)
	assert.Equal(t, []string{"2023-01-02"}, mapped)
	assert.Empty(t, missing)

	mapped, _ = g.ParentPartitions("daily_rollup", "2023-01-02", "raw", now)
	assert.Equal(t, []string{""}, mapped)

	mapped, missing = g.ParentPartitions("daily_rollup", "2023-01-01", "late", now)
	assert.Empty(t, mapped)
	assert.Equal(t, []string{"2023-01-01"}, missing)

	mapped, _ = g.ParentPartitions("summary", "", "events", now)
	assert.Equal(t, []string{"2023-01-01", "2023-01-02", "2023-01-03"}, mapped)

	assert.Equal(t, []string{""}, g.PartitionKeys("raw", now))
	_, ok := g.PartitionsDef("raw")
	assert.False(t, ok)
}
