package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/policy"
)

func TestCompileCatalogBasic(t *testing.T) {
	v := cuecontext.New().CompileString(`
		assets: {
			A: {policy: "eager", code_version: "1"}
			B: {
				deps: ["A"]
				group: "marts"
				policy: "lazy"
				rules: ["materialize_on_parent_updated"]
				max_materializations_per_minute: 3
				partitions: daily: "2023-01-01"
			}
			C: {deps: ["B"], failing: true}
		}
	`)

	specs, err := CompileCatalog(v)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	a := specs[0]
	assert.Equal(t, asset.Key("A"), a.Key)
	assert.Equal(t, "1", a.CodeVersion)
	assert.Equal(t, asset.DefaultGroup, a.GroupName)
	require.NotNil(t, a.Policy)
	assert.Equal(t, policy.Eager().String(), a.Policy.String())

	b := specs[1]
	assert.Equal(t, []asset.Key{"A"}, b.Deps)
	assert.Equal(t, "marts", b.GroupName)
	require.NotNil(t, b.Policy)
	assert.True(t, b.Policy.Has(policy.KindMaterializeOnParentUpdated))
	assert.Equal(t, 3, b.Policy.MaxMaterializationsPerMinute())
	require.NotNil(t, b.Partitions)
	assert.Equal(t, asset.KindTimeWindow, b.Partitions.Kind())

	c := specs[2]
	assert.Nil(t, c.Policy)
	assert.True(t, c.Failing)
}

func TestCompileCatalogErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing assets", `other: 1`, "assets"},
		{"empty assets", `assets: {}`, "assets"},
		{"bad policy", `assets: A: policy: "sometimes"`, "assets.A.policy"},
		{"deps not strings", `assets: A: deps: [1]`, "assets.A.deps"},
		{"two partition kinds", `assets: A: partitions: {daily: "2023-01-01", static: ["x"]}`, "assets.A.partitions"},
		{"empty static", `assets: A: partitions: static: []`, "assets.A.partitions"},
		{"limit not int", `assets: A: {policy: "eager", max_materializations_per_minute: "x"}`, "assets.A.max_materializations_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCatalog(cuecontext.New().CompileString(tt.src))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadCatalogFilePositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte("assets: {\n\tA: policy: 7\n}\n"), 0o644))

	_, err := LoadCatalogFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path+":2:")
	assert.Contains(t, err.Error(), "assets.A.policy")
}

func TestLoadCatalogFileCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte(`assets: {A: deps: ["B"], B: deps: ["A"]}`), 0o644))

	specs, err := LoadCatalogFile(path)
	require.NoError(t, err, "cycles are a graph concern")
	_, err = asset.NewGraph(specs)
	assert.True(t, asset.IsGraphError(err, asset.ErrCycleDetected))
}
