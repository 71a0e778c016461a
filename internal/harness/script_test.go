package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/testutil"
)

const scenarioDir = "../../scenarios"

func TestScenarioScripts(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join(scenarioDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			script, err := LoadScript(path)
			require.NoError(t, err)

			res, err := Run(script.Scenario())
			require.NoError(t, err)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
			assert.NotEmpty(t, res.Ticks)
		})
	}
}

func TestScriptUnderTest(t *testing.T) {
	script, err := LoadScript(filepath.Join(scenarioDir, "eager_chain.yaml"))
	require.NoError(t, err)
	final := script.Scenario().Evaluate(t)
	assert.Len(t, final.Ticks(), 3)
}

func TestParseScript(t *testing.T) {
	src := `
id: parsed
current_time: "2023-01-02T03:04:05"
assets:
  - {key: A, policy: eager, group: raw}
  - {key: B, deps: [A]}
steps:
  - all_eager: {}
  - respect_data_versions: true
  - current_time: "2023-01-03"
  - evaluate_tick: {}
`
	script, err := ParseScript([]byte(src), "inline.yaml")
	require.NoError(t, err)
	assert.Equal(t, "parsed", script.ID)
	assert.Equal(t, []string{"all_eager", "respect_data_versions", "current_time", "evaluate_tick"}, script.Steps())

	specs := script.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "raw", specs[0].GroupName)
	assert.Equal(t, asset.DefaultGroup, specs[1].GroupName)
	assert.Nil(t, specs[1].Policy)

	sc := script.Scenario()
	assert.Equal(t, "parsed", sc.ID)
	assert.Equal(t, testutil.MustTime(t, "2023-01-02T03:04:05Z"), sc.Initial.CurrentTime())
}

func TestParseScript_AssetProperties(t *testing.T) {
	src := `
id: props
current_time: "2023-01-01"
assets:
  - {key: A}
  - {key: B, deps: [A]}
steps:
  - asset_properties:
      keys: [B]
      policy: lazy
      rules: [materialize_on_parent_updated]
      code_version: "2"
  - asset_properties:
      partitions: {static: [x, y]}
`
	script, err := ParseScript([]byte(src), "inline.yaml")
	require.NoError(t, err)

	final := script.Scenario().Execute(script.Scenario().Initial)
	specs := final.Specs()
	require.Len(t, specs, 2)
	assert.Nil(t, specs[0].Policy)
	require.NotNil(t, specs[1].Policy)
	assert.Equal(t, "2", specs[1].CodeVersion)
	for _, s := range specs {
		require.NotNil(t, s.Partitions, s.Key)
	}
}

func TestParseScript_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing id", "assets: [{key: A}]\nsteps: []\n", "schema"},
		{"assets and catalog", "id: x\ncatalog: c.cue\nassets: [{key: A}]\nsteps: []\n", "schema"},
		{"unknown step", "id: x\nassets: [{key: A}]\nsteps: [{explode: {}}]\n", "schema"},
		{"two ops in a step", "id: x\nassets: [{key: A}]\nsteps: [{evaluate_tick: {}, all_eager: {}}]\n", "schema"},
		{"bad policy", "id: x\nassets: [{key: A, policy: sometimes}]\nsteps: []\n", "schema"},
		{"unknown asset field", "id: x\nassets: [{key: A, owner: me}]\nsteps: []\n", "schema"},
		{"unknown rule", "id: x\nassets: [{key: A}]\nsteps: [{assert_evaluation: {asset: A, rules: [{rule: nope}]}}]\n", "unknown rule"},
		{"bad time", "id: x\nassets: [{key: A}]\nsteps: [{current_time: soon}]\n", "step 0 (current_time)"},
		{"cycle", "id: x\nassets: [{key: A, deps: [B]}, {key: B, deps: [A]}]\nsteps: []\n", "cycle"},
		{"duplicate asset", "id: x\nassets: [{key: A}, {key: A}]\nsteps: []\n", "assets"},
		{"not yaml", "id: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.src), "inline.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScript_MissingCatalog(t *testing.T) {
	src := "id: x\ncatalog: missing.cue\nsteps: []\n"
	_, err := ParseScript([]byte(src), filepath.Join(t.TempDir(), "s.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assets")
}
