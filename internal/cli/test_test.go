package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../../scenarios"

const passingScript = `id: single
current_time: "2023-01-01"
assets:
  - {key: A, policy: eager}
steps:
  - evaluate_tick: {}
  - assert_requested_runs: [{assets: [A]}]
`

const failingScript = `id: wrong
current_time: "2023-01-01"
assets:
  - {key: A, policy: eager}
steps:
  - evaluate_tick: {}
  - assert_requested_runs: []
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func executeTest(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := executeTest(t, &RootOptions{Format: "text"}, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "json"}, t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandRunsScenarios(t *testing.T) {
	opts := &RootOptions{Format: "text"}
	out, err := executeTest(t, opts, scenariosDir, "--golden-dir", t.TempDir())
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ eager_chain")
	assert.Contains(t, out, "✓ daily_partitions")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "json"}, scenariosDir,
		"--filter", "daily_*", "--golden-dir", t.TempDir(), "--metrics")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "daily_partitions", sr.Name)
	assert.Equal(t, 2, sr.Ticks)
	assert.Equal(t, 2.0, sr.Metrics["amp_ticks_total"])
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.yaml", passingScript)
	writeFile(t, dir, "wrong.yaml", failingScript)

	out, err := executeTest(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ single")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Expected:")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.yaml", "id: broken\nsteps: []\n")

	out, err := executeTest(t, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "load error")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "single.yaml", passingScript)
	opts := &RootOptions{Format: "text"}

	out, err := executeTest(t, opts, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "single (golden updated)")
	golden := filepath.Join(dir, "golden", "single.golden")
	require.FileExists(t, golden)

	out, err = executeTest(t, opts, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "single (golden matched)")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, err = executeTest(t, opts, dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match")
	assert.Contains(t, out, "--update")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "nested/c.yaml", "")
	writeFile(t, dir, "catalog.cue", "")
	writeFile(t, dir, "golden/a.golden", "")

	files, err := FindScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = FindScenarioFiles(dir, "[ab]")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = FindScenarioFiles(filepath.Join(dir, "a.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml")}, files)

	files, err = FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "catalog.cue")}, files)

	_, err = FindScenarioFiles(dir, "[")
	assert.Error(t, err)
}
