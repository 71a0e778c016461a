package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CiderSlime/dagster/internal/canon"
	"github.com/CiderSlime/dagster/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios>/golden
	Metrics   bool   // include metric snapshots
}

// Golden file outcomes.
const (
	GoldenUpdated = "updated"
	GoldenMatched = "matched"
)

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name    string             `json:"name"`
	File    string             `json:"file"`
	Pass    bool               `json:"pass"`
	Ticks   int                `json:"ticks"`
	Golden  string             `json:"golden,omitempty"`
	Errors  []string           `json:"errors,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file|scenarios-dir>",
		Short: "Run scenario scripts",
		Long: `Run scenario scripts and report their assertions.

Each passing scenario's ticks are compared against a golden snapshot when
one exists; --update writes the snapshots instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  amp-sim test ./scenarios
  amp-sim test ./scenarios --filter "daily_*"
  amp-sim test ./scenarios --update
  amp-sim test ./scenarios/eager_chain.yaml --format json --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory (default <scenarios>/golden)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report metric snapshots")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	if err := statPath(path); err != nil {
		return err
	}
	files, err := FindScenarioFiles(path, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	f := newFormatter(opts.RootOptions, cmd)
	if len(files) == 0 {
		if opts.Format == "json" {
			return f.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = defaultGoldenDir(path)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		f.VerboseLog("Running %s", file)
		sr := runScenario(opts, file, goldenDir, cmd)
		if opts.Format != "json" {
			printScenario(f, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	failed := func() error {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	if opts.Format == "json" {
		if result.Failed > 0 {
			if err := f.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: "E_TEST_FAILED", Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)},
			}); err != nil {
				return err
			}
			return failed()
		}
		return f.Success(result)
	}

	w := f.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return failed()
	}
	fmt.Fprintf(w, "%s All scenarios passed\n", f.Mark(true))
	return nil
}

func defaultGoldenDir(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		path = filepath.Dir(path)
	}
	return filepath.Join(path, "golden")
}

// runScenario executes one script. Golden files are only touched for
// scenarios whose assertions passed.
func runScenario(opts *TestOptions, file, goldenDir string, cmd *cobra.Command) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}
	fail := func(format string, args ...any) ScenarioResult {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf(format, args...))
		return sr
	}

	script, err := harness.LoadScript(file)
	if err != nil {
		return fail("load error: %v", err)
	}
	sr.Name = script.ID

	logW, level := scenarioLogOutput(opts.RootOptions, cmd)
	res, err := harness.Run(script.Scenario(), harness.WithLogOutput(logW, level))
	if err != nil {
		return fail("execution error: %v", err)
	}
	sr.Pass = res.Pass
	sr.Errors = res.Errors
	sr.Ticks = len(res.Ticks)
	if opts.Metrics {
		sr.Metrics = res.Metrics
	}
	if !res.Pass {
		return sr
	}

	snap, err := harness.Snapshot(script.ID, res.Ticks)
	if err != nil {
		return fail("snapshot error: %v", err)
	}
	goldenPath := filepath.Join(goldenDir, script.ID+harness.GoldenSuffix)
	switch {
	case opts.Update:
		if err := harness.CheckGolden(goldenDir, script.ID, snap, true); err != nil {
			return fail("golden update error: %v", err)
		}
		sr.Golden = GoldenUpdated
	case fileExists(goldenPath):
		err := harness.CheckGolden(goldenDir, script.ID, snap, false)
		if errors.Is(err, harness.ErrGoldenMismatch) {
			return fail("snapshot does not match %s (run with --update to regenerate)", goldenPath)
		}
		if err != nil {
			return fail("golden comparison error: %v", err)
		}
		sr.Golden = GoldenMatched
	}
	return sr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func printScenario(f *OutputFormatter, sr ScenarioResult) {
	w := f.Writer
	line := fmt.Sprintf("%s %s", f.Mark(sr.Pass), sr.Name)
	if sr.Golden != "" {
		line += fmt.Sprintf(" (golden %s)", sr.Golden)
	}
	fmt.Fprintln(w, line)
	for _, e := range sr.Errors {
		writeIndented(w, e)
	}
	if len(sr.Metrics) > 0 {
		for _, name := range canon.SortedKeys(sr.Metrics) {
			fmt.Fprintf(w, "    %s %g\n", name, sr.Metrics[name])
		}
	}
}

func writeIndented(w io.Writer, text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", l)
	}
}
