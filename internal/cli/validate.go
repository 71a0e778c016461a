package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/compiler"
	"github.com/CiderSlime/dagster/internal/harness"
)

// ValidationIssue is one file that failed to load.
type ValidationIssue struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate scenario scripts and CUE catalogs without running them",
		Long: `Validate scenario scripts (.yaml, .yml) and asset catalogs (.cue).

Scripts are checked against the scenario schema and compiled; catalogs are
compiled and their asset graph is built. Nothing is executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	if err := statPath(path); err != nil {
		return err
	}
	f := newFormatter(opts, cmd)

	scripts, err := FindScenarioFiles(path, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan", err)
	}
	catalogs, err := FindCUEFiles(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan", err)
	}
	files := append(scripts, catalogs...)
	slices.Sort(files)
	if len(files) == 0 {
		if err := f.Error(ErrCodeNoFiles, fmt.Sprintf("no scripts or catalogs found in %s", path), nil); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, "no files to validate")
	}

	result := ValidationResult{Valid: true, Files: len(files)}
	for _, file := range files {
		f.VerboseLog("Validating %s", file)
		issue, ok := validateFile(file)
		if opts.Format != "json" {
			fmt.Fprintf(f.Writer, "%s %s\n", f.Mark(ok), file)
		}
		if ok {
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors, issue)
		if opts.Format != "json" {
			writeIndented(f.Writer, fmt.Sprintf("[%s] %s", issue.Code, issue.Message))
		}
	}

	if opts.Format == "json" {
		if result.Valid {
			return f.Success(result)
		}
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%d file(s) invalid", len(result.Errors))},
		}); err != nil {
			return err
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) invalid", len(result.Errors)))
	}
	if opts.Format != "json" {
		fmt.Fprintf(f.Writer, "\n%d file(s) valid\n", result.Files)
	}
	return nil
}

func validateFile(file string) (ValidationIssue, bool) {
	var err error
	if filepath.Ext(file) == ".cue" {
		var specs []asset.Spec
		if specs, err = compiler.LoadCatalogFile(file); err == nil {
			_, err = asset.NewGraph(specs)
		}
	} else {
		_, err = harness.LoadScript(file)
	}
	if err == nil {
		return ValidationIssue{}, true
	}
	return issueFor(file, err), false
}

// issueFor picks the most specific code the error chain carries.
func issueFor(file string, err error) ValidationIssue {
	issue := ValidationIssue{File: file, Code: ErrCodeLoadFailed, Message: err.Error()}
	var ce *compiler.CompileError
	var ve compiler.ValidationError
	var ge *asset.GraphError
	switch {
	case errors.As(err, &ce):
		if ce.Pos.IsValid() {
			issue.Line = ce.Pos.Line()
		}
	case errors.As(err, &ve):
		issue.Code = ve.Code
	case errors.As(err, &ge):
		issue.Code = ge.Code
	}
	return issue
}
