package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/compiler"
	"github.com/CiderSlime/dagster/internal/harness"
)

// Error code constants shared by all commands.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoFiles    = "E003" // No matching files found
	ErrCodeLoadFailed = "E004" // Script or catalog failed to load
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeGolden     = "E006" // Golden file error
)

var scriptExts = []string{".yaml", ".yml"}

// FindScenarioFiles returns the scripts at path: the file itself, or every
// .yaml/.yml file below a directory whose base name matches filter.
func FindScenarioFiles(path, filter string) ([]string, error) {
	return findFiles(path, filter, scriptExts...)
}

// FindCUEFiles returns the .cue files at path.
func FindCUEFiles(path string) ([]string, error) {
	return findFiles(path, "", ".cue")
}

func findFiles(path, filter string, exts ...string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if slices.Contains(exts, filepath.Ext(path)) {
			return []string{path}, nil
		}
		return nil, nil
	}
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(p)
		if d.IsDir() || !slices.Contains(exts, ext) {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

// loadSpecs reads assets from a script or a CUE catalog, by extension.
func loadSpecs(path string) ([]asset.Spec, error) {
	if filepath.Ext(path) == ".cue" {
		return compiler.LoadCatalogFile(path)
	}
	script, err := harness.LoadScript(path)
	if err != nil {
		return nil, err
	}
	return script.Specs(), nil
}

// statPath maps a missing path to a command error.
func statPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("path not found: %s", path), err)
	}
	return nil
}
