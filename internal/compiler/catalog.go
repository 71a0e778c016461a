package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/CiderSlime/dagster/internal/asset"
)

// CompileError is a catalog problem with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// LoadCatalogFile compiles the CUE catalog at path.
func LoadCatalogFile(path string) ([]asset.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	return CompileCatalog(v)
}

// CompileCatalog reads the assets struct of v into specs, in field order.
func CompileCatalog(v cue.Value) ([]asset.Spec, error) {
	decls, err := CompileDecls(v)
	if err != nil {
		return nil, err
	}
	return BuildAll(decls)
}

// CompileDecls reads the assets struct of v without building specs.
func CompileDecls(v cue.Value) ([]AssetDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	assetsVal := v.LookupPath(cue.ParsePath("assets"))
	if !assetsVal.Exists() {
		return nil, &CompileError{Field: "assets", Message: "assets is required", Pos: v.Pos()}
	}
	iter, err := assetsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []AssetDecl
	for iter.Next() {
		decl, err := compileAsset(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	if len(decls) == 0 {
		return nil, &CompileError{Field: "assets", Message: "at least one asset is required", Pos: assetsVal.Pos()}
	}
	return decls, nil
}

func compileAsset(key string, v cue.Value) (AssetDecl, error) {
	d := AssetDecl{Key: key}
	field := "assets." + key
	var err error

	if d.Deps, err = stringList(v, field, "deps"); err != nil {
		return d, err
	}
	if d.Group, err = stringField(v, field, "group"); err != nil {
		return d, err
	}
	if d.CodeVersion, err = stringField(v, field, "code_version"); err != nil {
		return d, err
	}
	if d.Policy, err = stringField(v, field, "policy"); err != nil {
		return d, err
	}
	if d.Rules, err = stringList(v, field, "rules"); err != nil {
		return d, err
	}
	if lv := v.LookupPath(cue.ParsePath("max_materializations_per_minute")); lv.Exists() {
		n, err := lv.Int64()
		if err != nil {
			return d, fieldError(field+".max_materializations_per_minute", lv, err)
		}
		limit := int(n)
		d.MaxPerMinute = &limit
	}
	if fv := v.LookupPath(cue.ParsePath("failing")); fv.Exists() {
		if d.Failing, err = fv.Bool(); err != nil {
			return d, fieldError(field+".failing", fv, err)
		}
	}
	if pv := v.LookupPath(cue.ParsePath("partitions")); pv.Exists() {
		p := &PartitionsDecl{}
		pf := field + ".partitions"
		if p.Daily, err = stringField(pv, pf, "daily"); err != nil {
			return d, err
		}
		if p.Hourly, err = stringField(pv, pf, "hourly"); err != nil {
			return d, err
		}
		if p.Static, err = stringList(pv, pf, "static"); err != nil {
			return d, err
		}
		if _, err := p.Build(); err != nil {
			return d, &CompileError{Field: pf, Message: err.Error(), Pos: pv.Pos()}
		}
		d.Partitions = p
	}
	if _, err := BuildPolicy(d.Policy, d.Rules, d.MaxPerMinute); err != nil {
		return d, &CompileError{Field: field + ".policy", Message: err.Error(), Pos: v.Pos()}
	}
	return d, nil
}

func stringField(v cue.Value, parent, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", fieldError(parent+"."+name, fv, err)
	}
	return s, nil
}

// stringList returns nil when the field is absent and an empty slice for [].
func stringList(v cue.Value, parent, name string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, fieldError(parent+"."+name, fv, err)
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fieldError(parent+"."+name, iter.Value(), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func fieldError(field string, v cue.Value, err error) error {
	return &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
}
