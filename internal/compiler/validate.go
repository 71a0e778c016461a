package compiler

import (
	"fmt"
	"strings"

	"github.com/CiderSlime/dagster/internal/policy"
)

// Validation error codes.
const (
	ErrEmptyKey          = "E101" // asset key is empty
	ErrDuplicateAsset    = "E102" // asset declared twice
	ErrUnknownPolicy     = "E103" // policy name not recognized
	ErrUnknownRule       = "E104" // rule name not recognized
	ErrInvalidLimit      = "E105" // non-positive materialization limit
	ErrInvalidPartitions = "E106" // partitions block malformed
)

// ValidationError is one problem in a set of declarations.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks declarations without building them. It reports every
// problem found.
func Validate(decls []AssetDecl) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, d := range decls {
		field := fmt.Sprintf("assets[%d]", i)
		if d.Key != "" {
			field = "assets." + d.Key
		}

		if strings.TrimSpace(d.Key) == "" {
			errs = append(errs, ValidationError{Field: field + ".key", Message: "key is required", Code: ErrEmptyKey})
		} else if seen[d.Key] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("duplicate asset %q", d.Key), Code: ErrDuplicateAsset})
		}
		seen[d.Key] = true

		switch d.Policy {
		case "", PolicyNone, PolicyEager, PolicyLazy, PolicyCustom:
		default:
			errs = append(errs, ValidationError{
				Field:   field + ".policy",
				Message: fmt.Sprintf("unknown policy %q (want eager, lazy, custom or none)", d.Policy),
				Code:    ErrUnknownPolicy,
			})
		}
		for j, name := range d.Rules {
			if _, err := policy.ParseRule(name, 1); err != nil {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.rules[%d]", field, j), Message: err.Error(), Code: ErrUnknownRule})
			}
		}
		if d.MaxPerMinute != nil && *d.MaxPerMinute < 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".max_materializations_per_minute",
				Message: fmt.Sprintf("must be >= 1, got %d", *d.MaxPerMinute),
				Code:    ErrInvalidLimit,
			})
		}
		if d.Partitions != nil {
			if _, err := d.Partitions.Build(); err != nil {
				errs = append(errs, ValidationError{Field: field + ".partitions", Message: err.Error(), Code: ErrInvalidPartitions})
			}
		}
	}
	return errs
}
