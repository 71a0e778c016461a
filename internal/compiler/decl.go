package compiler

import (
	"errors"
	"fmt"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/policy"
)

// Policy names accepted in declarations.
const (
	PolicyNone   = "none"
	PolicyEager  = "eager"
	PolicyLazy   = "lazy"
	PolicyCustom = "custom"
)

// AssetDecl is the serialized form of an asset spec.
type AssetDecl struct {
	Key         string   `yaml:"key" mapstructure:"key"`
	Deps        []string `yaml:"deps" mapstructure:"deps"`
	Group       string   `yaml:"group" mapstructure:"group"`
	CodeVersion string   `yaml:"code_version" mapstructure:"code_version"`

	// Policy is eager, lazy, custom (Rules only) or none. Rules are added
	// on top of a named policy.
	Policy       string   `yaml:"policy" mapstructure:"policy"`
	Rules        []string `yaml:"rules" mapstructure:"rules"`
	MaxPerMinute *int     `yaml:"max_materializations_per_minute" mapstructure:"max_materializations_per_minute"`

	Partitions *PartitionsDecl `yaml:"partitions" mapstructure:"partitions"`
	Failing    bool            `yaml:"failing" mapstructure:"failing"`
}

// PartitionsDecl sets exactly one of its fields.
type PartitionsDecl struct {
	Daily  string   `yaml:"daily" mapstructure:"daily"`
	Hourly string   `yaml:"hourly" mapstructure:"hourly"`
	Static []string `yaml:"static" mapstructure:"static"`
}

// Build returns the partitions definition.
func (d PartitionsDecl) Build() (asset.PartitionsDefinition, error) {
	set := 0
	for _, ok := range []bool{d.Daily != "", d.Hourly != "", d.Static != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of daily, hourly or static is required")
	}
	switch {
	case d.Daily != "":
		return asset.DailyPartitions(d.Daily)
	case d.Hourly != "":
		return asset.HourlyPartitions(d.Hourly)
	default:
		return asset.NewStaticPartitions(d.Static...)
	}
}

// BuildPolicy resolves a policy name, extra rules and an optional limit.
// It returns nil for no policy.
func BuildPolicy(name string, rules []string, maxPerMinute *int) (*policy.Policy, error) {
	var p policy.Policy
	switch name {
	case "", PolicyNone:
		if len(rules) == 0 && maxPerMinute == nil {
			return nil, nil
		}
		if name == PolicyNone {
			return nil, fmt.Errorf("policy %q cannot carry rules or limits", name)
		}
		p = policy.New(0)
	case PolicyEager:
		p = policy.Eager()
	case PolicyLazy:
		p = policy.Lazy()
	case PolicyCustom:
		p = policy.New(0)
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
	for _, r := range rules {
		rule, err := policy.ParseRule(r, 1)
		if err != nil {
			return nil, err
		}
		p = p.WithRules(rule)
	}
	if maxPerMinute != nil {
		if *maxPerMinute < 1 {
			return nil, fmt.Errorf("max_materializations_per_minute must be >= 1, got %d", *maxPerMinute)
		}
		p = p.WithMaxMaterializationsPerMinute(*maxPerMinute)
	}
	return p.Ptr(), nil
}

// Build converts the declaration into a spec.
func (d AssetDecl) Build() (asset.Spec, error) {
	key := asset.Key(d.Key)
	if err := key.Validate(); err != nil {
		return asset.Spec{}, err
	}
	group := d.Group
	if group == "" {
		group = asset.DefaultGroup
	}
	changes := asset.Changes().Group(group).CodeVersion(d.CodeVersion).Failing(d.Failing)

	p, err := BuildPolicy(d.Policy, d.Rules, d.MaxPerMinute)
	if err != nil {
		return asset.Spec{}, fmt.Errorf("asset %s: %w", d.Key, err)
	}
	if p != nil {
		changes = changes.Policy(*p)
	}
	if d.Partitions != nil {
		def, err := d.Partitions.Build()
		if err != nil {
			return asset.Spec{}, fmt.Errorf("asset %s: partitions: %w", d.Key, err)
		}
		changes = changes.Partitions(def)
	}
	return asset.NewSpec(key, asset.Keys(d.Deps...)...).With(changes), nil
}

// BuildAll validates decls and builds them in order.
func BuildAll(decls []AssetDecl) ([]asset.Spec, error) {
	if errs := Validate(decls); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, errors.Join(joined...)
	}
	specs := make([]asset.Spec, 0, len(decls))
	for _, d := range decls {
		s, err := d.Build()
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}
